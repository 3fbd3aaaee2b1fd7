package dispatchsvc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/localmart/order/internal/dal/interfaces/iagentrepo"
	"github.com/localmart/order/internal/dal/interfaces/ideliveryrepo"
	"github.com/localmart/order/internal/dal/interfaces/ioutboxrepo"
	"github.com/localmart/order/internal/dal/interfaces/ishoprepo"
	"github.com/localmart/order/internal/geocode"
	"github.com/localmart/order/internal/service/models/agent"
	"github.com/localmart/order/internal/service/models/delivery"
	"github.com/localmart/order/internal/service/models/events"
	"github.com/localmart/order/internal/service/models/order"
)

// DispatchService prepares the delivery side of a paid order: it resolves
// pickup and drop coordinates, creates the assignment and tries to hand it
// to the least recently used available agent. Geocoding problems degrade to
// an assignment without coordinates; only a missing assignment or a missing
// agent counts as incomplete setup.
type DispatchService struct {
	deliveryRepo ideliveryrepo.IDeliveryRepository
	agentRepo    iagentrepo.IAgentRepository
	shopRepo     ishoprepo.IShopRepository
	outboxRepo   ioutboxrepo.IOutboxRepository
	geocoder     geocoder
}

type geocoder interface {
	Resolve(ctx context.Context, address string) (*geocode.Point, error)
}

// option is a function that configures the DispatchService.
type option func(*DispatchService)

// MustNewDispatchService creates a new DispatchService.
func MustNewDispatchService(opts ...option) *DispatchService {
	s := &DispatchService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.deliveryRepo == nil {
		panic("dispatchsvc: delivery repository is required")
	}
	if s.agentRepo == nil {
		panic("dispatchsvc: agent repository is required")
	}
	if s.shopRepo == nil {
		panic("dispatchsvc: shop repository is required")
	}
	if s.outboxRepo == nil {
		panic("dispatchsvc: outbox repository is required")
	}

	return s
}

// WithDeliveryRepository sets the delivery repository for the DispatchService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDeliveryRepository(repo ideliveryrepo.IDeliveryRepository) option {
	return func(s *DispatchService) {
		s.deliveryRepo = repo
	}
}

// WithAgentRepository sets the agent repository for the DispatchService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithAgentRepository(repo iagentrepo.IAgentRepository) option {
	return func(s *DispatchService) {
		s.agentRepo = repo
	}
}

// WithShopRepository sets the shop repository for the DispatchService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithShopRepository(repo ishoprepo.IShopRepository) option {
	return func(s *DispatchService) {
		s.shopRepo = repo
	}
}

// WithOutboxRepository sets the outbox repository for the DispatchService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOutboxRepository(repo ioutboxrepo.IOutboxRepository) option {
	return func(s *DispatchService) {
		s.outboxRepo = repo
	}
}

// WithGeocoder sets the address resolver for the DispatchService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithGeocoder(g geocoder) option {
	return func(s *DispatchService) {
		s.geocoder = g
	}
}

// PrepareDelivery creates and assigns the delivery for a paid order. Safe to
// call again for the same order: an existing assignment is reused, an
// already assigned one is left alone. The returned error means setup is
// incomplete and worth retrying, never that the payment should fail.
func (s *DispatchService) PrepareDelivery(ctx context.Context, o *order.Order) error {
	pickupLat, pickupLon := s.pickupPoint(ctx, o.ShopID)
	dropLat, dropLon := s.dropPoint(ctx, o)

	a, err := s.deliveryRepo.Insert(ctx, delivery.Assignment{
		OrderID:         o.ID,
		PickupLatitude:  pickupLat,
		PickupLongitude: pickupLon,
		DropLatitude:    dropLat,
		DropLongitude:   dropLon,
		Status:          delivery.StatusUnassigned,
	})
	if err != nil {
		return fmt.Errorf("failed to create delivery assignment for order %d: %w", o.ID, err)
	}

	if a.Status != delivery.StatusUnassigned {
		return nil
	}

	ag, err := s.agentRepo.SelectAvailable(ctx)
	if err != nil {
		return fmt.Errorf("failed to pick an agent for order %d: %w", o.ID, err)
	}

	assigned, err := s.deliveryRepo.Assign(ctx, a.ID, ag.ID)
	if err != nil {
		return fmt.Errorf("failed to assign agent %d to order %d: %w", ag.ID, o.ID, err)
	}
	if !assigned {
		// A concurrent preparation won the assignment.
		return nil
	}

	if err := s.agentRepo.MarkAssigned(ctx, ag.ID); err != nil {
		slog.Error("Failed to record agent assignment time",
			"agent_id", ag.ID,
			"error", err.Error(),
		)
	}

	s.emitAssigned(ctx, o, ag)

	return nil
}

// pickupPoint returns the shop's coordinates, resolving and caching them on
// first use. Any failure just leaves the pickup point empty.
func (s *DispatchService) pickupPoint(ctx context.Context, shopID int64) (*float64, *float64) {
	sh, err := s.shopRepo.GetByID(ctx, shopID)
	if err != nil {
		slog.Error("Failed to load shop for pickup point", "shop_id", shopID, "error", err.Error())
		return nil, nil
	}

	if sh.Latitude != nil && sh.Longitude != nil {
		return sh.Latitude, sh.Longitude
	}
	if s.geocoder == nil {
		return nil, nil
	}

	point, err := s.geocoder.Resolve(ctx, sh.Address)
	if err != nil {
		slog.Warn("Failed to geocode shop address", "shop_id", shopID, "error", err.Error())
		return nil, nil
	}
	if point == nil {
		return nil, nil
	}

	if err := s.shopRepo.UpdateCoordinates(ctx, shopID, point.Latitude, point.Longitude); err != nil {
		slog.Warn("Failed to cache shop coordinates", "shop_id", shopID, "error", err.Error())
	}

	return &point.Latitude, &point.Longitude
}

func (s *DispatchService) dropPoint(ctx context.Context, o *order.Order) (*float64, *float64) {
	if s.geocoder == nil {
		return nil, nil
	}

	point, err := s.geocoder.Resolve(ctx, o.DeliveryAddress)
	if err != nil {
		slog.Warn("Failed to geocode delivery address", "order_id", o.ID, "error", err.Error())
		return nil, nil
	}
	if point == nil {
		return nil, nil
	}

	return &point.Latitude, &point.Longitude
}

func (s *DispatchService) emitAssigned(ctx context.Context, o *order.Order, ag *agent.Agent) {
	msg, err := events.NewOutboxMessage(events.DeliveryAssigned, events.DeliveryAssignedEvent{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		AgentID:     ag.ID,
		AgentUserID: ag.UserID,
	})
	if err != nil {
		slog.Error("Failed to build delivery assigned event", "order_id", o.ID, "error", err.Error())
		return
	}

	if err := s.outboxRepo.Insert(ctx, msg); err != nil {
		slog.Error("Failed to enqueue delivery assigned event", "order_id", o.ID, "error", err.Error())
	}
}
