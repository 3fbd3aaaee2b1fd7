package ordersvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/localmart/order/internal/dal/interfaces/iorderitemrepo"
	"github.com/localmart/order/internal/dal/interfaces/iorderrepo"
	"github.com/localmart/order/internal/dal/interfaces/ioutboxrepo"
	"github.com/localmart/order/internal/dal/interfaces/iproductrepo"
	"github.com/localmart/order/internal/dal/interfaces/ishoprepo"
	"github.com/localmart/order/internal/dal/postgres"
	"github.com/localmart/order/internal/dal/uow"
	"github.com/localmart/order/internal/service/models/actor"
	"github.com/localmart/order/internal/service/models/events"
	"github.com/localmart/order/internal/service/models/order"
	"github.com/localmart/order/internal/service/models/orderitem"
	"github.com/localmart/order/internal/service/models/product"
	"github.com/localmart/order/internal/service/models/shop"
)

// OrderService coordinates the order lifecycle: submission, per-item shop
// decisions, payment, cancellation and fulfillment progression. Every state
// change goes through a conditional status write, and the matching domain
// event is inserted into the outbox inside the same transaction.
type OrderService struct {
	pgClient    *postgres.Client
	shopRepo    ishoprepo.IShopRepository
	productRepo iproductrepo.IProductRepository
	stock       stockLedger
	dispatcher  deliveryDispatcher

	newUOW func() unitOfWork
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// stockLedger is the slice of the inventory ledger the coordinator needs.
type stockLedger interface {
	ValidateAvailability(
		ctx context.Context,
		items []orderitem.OrderItem,
	) ([]product.Shortfall, error)
	Consume(ctx context.Context, productID int64, quantity int) error
	Release(ctx context.Context, productID int64, quantity int) error
}

// deliveryDispatcher prepares the delivery side of a paid order. Its errors
// are contained: payment stays successful even when no agent can be found.
type deliveryDispatcher interface {
	PrepareDelivery(ctx context.Context, o *order.Order) error
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		if s.pgClient == nil {
			panic("ordersvc: postgres client is required")
		}
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(s.pgClient)
		}
	}
	if s.shopRepo == nil {
		panic("ordersvc: shop repository is required")
	}
	if s.productRepo == nil {
		panic("ordersvc: product repository is required")
	}
	if s.stock == nil {
		panic("ordersvc: stock ledger is required")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.pgClient = pgClient
	}
}

// WithShopRepository sets the shop repository for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithShopRepository(repo ishoprepo.IShopRepository) option {
	return func(s *OrderService) {
		s.shopRepo = repo
	}
}

// WithProductRepository sets the product repository for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithProductRepository(repo iproductrepo.IProductRepository) option {
	return func(s *OrderService) {
		s.productRepo = repo
	}
}

// WithStockLedger sets the inventory ledger for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithStockLedger(stock stockLedger) option {
	return func(s *OrderService) {
		s.stock = stock
	}
}

// WithDispatcher sets the delivery dispatcher for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDispatcher(d deliveryDispatcher) option {
	return func(s *OrderService) {
		s.dispatcher = d
	}
}

// WithUnitOfWorkFactory overrides transaction creation, used by tests.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory func() unitOfWork) option {
	return func(s *OrderService) {
		s.newUOW = factory
	}
}

// SubmitItemModel is one requested line of a new order.
type SubmitItemModel struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// SubmitOrderModel is the customer's cart for one shop.
type SubmitOrderModel struct {
	ShopID          int64             `json:"shopId"`
	Items           []SubmitItemModel `json:"items"`
	DeliveryAddress string            `json:"deliveryAddress"`
	DeliveryPhone   string            `json:"deliveryPhone"`
	Notes           string            `json:"notes"`
}

// PayResult reports the outcome of a payment. DeliveryPrepared false with a
// nil error means the order is paid but delivery setup is incomplete and
// will need a retry.
type PayResult struct {
	Order            *order.Order `json:"order"`
	DeliveryPrepared bool         `json:"deliveryPrepared"`
	AlreadyPaid      bool         `json:"alreadyPaid"`
}

// Submit creates a new order in PENDING_APPROVAL with every item PENDING.
// Prices and titles are snapshotted from the products at this moment, so
// later catalog edits do not change what the customer agreed to.
func (s *OrderService) Submit(
	ctx context.Context,
	act actor.Actor,
	model SubmitOrderModel,
) (*order.Order, error) {
	if !act.Is(actor.RoleCustomer) && !act.Is(actor.RoleAdmin) {
		return nil, actor.ErrNotAllowed
	}
	if len(model.Items) == 0 {
		return nil, order.ErrEmptyCart
	}

	sh, err := s.shopRepo.GetByID(ctx, model.ShopID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(model.Items))
	for _, item := range model.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products for order submission: %w", err)
	}
	byID := make(map[int64]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	now := time.Now()
	o := &order.Order{
		CustomerID:       act.UserID,
		ShopID:           sh.ID,
		Status:           order.StatusPendingApproval,
		DeliveryFeeCents: sh.DeliveryFeeCents,
		DeliveryAddress:  model.DeliveryAddress,
		DeliveryPhone:    model.DeliveryPhone,
		Notes:            model.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	for _, item := range model.Items {
		p, ok := byID[item.ProductID]
		if !ok || p.ShopID != sh.ID {
			return nil, product.ErrProductNotFound
		}

		o.Currency = p.PriceCurrency
		o.OrderItems = append(o.OrderItems, orderitem.OrderItem{
			ProductID:         p.ID,
			ProductTitle:      p.Title,
			Quantity:          item.Quantity,
			UnitPriceCents:    p.PriceCents,
			UnitPriceCurrency: p.PriceCurrency,
			ApprovalStatus:    orderitem.ApprovalPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	o.RecomputeAmounts()
	if err := o.Validate(); err != nil {
		return nil, err
	}

	// An early read-only check so the customer learns about empty shelves
	// before the shop spends time approving.
	shortfalls, err := s.stock.ValidateAvailability(ctx, o.OrderItems)
	if err != nil {
		return nil, err
	}
	if len(shortfalls) > 0 {
		return nil, product.NewInsufficientStockError(shortfalls...)
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	inserted, err := work.OrderRepository().Insert(ctx, *o)
	if err != nil {
		return nil, err
	}

	for i := range o.OrderItems {
		o.OrderItems[i].OrderID = inserted.ID
	}
	items, err := work.OrderItemRepository().BulkInsert(ctx, o.OrderItems)
	if err != nil {
		return nil, err
	}
	inserted.OrderItems = items

	if err := s.insertOrderEvent(ctx, work, events.OrderPlaced, inserted, sh, ""); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, err
	}

	return inserted, nil
}

// DecideItem records the shop's approval or rejection of one item. Once the
// last pending item is decided the order aggregates: all rejected means
// REJECTED, otherwise amounts are recomputed over approved items only and
// the order moves to PAYMENT_PENDING.
func (s *OrderService) DecideItem(
	ctx context.Context,
	act actor.Actor,
	orderID int64,
	itemID int64,
	decision orderitem.ApprovalStatus,
	reason string,
) (*order.Order, error) {
	if !decision.Terminal() {
		return nil, orderitem.ErrInvalidApprovalStatus
	}

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	sh, err := s.shopRepo.GetByID(ctx, o.ShopID)
	if err != nil {
		return nil, err
	}
	if !s.actsForShop(act, sh) {
		return nil, actor.ErrNotAllowed
	}

	if o.Status != order.StatusPendingApproval {
		return nil, order.NewInvalidTransitionError(o.ID, o.Status, decisionTarget(decision))
	}
	if o.Item(itemID) == nil {
		return nil, orderitem.ErrItemNotFound
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	// Lock the order row and re-read everything under it. Concurrent
	// decisions on sibling items serialize here, so the last one always
	// sees every prior decision and triggers aggregation.
	o, err = work.OrderRepository().GetByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusPendingApproval {
		return nil, order.NewInvalidTransitionError(o.ID, o.Status, decisionTarget(decision))
	}

	items, err := work.OrderItemRepository().Query(ctx, &orderitem.QueryOrderItemsModel{
		OrderIds: []int64{orderID},
	})
	if err != nil {
		return nil, err
	}
	o.OrderItems = items

	item := o.Item(itemID)
	if item == nil {
		return nil, orderitem.ErrItemNotFound
	}
	if err := item.Decide(decision, reason); err != nil {
		return nil, err
	}

	decided, err := work.OrderItemRepository().UpdateDecision(ctx, item)
	if err != nil {
		return nil, err
	}
	if !decided {
		return nil, orderitem.ErrItemAlreadyDecided
	}

	if o.AllItemsDecided() {
		o.UpdatedAt = time.Now()

		eventName := events.OrderApproved
		eventReason := ""
		if len(o.ApprovedItems()) == 0 {
			o.Status = order.StatusRejected
			o.RejectionReason = "all items rejected by the shop"
			eventName = events.OrderRejected
			eventReason = o.RejectionReason
		} else {
			// APPROVED is pass-through: an order with at least one
			// approved item is immediately awaiting payment.
			o.RecomputeAmounts()
			o.Status = order.StatusPaymentPending
		}

		moved, err := work.OrderRepository().UpdateStatusIf(ctx, o, order.StatusPendingApproval)
		if err != nil {
			return nil, err
		}
		if !moved {
			return nil, s.transitionConflict(ctx, orderID, o.Status)
		}

		if err := s.insertOrderEvent(ctx, work, eventName, o, sh, eventReason); err != nil {
			return nil, err
		}
	}

	if err := work.Commit(ctx); err != nil {
		return nil, err
	}

	return o, nil
}

// Pay settles a PAYMENT_PENDING order: approved items are consumed from the
// ledger, the order flips to PAID and delivery preparation is attempted.
// Paying an already paid order is a no-op success. A failed delivery setup
// never fails the payment.
func (s *OrderService) Pay(
	ctx context.Context,
	act actor.Actor,
	orderID int64,
	paymentMethod string,
) (*PayResult, error) {
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.actsForCustomer(act, o) {
		return nil, actor.ErrNotAllowed
	}

	if o.Status == order.StatusPaid {
		// Repeat call: report success without touching the ledger, but
		// give delivery setup another chance in case the first attempt
		// came back degraded.
		return &PayResult{
			Order:            o,
			DeliveryPrepared: s.prepareDelivery(ctx, o),
			AlreadyPaid:      true,
		}, nil
	}
	if o.Status != order.StatusPaymentPending {
		return nil, order.NewInvalidTransitionError(o.ID, o.Status, order.StatusPaid)
	}
	if paymentMethod == "" {
		return nil, order.ErrPaymentMethodRequired
	}

	approved := o.ApprovedItems()

	shortfalls, err := s.stock.ValidateAvailability(ctx, approved)
	if err != nil {
		return nil, err
	}
	if len(shortfalls) > 0 {
		return nil, product.NewInsufficientStockError(shortfalls...)
	}

	consumed := make([]orderitem.OrderItem, 0, len(approved))
	for _, item := range approved {
		if err := s.stock.Consume(ctx, item.ProductID, item.Quantity); err != nil {
			s.releaseConsumed(ctx, consumed)
			return nil, err
		}
		consumed = append(consumed, item)
	}

	sh, err := s.shopRepo.GetByID(ctx, o.ShopID)
	if err != nil {
		s.releaseConsumed(ctx, consumed)
		return nil, err
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		s.releaseConsumed(ctx, consumed)
		return nil, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	o.Status = order.StatusPaid
	o.PaymentMethod = paymentMethod
	o.UpdatedAt = time.Now()

	moved, err := work.OrderRepository().UpdateStatusIf(ctx, o, order.StatusPaymentPending)
	if err != nil {
		s.releaseConsumed(ctx, consumed)
		return nil, err
	}
	if !moved {
		// Another writer moved the order first. Our units go back; if the
		// race was a concurrent payment the order is paid without them.
		s.releaseConsumed(ctx, consumed)

		fresh, err := s.getOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if fresh.Status == order.StatusPaid {
			return &PayResult{
				Order:            fresh,
				DeliveryPrepared: s.prepareDelivery(ctx, fresh),
				AlreadyPaid:      true,
			}, nil
		}
		return nil, order.NewInvalidTransitionError(orderID, fresh.Status, order.StatusPaid)
	}

	if err := s.insertOrderEvent(ctx, work, events.OrderPaid, o, sh, ""); err != nil {
		s.releaseConsumed(ctx, consumed)
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		s.releaseConsumed(ctx, consumed)
		return nil, err
	}

	return &PayResult{
		Order:            o,
		DeliveryPrepared: s.prepareDelivery(ctx, o),
	}, nil
}

// Cancel voids an order the customer no longer wants. Allowed only before
// payment; a paid order is committed and must go through fulfillment.
func (s *OrderService) Cancel(
	ctx context.Context,
	act actor.Actor,
	orderID int64,
	reason string,
) (*order.Order, error) {
	if reason == "" {
		return nil, order.ErrCancelReasonRequired
	}

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.actsForCustomer(act, o) {
		return nil, actor.ErrNotAllowed
	}
	if !o.Status.Cancellable() {
		return nil, order.NewInvalidTransitionError(o.ID, o.Status, order.StatusCancelled)
	}

	sh, err := s.shopRepo.GetByID(ctx, o.ShopID)
	if err != nil {
		return nil, err
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	expected := o.Status
	o.Status = order.StatusCancelled
	o.CancellationReason = reason
	o.UpdatedAt = time.Now()

	moved, err := work.OrderRepository().UpdateStatusIf(ctx, o, expected)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, s.transitionConflict(ctx, orderID, order.StatusCancelled)
	}

	if err := s.insertOrderEvent(ctx, work, events.OrderCancelled, o, sh, reason); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, err
	}

	return o, nil
}

// AdvanceFulfillment moves a paid order one step forward: PREPARING, READY,
// then DELIVERED. Steps never skip and never go back.
func (s *OrderService) AdvanceFulfillment(
	ctx context.Context,
	act actor.Actor,
	orderID int64,
	next order.Status,
) (*order.Order, error) {
	switch next {
	case order.StatusPreparing, order.StatusReady, order.StatusDelivered:
	default:
		return nil, order.ErrInvalidStatus
	}

	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	sh, err := s.shopRepo.GetByID(ctx, o.ShopID)
	if err != nil {
		return nil, err
	}

	// The shop works the kitchen steps; the courier confirms the handoff.
	switch next {
	case order.StatusDelivered:
		if !act.Is(actor.RoleAgent) && !act.Is(actor.RoleAdmin) {
			return nil, actor.ErrNotAllowed
		}
	default:
		if !s.actsForShop(act, sh) {
			return nil, actor.ErrNotAllowed
		}
	}

	if !o.Status.CanTransitionTo(next) {
		return nil, order.NewInvalidTransitionError(o.ID, o.Status, next)
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = work.Rollback(ctx) }()

	expected := o.Status
	o.Status = next
	o.UpdatedAt = time.Now()

	moved, err := work.OrderRepository().UpdateStatusIf(ctx, o, expected)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, s.transitionConflict(ctx, orderID, next)
	}

	if next == order.StatusDelivered {
		if err := s.insertOrderEvent(ctx, work, events.OrderDelivered, o, sh, ""); err != nil {
			return nil, err
		}
	}

	if err := work.Commit(ctx); err != nil {
		return nil, err
	}

	return o, nil
}

// GetOrders retrieves orders with their items based on filter.
func (s *OrderService) GetOrders(
	ctx context.Context,
	filter *order.QueryOrdersModel,
) ([]order.Order, error) {
	work := s.newUOW()

	orders, err := work.OrderRepository().Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	orderIds := make([]int64, 0, len(orders))
	for _, o := range orders {
		orderIds = append(orderIds, o.ID)
	}

	items, err := work.OrderItemRepository().Query(ctx, &orderitem.QueryOrderItemsModel{
		OrderIds: orderIds,
	})
	if err != nil {
		return nil, err
	}

	byOrder := make(map[int64][]orderitem.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].OrderItems = byOrder[orders[i].ID]
	}

	return orders, nil
}

// GetByID retrieves one order with its items.
func (s *OrderService) GetByID(ctx context.Context, orderID int64) (*order.Order, error) {
	return s.getOrder(ctx, orderID)
}

func (s *OrderService) getOrder(ctx context.Context, orderID int64) (*order.Order, error) {
	work := s.newUOW()

	o, err := work.OrderRepository().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	items, err := work.OrderItemRepository().Query(ctx, &orderitem.QueryOrderItemsModel{
		OrderIds: []int64{o.ID},
	})
	if err != nil {
		return nil, err
	}
	o.OrderItems = items

	return o, nil
}

func (s *OrderService) actsForCustomer(act actor.Actor, o *order.Order) bool {
	if act.Is(actor.RoleAdmin) {
		return true
	}
	return act.Is(actor.RoleCustomer) && act.UserID == o.CustomerID
}

func (s *OrderService) actsForShop(act actor.Actor, sh *shop.Shop) bool {
	if act.Is(actor.RoleAdmin) {
		return true
	}
	return act.Is(actor.RoleShop) && act.UserID == sh.OwnerUserID
}

// decisionTarget names the order status a decision was driving toward, for
// error reporting on an order that already left PENDING_APPROVAL.
func decisionTarget(decision orderitem.ApprovalStatus) order.Status {
	if decision == orderitem.ApprovalRejected {
		return order.StatusRejected
	}
	return order.StatusApproved
}

// transitionConflict re-reads the order after a lost conditional write and
// reports the transition that is no longer possible.
func (s *OrderService) transitionConflict(
	ctx context.Context,
	orderID int64,
	attempted order.Status,
) error {
	fresh, err := s.getOrder(ctx, orderID)
	if err != nil {
		return err
	}
	return order.NewInvalidTransitionError(orderID, fresh.Status, attempted)
}

func (s *OrderService) insertOrderEvent(
	ctx context.Context,
	work unitOfWork,
	name string,
	o *order.Order,
	sh *shop.Shop,
	reason string,
) error {
	msg, err := events.NewOutboxMessage(name, events.OrderEvent{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		ShopID:      o.ShopID,
		ShopOwnerID: sh.OwnerUserID,
		Status:      o.Status.String(),
		TotalCents:  o.TotalCents,
		Reason:      reason,
	})
	if err != nil {
		return err
	}

	return work.OutboxRepository().Insert(ctx, msg)
}

func (s *OrderService) prepareDelivery(ctx context.Context, o *order.Order) bool {
	if s.dispatcher == nil {
		return false
	}
	if err := s.dispatcher.PrepareDelivery(ctx, o); err != nil {
		slog.Error("Delivery preparation incomplete, order stays paid",
			"order_id", o.ID,
			"error", err.Error(),
		)
		return false
	}

	return true
}

func (s *OrderService) releaseConsumed(ctx context.Context, consumed []orderitem.OrderItem) {
	for _, item := range consumed {
		if err := s.stock.Release(ctx, item.ProductID, item.Quantity); err != nil {
			slog.Error("Failed to release consumed stock",
				"product_id", item.ProductID,
				"quantity", item.Quantity,
				"error", err.Error(),
			)
		}
	}
}
