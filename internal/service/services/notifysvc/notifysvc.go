package notifysvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/localmart/order/internal/dal/interfaces/inotificationrepo"
	"github.com/localmart/order/internal/service/models/events"
	"github.com/localmart/order/internal/service/models/notification"
)

// NotifyService turns domain events into user-facing notifications. It sits
// behind the message queue, so nothing here can slow down or fail an order
// operation: bad payloads are dropped, sink errors are logged and swallowed.
type NotifyService struct {
	notificationRepo inotificationrepo.INotificationRepository
}

// option is a function that configures the NotifyService.
type option func(*NotifyService)

// MustNewNotifyService creates a new NotifyService.
func MustNewNotifyService(opts ...option) *NotifyService {
	s := &NotifyService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.notificationRepo == nil {
		panic("notifysvc: notification repository is required")
	}

	return s
}

// WithNotificationRepository sets the notification repository for the
// NotifyService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithNotificationRepository(repo inotificationrepo.INotificationRepository) option {
	return func(s *NotifyService) {
		s.notificationRepo = repo
	}
}

// HandleEvent processes one published event envelope. It always returns nil
// for payloads that can never succeed, so the consumer does not requeue them.
func (s *NotifyService) HandleEvent(ctx context.Context, body []byte) error {
	var envelope events.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		slog.Error("Dropping malformed event envelope", "error", err.Error())
		return nil
	}

	var built []notification.Notification
	switch envelope.Name {
	case events.OrderPlaced, events.OrderApproved, events.OrderRejected,
		events.OrderPaid, events.OrderCancelled, events.OrderDelivered:
		var ev events.OrderEvent
		if err := json.Unmarshal(envelope.Payload, &ev); err != nil {
			slog.Error("Dropping malformed order event",
				"event", envelope.Name,
				"error", err.Error(),
			)
			return nil
		}
		built = s.buildOrderNotifications(envelope.Name, ev)
	case events.DeliveryAssigned:
		var ev events.DeliveryAssignedEvent
		if err := json.Unmarshal(envelope.Payload, &ev); err != nil {
			slog.Error("Dropping malformed delivery event", "error", err.Error())
			return nil
		}
		built = s.buildDeliveryNotifications(ev)
	default:
		slog.Warn("Ignoring unknown event", "event", envelope.Name)
		return nil
	}

	for _, n := range built {
		if err := s.notificationRepo.Insert(ctx, n); err != nil {
			slog.Error("Failed to store notification",
				"event", envelope.Name,
				"user_id", n.UserID,
				"order_id", n.OrderID,
				"error", err.Error(),
			)
		}
	}

	return nil
}

// ListForUser returns a user's notifications, newest first.
func (s *NotifyService) ListForUser(
	ctx context.Context,
	userID int64,
	limit, offset int,
) ([]notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.notificationRepo.QueryByUser(ctx, userID, limit, offset)
}

func (s *NotifyService) buildOrderNotifications(
	name string,
	ev events.OrderEvent,
) []notification.Notification {
	now := time.Now()
	amount := fmt.Sprintf("%.2f", float64(ev.TotalCents)/100)

	build := func(userID int64, t notification.Type, title, message string) notification.Notification {
		return notification.Notification{
			UserID:    userID,
			OrderID:   ev.OrderID,
			Type:      t,
			Title:     title,
			Message:   message,
			CreatedAt: now,
		}
	}

	switch name {
	case events.OrderPlaced:
		return []notification.Notification{
			build(ev.ShopOwnerID, notification.TypeOrderPlaced,
				"New order received",
				fmt.Sprintf("Order #%d is waiting for your approval.", ev.OrderID)),
		}
	case events.OrderApproved:
		return []notification.Notification{
			build(ev.CustomerID, notification.TypeOrderApproved,
				"Order approved",
				fmt.Sprintf("Order #%d was approved. Pay %s to confirm.", ev.OrderID, amount)),
		}
	case events.OrderRejected:
		return []notification.Notification{
			build(ev.CustomerID, notification.TypeOrderRejected,
				"Order rejected",
				fmt.Sprintf("Order #%d was rejected: %s", ev.OrderID, ev.Reason)),
		}
	case events.OrderPaid:
		return []notification.Notification{
			build(ev.CustomerID, notification.TypeOrderPaid,
				"Payment received",
				fmt.Sprintf("Order #%d is paid. The shop is preparing it.", ev.OrderID)),
			build(ev.ShopOwnerID, notification.TypeOrderPaid,
				"Order paid",
				fmt.Sprintf("Order #%d is paid (%s). Start preparing.", ev.OrderID, amount)),
		}
	case events.OrderCancelled:
		return []notification.Notification{
			build(ev.CustomerID, notification.TypeOrderCancelled,
				"Order cancelled",
				fmt.Sprintf("Order #%d was cancelled: %s", ev.OrderID, ev.Reason)),
			build(ev.ShopOwnerID, notification.TypeOrderCancelled,
				"Order cancelled",
				fmt.Sprintf("Order #%d was cancelled by the customer.", ev.OrderID)),
		}
	case events.OrderDelivered:
		return []notification.Notification{
			build(ev.CustomerID, notification.TypeOrderDelivered,
				"Order delivered",
				fmt.Sprintf("Order #%d was delivered. Enjoy!", ev.OrderID)),
		}
	default:
		return nil
	}
}

func (s *NotifyService) buildDeliveryNotifications(
	ev events.DeliveryAssignedEvent,
) []notification.Notification {
	now := time.Now()

	return []notification.Notification{
		{
			UserID:    ev.CustomerID,
			OrderID:   ev.OrderID,
			Type:      notification.TypeDeliveryAssigned,
			Title:     "Courier assigned",
			Message:   fmt.Sprintf("A courier was assigned to order #%d.", ev.OrderID),
			CreatedAt: now,
		},
		{
			UserID:    ev.AgentUserID,
			OrderID:   ev.OrderID,
			Type:      notification.TypeDeliveryAssigned,
			Title:     "New delivery",
			Message:   fmt.Sprintf("You were assigned order #%d. Head to the pickup point.", ev.OrderID),
			CreatedAt: now,
		},
	}
}
