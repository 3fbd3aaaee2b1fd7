package notifysvc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/localmart/order/internal/service/models/events"
	"github.com/localmart/order/internal/service/models/notification"
)

type fakeNotificationRepo struct {
	stored    []notification.Notification
	insertErr error
}

func (r *fakeNotificationRepo) Insert(_ context.Context, n notification.Notification) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.stored = append(r.stored, n)
	return nil
}

func (r *fakeNotificationRepo) QueryByUser(
	_ context.Context,
	userID int64,
	limit, offset int,
) ([]notification.Notification, error) {
	var out []notification.Notification
	for _, n := range r.stored {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func envelope(t *testing.T, name string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body, err := json.Marshal(events.Envelope{
		EventID:    "test-event",
		Name:       name,
		OccurredAt: time.Now(),
		Payload:    raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

var orderEvent = events.OrderEvent{
	OrderID:     42,
	CustomerID:  7,
	ShopID:      1,
	ShopOwnerID: 100,
	TotalCents:  3050,
	Reason:      "out of stock",
}

func TestHandleEvent(t *testing.T) {
	t.Run("order placed notifies the shop owner", func(t *testing.T) {
		repo := &fakeNotificationRepo{}
		svc := MustNewNotifyService(WithNotificationRepository(repo))

		if err := svc.HandleEvent(context.Background(), envelope(t, events.OrderPlaced, orderEvent)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(repo.stored) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(repo.stored))
		}
		if repo.stored[0].UserID != 100 {
			t.Errorf("expected the shop owner notified, got user %d", repo.stored[0].UserID)
		}
		if repo.stored[0].Type != notification.TypeOrderPlaced {
			t.Errorf("unexpected type %s", repo.stored[0].Type)
		}
	})

	t.Run("order paid notifies both sides", func(t *testing.T) {
		repo := &fakeNotificationRepo{}
		svc := MustNewNotifyService(WithNotificationRepository(repo))

		if err := svc.HandleEvent(context.Background(), envelope(t, events.OrderPaid, orderEvent)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(repo.stored) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(repo.stored))
		}

		users := map[int64]bool{}
		for _, n := range repo.stored {
			users[n.UserID] = true
		}
		if !users[7] || !users[100] {
			t.Errorf("expected customer and shop owner notified, got %v", users)
		}
	})

	t.Run("rejection carries the shop's reason", func(t *testing.T) {
		repo := &fakeNotificationRepo{}
		svc := MustNewNotifyService(WithNotificationRepository(repo))

		if err := svc.HandleEvent(context.Background(), envelope(t, events.OrderRejected, orderEvent)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(repo.stored) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(repo.stored))
		}
		if !strings.Contains(repo.stored[0].Message, "out of stock") {
			t.Errorf("expected the reason in the message, got %q", repo.stored[0].Message)
		}
	})

	t.Run("delivery assigned notifies customer and courier", func(t *testing.T) {
		repo := &fakeNotificationRepo{}
		svc := MustNewNotifyService(WithNotificationRepository(repo))

		body := envelope(t, events.DeliveryAssigned, events.DeliveryAssignedEvent{
			OrderID:     42,
			CustomerID:  7,
			AgentID:     5,
			AgentUserID: 200,
		})
		if err := svc.HandleEvent(context.Background(), body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(repo.stored) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(repo.stored))
		}

		users := map[int64]bool{}
		for _, n := range repo.stored {
			users[n.UserID] = true
			if n.Type != notification.TypeDeliveryAssigned {
				t.Errorf("unexpected type %s", n.Type)
			}
		}
		if !users[7] || !users[200] {
			t.Errorf("expected customer and courier notified, got %v", users)
		}
	})

	t.Run("malformed envelope is dropped without error", func(t *testing.T) {
		repo := &fakeNotificationRepo{}
		svc := MustNewNotifyService(WithNotificationRepository(repo))

		if err := svc.HandleEvent(context.Background(), []byte("{not json")); err != nil {
			t.Fatalf("expected malformed payload swallowed, got %v", err)
		}
		if len(repo.stored) != 0 {
			t.Errorf("expected no notifications, got %d", len(repo.stored))
		}
	})

	t.Run("unknown event is ignored", func(t *testing.T) {
		repo := &fakeNotificationRepo{}
		svc := MustNewNotifyService(WithNotificationRepository(repo))

		if err := svc.HandleEvent(context.Background(), envelope(t, "order.sneezed", orderEvent)); err != nil {
			t.Fatalf("expected unknown event ignored, got %v", err)
		}
		if len(repo.stored) != 0 {
			t.Errorf("expected no notifications, got %d", len(repo.stored))
		}
	})

	t.Run("sink errors do not bounce the message", func(t *testing.T) {
		repo := &fakeNotificationRepo{insertErr: errors.New("connection reset")}
		svc := MustNewNotifyService(WithNotificationRepository(repo))

		if err := svc.HandleEvent(context.Background(), envelope(t, events.OrderPlaced, orderEvent)); err != nil {
			t.Fatalf("expected insert failure logged and swallowed, got %v", err)
		}
	})
}

func TestListForUser(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := MustNewNotifyService(WithNotificationRepository(repo))

	for i := 0; i < 3; i++ {
		if err := svc.HandleEvent(context.Background(), envelope(t, events.OrderPlaced, orderEvent)); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	got, err := svc.ListForUser(context.Background(), 100, 2, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected the limit applied, got %d", len(got))
	}

	got, err = svc.ListForUser(context.Background(), 7, 10, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no notifications for the customer, got %d", len(got))
	}
}
