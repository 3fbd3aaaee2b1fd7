package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/localmart/order/internal/service/models/outbox"
	"github.com/spf13/viper"
)

// Event names double as AMQP routing keys.
const (
	OrderPlaced      = "order.placed"
	OrderApproved    = "order.approved"
	OrderRejected    = "order.rejected"
	OrderPaid        = "order.paid"
	OrderCancelled   = "order.cancelled"
	OrderDelivered   = "order.delivered"
	DeliveryAssigned = "delivery.assigned"
)

// Envelope wraps every domain event payload published through the outbox.
type Envelope struct {
	EventID    string          `json:"eventId"`
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// OrderEvent is the payload shared by order lifecycle events.
type OrderEvent struct {
	OrderID     int64  `json:"orderId"`
	CustomerID  int64  `json:"customerId"`
	ShopID      int64  `json:"shopId"`
	ShopOwnerID int64  `json:"shopOwnerId"`
	Status      string `json:"status"`
	TotalCents  int64  `json:"totalCents"`
	Reason      string `json:"reason,omitempty"`
}

// DeliveryAssignedEvent is emitted when an agent accepts an assignment.
type DeliveryAssignedEvent struct {
	OrderID     int64 `json:"orderId"`
	CustomerID  int64 `json:"customerId"`
	AgentID     int64 `json:"agentId"`
	AgentUserID int64 `json:"agentUserId"`
}

// NewOutboxMessage packs a named event into an outbox row ready for the
// publisher worker.
func NewOutboxMessage(name string, payload any) (outbox.OutboxMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return outbox.OutboxMessage{}, fmt.Errorf("failed to marshal %s payload: %w", name, err)
	}

	envelope := Envelope{
		EventID:    uuid.New().String(),
		Name:       name,
		OccurredAt: time.Now(),
		Payload:    raw,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return outbox.OutboxMessage{}, fmt.Errorf("failed to marshal %s envelope: %w", name, err)
	}

	now := time.Now()

	return outbox.OutboxMessage{
		QueueName:    viper.GetString("rabbitmq.events_queue"),
		ExchangeName: "",
		RoutingKey:   viper.GetString("rabbitmq.events_queue"),
		Payload:      body,
		ContentType:  "application/json",
		MaxRetries:   10,
		CreatedAt:    now,
		UpdatedAt:    now,
		NextRetryAt:  now,
	}, nil
}
