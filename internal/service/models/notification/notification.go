package notification

import "time"

// Type classifies a notification for UI rendering.
type Type string

const (
	TypeOrderPlaced      Type = "ORDER_PLACED"
	TypeOrderApproved    Type = "ORDER_APPROVED"
	TypeOrderRejected    Type = "ORDER_REJECTED"
	TypeOrderPaid        Type = "ORDER_PAID"
	TypeOrderCancelled   Type = "ORDER_CANCELLED"
	TypeOrderDelivered   Type = "ORDER_DELIVERED"
	TypeDeliveryAssigned Type = "DELIVERY_ASSIGNED"
)

// Notification is a fire-and-forget user-facing record. Failures creating
// one never roll back the state transition that triggered it.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	OrderID   int64     `json:"orderId"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}
