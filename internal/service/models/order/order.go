package order

import (
	"errors"
	"time"

	"github.com/localmart/order/internal/service/models/currency"
	"github.com/localmart/order/internal/service/models/orderitem"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrEmptyCart     = errors.New("order must contain at least one item")
	// ErrCancelReasonRequired is returned when a cancellation arrives
	// without an explanation.
	ErrCancelReasonRequired = errors.New("cancellation reason is required")
	// ErrPaymentMethodRequired is returned when a payment arrives without
	// naming how the customer pays.
	ErrPaymentMethodRequired = errors.New("payment method is required")
	ErrAmountMismatch       = errors.New("total amount must equal subtotal plus delivery fee")
)

// Order is the root of the order lifecycle. Items are created together with
// the order and never added or removed afterwards; only their approval fields
// and the order-level amounts derived from them change.
type Order struct {
	ID                 int64                 `json:"id"`
	CustomerID         int64                 `json:"customerId"`
	ShopID             int64                 `json:"shopId"`
	Status             Status                `json:"status"`
	SubtotalCents      int64                 `json:"subtotalCents"`
	DeliveryFeeCents   int64                 `json:"deliveryFeeCents"`
	TotalCents         int64                 `json:"totalCents"`
	Currency           currency.Currency     `json:"currency"`
	DeliveryAddress    string                `json:"deliveryAddress"`
	DeliveryPhone      string                `json:"deliveryPhone"`
	Notes              string                `json:"notes,omitempty"`
	PaymentMethod      string                `json:"paymentMethod,omitempty"`
	RejectionReason    string                `json:"rejectionReason,omitempty"`
	CancellationReason string                `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
	OrderItems         []orderitem.OrderItem `json:"orderItems"`
}

// Validate checks the creation-time invariants.
func (o *Order) Validate() error {
	if len(o.OrderItems) == 0 {
		return ErrEmptyCart
	}
	if o.SubtotalCents < 0 || o.DeliveryFeeCents < 0 {
		return ErrAmountMismatch
	}
	if o.TotalCents != o.SubtotalCents+o.DeliveryFeeCents {
		return ErrAmountMismatch
	}
	for i := range o.OrderItems {
		if o.OrderItems[i].Quantity <= 0 {
			return orderitem.ErrInvalidQuantity
		}
	}

	return nil
}

// AllItemsDecided reports whether every item has a terminal decision.
func (o *Order) AllItemsDecided() bool {
	for i := range o.OrderItems {
		if !o.OrderItems[i].ApprovalStatus.Terminal() {
			return false
		}
	}

	return len(o.OrderItems) > 0
}

// ApprovedItems returns the items the shop accepted.
func (o *Order) ApprovedItems() []orderitem.OrderItem {
	approved := make([]orderitem.OrderItem, 0, len(o.OrderItems))
	for _, item := range o.OrderItems {
		if item.ApprovalStatus == orderitem.ApprovalApproved {
			approved = append(approved, item)
		}
	}

	return approved
}

// RecomputeAmounts re-derives subtotal and total, skipping rejected lines
// so the customer is never charged for them. At submission every line is
// still pending and counts in full.
func (o *Order) RecomputeAmounts() {
	var subtotal int64
	for _, item := range o.OrderItems {
		if item.ApprovalStatus == orderitem.ApprovalRejected {
			continue
		}
		subtotal += item.SubtotalCents()
	}

	o.SubtotalCents = subtotal
	o.TotalCents = subtotal + o.DeliveryFeeCents
}

// Item returns the order item with the given id, or nil.
func (o *Order) Item(itemID int64) *orderitem.OrderItem {
	for i := range o.OrderItems {
		if o.OrderItems[i].ID == itemID {
			return &o.OrderItems[i]
		}
	}

	return nil
}
