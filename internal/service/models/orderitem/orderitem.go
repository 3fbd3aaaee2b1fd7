package orderitem

import (
	"errors"
	"time"

	"github.com/localmart/order/internal/service/models/currency"
)

// ApprovalStatus is the shop's per-item decision.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

var (
	ErrInvalidApprovalStatus = errors.New("invalid approval status")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrItemNotFound          = errors.New("order item not found")
	// ErrRejectionReasonRequired is returned when an item is rejected
	// without an explanation for the customer.
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
	ErrItemAlreadyDecided      = errors.New("order item already has a decision")
)

func (s ApprovalStatus) String() string {
	return string(s)
}

// Terminal reports whether the decision is final.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	switch s {
	case ApprovalPending.String():
		return ApprovalPending, nil
	case ApprovalApproved.String():
		return ApprovalApproved, nil
	case ApprovalRejected.String():
		return ApprovalRejected, nil
	default:
		return "", ErrInvalidApprovalStatus
	}
}

// OrderItem is a line of an order. The quantity and unit price are fixed at
// submission time; only the approval fields change afterwards, and only while
// the parent order is awaiting approval.
type OrderItem struct {
	ID                int64             `json:"id"`
	OrderID           int64             `json:"orderId"`
	ProductID         int64             `json:"productId"`
	ProductTitle      string            `json:"productTitle"`
	Quantity          int               `json:"quantity"`
	UnitPriceCents    int64             `json:"unitPriceCents"`
	UnitPriceCurrency currency.Currency `json:"unitPriceCurrency"`
	ApprovalStatus    ApprovalStatus    `json:"approvalStatus"`
	RejectionReason   string            `json:"rejectionReason,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// SubtotalCents is the line value at the snapshotted unit price.
func (oi *OrderItem) SubtotalCents() int64 {
	return oi.UnitPriceCents * int64(oi.Quantity)
}

// Decide applies the shop's decision to a still-pending item.
func (oi *OrderItem) Decide(status ApprovalStatus, reason string) error {
	if oi.ApprovalStatus != ApprovalPending {
		return ErrItemAlreadyDecided
	}
	if !status.Terminal() {
		return ErrInvalidApprovalStatus
	}
	if status == ApprovalRejected && reason == "" {
		return ErrRejectionReasonRequired
	}

	oi.ApprovalStatus = status
	oi.RejectionReason = reason
	oi.UpdatedAt = time.Now()

	return nil
}
