package order

import (
	"errors"
	"fmt"
)

// Status is the order's position in its lifecycle.
type Status string

const (
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusPaymentPending  Status = "PAYMENT_PENDING"
	StatusPaid            Status = "PAID"
	StatusPreparing       Status = "PREPARING"
	StatusReady           Status = "READY"
	StatusDelivered       Status = "DELIVERED"
	StatusCancelled       Status = "CANCELLED"
)

var ErrInvalidStatus = errors.New("invalid order status")

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusDelivered || s == StatusCancelled
}

// Cancellable reports whether the customer may still cancel. Paid orders and
// anything beyond are committed: money and stock are already spent.
func (s Status) Cancellable() bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusPaymentPending:
		return true
	default:
		return false
	}
}

// transitions is the complete forward edge set of the lifecycle.
var transitions = map[Status][]Status{
	StatusPendingApproval: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:        {StatusPaymentPending, StatusCancelled},
	StatusPaymentPending:  {StatusPaid, StatusCancelled},
	StatusPaid:            {StatusPreparing},
	StatusPreparing:       {StatusReady},
	StatusReady:           {StatusDelivered},
}

// CanTransitionTo reports whether target is a legal next status.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}

	return false
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPendingApproval, StatusApproved, StatusRejected,
		StatusPaymentPending, StatusPaid, StatusPreparing,
		StatusReady, StatusDelivered, StatusCancelled:
		return Status(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

// ErrInvalidTransition matches any InvalidTransitionError via errors.Is.
var ErrInvalidTransition = errors.New("invalid order status transition")

// InvalidTransitionError reports an attempted state change that is not
// permitted from the order's current status.
type InvalidTransitionError struct {
	OrderID int64
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %d: cannot transition from %s to %s", e.OrderID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func NewInvalidTransitionError(orderID int64, from, to Status) error {
	return &InvalidTransitionError{OrderID: orderID, From: from, To: to}
}
