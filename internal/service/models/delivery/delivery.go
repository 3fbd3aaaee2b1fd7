package delivery

import (
	"errors"
	"time"
)

// Status is the assignment's progress, owned by the delivery side.
type Status string

const (
	StatusUnassigned Status = "UNASSIGNED"
	StatusAssigned   Status = "ASSIGNED"
	StatusPickedUp   Status = "PICKED_UP"
	StatusDelivered  Status = "DELIVERED"
)

var (
	ErrInvalidStatus      = errors.New("invalid delivery status")
	ErrAssignmentNotFound = errors.New("delivery assignment not found")
)

func (s Status) String() string {
	return string(s)
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusUnassigned, StatusAssigned, StatusPickedUp, StatusDelivered:
		return Status(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

// Assignment is created at most once per order, only after payment. All
// coordinates are optional: geocoding may fail without blocking the
// assignment, the row just carries whatever resolved.
type Assignment struct {
	ID              int64     `json:"id"`
	OrderID         int64     `json:"orderId"`
	PickupLatitude  *float64  `json:"pickupLatitude,omitempty"`
	PickupLongitude *float64  `json:"pickupLongitude,omitempty"`
	DropLatitude    *float64  `json:"dropLatitude,omitempty"`
	DropLongitude   *float64  `json:"dropLongitude,omitempty"`
	AgentID         *int64    `json:"agentId,omitempty"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
