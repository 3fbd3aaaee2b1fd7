package ideliveryrepo

import (
	"context"

	"github.com/localmart/order/internal/service/models/delivery"
)

// IDeliveryRepository is an interface for delivery assignment postgres
// repository.
type IDeliveryRepository interface {
	// Insert creates the assignment for an order if none exists yet and
	// returns the stored row either way, keeping creation idempotent.
	Insert(ctx context.Context, a delivery.Assignment) (*delivery.Assignment, error)

	GetByOrderID(ctx context.Context, orderID int64) (*delivery.Assignment, error)

	// Assign sets the agent on a still-unassigned assignment. False means
	// the assignment already left UNASSIGNED.
	Assign(ctx context.Context, assignmentID, agentID int64) (bool, error)
}
