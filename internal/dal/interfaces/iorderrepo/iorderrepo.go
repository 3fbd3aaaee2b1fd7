package iorderrepo

import (
	"context"

	"github.com/localmart/order/internal/service/models/order"
)

// IOrderRepository is an interface for order postgres repository.
type IOrderRepository interface {
	Insert(ctx context.Context, o order.Order) (*order.Order, error)
	GetByID(ctx context.Context, id int64) (*order.Order, error)

	// GetByIDForUpdate reads the order under a row lock held until the
	// surrounding transaction ends, serializing writers that must see
	// each other's changes (sibling item decisions).
	GetByIDForUpdate(ctx context.Context, id int64) (*order.Order, error)

	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)

	// UpdateStatusIf writes the order's mutable fields conditioned on the
	// row still holding the expected status. A false return means another
	// writer got there first; the caller re-reads and re-decides.
	UpdateStatusIf(ctx context.Context, o *order.Order, expected order.Status) (bool, error)
}
