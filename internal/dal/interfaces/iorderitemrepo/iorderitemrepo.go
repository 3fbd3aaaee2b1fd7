package iorderitemrepo

import (
	"context"

	"github.com/localmart/order/internal/service/models/orderitem"
)

// IOrderItemRepository is an interface for order item postgres repository.
type IOrderItemRepository interface {
	BulkInsert(ctx context.Context, orderItems []orderitem.OrderItem) ([]orderitem.OrderItem, error)
	Query(
		ctx context.Context,
		filter *orderitem.QueryOrderItemsModel,
	) ([]orderitem.OrderItem, error)

	// UpdateDecision persists an item's approval fields conditioned on the
	// row still being undecided. False means the item was already decided.
	UpdateDecision(ctx context.Context, item *orderitem.OrderItem) (bool, error)
}
