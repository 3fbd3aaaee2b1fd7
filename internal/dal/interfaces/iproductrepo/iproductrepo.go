package iproductrepo

import (
	"context"

	"github.com/localmart/order/internal/service/models/product"
)

// IProductRepository is an interface for product postgres repository. The
// ledger only mediates available_quantity; descriptive fields are read-only
// snapshots for the coordinator.
type IProductRepository interface {
	GetByID(ctx context.Context, id int64) (*product.Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error)

	// UpdateQuantityCAS writes newQuantity conditioned on available_quantity
	// still equaling observed. False means the conditional write lost a race.
	UpdateQuantityCAS(ctx context.Context, id int64, observed, newQuantity int) (bool, error)

	// AddQuantity atomically adds quantity back to available stock.
	AddQuantity(ctx context.Context, id int64, quantity int) error
}
