package stocksvc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/localmart/order/internal/dal/interfaces/iproductrepo"
	"github.com/localmart/order/internal/service/models/orderitem"
	"github.com/localmart/order/internal/service/models/product"
)

// StockService is the inventory ledger. It owns every mutation of
// available_quantity and is the only place in the application where two
// independent requests can race destructively, so consumption goes through
// a compare-and-swap with a single bounded retry.
type StockService struct {
	productRepo iproductrepo.IProductRepository
}

// option is a function that configures the StockService.
type option func(*StockService)

// MustNewStockService creates a new StockService.
func MustNewStockService(opts ...option) *StockService {
	s := &StockService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.productRepo == nil {
		panic("stocksvc: product repository is required")
	}

	return s
}

// WithProductRepository sets the product repository for the StockService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithProductRepository(repo iproductrepo.IProductRepository) option {
	return func(s *StockService) {
		s.productRepo = repo
	}
}

// ValidateAvailability checks every requested line against current stock and
// returns the full shortfall list, so the customer sees one consolidated
// error instead of fixing quantities one product at a time.
func (s *StockService) ValidateAvailability(
	ctx context.Context,
	items []orderitem.OrderItem,
) ([]product.Shortfall, error) {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products for availability check: %w", err)
	}

	byID := make(map[int64]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var shortfalls []product.Shortfall
	for _, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, product.ErrProductNotFound
		}
		if p.AvailableQuantity < item.Quantity {
			shortfalls = append(shortfalls, product.Shortfall{
				ProductID: p.ID,
				Title:     p.Title,
				Requested: item.Quantity,
				Available: p.AvailableQuantity,
			})
		}
	}

	return shortfalls, nil
}

// consumeAttempts bounds the read-compute-write cycle: the initial attempt
// plus exactly one retry after a lost race. Losing twice surfaces
// ErrConcurrentModification instead of spinning on a hot product.
const consumeAttempts = 2

// Consume decrements a product's available quantity via optimistic
// concurrency control: read the observed quantity, write the decremented
// value conditioned on the row still holding the observed one.
func (s *StockService) Consume(ctx context.Context, productID int64, quantity int) error {
	for attempt := 0; attempt < consumeAttempts; attempt++ {
		p, err := s.productRepo.GetByID(ctx, productID)
		if err != nil {
			return fmt.Errorf("failed to read product %d: %w", productID, err)
		}

		observed := p.AvailableQuantity
		if observed < quantity {
			return product.NewInsufficientStockError(product.Shortfall{
				ProductID: p.ID,
				Title:     p.Title,
				Requested: quantity,
				Available: observed,
			})
		}

		swapped, err := s.productRepo.UpdateQuantityCAS(ctx, productID, observed, observed-quantity)
		if err != nil {
			return fmt.Errorf("failed to write product %d quantity: %w", productID, err)
		}
		if swapped {
			return nil
		}

		slog.Warn("Stock consume lost a race, retrying once",
			"product_id", productID,
			"observed", observed,
			"attempt", attempt+1,
		)
	}

	return product.ErrConcurrentModification
}

// Release adds consumed quantity back, the inverse of Consume. Used to undo
// partial consumption when a multi-item payment fails midway, and available
// to any future post-payment cancellation flow.
func (s *StockService) Release(ctx context.Context, productID int64, quantity int) error {
	if err := s.productRepo.AddQuantity(ctx, productID, quantity); err != nil {
		return fmt.Errorf("failed to release %d units of product %d: %w", quantity, productID, err)
	}

	return nil
}
