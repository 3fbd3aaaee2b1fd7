package product

import (
	"errors"
	"fmt"
	"time"

	"github.com/localmart/order/internal/service/models/currency"
)

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrConcurrentModification is returned when the bounded retry of a
	// conditional stock write loses the race twice in a row. Safe to retry
	// from the caller.
	ErrConcurrentModification = errors.New("stock was modified concurrently, please retry")
)

// Product is the ledger's view of a product: the quantity it owns, plus the
// descriptive fields the coordinator snapshots at submission time.
type Product struct {
	ID                int64             `json:"id"`
	ShopID            int64             `json:"shopId"`
	Title             string            `json:"title"`
	PriceCents        int64             `json:"priceCents"`
	PriceCurrency     currency.Currency `json:"priceCurrency"`
	AvailableQuantity int               `json:"availableQuantity"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Shortfall describes one product that cannot cover a requested quantity.
type Shortfall struct {
	ProductID int64  `json:"productId"`
	Title     string `json:"title"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// ErrInsufficientStock matches any InsufficientStockError via errors.Is.
var ErrInsufficientStock = errors.New("insufficient stock")

// InsufficientStockError carries the full shortfall list so the customer can
// adjust quantities in one pass instead of discovering them one at a time.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	if len(e.Shortfalls) == 1 {
		s := e.Shortfalls[0]
		return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
			s.ProductID, s.Requested, s.Available)
	}

	return fmt.Sprintf("insufficient stock for %d products", len(e.Shortfalls))
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

func NewInsufficientStockError(shortfalls ...Shortfall) error {
	return &InsufficientStockError{Shortfalls: shortfalls}
}
