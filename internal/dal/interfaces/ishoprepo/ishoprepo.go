package ishoprepo

import (
	"context"

	"github.com/localmart/order/internal/service/models/shop"
)

// IShopRepository is an interface for shop postgres repository.
type IShopRepository interface {
	GetByID(ctx context.Context, id int64) (*shop.Shop, error)

	// UpdateCoordinates caches a geocoding result on the shop row.
	UpdateCoordinates(ctx context.Context, id int64, lat, lon float64) error
}
