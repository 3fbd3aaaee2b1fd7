package shop

import (
	"errors"
	"time"
)

var ErrShopNotFound = errors.New("shop not found")

// Shop is the coordinator's view of a shop: enough to price delivery and to
// geocode the pickup point. Coordinates are cached here after the first
// successful geocoding so repeat orders skip the external call.
type Shop struct {
	ID               int64     `json:"id"`
	OwnerUserID      int64     `json:"ownerUserId"`
	Name             string    `json:"name"`
	Address          string    `json:"address"`
	DeliveryFeeCents int64     `json:"deliveryFeeCents"`
	Latitude         *float64  `json:"latitude,omitempty"`
	Longitude        *float64  `json:"longitude,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
