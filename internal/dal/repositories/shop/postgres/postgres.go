package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/localmart/order/internal/dal/postgres"
	"github.com/localmart/order/internal/service/models/shop"
)

// ShopDal represents shop data access layer model.
type ShopDal struct {
	Id               int64     `db:"id"`
	OwnerUserId      int64     `db:"owner_user_id"`
	Name             string    `db:"name"`
	Address          string    `db:"address"`
	DeliveryFeeCents int64     `db:"delivery_fee_cents"`
	Latitude         *float64  `db:"latitude"`
	Longitude        *float64  `db:"longitude"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// ToModel converts ShopDal to service layer Shop model.
func (s *ShopDal) ToModel() *shop.Shop {
	return &shop.Shop{
		ID:               s.Id,
		OwnerUserID:      s.OwnerUserId,
		Name:             s.Name,
		Address:          s.Address,
		DeliveryFeeCents: s.DeliveryFeeCents,
		Latitude:         s.Latitude,
		Longitude:        s.Longitude,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// PostgresShopRepository represents a Postgres shop repository.
type PostgresShopRepository struct {
	conn postgres.Querier
	sb   sq.StatementBuilderType
}

// NewPostgresShopRepository creates a new Postgres shop repository.
func NewPostgresShopRepository(conn postgres.Querier) *PostgresShopRepository {
	return &PostgresShopRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// GetByID retrieves a single shop.
func (r *PostgresShopRepository) GetByID(ctx context.Context, id int64) (*shop.Shop, error) {
	query, args, err := r.sb.
		Select(
			"id",
			"owner_user_id",
			"name",
			"address",
			"delivery_fee_cents",
			"latitude",
			"longitude",
			"created_at",
			"updated_at",
		).
		From("shops").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var dal ShopDal
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&dal.Id,
		&dal.OwnerUserId,
		&dal.Name,
		&dal.Address,
		&dal.DeliveryFeeCents,
		&dal.Latitude,
		&dal.Longitude,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shop.ErrShopNotFound
		}

		return nil, fmt.Errorf("failed to get shop %d: %w", id, err)
	}

	return dal.ToModel(), nil
}

// UpdateCoordinates caches a geocoding result on the shop row.
func (r *PostgresShopRepository) UpdateCoordinates(ctx context.Context, id int64, lat, lon float64) error {
	query, args, err := r.sb.
		Update("shops").
		Set("latitude", lat).
		Set("longitude", lon).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update shop %d coordinates: %w", id, err)
	}

	return nil
}
