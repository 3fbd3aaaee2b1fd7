package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/localmart/order/internal/dal/postgres"
	"github.com/localmart/order/internal/service/models/currency"
	"github.com/localmart/order/internal/service/models/product"
)

// ProductDal represents product data access layer model.
type ProductDal struct {
	Id                int64     `db:"id"`
	ShopId            int64     `db:"shop_id"`
	Title             string    `db:"title"`
	PriceCents        int64     `db:"price_cents"`
	PriceCurrency     string    `db:"price_currency"`
	AvailableQuantity int       `db:"available_quantity"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// ToModel converts ProductDal to service layer Product model.
func (p *ProductDal) ToModel() (*product.Product, error) {
	cur, err := currency.ParseCurrency(p.PriceCurrency)
	if err != nil {
		return nil, err
	}

	return &product.Product{
		ID:                p.Id,
		ShopID:            p.ShopId,
		Title:             p.Title,
		PriceCents:        p.PriceCents,
		PriceCurrency:     cur,
		AvailableQuantity: p.AvailableQuantity,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}, nil
}

var productColumns = []string{
	"id",
	"shop_id",
	"title",
	"price_cents",
	"price_currency",
	"available_quantity",
	"created_at",
	"updated_at",
}

// PostgresProductRepository represents a Postgres product repository.
type PostgresProductRepository struct {
	conn postgres.Querier
	sb   sq.StatementBuilderType
}

// NewPostgresProductRepository creates a new Postgres product repository.
func NewPostgresProductRepository(conn postgres.Querier) *PostgresProductRepository {
	return &PostgresProductRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresProductRepository) scanProduct(row pgx.Row) (*product.Product, error) {
	var dal ProductDal
	err := row.Scan(
		&dal.Id,
		&dal.ShopId,
		&dal.Title,
		&dal.PriceCents,
		&dal.PriceCurrency,
		&dal.AvailableQuantity,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return dal.ToModel()
}

// GetByID retrieves a single product.
func (r *PostgresProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	query, args, err := r.sb.
		Select(productColumns...).
		From("products").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	result, err := r.scanProduct(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrProductNotFound
		}

		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}

	return result, nil
}

// GetByIDs retrieves multiple products.
func (r *PostgresProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	if len(ids) == 0 {
		return []product.Product{}, nil
	}

	query, args, err := r.sb.
		Select(productColumns...).
		From("products").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var result []product.Product
	for rows.Next() {
		model, err := r.scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// UpdateQuantityCAS writes newQuantity conditioned on available_quantity
// still equaling the observed value. A false return means another consumer
// updated the row between our read and this write.
func (r *PostgresProductRepository) UpdateQuantityCAS(
	ctx context.Context,
	id int64,
	observed, newQuantity int,
) (bool, error) {
	query, args, err := r.sb.
		Update("products").
		Set("available_quantity", newQuantity).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"available_quantity": observed}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update product %d quantity: %w", id, err)
	}

	return tag.RowsAffected() > 0, nil
}

// AddQuantity atomically adds quantity back to available stock.
func (r *PostgresProductRepository) AddQuantity(ctx context.Context, id int64, quantity int) error {
	query, args, err := r.sb.
		Update("products").
		Set("available_quantity", sq.Expr("available_quantity + ?", quantity)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to add quantity to product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrProductNotFound
	}

	return nil
}
