package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/localmart/order/internal/dal/postgres"
	"github.com/localmart/order/internal/service/models/currency"
	"github.com/localmart/order/internal/service/models/order"
	"github.com/localmart/order/internal/service/models/orderitem"
)

// OrderDal represents order data access layer model.
type OrderDal struct {
	Id                 int64     `db:"id"`
	CustomerId         int64     `db:"customer_id"`
	ShopId             int64     `db:"shop_id"`
	Status             string    `db:"status"`
	SubtotalCents      int64     `db:"subtotal_cents"`
	DeliveryFeeCents   int64     `db:"delivery_fee_cents"`
	TotalCents         int64     `db:"total_cents"`
	Currency           string    `db:"currency"`
	DeliveryAddress    string    `db:"delivery_address"`
	DeliveryPhone      string    `db:"delivery_phone"`
	Notes              string    `db:"notes"`
	PaymentMethod      string    `db:"payment_method"`
	RejectionReason    string    `db:"rejection_reason"`
	CancellationReason string    `db:"cancellation_reason"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// ToModel converts OrderDal to service layer Order model.
func (o *OrderDal) ToModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(o.Currency)
	if err != nil {
		return nil, err
	}
	status, err := order.ParseStatus(o.Status)
	if err != nil {
		return nil, err
	}

	return &order.Order{
		ID:                 o.Id,
		CustomerID:         o.CustomerId,
		ShopID:             o.ShopId,
		Status:             status,
		SubtotalCents:      o.SubtotalCents,
		DeliveryFeeCents:   o.DeliveryFeeCents,
		TotalCents:         o.TotalCents,
		Currency:           cur,
		DeliveryAddress:    o.DeliveryAddress,
		DeliveryPhone:      o.DeliveryPhone,
		Notes:              o.Notes,
		PaymentMethod:      o.PaymentMethod,
		RejectionReason:    o.RejectionReason,
		CancellationReason: o.CancellationReason,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		OrderItems:         []orderitem.OrderItem{}, // populated separately
	}, nil
}

var orderColumns = []string{
	"id",
	"customer_id",
	"shop_id",
	"status",
	"subtotal_cents",
	"delivery_fee_cents",
	"total_cents",
	"currency",
	"delivery_address",
	"delivery_phone",
	"notes",
	"payment_method",
	"rejection_reason",
	"cancellation_reason",
	"created_at",
	"updated_at",
}

// PostgresOrderRepository represents a Postgres order repository.
type PostgresOrderRepository struct {
	conn postgres.Querier
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn postgres.Querier) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresOrderRepository) scanOrder(row pgx.Row) (*order.Order, error) {
	var dal OrderDal
	err := row.Scan(
		&dal.Id,
		&dal.CustomerId,
		&dal.ShopId,
		&dal.Status,
		&dal.SubtotalCents,
		&dal.DeliveryFeeCents,
		&dal.TotalCents,
		&dal.Currency,
		&dal.DeliveryAddress,
		&dal.DeliveryPhone,
		&dal.Notes,
		&dal.PaymentMethod,
		&dal.RejectionReason,
		&dal.CancellationReason,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return dal.ToModel()
}

// Insert inserts an order and returns it with the generated id.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (*order.Order, error) {
	query, args, err := r.sb.
		Insert("orders").
		Columns(orderColumns[1:]...).
		Values(
			o.CustomerID,
			o.ShopID,
			o.Status.String(),
			o.SubtotalCents,
			o.DeliveryFeeCents,
			o.TotalCents,
			o.Currency.String(),
			o.DeliveryAddress,
			o.DeliveryPhone,
			o.Notes,
			o.PaymentMethod,
			o.RejectionReason,
			o.CancellationReason,
			o.CreatedAt,
			o.UpdatedAt,
		).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	inserted, err := r.scanOrder(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	return inserted, nil
}

// GetByID retrieves a single order without its items.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	query, args, err := r.sb.
		Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	result, err := r.scanOrder(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}

		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}

	return result, nil
}

// GetByIDForUpdate retrieves an order holding its row lock until the
// surrounding transaction commits or rolls back.
func (r *PostgresOrderRepository) GetByIDForUpdate(
	ctx context.Context,
	id int64,
) (*order.Order, error) {
	query, args, err := r.sb.
		Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	result, err := r.scanOrder(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}

		return nil, fmt.Errorf("failed to lock order %d: %w", id, err)
	}

	return result, nil
}

// Query retrieves orders based on filter criteria.
func (r *PostgresOrderRepository) Query(
	ctx context.Context,
	filter *order.QueryOrdersModel,
) ([]order.Order, error) {
	query := r.sb.
		Select(orderColumns...).
		From("orders").
		OrderBy("created_at DESC")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}
	if len(filter.CustomerIds) > 0 {
		query = query.Where(sq.Eq{"customer_id": filter.CustomerIds})
	}
	if len(filter.ShopIds) > 0 {
		query = query.Where(sq.Eq{"shop_id": filter.ShopIds})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = s.String()
		}
		query = query.Where(sq.Eq{"status": statuses})
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		model, err := r.scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// UpdateStatusIf writes the order's mutable fields conditioned on the row
// still holding the expected status. This conditional write is what
// serializes concurrent mutations of the same order.
func (r *PostgresOrderRepository) UpdateStatusIf(
	ctx context.Context,
	o *order.Order,
	expected order.Status,
) (bool, error) {
	query, args, err := r.sb.
		Update("orders").
		Set("status", o.Status.String()).
		Set("subtotal_cents", o.SubtotalCents).
		Set("total_cents", o.TotalCents).
		Set("payment_method", o.PaymentMethod).
		Set("rejection_reason", o.RejectionReason).
		Set("cancellation_reason", o.CancellationReason).
		Set("updated_at", o.UpdatedAt).
		Where(sq.Eq{"id": o.ID}).
		Where(sq.Eq{"status": expected.String()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update order %d status: %w", o.ID, err)
	}

	return tag.RowsAffected() > 0, nil
}

func columnList() string {
	return strings.Join(orderColumns, ", ")
}
