package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/localmart/order/internal/dal/postgres"
	"github.com/localmart/order/internal/service/models/currency"
	"github.com/localmart/order/internal/service/models/orderitem"
)

// OrderItemDal represents order item data access layer model.
type OrderItemDal struct {
	Id                int64     `db:"id"`
	OrderId           int64     `db:"order_id"`
	ProductId         int64     `db:"product_id"`
	ProductTitle      string    `db:"product_title"`
	Quantity          int       `db:"quantity"`
	UnitPriceCents    int64     `db:"unit_price_cents"`
	UnitPriceCurrency string    `db:"unit_price_currency"`
	ApprovalStatus    string    `db:"approval_status"`
	RejectionReason   string    `db:"rejection_reason"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// ToModel converts OrderItemDal to service layer OrderItem model.
func (oi *OrderItemDal) ToModel() (*orderitem.OrderItem, error) {
	cur, err := currency.ParseCurrency(oi.UnitPriceCurrency)
	if err != nil {
		return nil, err
	}
	approval, err := orderitem.ParseApprovalStatus(oi.ApprovalStatus)
	if err != nil {
		return nil, err
	}

	return &orderitem.OrderItem{
		ID:                oi.Id,
		OrderID:           oi.OrderId,
		ProductID:         oi.ProductId,
		ProductTitle:      oi.ProductTitle,
		Quantity:          oi.Quantity,
		UnitPriceCents:    oi.UnitPriceCents,
		UnitPriceCurrency: cur,
		ApprovalStatus:    approval,
		RejectionReason:   oi.RejectionReason,
		CreatedAt:         oi.CreatedAt,
		UpdatedAt:         oi.UpdatedAt,
	}, nil
}

var orderItemColumns = []string{
	"id",
	"order_id",
	"product_id",
	"product_title",
	"quantity",
	"unit_price_cents",
	"unit_price_currency",
	"approval_status",
	"rejection_reason",
	"created_at",
	"updated_at",
}

// PostgresOrderItemRepository represents a Postgres order item repository.
type PostgresOrderItemRepository struct {
	conn postgres.Querier
	sb   sq.StatementBuilderType
}

// NewPostgresOrderItemRepository creates a new Postgres order item repository.
func NewPostgresOrderItemRepository(conn postgres.Querier) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// BulkInsert inserts multiple order items and returns them with generated IDs.
func (r *PostgresOrderItemRepository) BulkInsert(
	ctx context.Context,
	orderItems []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	if len(orderItems) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	query := r.sb.
		Insert("order_items").
		Columns(orderItemColumns[1:]...)

	for _, oi := range orderItems {
		query = query.Values(
			oi.OrderID,
			oi.ProductID,
			oi.ProductTitle,
			oi.Quantity,
			oi.UnitPriceCents,
			oi.UnitPriceCurrency.String(),
			oi.ApprovalStatus.String(),
			oi.RejectionReason,
			oi.CreatedAt,
			oi.UpdatedAt,
		)
	}

	sql, args, err := query.
		Suffix("RETURNING id, order_id, product_id, product_title, quantity, unit_price_cents, unit_price_currency, approval_status, rejection_reason, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert order items: %w", err)
	}
	defer rows.Close()

	var result []orderitem.OrderItem
	for rows.Next() {
		var dal OrderItemDal
		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.ProductId,
			&dal.ProductTitle,
			&dal.Quantity,
			&dal.UnitPriceCents,
			&dal.UnitPriceCurrency,
			&dal.ApprovalStatus,
			&dal.RejectionReason,
			&dal.CreatedAt,
			&dal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order item dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// Query retrieves order items based on filter criteria.
func (r *PostgresOrderItemRepository) Query(
	ctx context.Context,
	filter *orderitem.QueryOrderItemsModel,
) ([]orderitem.OrderItem, error) {
	query := r.sb.
		Select(orderItemColumns...).
		From("order_items").
		OrderBy("id ASC")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}
	if len(filter.OrderIds) > 0 {
		query = query.Where(sq.Eq{"order_id": filter.OrderIds})
	}
	if len(filter.ProductIds) > 0 {
		query = query.Where(sq.Eq{"product_id": filter.ProductIds})
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
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var result []orderitem.OrderItem
	for rows.Next() {
		var dal OrderItemDal
		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.ProductId,
			&dal.ProductTitle,
			&dal.Quantity,
			&dal.UnitPriceCents,
			&dal.UnitPriceCurrency,
			&dal.ApprovalStatus,
			&dal.RejectionReason,
			&dal.CreatedAt,
			&dal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order item dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// UpdateDecision persists an item's approval fields. The write is conditioned
// on the row still being PENDING so a second decision for the same item
// cannot overwrite the first.
func (r *PostgresOrderItemRepository) UpdateDecision(
	ctx context.Context,
	item *orderitem.OrderItem,
) (bool, error) {
	query, args, err := r.sb.
		Update("order_items").
		Set("approval_status", item.ApprovalStatus.String()).
		Set("rejection_reason", item.RejectionReason).
		Set("updated_at", item.UpdatedAt).
		Where(sq.Eq{"id": item.ID}).
		Where(sq.Eq{"approval_status": orderitem.ApprovalPending.String()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update order item %d decision: %w", item.ID, err)
	}

	return tag.RowsAffected() > 0, nil
}
