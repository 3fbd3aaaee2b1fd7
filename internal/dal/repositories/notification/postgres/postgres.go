package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/localmart/order/internal/dal/postgres"
	"github.com/localmart/order/internal/service/models/notification"
)

// NotificationDal represents notification data access layer model.
type NotificationDal struct {
	Id        int64     `db:"id"`
	UserId    int64     `db:"user_id"`
	OrderId   int64     `db:"order_id"`
	Type      string    `db:"type"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

// ToModel converts NotificationDal to service layer Notification model.
func (n *NotificationDal) ToModel() *notification.Notification {
	return &notification.Notification{
		ID:        n.Id,
		UserID:    n.UserId,
		OrderID:   n.OrderId,
		Type:      notification.Type(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// PostgresNotificationRepository represents a Postgres notification
// repository.
type PostgresNotificationRepository struct {
	conn postgres.Querier
	sb   sq.StatementBuilderType
}

// NewPostgresNotificationRepository creates a new Postgres notification
// repository.
func NewPostgresNotificationRepository(conn postgres.Querier) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert adds a notification.
func (r *PostgresNotificationRepository) Insert(ctx context.Context, n notification.Notification) error {
	query, args, err := r.sb.
		Insert("notifications").
		Columns("user_id", "order_id", "type", "title", "message", "is_read", "created_at").
		Values(n.UserID, n.OrderID, string(n.Type), n.Title, n.Message, n.IsRead, n.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}

// QueryByUser retrieves a user's notifications, newest first.
func (r *PostgresNotificationRepository) QueryByUser(
	ctx context.Context,
	userID int64,
	limit, offset int,
) ([]notification.Notification, error) {
	query := r.sb.
		Select("id", "user_id", "order_id", "type", "title", "message", "is_read", "created_at").
		From("notifications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	if offset > 0 {
		query = query.Offset(uint64(offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var result []notification.Notification
	for rows.Next() {
		var dal NotificationDal
		err := rows.Scan(
			&dal.Id,
			&dal.UserId,
			&dal.OrderId,
			&dal.Type,
			&dal.Title,
			&dal.Message,
			&dal.IsRead,
			&dal.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		result = append(result, *dal.ToModel())
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
