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
	"github.com/localmart/order/internal/service/models/delivery"
)

// AssignmentDal represents delivery assignment data access layer model.
type AssignmentDal struct {
	Id              int64     `db:"id"`
	OrderId         int64     `db:"order_id"`
	PickupLatitude  *float64  `db:"pickup_latitude"`
	PickupLongitude *float64  `db:"pickup_longitude"`
	DropLatitude    *float64  `db:"drop_latitude"`
	DropLongitude   *float64  `db:"drop_longitude"`
	AgentId         *int64    `db:"agent_id"`
	Status          string    `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// ToModel converts AssignmentDal to service layer Assignment model.
func (a *AssignmentDal) ToModel() (*delivery.Assignment, error) {
	status, err := delivery.ParseStatus(a.Status)
	if err != nil {
		return nil, err
	}

	return &delivery.Assignment{
		ID:              a.Id,
		OrderID:         a.OrderId,
		PickupLatitude:  a.PickupLatitude,
		PickupLongitude: a.PickupLongitude,
		DropLatitude:    a.DropLatitude,
		DropLongitude:   a.DropLongitude,
		AgentID:         a.AgentId,
		Status:          status,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}, nil
}

var assignmentColumns = []string{
	"id",
	"order_id",
	"pickup_latitude",
	"pickup_longitude",
	"drop_latitude",
	"drop_longitude",
	"agent_id",
	"status",
	"created_at",
	"updated_at",
}

// PostgresDeliveryRepository represents a Postgres delivery assignment
// repository.
type PostgresDeliveryRepository struct {
	conn postgres.Querier
	sb   sq.StatementBuilderType
}

// NewPostgresDeliveryRepository creates a new Postgres delivery repository.
func NewPostgresDeliveryRepository(conn postgres.Querier) *PostgresDeliveryRepository {
	return &PostgresDeliveryRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresDeliveryRepository) scanAssignment(row pgx.Row) (*delivery.Assignment, error) {
	var dal AssignmentDal
	err := row.Scan(
		&dal.Id,
		&dal.OrderId,
		&dal.PickupLatitude,
		&dal.PickupLongitude,
		&dal.DropLatitude,
		&dal.DropLongitude,
		&dal.AgentId,
		&dal.Status,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return dal.ToModel()
}

// Insert creates the assignment for an order if none exists yet. The unique
// index on order_id plus ON CONFLICT DO NOTHING makes creation idempotent;
// on conflict the existing row is returned.
func (r *PostgresDeliveryRepository) Insert(
	ctx context.Context,
	a delivery.Assignment,
) (*delivery.Assignment, error) {
	query, args, err := r.sb.
		Insert("delivery_assignments").
		Columns(
			"order_id",
			"pickup_latitude",
			"pickup_longitude",
			"drop_latitude",
			"drop_longitude",
			"agent_id",
			"status",
			"created_at",
			"updated_at",
		).
		Values(
			a.OrderID,
			a.PickupLatitude,
			a.PickupLongitude,
			a.DropLatitude,
			a.DropLongitude,
			a.AgentID,
			a.Status.String(),
			a.CreatedAt,
			a.UpdatedAt,
		).
		Suffix("ON CONFLICT (order_id) DO NOTHING RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	inserted, err := r.scanAssignment(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost to an earlier creation for the same order.
			return r.GetByOrderID(ctx, a.OrderID)
		}

		return nil, fmt.Errorf("failed to insert delivery assignment: %w", err)
	}

	return inserted, nil
}

// GetByOrderID retrieves the assignment for an order.
func (r *PostgresDeliveryRepository) GetByOrderID(
	ctx context.Context,
	orderID int64,
) (*delivery.Assignment, error) {
	query, args, err := r.sb.
		Select(assignmentColumns...).
		From("delivery_assignments").
		Where(sq.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	result, err := r.scanAssignment(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, delivery.ErrAssignmentNotFound
		}

		return nil, fmt.Errorf("failed to get assignment for order %d: %w", orderID, err)
	}

	return result, nil
}

// Assign sets the agent on a still-unassigned assignment.
func (r *PostgresDeliveryRepository) Assign(
	ctx context.Context,
	assignmentID, agentID int64,
) (bool, error) {
	query, args, err := r.sb.
		Update("delivery_assignments").
		Set("agent_id", agentID).
		Set("status", delivery.StatusAssigned.String()).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": assignmentID}).
		Where(sq.Eq{"status": delivery.StatusUnassigned.String()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to assign agent to assignment %d: %w", assignmentID, err)
	}

	return tag.RowsAffected() > 0, nil
}

func columnList() string {
	return strings.Join(assignmentColumns, ", ")
}
