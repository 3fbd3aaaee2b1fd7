package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/localmart/order/internal/dal/postgres"
	"github.com/localmart/order/internal/service/models/agent"
)

// AgentDal represents delivery agent data access layer model.
type AgentDal struct {
	Id             int64      `db:"id"`
	UserId         int64      `db:"user_id"`
	Available      bool       `db:"available"`
	LastAssignedAt *time.Time `db:"last_assigned_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// ToModel converts AgentDal to service layer Agent model.
func (a *AgentDal) ToModel() *agent.Agent {
	return &agent.Agent{
		ID:             a.Id,
		UserID:         a.UserId,
		Available:      a.Available,
		LastAssignedAt: a.LastAssignedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// PostgresAgentRepository represents a Postgres delivery agent repository.
type PostgresAgentRepository struct {
	conn postgres.Querier
	sb   sq.StatementBuilderType
}

// NewPostgresAgentRepository creates a new Postgres agent repository.
func NewPostgresAgentRepository(conn postgres.Querier) *PostgresAgentRepository {
	return &PostgresAgentRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SelectAvailable picks the least recently assigned available agent so work
// spreads across the pool.
func (r *PostgresAgentRepository) SelectAvailable(ctx context.Context) (*agent.Agent, error) {
	query, args, err := r.sb.
		Select(
			"id",
			"user_id",
			"available",
			"last_assigned_at",
			"created_at",
			"updated_at",
		).
		From("delivery_agents").
		Where(sq.Eq{"available": true}).
		OrderBy("last_assigned_at ASC NULLS FIRST").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var dal AgentDal
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&dal.Id,
		&dal.UserId,
		&dal.Available,
		&dal.LastAssignedAt,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, agent.ErrNoAgentAvailable
		}

		return nil, fmt.Errorf("failed to select available agent: %w", err)
	}

	return dal.ToModel(), nil
}

// MarkAssigned records that the agent just received an assignment.
func (r *PostgresAgentRepository) MarkAssigned(ctx context.Context, id int64) error {
	now := time.Now()

	query, args, err := r.sb.
		Update("delivery_agents").
		Set("last_assigned_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark agent %d assigned: %w", id, err)
	}

	return nil
}
