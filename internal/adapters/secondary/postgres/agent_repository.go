package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/agent-activity-backend/internal/core/domain"
	apperrors "github.com/lorrc/agent-activity-backend/internal/core/errors"
	"github.com/lorrc/agent-activity-backend/internal/core/ports"
)

const uniqueViolationCode = "23505"

const agentColumns = `id, external_user_id, full_name, email, is_active, created_at, updated_at`

type AgentRepository struct {
	pool *pgxpool.Pool
}

var _ ports.AgentRepository = (*AgentRepository)(nil)

func NewAgentRepository(pool *pgxpool.Pool) ports.AgentRepository {
	return &AgentRepository{pool: pool}
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var (
		agent      domain.Agent
		externalID pgtype.Text
		updatedAt  pgtype.Timestamptz
	)
	err := row.Scan(&agent.ID, &externalID, &agent.FullName, &agent.Email, &agent.IsActive, &agent.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if externalID.Valid {
		agent.ExternalUserID = &externalID.String
	}
	if updatedAt.Valid {
		agent.UpdatedAt = &updatedAt.Time
	}
	return &agent, nil
}

func (r *AgentRepository) Create(ctx context.Context, agent *domain.Agent) (*domain.Agent, error) {
	const query = `
INSERT INTO agents (full_name, email)
VALUES ($1, $2)
RETURNING ` + agentColumns

	created, err := scanAgent(r.pool.QueryRow(ctx, query, agent.FullName, agent.Email))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, apperrors.ErrAgentExists
		}
		return nil, err
	}
	return created, nil
}

func (r *AgentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	const query = `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`

	agent, err := scanAgent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAgentNotFound
		}
		return nil, err
	}
	return agent, nil
}

func (r *AgentRepository) GetByExternalID(ctx context.Context, externalUserID string) (*domain.Agent, error) {
	const query = `SELECT ` + agentColumns + ` FROM agents WHERE external_user_id = $1 AND is_active`

	agent, err := scanAgent(r.pool.QueryRow(ctx, query, externalUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAgentNotFound
		}
		return nil, err
	}
	return agent, nil
}

func (r *AgentRepository) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	const query = `SELECT ` + agentColumns + ` FROM agents WHERE email = $1 AND is_active`

	agent, err := scanAgent(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAgentNotFound
		}
		return nil, err
	}
	return agent, nil
}

// BindExternalID binds a Slack user id to an agent. The WHERE clause makes
// the write idempotent: a same-id rebind matches and is a no-op, while a
// different-id rebind matches no row. A unique violation means the id is
// already bound to another agent.
func (r *AgentRepository) BindExternalID(ctx context.Context, agentID uuid.UUID, externalUserID string) (*domain.Agent, error) {
	const query = `
UPDATE agents
SET external_user_id = $2, updated_at = now()
WHERE id = $1
  AND is_active
  AND (external_user_id IS NULL OR external_user_id = $2)
RETURNING ` + agentColumns

	agent, err := scanAgent(r.pool.QueryRow(ctx, query, agentID, externalUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrExternalIDConflict
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, apperrors.ErrExternalIDConflict
		}
		return nil, err
	}
	return agent, nil
}

func (r *AgentRepository) List(ctx context.Context) ([]*domain.Agent, error) {
	const query = `SELECT ` + agentColumns + ` FROM agents ORDER BY full_name, email`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]*domain.Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *AgentRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Agent, error) {
	const query = `
UPDATE agents
SET is_active = $2, updated_at = now()
WHERE id = $1
RETURNING ` + agentColumns

	agent, err := scanAgent(r.pool.QueryRow(ctx, query, id, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAgentNotFound
		}
		return nil, err
	}
	return agent, nil
}
