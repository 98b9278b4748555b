package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/agent-activity-backend/internal/core/domain"
	apperrors "github.com/lorrc/agent-activity-backend/internal/core/errors"
	"github.com/lorrc/agent-activity-backend/internal/core/ports"
)

const activityColumns = `id, agent_id, agent_external_id, kind, channel_id, thread_key, message_key,
       occurred_at, matched_reply_at, response_time_seconds, shift, activity_date, created_at`

type ActivityRepository struct {
	pool *pgxpool.Pool
}

var _ ports.ActivityRepository = (*ActivityRepository)(nil)

func NewActivityRepository(pool *pgxpool.Pool) ports.ActivityRepository {
	return &ActivityRepository{pool: pool}
}

func scanActivityEvent(row pgx.Row) (*domain.ActivityEvent, error) {
	var (
		event          domain.ActivityEvent
		matchedReplyAt pgtype.Timestamptz
		responseTime   pgtype.Int8
		activityDate   time.Time
	)
	err := row.Scan(
		&event.ID,
		&event.AgentID,
		&event.AgentExternalID,
		&event.Kind,
		&event.ChannelID,
		&event.ThreadKey,
		&event.MessageKey,
		&event.OccurredAt,
		&matchedReplyAt,
		&responseTime,
		&event.Shift,
		&activityDate,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if matchedReplyAt.Valid {
		event.MatchedReplyAt = &matchedReplyAt.Time
	}
	if responseTime.Valid {
		event.ResponseTimeSeconds = &responseTime.Int64
	}
	event.ActivityDate = activityDate.Format("2006-01-02")
	return &event, nil
}

// InsertTicketTaken inserts a ticket-taken row. The partial unique index on
// (agent_external_id, message_key) absorbs duplicate deliveries: when the
// insert conflicts, the existing row is fetched and returned instead.
func (r *ActivityRepository) InsertTicketTaken(ctx context.Context, event *domain.ActivityEvent) (*domain.ActivityEvent, bool, error) {
	const insertQuery = `
INSERT INTO activity_events
  (agent_id, agent_external_id, kind, channel_id, thread_key, message_key, occurred_at, shift, activity_date)
VALUES ($1, $2, 'TICKET_TAKEN', $3, $4, $5, $6, $7, $8)
ON CONFLICT (agent_external_id, message_key) WHERE kind = 'TICKET_TAKEN' DO NOTHING
RETURNING ` + activityColumns

	stored, err := scanActivityEvent(r.pool.QueryRow(ctx, insertQuery,
		event.AgentID,
		event.AgentExternalID,
		event.ChannelID,
		event.ThreadKey,
		event.MessageKey,
		event.OccurredAt,
		event.Shift,
		event.ActivityDate,
	))
	if err == nil {
		return stored, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	// Conflict: another delivery won the insert. Return its row.
	const selectQuery = `
SELECT ` + activityColumns + `
FROM activity_events
WHERE agent_external_id = $1 AND message_key = $2 AND kind = 'TICKET_TAKEN'`

	existing, err := scanActivityEvent(r.pool.QueryRow(ctx, selectQuery, event.AgentExternalID, event.MessageKey))
	if err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

func (r *ActivityRepository) InsertMessage(ctx context.Context, event *domain.ActivityEvent) (*domain.ActivityEvent, error) {
	const query = `
INSERT INTO activity_events
  (agent_id, agent_external_id, kind, channel_id, thread_key, message_key, occurred_at, shift, activity_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + activityColumns

	return scanActivityEvent(r.pool.QueryRow(ctx, query,
		event.AgentID,
		event.AgentExternalID,
		event.Kind,
		event.ChannelID,
		event.ThreadKey,
		event.MessageKey,
		event.OccurredAt,
		event.Shift,
		event.ActivityDate,
	))
}

// MatchOpenTicket links the agent's most recent open ticket-take in the
// thread to the reply, in one statement. The row lock with SKIP LOCKED keeps
// two concurrent replies from matching the same ticket; the strict
// occurred_at < reply inequality makes a non-positive response time
// unrepresentable.
func (r *ActivityRepository) MatchOpenTicket(ctx context.Context, params ports.MatchOpenTicketParams) (*domain.ActivityEvent, error) {
	const query = `
WITH candidate AS (
  SELECT id
  FROM activity_events
  WHERE kind = 'TICKET_TAKEN'
    AND agent_id = $1
    AND thread_key = $2
    AND matched_reply_at IS NULL
    AND occurred_at < $3
  ORDER BY occurred_at DESC
  LIMIT 1
  FOR UPDATE SKIP LOCKED
)
UPDATE activity_events e
SET matched_reply_at = $3,
    response_time_seconds = FLOOR(EXTRACT(EPOCH FROM ($3::timestamptz - e.occurred_at)))::bigint
FROM candidate c
WHERE e.id = c.id
RETURNING e.id, e.agent_id, e.agent_external_id, e.kind, e.channel_id, e.thread_key, e.message_key,
       e.occurred_at, e.matched_reply_at, e.response_time_seconds, e.shift, e.activity_date, e.created_at`

	matched, err := scanActivityEvent(r.pool.QueryRow(ctx, query, params.AgentID, params.ThreadKey, params.ReplyAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNoOpenTicket
		}
		return nil, err
	}
	return matched, nil
}

func (r *ActivityRepository) GetByID(ctx context.Context, id int64) (*domain.ActivityEvent, error) {
	const query = `SELECT ` + activityColumns + ` FROM activity_events WHERE id = $1`

	event, err := scanActivityEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return event, nil
}
