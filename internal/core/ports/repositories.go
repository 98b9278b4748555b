package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/agent-activity-backend/internal/core/domain"
)

// AgentRepository is the persistence port for agent identities.
//
// GetByExternalID and GetByEmail only consider active agents: deactivated
// agents stop producing metrics but their history is retained.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) (*domain.Agent, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error)
	GetByExternalID(ctx context.Context, externalUserID string) (*domain.Agent, error)
	GetByEmail(ctx context.Context, email string) (*domain.Agent, error)

	// BindExternalID writes the external user id onto an agent record.
	// The write is idempotent: binding the same id again is a no-op success.
	// Binding a different id onto an already-bound agent, or an id that is
	// already bound to another agent, fails with ErrExternalIDConflict.
	BindExternalID(ctx context.Context, agentID uuid.UUID, externalUserID string) (*domain.Agent, error)

	List(ctx context.Context) ([]*domain.Agent, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Agent, error)
}

// MatchOpenTicketParams selects the reply-matching candidate: the most
// recently taken unmatched ticket of the same agent in the same thread that
// was taken strictly before the reply.
type MatchOpenTicketParams struct {
	AgentID   uuid.UUID
	ThreadKey string
	ReplyAt   time.Time
}

// ActivityRepository is the persistence port for activity events. The dedup
// insert and the candidate-select-then-match must each execute as a single
// atomic operation so concurrent webhook deliveries cannot double-record or
// double-match.
type ActivityRepository interface {
	// InsertTicketTaken inserts an unmatched TICKET_TAKEN row unless one
	// already exists for (AgentExternalID, MessageKey); in that case the
	// existing row is returned with deduplicated=true.
	InsertTicketTaken(ctx context.Context, event *domain.ActivityEvent) (stored *domain.ActivityEvent, deduplicated bool, err error)

	// InsertMessage inserts a THREAD_REPLY or MESSAGE_SENT row.
	InsertMessage(ctx context.Context, event *domain.ActivityEvent) (*domain.ActivityEvent, error)

	// MatchOpenTicket atomically links the candidate ticket to the reply,
	// setting MatchedReplyAt and ResponseTimeSeconds exactly once. Returns
	// ErrNoOpenTicket when no candidate qualifies.
	MatchOpenTicket(ctx context.Context, params MatchOpenTicketParams) (*domain.ActivityEvent, error)

	GetByID(ctx context.Context, id int64) (*domain.ActivityEvent, error)
}
