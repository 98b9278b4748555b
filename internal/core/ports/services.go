package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/agent-activity-backend/internal/core/domain"
)

// AgentDirectory resolves a Slack user id to a tracked agent, lazily binding
// identities on first contact. Resolution failure is a normal outcome (most
// workspace users are not tracked agents) and is reported as
// ErrAgentNotTracked.
type AgentDirectory interface {
	Resolve(ctx context.Context, externalUserID string) (*domain.Agent, error)
}

// DirectoryClient is the port to the external directory service (Slack Web
// API users.info). Failures are caught by the caller and degrade to
// resolution failure, never propagate to the webhook response.
type DirectoryClient interface {
	LookupEmail(ctx context.Context, externalUserID string) (string, error)
}

// RecordTicketTakenParams is the input for recording a "ticket taken"
// reaction. MessageKey is the reacted-to parent message.
type RecordTicketTakenParams struct {
	Agent      *domain.Agent
	ChannelID  string
	ThreadKey  string
	MessageKey string
	OccurredAt time.Time
}

// RecordMessageParams is the input for recording a posted message.
type RecordMessageParams struct {
	Agent         *domain.Agent
	ChannelID     string
	ThreadKey     string
	MessageKey    string
	OccurredAt    time.Time
	IsThreadReply bool
}

// ActivityCorrelator records activity and matches replies to open
// ticket-takes. Both operations are idempotent under webhook redelivery.
type ActivityCorrelator interface {
	RecordTicketTaken(ctx context.Context, params RecordTicketTakenParams) (*domain.ActivityEvent, error)
	RecordMessage(ctx context.Context, params RecordMessageParams) (*domain.ActivityEvent, error)
}

// CreateAgentParams defines the input for creating an agent administratively.
type CreateAgentParams struct {
	FullName string
	Email    string
}

// AgentAdminService defines administrative operations on agents. Agents are
// never deleted, only deactivated.
type AgentAdminService interface {
	CreateAgent(ctx context.Context, params CreateAgentParams) (*domain.Agent, error)
	ListAgents(ctx context.Context) ([]*domain.Agent, error)
	SetAgentStatus(ctx context.Context, agentID uuid.UUID, active bool) (*domain.Agent, error)
}

// EventBroadcaster defines the port for pushing events to the live feed.
type EventBroadcaster interface {
	Broadcast(event domain.FeedEvent) error
}
