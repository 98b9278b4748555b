package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lorrc/agent-activity-backend/internal/core/domain"
	apperrors "github.com/lorrc/agent-activity-backend/internal/core/errors"
	"github.com/lorrc/agent-activity-backend/internal/core/ports"
)

// AgentDirectoryService resolves external Slack user ids to tracked agents.
//
// The fast path is a direct lookup on the bound id. On a miss it falls back
// to the directory service: fetch the user's email, match it against the
// agent roster, and bind the id so subsequent events skip the lookup. Agents
// that cannot be resolved are reported as not tracked; the caller drops the
// event.
type AgentDirectoryService struct {
	agentRepo     ports.AgentRepository
	directory     ports.DirectoryClient
	lookupTimeout time.Duration
}

var _ ports.AgentDirectory = (*AgentDirectoryService)(nil)

// NewAgentDirectoryService creates a new agent directory service
func NewAgentDirectoryService(
	agentRepo ports.AgentRepository,
	directory ports.DirectoryClient,
	lookupTimeout time.Duration,
) *AgentDirectoryService {
	return &AgentDirectoryService{
		agentRepo:     agentRepo,
		directory:     directory,
		lookupTimeout: lookupTimeout,
	}
}

// Resolve maps an external user id to an active agent, lazily binding the id
// on the first successful resolution.
func (s *AgentDirectoryService) Resolve(ctx context.Context, externalUserID string) (*domain.Agent, error) {
	// 1. Fast path: the id was bound on an earlier event.
	agent, err := s.agentRepo.GetByExternalID(ctx, externalUserID)
	if err == nil {
		return agent, nil
	}
	if !errors.Is(err, apperrors.ErrAgentNotFound) {
		return nil, err
	}

	// 2. Ask the directory who this user is. A directory outage must not
	// fail the webhook, so any lookup error degrades to "not tracked".
	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	email, err := s.directory.LookupEmail(lookupCtx, externalUserID)
	if err != nil {
		slog.WarnContext(ctx, "directory lookup failed",
			"external_user_id", externalUserID,
			"error", err,
		)
		return nil, apperrors.ErrAgentNotTracked
	}

	// 3. Match the email against the roster.
	agent, err = s.agentRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrAgentNotFound) {
			return nil, apperrors.ErrAgentNotTracked
		}
		return nil, err
	}

	// 4. Bind the id so the next event takes the fast path. An agent already
	// bound to a different id means two Slack accounts resolve to one roster
	// email; refuse without touching the row.
	if agent.HasExternalID() && agent.ExternalID() != externalUserID {
		slog.WarnContext(ctx, "agent already bound to a different external id",
			"agent_id", agent.ID,
			"external_user_id", externalUserID,
		)
		return nil, apperrors.ErrAgentNotTracked
	}

	// A concurrent delivery may have bound it first; the repository treats a
	// same-id rebind as a no-op success.
	bound, err := s.agentRepo.BindExternalID(ctx, agent.ID, externalUserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrExternalIDConflict) {
			slog.WarnContext(ctx, "refusing to rebind agent to a different external id",
				"agent_id", agent.ID,
				"external_user_id", externalUserID,
			)
			return nil, apperrors.ErrAgentNotTracked
		}
		return nil, err
	}

	slog.InfoContext(ctx, "bound agent to external user id",
		"agent_id", bound.ID,
		"external_user_id", externalUserID,
	)
	return bound, nil
}
