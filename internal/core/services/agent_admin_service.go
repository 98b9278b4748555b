package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lorrc/agent-activity-backend/internal/core/domain"
	"github.com/lorrc/agent-activity-backend/internal/core/ports"
)

// AgentAdminServiceImpl implements roster administration. Agents are created
// by email ahead of time and matched to Slack users when their first event
// arrives.
type AgentAdminServiceImpl struct {
	agentRepo ports.AgentRepository
}

var _ ports.AgentAdminService = (*AgentAdminServiceImpl)(nil)

// NewAgentAdminService creates a new agent admin service
func NewAgentAdminService(agentRepo ports.AgentRepository) *AgentAdminServiceImpl {
	return &AgentAdminServiceImpl{agentRepo: agentRepo}
}

// CreateAgent registers a new agent on the roster.
func (s *AgentAdminServiceImpl) CreateAgent(ctx context.Context, params ports.CreateAgentParams) (*domain.Agent, error) {
	agent, err := domain.NewAgent(domain.AgentParams{
		FullName: params.FullName,
		Email:    params.Email,
	})
	if err != nil {
		return nil, err
	}

	created, err := s.agentRepo.Create(ctx, agent)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "agent created", "agent_id", created.ID, "email", created.Email)
	return created, nil
}

// ListAgents returns the full roster, active and inactive.
func (s *AgentAdminServiceImpl) ListAgents(ctx context.Context) ([]*domain.Agent, error) {
	return s.agentRepo.List(ctx)
}

// SetAgentStatus activates or deactivates an agent. Deactivated agents stop
// producing metrics but their recorded history is kept.
func (s *AgentAdminServiceImpl) SetAgentStatus(ctx context.Context, agentID uuid.UUID, active bool) (*domain.Agent, error) {
	agent, err := s.agentRepo.SetActive(ctx, agentID, active)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "agent status changed", "agent_id", agent.ID, "is_active", agent.IsActive)
	return agent, nil
}
