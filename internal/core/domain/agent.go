package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/agent-activity-backend/internal/core/errors"
)

// Agent is an internal identity tracked by the metrics pipeline. Agents are
// created administratively; the Slack user id is bound lazily on the first
// successfully resolved webhook event and never rebound to a different id.
type Agent struct {
	ID             uuid.UUID  `json:"id"`
	ExternalUserID *string    `json:"external_user_id"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// AgentParams defines the input for creating a new agent.
type AgentParams struct {
	FullName string
	Email    string
}

// NewAgent is a factory function to create a valid new agent.
func NewAgent(params AgentParams) (*Agent, error) {
	fullName := strings.TrimSpace(params.FullName)
	email := strings.ToLower(strings.TrimSpace(params.Email))

	if fullName == "" {
		return nil, apperrors.ErrFullNameRequired
	}
	if email == "" {
		return nil, apperrors.ErrEmailRequired
	}
	if !strings.Contains(email, "@") {
		return nil, apperrors.ErrEmailInvalid
	}

	return &Agent{
		FullName:  fullName,
		Email:     email,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// HasExternalID reports whether the agent is already bound to a Slack user id.
func (a *Agent) HasExternalID() bool {
	return a.ExternalUserID != nil && *a.ExternalUserID != ""
}

// ExternalID returns the bound Slack user id, or the empty string.
func (a *Agent) ExternalID() string {
	if a.ExternalUserID == nil {
		return ""
	}
	return *a.ExternalUserID
}
