package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lorrc/agent-activity-backend/internal/adapters/primary/validation"
	"github.com/lorrc/agent-activity-backend/internal/core/domain"
	"github.com/lorrc/agent-activity-backend/internal/core/ports"
)

// AgentHandler exposes roster administration over HTTP. All routes sit
// behind JWT auth; tokens are issued by the ops identity tooling, not by
// this service.
type AgentHandler struct {
	adminService ports.AgentAdminService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewAgentHandler(adminService ports.AgentAdminService, errorHandler *ErrorHandler, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{
		adminService: adminService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "agents"),
	}
}

func (h *AgentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/agents", func(r chi.Router) {
		r.Post("/", h.HandleCreateAgent)
		r.Get("/", h.HandleListAgents)
		r.Patch("/{agentID}/status", h.HandleUpdateAgentStatus)
	})
}

type CreateAgentRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (r *CreateAgentRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("fullName", r.FullName).
		MaxLength("fullName", r.FullName, 200).
		Required("email", r.Email).
		Email("email", r.Email)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

type UpdateAgentStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

func (r *UpdateAgentStatusRequest) Validate() error {
	v := validation.NewValidator()

	v.NotNil("isActive", r.IsActive)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// HandleCreateAgent handles POST /api/v1/agents
func (h *AgentHandler) HandleCreateAgent(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[CreateAgentRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	agent, err := h.adminService.CreateAgent(r.Context(), ports.CreateAgentParams{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, toAgentDTO(agent))
}

// HandleListAgents handles GET /api/v1/agents
func (h *AgentHandler) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.adminService.ListAgents(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	response := make([]AgentDTO, 0, len(agents))
	for _, agent := range agents {
		response = append(response, toAgentDTO(agent))
	}

	WriteList(w, response)
}

// HandleUpdateAgentStatus handles PATCH /api/v1/agents/{agentID}/status
func (h *AgentHandler) HandleUpdateAgentStatus(w http.ResponseWriter, r *http.Request) {
	agentID, err := h.parseAgentID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[UpdateAgentStatusRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	agent, err := h.adminService.SetAgentStatus(r.Context(), agentID, *req.IsActive)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toAgentDTO(agent))
}

// AgentDTO is the API representation of an agent.
type AgentDTO struct {
	ID             string  `json:"id"`
	ExternalUserID *string `json:"externalUserId"`
	FullName       string  `json:"fullName"`
	Email          string  `json:"email"`
	IsActive       bool    `json:"isActive"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      *string `json:"updatedAt,omitempty"`
}

func toAgentDTO(agent *domain.Agent) AgentDTO {
	var updatedAt *string
	if agent.UpdatedAt != nil {
		value := agent.UpdatedAt.Format(time.RFC3339)
		updatedAt = &value
	}

	return AgentDTO{
		ID:             agent.ID.String(),
		ExternalUserID: agent.ExternalUserID,
		FullName:       agent.FullName,
		Email:          agent.Email,
		IsActive:       agent.IsActive,
		CreatedAt:      agent.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      updatedAt,
	}
}

func (h *AgentHandler) parseAgentID(r *http.Request) (uuid.UUID, error) {
	idParam := chi.URLParam(r, "agentID")
	agentID, err := uuid.Parse(idParam)
	if err != nil {
		v := validation.NewValidator()
		v.Custom("agentID", false, "Invalid agent ID")
		return uuid.Nil, v.Errors()
	}

	return agentID, nil
}
