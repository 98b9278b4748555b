package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/lorrc/agent-activity-backend/internal/core/domain"
	"github.com/lorrc/agent-activity-backend/internal/core/ports"
)

// MockAgentRepository is a mock implementation of ports.AgentRepository
type MockAgentRepository struct {
	mock.Mock
}

func NewMockAgentRepository() *MockAgentRepository {
	return &MockAgentRepository{}
}

func (m *MockAgentRepository) Create(ctx context.Context, agent *domain.Agent) (*domain.Agent, error) {
	args := m.Called(ctx, agent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) GetByExternalID(ctx context.Context, externalUserID string) (*domain.Agent, error) {
	args := m.Called(ctx, externalUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) BindExternalID(ctx context.Context, agentID uuid.UUID, externalUserID string) (*domain.Agent, error) {
	args := m.Called(ctx, agentID, externalUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) List(ctx context.Context) ([]*domain.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Agent, error) {
	args := m.Called(ctx, id, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

// MockActivityRepository is a mock implementation of ports.ActivityRepository
type MockActivityRepository struct {
	mock.Mock
}

func NewMockActivityRepository() *MockActivityRepository {
	return &MockActivityRepository{}
}

func (m *MockActivityRepository) InsertTicketTaken(ctx context.Context, event *domain.ActivityEvent) (*domain.ActivityEvent, bool, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ActivityEvent), args.Bool(1), args.Error(2)
}

func (m *MockActivityRepository) InsertMessage(ctx context.Context, event *domain.ActivityEvent) (*domain.ActivityEvent, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActivityEvent), args.Error(1)
}

func (m *MockActivityRepository) MatchOpenTicket(ctx context.Context, params ports.MatchOpenTicketParams) (*domain.ActivityEvent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActivityEvent), args.Error(1)
}

func (m *MockActivityRepository) GetByID(ctx context.Context, id int64) (*domain.ActivityEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActivityEvent), args.Error(1)
}

// MockDirectoryClient is a mock implementation of ports.DirectoryClient
type MockDirectoryClient struct {
	mock.Mock
}

func NewMockDirectoryClient() *MockDirectoryClient {
	return &MockDirectoryClient{}
}

func (m *MockDirectoryClient) LookupEmail(ctx context.Context, externalUserID string) (string, error) {
	args := m.Called(ctx, externalUserID)
	return args.String(0), args.Error(1)
}

// MockAgentDirectory is a mock implementation of ports.AgentDirectory
type MockAgentDirectory struct {
	mock.Mock
}

func NewMockAgentDirectory() *MockAgentDirectory {
	return &MockAgentDirectory{}
}

func (m *MockAgentDirectory) Resolve(ctx context.Context, externalUserID string) (*domain.Agent, error) {
	args := m.Called(ctx, externalUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

// MockActivityCorrelator is a mock implementation of ports.ActivityCorrelator
type MockActivityCorrelator struct {
	mock.Mock
}

func NewMockActivityCorrelator() *MockActivityCorrelator {
	return &MockActivityCorrelator{}
}

func (m *MockActivityCorrelator) RecordTicketTaken(ctx context.Context, params ports.RecordTicketTakenParams) (*domain.ActivityEvent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActivityEvent), args.Error(1)
}

func (m *MockActivityCorrelator) RecordMessage(ctx context.Context, params ports.RecordMessageParams) (*domain.ActivityEvent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActivityEvent), args.Error(1)
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) Broadcast(event domain.FeedEvent) error {
	args := m.Called(event)
	return args.Error(0)
}
