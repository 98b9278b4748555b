package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/agent-activity-backend/internal/core/domain"
	apperrors "github.com/lorrc/agent-activity-backend/internal/core/errors"
)

func createTestAgent(t *testing.T, fullName, email string) *domain.Agent {
	t.Helper()
	repo := NewAgentRepository(testPool)

	agent, err := domain.NewAgent(domain.AgentParams{FullName: fullName, Email: email})
	require.NoError(t, err)

	created, err := repo.Create(context.Background(), agent)
	require.NoError(t, err)
	return created
}

func TestAgentRepository_Create(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	repo := NewAgentRepository(testPool)

	created := createTestAgent(t, "Ana Souza", "ana@example.com")

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.True(t, created.IsActive)
	assert.Nil(t, created.ExternalUserID)

	t.Run("duplicate email is rejected", func(t *testing.T) {
		dup, err := domain.NewAgent(domain.AgentParams{FullName: "Other", Email: "ana@example.com"})
		require.NoError(t, err)

		_, err = repo.Create(ctx, dup)
		assert.ErrorIs(t, err, apperrors.ErrAgentExists)
	})
}

func TestAgentRepository_BindExternalID(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	repo := NewAgentRepository(testPool)

	agent := createTestAgent(t, "Ana Souza", "ana@example.com")

	bound, err := repo.BindExternalID(ctx, agent.ID, "U024BE7LH")
	require.NoError(t, err)
	require.NotNil(t, bound.ExternalUserID)
	assert.Equal(t, "U024BE7LH", *bound.ExternalUserID)

	t.Run("same id rebind is a no-op success", func(t *testing.T) {
		again, err := repo.BindExternalID(ctx, agent.ID, "U024BE7LH")
		require.NoError(t, err)
		assert.Equal(t, "U024BE7LH", *again.ExternalUserID)
	})

	t.Run("different id rebind is refused", func(t *testing.T) {
		_, err := repo.BindExternalID(ctx, agent.ID, "U999OTHER")
		assert.ErrorIs(t, err, apperrors.ErrExternalIDConflict)
	})

	t.Run("id bound to another agent is refused", func(t *testing.T) {
		other := createTestAgent(t, "Bruno Lima", "bruno@example.com")
		_, err := repo.BindExternalID(ctx, other.ID, "U024BE7LH")
		assert.ErrorIs(t, err, apperrors.ErrExternalIDConflict)
	})
}

func TestAgentRepository_Lookups(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	repo := NewAgentRepository(testPool)

	agent := createTestAgent(t, "Ana Souza", "ana@example.com")
	_, err := repo.BindExternalID(ctx, agent.ID, "U024BE7LH")
	require.NoError(t, err)

	t.Run("by external id", func(t *testing.T) {
		got, err := repo.GetByExternalID(ctx, "U024BE7LH")
		require.NoError(t, err)
		assert.Equal(t, agent.ID, got.ID)
	})

	t.Run("by email", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "ana@example.com")
		require.NoError(t, err)
		assert.Equal(t, agent.ID, got.ID)
	})

	t.Run("unknown external id", func(t *testing.T) {
		_, err := repo.GetByExternalID(ctx, "UNOBODY")
		assert.ErrorIs(t, err, apperrors.ErrAgentNotFound)
	})

	t.Run("deactivated agent is invisible to event lookups", func(t *testing.T) {
		_, err := repo.SetActive(ctx, agent.ID, false)
		require.NoError(t, err)

		_, err = repo.GetByExternalID(ctx, "U024BE7LH")
		assert.ErrorIs(t, err, apperrors.ErrAgentNotFound)

		_, err = repo.GetByEmail(ctx, "ana@example.com")
		assert.ErrorIs(t, err, apperrors.ErrAgentNotFound)

		// Still visible by id for admin access.
		got, err := repo.GetByID(ctx, agent.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})
}

func TestAgentRepository_List(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	repo := NewAgentRepository(testPool)

	createTestAgent(t, "Bruno Lima", "bruno@example.com")
	createTestAgent(t, "Ana Souza", "ana@example.com")

	agents, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "Ana Souza", agents[0].FullName)
	assert.Equal(t, "Bruno Lima", agents[1].FullName)
}
