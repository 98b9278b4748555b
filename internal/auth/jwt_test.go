package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_UsesConfiguredTTL(t *testing.T) {
	ttl := 2 * time.Hour
	tm := NewTokenManager("test-secret", ttl)

	userID := uuid.New()

	start := time.Now()

	token, err := tm.GenerateToken(userID, "Ana Souza")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)

	expectedExpiry := start.Add(ttl)
	assert.WithinDuration(t, expectedExpiry, claims.ExpiresAt.Time, 2*time.Second)
}

func TestTokenManager_RoundTripClaims(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	userID := uuid.New()
	token, err := tm.GenerateToken(userID, "Ana Souza")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "Ana Souza", claims.Name)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	other := NewTokenManager("other-secret", time.Hour)

	token, err := tm.GenerateToken(uuid.New(), "Ana Souza")
	require.NoError(t, err)

	claims, err := other.ValidateToken(token)
	assert.Nil(t, claims)
	assert.Error(t, err)
}
