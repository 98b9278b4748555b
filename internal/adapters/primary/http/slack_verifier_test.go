package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lorrc/agent-activity-backend/internal/core/errors"
)

func signBody(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestSlackVerifier_Verify(t *testing.T) {
	const secret = "8f742231b10e8888abcd99yyyzzz85a5"
	now := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)

	newVerifier := func() *SlackVerifier {
		v := NewSlackVerifier(secret, 5*time.Minute)
		v.now = func() time.Time { return now }
		return v
	}

	body := []byte(`{"type":"event_callback"}`)
	freshTS := strconv.FormatInt(now.Unix(), 10)

	t.Run("accepts a valid signature", func(t *testing.T) {
		v := newVerifier()
		err := v.Verify(freshTS, signBody(secret, freshTS, body), body)
		require.NoError(t, err)
	})

	t.Run("rejects a tampered body", func(t *testing.T) {
		v := newVerifier()
		err := v.Verify(freshTS, signBody(secret, freshTS, body), []byte(`{"type":"tampered"}`))
		assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
	})

	t.Run("rejects a signature from another secret", func(t *testing.T) {
		v := newVerifier()
		err := v.Verify(freshTS, signBody("other-secret", freshTS, body), body)
		assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
	})

	t.Run("rejects a stale timestamp even with a valid signature", func(t *testing.T) {
		v := newVerifier()
		staleTS := strconv.FormatInt(now.Add(-6*time.Minute).Unix(), 10)
		err := v.Verify(staleTS, signBody(secret, staleTS, body), body)
		assert.ErrorIs(t, err, apperrors.ErrStaleRequest)
	})

	t.Run("rejects a timestamp too far in the future", func(t *testing.T) {
		v := newVerifier()
		futureTS := strconv.FormatInt(now.Add(6*time.Minute).Unix(), 10)
		err := v.Verify(futureTS, signBody(secret, futureTS, body), body)
		assert.ErrorIs(t, err, apperrors.ErrStaleRequest)
	})

	t.Run("accepts a timestamp at the edge of the window", func(t *testing.T) {
		v := newVerifier()
		edgeTS := strconv.FormatInt(now.Add(-5*time.Minute).Unix(), 10)
		err := v.Verify(edgeTS, signBody(secret, edgeTS, body), body)
		require.NoError(t, err)
	})

	t.Run("rejects a non-numeric timestamp", func(t *testing.T) {
		v := newVerifier()
		err := v.Verify("not-a-number", signBody(secret, "not-a-number", body), body)
		assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
	})

	t.Run("rejects an empty signature", func(t *testing.T) {
		v := newVerifier()
		err := v.Verify(freshTS, "", body)
		assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
	})
}
