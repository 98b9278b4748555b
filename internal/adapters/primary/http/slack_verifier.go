package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/lorrc/agent-activity-backend/internal/core/errors"
)

const (
	signatureHeader = "X-Slack-Signature"
	timestampHeader = "X-Slack-Request-Timestamp"
	signaturePrefix = "v0="
)

// SlackVerifier authenticates webhook deliveries against the Slack signing
// secret. The signature covers the raw request body exactly as received, so
// verification must run before any payload normalization.
type SlackVerifier struct {
	signingSecret []byte
	maxAge        time.Duration
	now           func() time.Time
}

func NewSlackVerifier(signingSecret string, maxAge time.Duration) *SlackVerifier {
	return &SlackVerifier{
		signingSecret: []byte(signingSecret),
		maxAge:        maxAge,
		now:           time.Now,
	}
}

// Verify checks the request timestamp freshness and the v0 HMAC signature.
// The freshness check runs first: a stale timestamp is rejected even when the
// signature over it is valid, closing the replay window.
func (v *SlackVerifier) Verify(timestamp, signature string, body []byte) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return apperrors.ErrInvalidSignature
	}

	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.maxAge || age < -v.maxAge {
		return apperrors.ErrStaleRequest
	}

	mac := hmac.New(sha256.New, v.signingSecret)
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	expected := signaturePrefix + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return apperrors.ErrInvalidSignature
	}
	return nil
}
