package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/agent-activity-backend/internal/core/domain"
	apperrors "github.com/lorrc/agent-activity-backend/internal/core/errors"
	"github.com/lorrc/agent-activity-backend/internal/core/mocks"
	"github.com/lorrc/agent-activity-backend/internal/core/ports"
)

const (
	testSecret    = "8f742231b10e8888abcd99yyyzzz85a5"
	testChannelID = "C0OPSCHAN"
	testReaction  = "white_check_mark"
)

type webhookFixture struct {
	handler    *WebhookHandler
	directory  *mocks.MockAgentDirectory
	correlator *mocks.MockActivityCorrelator
	now        time.Time
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	now := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)
	verifier := NewSlackVerifier(testSecret, 5*time.Minute)
	verifier.now = func() time.Time { return now }

	directory := mocks.NewMockAgentDirectory()
	correlator := mocks.NewMockActivityCorrelator()

	handler := NewWebhookHandler(
		verifier,
		directory,
		correlator,
		testChannelID,
		testReaction,
		slog.New(slog.DiscardHandler),
	)

	return &webhookFixture{
		handler:    handler,
		directory:  directory,
		correlator: correlator,
		now:        now,
	}
}

// deliver posts a signed webhook body and returns the recorded response.
func (f *webhookFixture) deliver(t *testing.T, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	ts := strconv.FormatInt(f.now.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/slack/events", bytes.NewReader(body))
	req.Header.Set(timestampHeader, ts)
	req.Header.Set(signatureHeader, signBody(testSecret, ts, body))

	rec := httptest.NewRecorder()
	f.handler.HandleEvent(rec, req)
	return rec
}

func reactionAddedBody(user, reaction, channel, itemTS, eventTS string) []byte {
	return []byte(fmt.Sprintf(`{
		"type": "event_callback",
		"event_id": "Ev12345",
		"event": {
			"type": "reaction_added",
			"user": %q,
			"reaction": %q,
			"item_user": "U0REQUESTER",
			"item": {"type": "message", "channel": %q, "ts": %q},
			"event_ts": %q
		}
	}`, user, reaction, channel, itemTS, eventTS))
}

func messageBody(user, channel, ts, threadTS string) []byte {
	return []byte(fmt.Sprintf(`{
		"type": "event_callback",
		"event_id": "Ev12346",
		"event": {
			"type": "message",
			"user": %q,
			"channel": %q,
			"ts": %q,
			"thread_ts": %q,
			"text": "on it"
		}
	}`, user, channel, ts, threadTS))
}

func TestWebhookHandler_URLVerification(t *testing.T) {
	f := newWebhookFixture(t)

	body := []byte(`{"type":"url_verification","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/slack/events", bytes.NewReader(body))
	// No signature headers: the handshake is answered before verification.
	rec := httptest.NewRecorder()
	f.handler.HandleEvent(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response struct {
		Challenge string `json:"challenge"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P", response.Challenge)
}

func TestWebhookHandler_BurstDeliveriesAllAcknowledged(t *testing.T) {
	externalID := "U024BE7LH"
	agent := &domain.Agent{ID: uuid.New(), ExternalUserID: &externalID, IsActive: true}

	f := newWebhookFixture(t)
	f.directory.On("Resolve", mock.Anything, externalID).Return(agent, nil)
	f.correlator.On("RecordTicketTaken", mock.Anything, mock.Anything).Return(&domain.ActivityEvent{ID: 1}, nil)

	// Slack redelivers unanswered events in bursts from a handful of source
	// IPs. The ingestion path carries no throttle, so every signed delivery
	// gets its 200 no matter how fast they arrive.
	body := reactionAddedBody(externalID, testReaction, testChannelID, "1700000000.000100", "1700000000.000200")
	for i := 0; i < 150; i++ {
		rec := f.deliver(t, body)
		require.Equal(t, http.StatusOK, rec.Code, "delivery %d", i+1)
	}
}

func TestWebhookHandler_Authentication(t *testing.T) {
	f := newWebhookFixture(t)
	body := reactionAddedBody("U024BE7LH", testReaction, testChannelID, "1700000000.000100", "1700000000.000200")

	t.Run("invalid signature is rejected", func(t *testing.T) {
		ts := strconv.FormatInt(f.now.Unix(), 10)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/slack/events", bytes.NewReader(body))
		req.Header.Set(timestampHeader, ts)
		req.Header.Set(signatureHeader, "v0=deadbeef")

		rec := httptest.NewRecorder()
		f.handler.HandleEvent(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		f.correlator.AssertNotCalled(t, "RecordTicketTaken", mock.Anything, mock.Anything)
	})

	t.Run("stale timestamp is rejected", func(t *testing.T) {
		staleTS := strconv.FormatInt(f.now.Add(-10*time.Minute).Unix(), 10)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/slack/events", bytes.NewReader(body))
		req.Header.Set(timestampHeader, staleTS)
		req.Header.Set(signatureHeader, signBody(testSecret, staleTS, body))

		rec := httptest.NewRecorder()
		f.handler.HandleEvent(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestWebhookHandler_ReactionAdded(t *testing.T) {
	externalID := "U024BE7LH"
	agent := &domain.Agent{ID: uuid.New(), ExternalUserID: &externalID, FullName: "Ana Souza", Email: "ana@example.com", IsActive: true}

	t.Run("take reaction records a ticket taken", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.directory.On("Resolve", mock.Anything, externalID).Return(agent, nil)
		f.correlator.On("RecordTicketTaken", mock.Anything, mock.MatchedBy(func(p ports.RecordTicketTakenParams) bool {
			return p.Agent == agent &&
				p.ChannelID == testChannelID &&
				p.ThreadKey == "1700000000.000100" &&
				p.MessageKey == "1700000000.000100" &&
				p.OccurredAt.Equal(time.Unix(1700000000, 200000).UTC())
		})).Return(&domain.ActivityEvent{ID: 1}, nil)

		rec := f.deliver(t, reactionAddedBody(externalID, testReaction, testChannelID, "1700000000.000100", "1700000000.000200"))

		assert.Equal(t, http.StatusOK, rec.Code)
		f.correlator.AssertExpectations(t)
	})

	t.Run("other reactions are ignored", func(t *testing.T) {
		f := newWebhookFixture(t)
		rec := f.deliver(t, reactionAddedBody(externalID, "thumbsup", testChannelID, "1700000000.000100", "1700000000.000200"))

		assert.Equal(t, http.StatusOK, rec.Code)
		f.directory.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})

	t.Run("reactions outside the ops channel are ignored", func(t *testing.T) {
		f := newWebhookFixture(t)
		rec := f.deliver(t, reactionAddedBody(externalID, testReaction, "C0OTHER", "1700000000.000100", "1700000000.000200"))

		assert.Equal(t, http.StatusOK, rec.Code)
		f.directory.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})

	t.Run("untracked user is dropped with a 200", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.directory.On("Resolve", mock.Anything, externalID).Return(nil, apperrors.ErrAgentNotTracked)

		rec := f.deliver(t, reactionAddedBody(externalID, testReaction, testChannelID, "1700000000.000100", "1700000000.000200"))

		assert.Equal(t, http.StatusOK, rec.Code)
		f.correlator.AssertNotCalled(t, "RecordTicketTaken", mock.Anything, mock.Anything)
	})

	t.Run("correlator failure is absorbed with a 200", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.directory.On("Resolve", mock.Anything, externalID).Return(agent, nil)
		f.correlator.On("RecordTicketTaken", mock.Anything, mock.Anything).Return(nil, assert.AnError)

		rec := f.deliver(t, reactionAddedBody(externalID, testReaction, testChannelID, "1700000000.000100", "1700000000.000200"))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestWebhookHandler_Message(t *testing.T) {
	externalID := "U024BE7LH"
	agent := &domain.Agent{ID: uuid.New(), ExternalUserID: &externalID, FullName: "Ana Souza", Email: "ana@example.com", IsActive: true}

	t.Run("thread reply is recorded as a reply in the parent thread", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.directory.On("Resolve", mock.Anything, externalID).Return(agent, nil)
		f.correlator.On("RecordMessage", mock.Anything, mock.MatchedBy(func(p ports.RecordMessageParams) bool {
			return p.IsThreadReply &&
				p.ThreadKey == "1700000000.000100" &&
				p.MessageKey == "1700000180.000200"
		})).Return(&domain.ActivityEvent{ID: 2}, nil)

		rec := f.deliver(t, messageBody(externalID, testChannelID, "1700000180.000200", "1700000000.000100"))

		assert.Equal(t, http.StatusOK, rec.Code)
		f.correlator.AssertExpectations(t)
	})

	t.Run("top-level message is recorded as its own thread", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.directory.On("Resolve", mock.Anything, externalID).Return(agent, nil)
		f.correlator.On("RecordMessage", mock.Anything, mock.MatchedBy(func(p ports.RecordMessageParams) bool {
			return !p.IsThreadReply && p.ThreadKey == "1700000180.000200"
		})).Return(&domain.ActivityEvent{ID: 3}, nil)

		rec := f.deliver(t, messageBody(externalID, testChannelID, "1700000180.000200", ""))

		assert.Equal(t, http.StatusOK, rec.Code)
		f.correlator.AssertExpectations(t)
	})

	t.Run("thread parent broadcast is not a reply", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.directory.On("Resolve", mock.Anything, externalID).Return(agent, nil)
		f.correlator.On("RecordMessage", mock.Anything, mock.MatchedBy(func(p ports.RecordMessageParams) bool {
			return !p.IsThreadReply
		})).Return(&domain.ActivityEvent{ID: 4}, nil)

		// thread_ts equal to ts marks the parent message itself.
		rec := f.deliver(t, messageBody(externalID, testChannelID, "1700000180.000200", "1700000180.000200"))

		assert.Equal(t, http.StatusOK, rec.Code)
		f.correlator.AssertExpectations(t)
	})

	t.Run("bot and subtyped messages are ignored", func(t *testing.T) {
		f := newWebhookFixture(t)

		botBody := []byte(fmt.Sprintf(`{
			"type": "event_callback",
			"event": {"type": "message", "bot_id": "B123", "channel": %q, "ts": "1700000180.000200"}
		}`, testChannelID))
		rec := f.deliver(t, botBody)
		assert.Equal(t, http.StatusOK, rec.Code)

		editBody := []byte(fmt.Sprintf(`{
			"type": "event_callback",
			"event": {"type": "message", "subtype": "message_changed", "user": %q, "channel": %q, "ts": "1700000180.000200"}
		}`, externalID, testChannelID))
		rec = f.deliver(t, editBody)
		assert.Equal(t, http.StatusOK, rec.Code)

		f.directory.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})
}

func TestWebhookHandler_MalformedPayload(t *testing.T) {
	f := newWebhookFixture(t)

	rec := f.deliver(t, []byte(`{"type":"event_call`))

	// Malformed bodies are acknowledged so Slack stops redelivering them.
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookHandler_DoubleEncodedPayload(t *testing.T) {
	externalID := "U024BE7LH"
	agent := &domain.Agent{ID: uuid.New(), ExternalUserID: &externalID, IsActive: true}

	f := newWebhookFixture(t)
	f.directory.On("Resolve", mock.Anything, externalID).Return(agent, nil)
	f.correlator.On("RecordTicketTaken", mock.Anything, mock.Anything).Return(&domain.ActivityEvent{ID: 1}, nil)

	inner := reactionAddedBody(externalID, testReaction, testChannelID, "1700000000.000100", "1700000000.000200")
	wrapped, err := json.Marshal(string(inner))
	require.NoError(t, err)

	rec := f.deliver(t, wrapped)

	assert.Equal(t, http.StatusOK, rec.Code)
	f.correlator.AssertExpectations(t)
}
