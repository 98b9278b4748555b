package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/slack-go/slack/slackevents"

	apperrors "github.com/lorrc/agent-activity-backend/internal/core/errors"
	"github.com/lorrc/agent-activity-backend/internal/core/ports"
)

// WebhookHandler is the ingestion endpoint for Slack Events API deliveries.
//
// The acknowledgement contract drives its shape: Slack redelivers anything
// not answered 200 quickly, so every internal failure past authentication is
// absorbed, logged, and acknowledged. Only an invalid or stale signature gets
// a 401.
type WebhookHandler struct {
	verifier     *SlackVerifier
	directory    ports.AgentDirectory
	correlator   ports.ActivityCorrelator
	opsChannelID string
	takeReaction string
	logger       *slog.Logger
}

func NewWebhookHandler(
	verifier *SlackVerifier,
	directory ports.AgentDirectory,
	correlator ports.ActivityCorrelator,
	opsChannelID string,
	takeReaction string,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:     verifier,
		directory:    directory,
		correlator:   correlator,
		opsChannelID: opsChannelID,
		takeReaction: takeReaction,
		logger:       logger,
	}
}

// HandleEvent processes one webhook delivery.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := NormalizeBody(rawBody)
	if err != nil {
		h.logger.WarnContext(r.Context(), "malformed webhook body", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	// Endpoint registration handshake. The challenge round-trip is how the
	// endpoint URL gets registered in the first place, so it is answered
	// before signature verification.
	var probe struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.Type == string(slackevents.URLVerification) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": probe.Challenge})
		return
	}

	// The signature covers the raw bytes as delivered, not the normalized
	// form.
	err = h.verifier.Verify(
		r.Header.Get(timestampHeader),
		r.Header.Get(signatureHeader),
		rawBody,
	)
	if err != nil {
		h.logger.WarnContext(r.Context(), "webhook authentication failed", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	// From here on, the delivery is acknowledged no matter what happens.
	defer w.WriteHeader(http.StatusOK)

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		h.logger.WarnContext(r.Context(), "unparseable webhook event", "error", err)
		return
	}
	if event.Type != slackevents.CallbackEvent {
		return
	}

	// The outer event id identifies the delivery across Slack's retries and is
	// the handle for tracing replays in the logs.
	if cb, ok := event.Data.(*slackevents.EventsAPICallbackEvent); ok && cb.EventID != "" {
		h.logger.DebugContext(r.Context(), "processing event callback",
			"event_id", cb.EventID,
			"inner_type", event.InnerEvent.Type,
		)
	}

	switch inner := event.InnerEvent.Data.(type) {
	case *slackevents.ReactionAddedEvent:
		h.handleReactionAdded(r, inner)
	case *slackevents.MessageEvent:
		h.handleMessage(r, inner)
	}
}

// handleReactionAdded records a ticket-taken when the configured reaction is
// added to a message in the ops channel.
func (h *WebhookHandler) handleReactionAdded(r *http.Request, event *slackevents.ReactionAddedEvent) {
	ctx := r.Context()

	if event.Reaction != h.takeReaction {
		return
	}
	if event.Item.Type != "message" || event.Item.Channel != h.opsChannelID {
		return
	}
	if event.User == "" || event.Item.Timestamp == "" {
		h.logger.WarnContext(ctx, "reaction event missing user or item timestamp")
		return
	}

	occurredAt, err := parseSlackTimestamp(event.EventTimestamp)
	if err != nil {
		h.logger.WarnContext(ctx, "reaction event has bad timestamp", "event_ts", event.EventTimestamp)
		return
	}

	agent, err := h.directory.Resolve(ctx, event.User)
	if err != nil {
		h.dropUnresolved(ctx, event.User, err)
		return
	}

	// The reacted-to message anchors both the dedup key and the reply
	// thread.
	_, err = h.correlator.RecordTicketTaken(ctx, ports.RecordTicketTakenParams{
		Agent:      agent,
		ChannelID:  event.Item.Channel,
		ThreadKey:  event.Item.Timestamp,
		MessageKey: event.Item.Timestamp,
		OccurredAt: occurredAt,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to record ticket taken",
			"agent_id", agent.ID,
			"message_key", event.Item.Timestamp,
			"error", err,
		)
	}
}

// handleMessage records a posted message, distinguishing thread replies from
// top-level messages. Bot messages and subtyped messages (edits, deletes,
// joins) are not agent activity.
func (h *WebhookHandler) handleMessage(r *http.Request, event *slackevents.MessageEvent) {
	ctx := r.Context()

	if event.Channel != h.opsChannelID {
		return
	}
	if event.BotID != "" || event.SubType != "" {
		return
	}
	if event.User == "" || event.TimeStamp == "" {
		return
	}

	occurredAt, err := parseSlackTimestamp(event.TimeStamp)
	if err != nil {
		h.logger.WarnContext(ctx, "message event has bad timestamp", "ts", event.TimeStamp)
		return
	}

	agent, err := h.directory.Resolve(ctx, event.User)
	if err != nil {
		h.dropUnresolved(ctx, event.User, err)
		return
	}

	isThreadReply := event.ThreadTimeStamp != "" && event.ThreadTimeStamp != event.TimeStamp
	threadKey := event.TimeStamp
	if isThreadReply {
		threadKey = event.ThreadTimeStamp
	}

	_, err = h.correlator.RecordMessage(ctx, ports.RecordMessageParams{
		Agent:         agent,
		ChannelID:     event.Channel,
		ThreadKey:     threadKey,
		MessageKey:    event.TimeStamp,
		OccurredAt:    occurredAt,
		IsThreadReply: isThreadReply,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to record message",
			"agent_id", agent.ID,
			"message_key", event.TimeStamp,
			"error", err,
		)
	}
}

// dropUnresolved logs a dropped event. Untracked users are the common case
// (reactions from requesters, messages from bystanders) and log at debug.
func (h *WebhookHandler) dropUnresolved(ctx context.Context, user string, err error) {
	if errors.Is(err, apperrors.ErrAgentNotTracked) {
		h.logger.DebugContext(ctx, "event from untracked user dropped", "external_user_id", user)
		return
	}
	h.logger.ErrorContext(ctx, "agent resolution failed", "external_user_id", user, "error", err)
}
