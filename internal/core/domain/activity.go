package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/agent-activity-backend/internal/core/errors"
)

// ActivityKind discriminates the observed action an ActivityEvent records.
type ActivityKind string

const (
	KindTicketTaken ActivityKind = "TICKET_TAKEN"
	KindThreadReply ActivityKind = "THREAD_REPLY"
	KindMessageSent ActivityKind = "MESSAGE_SENT"
)

// IsValid reports whether the kind is one of the known values.
func (k ActivityKind) IsValid() bool {
	switch k {
	case KindTicketTaken, KindThreadReply, KindMessageSent:
		return true
	}
	return false
}

// Shift is one of three fixed 8-hour duty windows in the operating timezone.
type Shift string

const (
	ShiftMorning   Shift = "MORNING"   // [07:00, 15:00)
	ShiftAfternoon Shift = "AFTERNOON" // [15:00, 23:00)
	ShiftNight     Shift = "NIGHT"     // [23:00, 07:00), wraps midnight
)

// IsValid reports whether the shift is one of the known values.
func (s Shift) IsValid() bool {
	switch s {
	case ShiftMorning, ShiftAfternoon, ShiftNight:
		return true
	}
	return false
}

// ActivityEvent is one observed agent action derived from a webhook event.
//
// For TICKET_TAKEN rows, MessageKey is the reacted-to parent message and the
// pair (AgentExternalID, MessageKey) is the dedup key: at most one such row
// exists per reacted-to message. For THREAD_REPLY and MESSAGE_SENT rows,
// MessageKey is the message's own key.
//
// A TICKET_TAKEN row starts Open (MatchedReplyAt nil) and transitions to
// Matched exactly once when a later reply in the same thread links to it.
// Matched rows are immutable.
type ActivityEvent struct {
	ID                  int64        `json:"id"`
	AgentID             uuid.UUID    `json:"agent_id"`
	AgentExternalID     string       `json:"agent_external_id"`
	Kind                ActivityKind `json:"kind"`
	ChannelID           string       `json:"channel_id"`
	ThreadKey           string       `json:"thread_key"`
	MessageKey          string       `json:"message_key"`
	OccurredAt          time.Time    `json:"occurred_at"`
	MatchedReplyAt      *time.Time   `json:"matched_reply_at,omitempty"`
	ResponseTimeSeconds *int64       `json:"response_time_seconds,omitempty"`
	Shift               Shift        `json:"shift"`
	ActivityDate        string       `json:"activity_date"`
	CreatedAt           time.Time    `json:"created_at"`
}

// ActivityEventParams is the common input for building an activity event.
// Shift and ActivityDate are classified once at write time from OccurredAt
// and never recomputed.
type ActivityEventParams struct {
	AgentID         uuid.UUID
	AgentExternalID string
	ChannelID       string
	ThreadKey       string
	MessageKey      string
	OccurredAt      time.Time
	Shift           Shift
	ActivityDate    string
}

// NewTicketTaken builds an unmatched TICKET_TAKEN event.
func NewTicketTaken(params ActivityEventParams) (*ActivityEvent, error) {
	return newActivityEvent(KindTicketTaken, params)
}

// NewThreadReply builds a THREAD_REPLY event.
func NewThreadReply(params ActivityEventParams) (*ActivityEvent, error) {
	return newActivityEvent(KindThreadReply, params)
}

// NewMessageSent builds a MESSAGE_SENT event.
func NewMessageSent(params ActivityEventParams) (*ActivityEvent, error) {
	return newActivityEvent(KindMessageSent, params)
}

func newActivityEvent(kind ActivityKind, params ActivityEventParams) (*ActivityEvent, error) {
	if params.AgentID == uuid.Nil || params.AgentExternalID == "" {
		return nil, apperrors.ErrAgentRequired
	}
	if params.ThreadKey == "" || params.MessageKey == "" {
		return nil, apperrors.ErrMessageKeyRequired
	}
	if params.OccurredAt.IsZero() {
		return nil, apperrors.ErrOccurredAtRequired
	}
	if !params.Shift.IsValid() || params.ActivityDate == "" {
		return nil, apperrors.ErrShiftRequired
	}

	return &ActivityEvent{
		AgentID:         params.AgentID,
		AgentExternalID: params.AgentExternalID,
		Kind:            kind,
		ChannelID:       params.ChannelID,
		ThreadKey:       params.ThreadKey,
		MessageKey:      params.MessageKey,
		OccurredAt:      params.OccurredAt,
		Shift:           params.Shift,
		ActivityDate:    params.ActivityDate,
	}, nil
}

// IsMatched reports whether a TICKET_TAKEN event has been linked to a reply.
func (e *ActivityEvent) IsMatched() bool {
	return e.MatchedReplyAt != nil
}

// MatchReply transitions an Open TICKET_TAKEN event to Matched, computing the
// response time. The reply must be strictly later than the ticket was taken;
// a non-positive delta is an ordering anomaly and the match is refused.
func (e *ActivityEvent) MatchReply(replyAt time.Time) error {
	if e.Kind != KindTicketTaken {
		return apperrors.ErrNotTicketTaken
	}
	if e.IsMatched() {
		return apperrors.ErrAlreadyMatched
	}
	if !replyAt.After(e.OccurredAt) {
		return apperrors.ErrOrderingAnomaly
	}

	seconds := int64(replyAt.Sub(e.OccurredAt) / time.Second)
	e.MatchedReplyAt = &replyAt
	e.ResponseTimeSeconds = &seconds
	return nil
}

// FeedEventType labels events pushed to the live activity feed.
type FeedEventType string

const (
	FeedActivityRecorded FeedEventType = "ACTIVITY_RECORDED"
	FeedTicketMatched    FeedEventType = "TICKET_MATCHED"
	FeedPong             FeedEventType = "PONG"
)

// FeedEvent is the envelope broadcast to websocket feed subscribers.
type FeedEvent struct {
	Type     FeedEventType  `json:"type"`
	Activity *ActivityEvent `json:"activity,omitempty"`
}
