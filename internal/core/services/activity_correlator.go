package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lorrc/agent-activity-backend/internal/core/domain"
	apperrors "github.com/lorrc/agent-activity-backend/internal/core/errors"
	"github.com/lorrc/agent-activity-backend/internal/core/ports"
)

// ActivityCorrelatorService records agent activity and derives response
// times by matching thread replies against open ticket-takes.
type ActivityCorrelatorService struct {
	activityRepo ports.ActivityRepository
	classifier   *TimeClassifier
	broadcaster  ports.EventBroadcaster
}

var _ ports.ActivityCorrelator = (*ActivityCorrelatorService)(nil)

// NewActivityCorrelatorService creates a new activity correlator service
func NewActivityCorrelatorService(
	activityRepo ports.ActivityRepository,
	classifier *TimeClassifier,
	broadcaster ports.EventBroadcaster,
) *ActivityCorrelatorService {
	return &ActivityCorrelatorService{
		activityRepo: activityRepo,
		classifier:   classifier,
		broadcaster:  broadcaster,
	}
}

// RecordTicketTaken stores a ticket-taken record for the reacted-to message.
// Redeliveries and duplicate reactions on the same message collapse into the
// first stored row.
func (s *ActivityCorrelatorService) RecordTicketTaken(ctx context.Context, params ports.RecordTicketTakenParams) (*domain.ActivityEvent, error) {
	shift, date := s.classifier.Classify(params.OccurredAt)

	event, err := domain.NewTicketTaken(domain.ActivityEventParams{
		AgentID:         params.Agent.ID,
		AgentExternalID: params.Agent.ExternalID(),
		ChannelID:       params.ChannelID,
		ThreadKey:       params.ThreadKey,
		MessageKey:      params.MessageKey,
		OccurredAt:      params.OccurredAt,
		Shift:           shift,
		ActivityDate:    date,
	})
	if err != nil {
		return nil, err
	}

	stored, deduplicated, err := s.activityRepo.InsertTicketTaken(ctx, event)
	if err != nil {
		return nil, err
	}
	if deduplicated {
		slog.DebugContext(ctx, "duplicate ticket-taken ignored",
			"agent_id", stored.AgentID,
			"message_key", stored.MessageKey,
		)
		return stored, nil
	}

	slog.InfoContext(ctx, "ticket taken",
		"agent_id", stored.AgentID,
		"thread_key", stored.ThreadKey,
		"shift", stored.Shift,
	)
	s.broadcast(domain.FeedEvent{Type: domain.FeedActivityRecorded, Activity: stored})
	return stored, nil
}

// RecordMessage stores a message record and, for thread replies, attempts to
// close the agent's most recent open ticket-take in that thread. A reply with
// no open ticket is still recorded; it just produces no response time.
func (s *ActivityCorrelatorService) RecordMessage(ctx context.Context, params ports.RecordMessageParams) (*domain.ActivityEvent, error) {
	shift, date := s.classifier.Classify(params.OccurredAt)

	eventParams := domain.ActivityEventParams{
		AgentID:         params.Agent.ID,
		AgentExternalID: params.Agent.ExternalID(),
		ChannelID:       params.ChannelID,
		ThreadKey:       params.ThreadKey,
		MessageKey:      params.MessageKey,
		OccurredAt:      params.OccurredAt,
		Shift:           shift,
		ActivityDate:    date,
	}

	var (
		event *domain.ActivityEvent
		err   error
	)
	if params.IsThreadReply {
		event, err = domain.NewThreadReply(eventParams)
	} else {
		event, err = domain.NewMessageSent(eventParams)
	}
	if err != nil {
		return nil, err
	}

	stored, err := s.activityRepo.InsertMessage(ctx, event)
	if err != nil {
		return nil, err
	}
	s.broadcast(domain.FeedEvent{Type: domain.FeedActivityRecorded, Activity: stored})

	if params.IsThreadReply {
		s.matchOpenTicket(ctx, params)
	}

	return stored, nil
}

// matchOpenTicket links the reply to its ticket-take if one is open. Match
// failures never fail the record: the reply row is already stored.
func (s *ActivityCorrelatorService) matchOpenTicket(ctx context.Context, params ports.RecordMessageParams) {
	matched, err := s.activityRepo.MatchOpenTicket(ctx, ports.MatchOpenTicketParams{
		AgentID:   params.Agent.ID,
		ThreadKey: params.ThreadKey,
		ReplyAt:   params.OccurredAt,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNoOpenTicket) {
			slog.DebugContext(ctx, "thread reply with no open ticket",
				"agent_id", params.Agent.ID,
				"thread_key", params.ThreadKey,
			)
			return
		}
		slog.ErrorContext(ctx, "failed to match open ticket",
			"agent_id", params.Agent.ID,
			"thread_key", params.ThreadKey,
			"error", err,
		)
		return
	}

	slog.InfoContext(ctx, "ticket matched",
		"agent_id", matched.AgentID,
		"thread_key", matched.ThreadKey,
		"response_time_seconds", matched.ResponseTimeSeconds,
	)
	s.broadcast(domain.FeedEvent{Type: domain.FeedTicketMatched, Activity: matched})
}

func (s *ActivityCorrelatorService) broadcast(event domain.FeedEvent) {
	if s.broadcaster == nil {
		return
	}
	_ = s.broadcaster.Broadcast(event)
}
