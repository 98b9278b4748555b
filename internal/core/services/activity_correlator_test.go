package services

import (
	"context"
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

func newTestCorrelator(t *testing.T, activityRepo ports.ActivityRepository, broadcaster ports.EventBroadcaster) *ActivityCorrelatorService {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return NewActivityCorrelatorService(activityRepo, NewTimeClassifier(loc), broadcaster)
}

func testAgent() *domain.Agent {
	externalID := "U024BE7LH"
	return &domain.Agent{
		ID:             uuid.New(),
		ExternalUserID: &externalID,
		FullName:       "Ana Souza",
		Email:          "ana@example.com",
		IsActive:       true,
	}
}

func TestActivityCorrelatorService_RecordTicketTaken(t *testing.T) {
	ctx := context.Background()
	agent := testAgent()
	occurredAt := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	params := ports.RecordTicketTakenParams{
		Agent:      agent,
		ChannelID:  "C123",
		ThreadKey:  "1700000000.000100",
		MessageKey: "1700000000.000100",
		OccurredAt: occurredAt,
	}

	t.Run("stores and broadcasts a new ticket-taken", func(t *testing.T) {
		activityRepo := mocks.NewMockActivityRepository()
		broadcaster := mocks.NewMockEventBroadcaster()
		svc := newTestCorrelator(t, activityRepo, broadcaster)

		stored := &domain.ActivityEvent{ID: 1, AgentID: agent.ID, Kind: domain.KindTicketTaken}
		activityRepo.On("InsertTicketTaken", ctx, mock.MatchedBy(func(e *domain.ActivityEvent) bool {
			return e.Kind == domain.KindTicketTaken &&
				e.AgentID == agent.ID &&
				e.MessageKey == "1700000000.000100" &&
				e.Shift == domain.ShiftMorning &&
				e.ActivityDate == "2025-03-10"
		})).Return(stored, false, nil)
		broadcaster.On("Broadcast", domain.FeedEvent{Type: domain.FeedActivityRecorded, Activity: stored}).Return(nil)

		got, err := svc.RecordTicketTaken(ctx, params)

		require.NoError(t, err)
		assert.Equal(t, stored, got)
		broadcaster.AssertExpectations(t)
	})

	t.Run("deduplicated delivery does not broadcast", func(t *testing.T) {
		activityRepo := mocks.NewMockActivityRepository()
		broadcaster := mocks.NewMockEventBroadcaster()
		svc := newTestCorrelator(t, activityRepo, broadcaster)

		existing := &domain.ActivityEvent{ID: 1, AgentID: agent.ID, Kind: domain.KindTicketTaken}
		activityRepo.On("InsertTicketTaken", ctx, mock.Anything).Return(existing, true, nil)

		got, err := svc.RecordTicketTaken(ctx, params)

		require.NoError(t, err)
		assert.Equal(t, existing, got)
		broadcaster.AssertNotCalled(t, "Broadcast", mock.Anything)
	})

	t.Run("rejects an agent without a bound external id", func(t *testing.T) {
		activityRepo := mocks.NewMockActivityRepository()
		svc := newTestCorrelator(t, activityRepo, nil)

		unbound := *agent
		unbound.ExternalUserID = nil

		badParams := params
		badParams.Agent = &unbound

		got, err := svc.RecordTicketTaken(ctx, badParams)

		assert.Nil(t, got)
		assert.ErrorIs(t, err, apperrors.ErrAgentRequired)
		activityRepo.AssertNotCalled(t, "InsertTicketTaken", mock.Anything, mock.Anything)
	})
}

func TestActivityCorrelatorService_RecordMessage(t *testing.T) {
	ctx := context.Background()
	agent := testAgent()
	replyAt := time.Date(2025, 3, 10, 10, 3, 0, 0, time.UTC)

	replyParams := ports.RecordMessageParams{
		Agent:         agent,
		ChannelID:     "C123",
		ThreadKey:     "1700000000.000100",
		MessageKey:    "1700000180.000200",
		OccurredAt:    replyAt,
		IsThreadReply: true,
	}

	t.Run("thread reply is recorded and matched", func(t *testing.T) {
		activityRepo := mocks.NewMockActivityRepository()
		broadcaster := mocks.NewMockEventBroadcaster()
		svc := newTestCorrelator(t, activityRepo, broadcaster)

		storedReply := &domain.ActivityEvent{ID: 2, AgentID: agent.ID, Kind: domain.KindThreadReply}
		responseTime := int64(180)
		matched := &domain.ActivityEvent{ID: 1, AgentID: agent.ID, Kind: domain.KindTicketTaken, ThreadKey: replyParams.ThreadKey, MatchedReplyAt: &replyAt, ResponseTimeSeconds: &responseTime}

		activityRepo.On("InsertMessage", ctx, mock.MatchedBy(func(e *domain.ActivityEvent) bool {
			return e.Kind == domain.KindThreadReply && e.ThreadKey == replyParams.ThreadKey
		})).Return(storedReply, nil)
		activityRepo.On("MatchOpenTicket", ctx, ports.MatchOpenTicketParams{
			AgentID:   agent.ID,
			ThreadKey: replyParams.ThreadKey,
			ReplyAt:   replyAt,
		}).Return(matched, nil)
		broadcaster.On("Broadcast", domain.FeedEvent{Type: domain.FeedActivityRecorded, Activity: storedReply}).Return(nil)
		broadcaster.On("Broadcast", domain.FeedEvent{Type: domain.FeedTicketMatched, Activity: matched}).Return(nil)

		got, err := svc.RecordMessage(ctx, replyParams)

		require.NoError(t, err)
		assert.Equal(t, storedReply, got)
		activityRepo.AssertExpectations(t)
		broadcaster.AssertExpectations(t)
	})

	t.Run("reply with no open ticket is still recorded", func(t *testing.T) {
		activityRepo := mocks.NewMockActivityRepository()
		broadcaster := mocks.NewMockEventBroadcaster()
		svc := newTestCorrelator(t, activityRepo, broadcaster)

		storedReply := &domain.ActivityEvent{ID: 2, AgentID: agent.ID, Kind: domain.KindThreadReply}
		activityRepo.On("InsertMessage", ctx, mock.Anything).Return(storedReply, nil)
		activityRepo.On("MatchOpenTicket", ctx, mock.Anything).Return(nil, apperrors.ErrNoOpenTicket)
		broadcaster.On("Broadcast", domain.FeedEvent{Type: domain.FeedActivityRecorded, Activity: storedReply}).Return(nil)

		got, err := svc.RecordMessage(ctx, replyParams)

		require.NoError(t, err)
		assert.Equal(t, storedReply, got)
		broadcaster.AssertNumberOfCalls(t, "Broadcast", 1)
	})

	t.Run("top-level message skips matching", func(t *testing.T) {
		activityRepo := mocks.NewMockActivityRepository()
		broadcaster := mocks.NewMockEventBroadcaster()
		svc := newTestCorrelator(t, activityRepo, broadcaster)

		topLevel := replyParams
		topLevel.IsThreadReply = false
		topLevel.ThreadKey = topLevel.MessageKey

		stored := &domain.ActivityEvent{ID: 3, AgentID: agent.ID, Kind: domain.KindMessageSent}
		activityRepo.On("InsertMessage", ctx, mock.MatchedBy(func(e *domain.ActivityEvent) bool {
			return e.Kind == domain.KindMessageSent
		})).Return(stored, nil)
		broadcaster.On("Broadcast", mock.Anything).Return(nil)

		got, err := svc.RecordMessage(ctx, topLevel)

		require.NoError(t, err)
		assert.Equal(t, stored, got)
		activityRepo.AssertNotCalled(t, "MatchOpenTicket", mock.Anything, mock.Anything)
	})

	t.Run("match failure does not fail the record", func(t *testing.T) {
		activityRepo := mocks.NewMockActivityRepository()
		broadcaster := mocks.NewMockEventBroadcaster()
		svc := newTestCorrelator(t, activityRepo, broadcaster)

		storedReply := &domain.ActivityEvent{ID: 2, AgentID: agent.ID, Kind: domain.KindThreadReply}
		activityRepo.On("InsertMessage", ctx, mock.Anything).Return(storedReply, nil)
		activityRepo.On("MatchOpenTicket", ctx, mock.Anything).Return(nil, assert.AnError)
		broadcaster.On("Broadcast", mock.Anything).Return(nil)

		got, err := svc.RecordMessage(ctx, replyParams)

		require.NoError(t, err)
		assert.Equal(t, storedReply, got)
	})
}
