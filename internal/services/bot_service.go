package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/meetingbots/backend/internal/events"
	"github.com/meetingbots/backend/internal/models"
	"go.uber.org/zap"
)

// botStore is the persistence surface BotService drives. *repositories.BotRepo
// satisfies it.
type botStore interface {
	Create(ctx context.Context, b *models.Bot) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bot, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, state *string, limit, offset int) ([]models.Bot, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	UpdateHeartbeat(ctx context.Context, id uuid.UUID, ts int64) error
	ApplyTransition(ctx context.Context, botID uuid.UUID, eventType string, subType *string, metadata map[string]any) (*models.Bot, *models.BotEvent, error)
	ListEvents(ctx context.Context, botID uuid.UUID, limit int) ([]models.BotEvent, error)
	ListStale(ctx context.Context, cutoff int64, limit int) ([]models.Bot, error)
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]models.Bot, error)
}

type projectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

type botBiller interface {
	CheckCanLaunch(ctx context.Context, orgID uuid.UUID) error
	FinalizeBot(ctx context.Context, bot *models.Bot) error
}

type webhookDispatcher interface {
	Dispatch(ctx context.Context, projectID uuid.UUID, botID *uuid.UUID, trigger string, payload json.RawMessage) error
}

// BotService orchestrates the bot lifecycle: every state change goes through
// ApplyEvent, which validates the edge, persists it, and fans it out to redis
// subscribers and webhook subscriptions.
type BotService struct {
	bots      botStore
	projects  projectStore
	billing   botBiller
	webhooks  webhookDispatcher
	publisher events.Publisher
	log       *zap.Logger
}

func NewBotService(
	bots botStore,
	projects projectStore,
	billing botBiller,
	webhooks webhookDispatcher,
	publisher events.Publisher,
	log *zap.Logger,
) *BotService {
	return &BotService{
		bots:      bots,
		projects:  projects,
		billing:   billing,
		webhooks:  webhooks,
		publisher: publisher,
		log:       log,
	}
}

// CreateBot registers a bot in READY, or SCHEDULED when a join time is given.
func (s *BotService) CreateBot(ctx context.Context, projectID uuid.UUID, name, meetingURL string, meetingUUID *string, joinAt *time.Time, settings map[string]any) (*models.Bot, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}

	state := models.BotStateReady
	if joinAt != nil {
		state = models.BotStateScheduled
	}
	bot := &models.Bot{
		ProjectID:   projectID,
		Name:        name,
		MeetingURL:  meetingURL,
		MeetingUUID: meetingUUID,
		State:       state,
		Settings:    settings,
		JoinAt:      joinAt,
	}
	if err := s.bots.Create(ctx, bot); err != nil {
		return nil, err
	}
	return bot, nil
}

func (s *BotService) GetBot(ctx context.Context, id uuid.UUID) (*models.Bot, error) {
	return s.bots.GetByID(ctx, id)
}

func (s *BotService) ListBots(ctx context.Context, projectID uuid.UUID, state *string, limit, offset int) ([]models.Bot, error) {
	return s.bots.ListByProject(ctx, projectID, state, limit, offset)
}

func (s *BotService) DeleteBot(ctx context.Context, id uuid.UUID) error {
	return s.bots.SoftDelete(ctx, id)
}

func (s *BotService) ListEvents(ctx context.Context, botID uuid.UUID, limit int) ([]models.BotEvent, error) {
	return s.bots.ListEvents(ctx, botID, limit)
}

// ApplyEvent runs one state machine edge and fans the resulting event out.
// The transition and its event row commit atomically before any fan-out, so a
// failed webhook enqueue never rolls back a state change.
func (s *BotService) ApplyEvent(ctx context.Context, botID uuid.UUID, eventType string, subType *string, metadata map[string]any) (*models.Bot, error) {
	bot, event, err := s.bots.ApplyTransition(ctx, botID, eventType, subType, metadata)
	if err != nil {
		return nil, err
	}

	s.log.Info("bot state changed",
		zap.String("bot_id", bot.ID.String()),
		zap.String("old_state", event.OldState),
		zap.String("new_state", event.NewState),
		zap.String("event_type", eventType))

	_ = s.publisher.Publish(ctx, events.ProjectStream(bot.ProjectID), events.Event{
		Type: events.EventBotStateChanged,
		Payload: map[string]any{
			"bot_id":    bot.ID.String(),
			"old_state": event.OldState,
			"new_state": event.NewState,
		},
	})

	payload, err := json.Marshal(map[string]any{
		"bot_id":         bot.ObjectID,
		"old_state":      event.OldState,
		"new_state":      event.NewState,
		"event_type":     event.EventType,
		"event_sub_type": event.EventSubType,
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err == nil {
		if derr := s.webhooks.Dispatch(ctx, bot.ProjectID, &bot.ID, models.TriggerForEvent(eventType), payload); derr != nil {
			s.log.Error("failed to dispatch webhooks for state change",
				zap.String("bot_id", bot.ID.String()), zap.Error(derr))
		}
	}

	if models.IsTerminalRuntimeState(bot.State) {
		if berr := s.billing.FinalizeBot(ctx, bot); berr != nil {
			s.log.Error("failed to bill finished bot, sweep will retry",
				zap.String("bot_id", bot.ID.String()), zap.Error(berr))
		}
	}
	return bot, nil
}

// RequestJoin launches the bot after the credit pre-flight check.
func (s *BotService) RequestJoin(ctx context.Context, botID uuid.UUID) (*models.Bot, error) {
	bot, err := s.bots.GetByID(ctx, botID)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.GetByID(ctx, bot.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := s.billing.CheckCanLaunch(ctx, project.OrganizationID); err != nil {
		return nil, err
	}
	return s.ApplyEvent(ctx, botID, models.EventJoinRequested, nil, nil)
}

func (s *BotService) RequestLeave(ctx context.Context, botID uuid.UUID) (*models.Bot, error) {
	subType := models.SubTypeLeaveRequestedUser
	return s.ApplyEvent(ctx, botID, models.EventLeaveRequested, &subType, nil)
}

func (s *BotService) StartRecording(ctx context.Context, botID uuid.UUID) (*models.Bot, error) {
	return s.ApplyEvent(ctx, botID, models.EventRecordingPermissionGranted, nil, nil)
}

func (s *BotService) PauseRecording(ctx context.Context, botID uuid.UUID) (*models.Bot, error) {
	return s.ApplyEvent(ctx, botID, models.EventRecordingPaused, nil, nil)
}

func (s *BotService) ResumeRecording(ctx context.Context, botID uuid.UUID) (*models.Bot, error) {
	return s.ApplyEvent(ctx, botID, models.EventRecordingResumed, nil, nil)
}

// Heartbeat records bot liveness. Not a state machine event.
func (s *BotService) Heartbeat(ctx context.Context, botID uuid.UUID, ts int64) error {
	if ts <= 0 {
		ts = time.Now().Unix()
	}
	return s.bots.UpdateHeartbeat(ctx, botID, ts)
}

// PromoteScheduled launches SCHEDULED bots whose join time has passed. A bot
// whose organization ran out of credits is failed with the out-of-credits
// sub-type instead of being retried forever.
func (s *BotService) PromoteScheduled(ctx context.Context, limit int) (int, error) {
	due, err := s.bots.ListDueScheduled(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, err
	}
	for i := range due {
		bot := &due[i]
		if _, err := s.RequestJoin(ctx, bot.ID); err != nil {
			if errors.Is(err, models.ErrInsufficientCredits) {
				subType := models.SubTypeFatalErrorOutOfCredits
				if _, ferr := s.ApplyEvent(ctx, bot.ID, models.EventFatalError, &subType, nil); ferr != nil {
					s.log.Error("failed to fail out-of-credits bot",
						zap.String("bot_id", bot.ID.String()), zap.Error(ferr))
				}
				continue
			}
			s.log.Error("failed to promote scheduled bot",
				zap.String("bot_id", bot.ID.String()), zap.Error(err))
		}
	}
	return len(due), nil
}

// WatchdogSweep fails active bots that stopped heartbeating. Returns how many
// bots were failed.
func (s *BotService) WatchdogSweep(ctx context.Context, heartbeatTimeout int64, limit int) (int, error) {
	cutoff := time.Now().Unix() - heartbeatTimeout
	stale, err := s.bots.ListStale(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	failed := 0
	for i := range stale {
		bot := &stale[i]
		subType := models.SubTypeFatalErrorHeartbeatTimeout
		if _, err := s.ApplyEvent(ctx, bot.ID, models.EventFatalError, &subType, map[string]any{
			"last_heartbeat_ts": bot.LastHeartbeatTS,
		}); err != nil {
			s.log.Error("failed to fail stale bot",
				zap.String("bot_id", bot.ID.String()), zap.Error(err))
			continue
		}
		failed++
	}
	return failed, nil
}
