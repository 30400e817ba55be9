package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meetingbots/backend/internal/models"
	"github.com/meetingbots/backend/internal/repositories"
	"go.uber.org/zap"
)

const maxErrorMessageChars = 1000

// webhookStore is the persistence surface the delivery engine needs.
// *repositories.WebhookRepo satisfies it.
type webhookStore interface {
	ListMatching(ctx context.Context, projectID uuid.UUID, botID *uuid.UUID, trigger string) ([]models.WebhookSubscription, error)
	CreateAttempt(ctx context.Context, a *models.WebhookDeliveryAttempt) error
	ClaimDue(ctx context.Context, limit int) ([]repositories.DueDelivery, error)
	MarkSuccess(ctx context.Context, id uuid.UUID, httpStatus int, responseBody string) error
	MarkFailure(ctx context.Context, id uuid.UUID, httpStatus *int, responseBody *string, errMsg string) error
	GetActiveSecret(ctx context.Context, projectID uuid.UUID) (*models.WebhookSecret, error)
}

type payloadDeliverer interface {
	Deliver(ctx context.Context, url, secret, trigger string, payload []byte) DeliveryOutcome
}

// WebhookService fans bot events out to subscriptions and drives the retry
// chain. Enqueue and send are decoupled: Dispatch only writes pending rows,
// the worker picks them up via DeliverDue.
type WebhookService struct {
	store     webhookStore
	deliverer payloadDeliverer
	workers   int
	log       *zap.Logger
}

func NewWebhookService(store webhookStore, deliverer payloadDeliverer, workers int, log *zap.Logger) *WebhookService {
	if workers <= 0 {
		workers = 1
	}
	return &WebhookService{
		store:     store,
		deliverer: deliverer,
		workers:   workers,
		log:       log,
	}
}

// Dispatch writes one pending first attempt per matching subscription. All
// attempts share the payload bytes captured here; retries never rebuild them.
func (s *WebhookService) Dispatch(ctx context.Context, projectID uuid.UUID, botID *uuid.UUID, trigger string, payload json.RawMessage) error {
	subs, err := s.store.ListMatching(ctx, projectID, botID, trigger)
	if err != nil {
		return err
	}

	for i := range subs {
		sub := &subs[i]
		attempt := models.NewDeliveryAttempt(sub.ID, botID, trigger, payload)
		if err := s.store.CreateAttempt(ctx, attempt); err != nil {
			s.log.Error("failed to enqueue webhook delivery",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("trigger", trigger),
				zap.Error(err))
			return err
		}
	}
	return nil
}

// DeliverDue claims a batch of eligible attempts and delivers them with a
// bounded worker pool. Returns how many attempts were processed.
func (s *WebhookService) DeliverDue(ctx context.Context, batchSize int) (int, error) {
	due, err := s.store.ClaimDue(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i := range due {
		d := due[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.deliverOne(ctx, d)
		}()
	}
	wg.Wait()
	return len(due), nil
}

func (s *WebhookService) deliverOne(ctx context.Context, d repositories.DueDelivery) {
	a := d.Attempt

	secret, err := s.store.GetActiveSecret(ctx, d.ProjectID)
	if err != nil {
		msg := "no active webhook secret for project"
		if !errors.Is(err, pgx.ErrNoRows) {
			msg = truncate(err.Error(), maxErrorMessageChars)
		}
		s.recordFailure(ctx, a, nil, nil, msg)
		return
	}

	out := s.deliverer.Deliver(ctx, d.URL, secret.Secret, a.TriggerType, a.Payload)
	if out.Delivered() {
		if err := s.store.MarkSuccess(ctx, a.ID, out.StatusCode, out.Body); err != nil {
			s.log.Error("failed to record delivery success", zap.String("attempt_id", a.ID.String()), zap.Error(err))
		}
		return
	}

	if out.Err != nil {
		s.recordFailure(ctx, a, nil, nil, truncate(out.Err.Error(), maxErrorMessageChars))
		return
	}
	body := out.Body
	s.recordFailure(ctx, a, &out.StatusCode, &body, "")
}

// recordFailure finalizes the failed row and, while the chain has attempts
// left, enqueues the follow-up with its backoff delay.
func (s *WebhookService) recordFailure(ctx context.Context, a models.WebhookDeliveryAttempt, httpStatus *int, responseBody *string, errMsg string) {
	if err := s.store.MarkFailure(ctx, a.ID, httpStatus, responseBody, errMsg); err != nil {
		s.log.Error("failed to record delivery failure", zap.String("attempt_id", a.ID.String()), zap.Error(err))
		return
	}

	next := a.NextAttempt(time.Now().UTC())
	if next == nil {
		s.log.Warn("webhook delivery chain exhausted",
			zap.String("root_attempt_id", a.RootAttemptID.String()),
			zap.Int("attempts", a.AttemptNumber))
		return
	}
	if err := s.store.CreateAttempt(ctx, next); err != nil {
		s.log.Error("failed to enqueue webhook retry",
			zap.String("root_attempt_id", a.RootAttemptID.String()),
			zap.Int("attempt_number", next.AttemptNumber),
			zap.Error(err))
	}
}
