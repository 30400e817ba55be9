package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meetingbots/backend/internal/models"
	"github.com/meetingbots/backend/internal/repositories"
	"go.uber.org/zap"
)

type fakeWebhookStore struct {
	subs     []models.WebhookSubscription
	secret   *models.WebhookSecret
	attempts []*models.WebhookDeliveryAttempt

	succeeded []uuid.UUID
	failed    map[uuid.UUID]string
}

func newFakeWebhookStore() *fakeWebhookStore {
	return &fakeWebhookStore{failed: map[uuid.UUID]string{}}
}

func (f *fakeWebhookStore) ListMatching(ctx context.Context, projectID uuid.UUID, botID *uuid.UUID, trigger string) ([]models.WebhookSubscription, error) {
	var out []models.WebhookSubscription
	for _, s := range f.subs {
		if s.IsSubscribedTo(trigger) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeWebhookStore) CreateAttempt(ctx context.Context, a *models.WebhookDeliveryAttempt) error {
	f.attempts = append(f.attempts, a)
	return nil
}

func (f *fakeWebhookStore) ClaimDue(ctx context.Context, limit int) ([]repositories.DueDelivery, error) {
	return nil, nil
}

func (f *fakeWebhookStore) MarkSuccess(ctx context.Context, id uuid.UUID, httpStatus int, responseBody string) error {
	f.succeeded = append(f.succeeded, id)
	return nil
}

func (f *fakeWebhookStore) MarkFailure(ctx context.Context, id uuid.UUID, httpStatus *int, responseBody *string, errMsg string) error {
	f.failed[id] = errMsg
	return nil
}

func (f *fakeWebhookStore) GetActiveSecret(ctx context.Context, projectID uuid.UUID) (*models.WebhookSecret, error) {
	if f.secret == nil {
		return nil, pgx.ErrNoRows
	}
	return f.secret, nil
}

type fakeDeliverer struct {
	outcome DeliveryOutcome
	calls   int
	lastURL string
}

func (d *fakeDeliverer) Deliver(ctx context.Context, url, secret, trigger string, payload []byte) DeliveryOutcome {
	d.calls++
	d.lastURL = url
	return d.outcome
}

func newWebhookService(store *fakeWebhookStore, d payloadDeliverer) *WebhookService {
	return NewWebhookService(store, d, 2, zap.NewNop())
}

func TestDispatchFansOutToMatchingSubscriptions(t *testing.T) {
	botID := uuid.New()
	store := newFakeWebhookStore()
	store.subs = []models.WebhookSubscription{
		{ID: uuid.New(), IsActive: true, TriggerTypes: []string{models.TriggerBotStateChange}},
		{ID: uuid.New(), IsActive: true, TriggerTypes: []string{models.TriggerTranscriptUpdate}},
		{ID: uuid.New(), IsActive: false, TriggerTypes: []string{models.TriggerBotStateChange}},
	}
	svc := newWebhookService(store, &fakeDeliverer{})

	payload := json.RawMessage(`{"bot_id":"bot_abc"}`)
	if err := svc.Dispatch(context.Background(), uuid.New(), &botID, models.TriggerBotStateChange, payload); err != nil {
		t.Fatal(err)
	}

	if len(store.attempts) != 1 {
		t.Fatalf("got %d attempts, want 1 (only the active matching subscription)", len(store.attempts))
	}
	a := store.attempts[0]
	if a.SubscriptionID != store.subs[0].ID {
		t.Error("attempt bound to wrong subscription")
	}
	if a.AttemptNumber != 1 || a.Status != models.DeliveryStatusPending {
		t.Errorf("first attempt = number %d status %q", a.AttemptNumber, a.Status)
	}
	if string(a.Payload) != string(payload) {
		t.Error("payload not captured at dispatch time")
	}
}

func TestFailedDeliveryEnqueuesRetry(t *testing.T) {
	store := newFakeWebhookStore()
	store.secret = &models.WebhookSecret{Secret: "s"}
	svc := newWebhookService(store, &fakeDeliverer{})

	a := models.NewDeliveryAttempt(uuid.New(), nil, models.TriggerBotStateChange, json.RawMessage(`{}`))
	status := 500
	body := "oops"
	before := time.Now().UTC()
	svc.recordFailure(context.Background(), *a, &status, &body, "")

	if _, ok := store.failed[a.ID]; !ok {
		t.Fatal("failed attempt not recorded")
	}
	if len(store.attempts) != 1 {
		t.Fatal("retry row not enqueued")
	}
	retry := store.attempts[0]
	if retry.AttemptNumber != 2 || retry.RootAttemptID != a.ID {
		t.Errorf("retry = attempt %d root %s, want attempt 2 root %s", retry.AttemptNumber, retry.RootAttemptID, a.ID)
	}
	if retry.NextRetryAt == nil {
		t.Fatal("retry missing eligibility time")
	}
	if d := retry.NextRetryAt.Sub(before); d < 2*time.Minute-time.Second || d > 2*time.Minute+time.Second {
		t.Errorf("retry eligible in %v, want about 2m", d)
	}
}

func TestExhaustedChainStops(t *testing.T) {
	store := newFakeWebhookStore()
	svc := newWebhookService(store, &fakeDeliverer{})

	a := models.NewDeliveryAttempt(uuid.New(), nil, models.TriggerBotStateChange, json.RawMessage(`{}`))
	a.AttemptNumber = models.MaxDeliveryAttempts
	svc.recordFailure(context.Background(), *a, nil, nil, "connection refused")

	if len(store.attempts) != 0 {
		t.Errorf("attempt %d failure enqueued a retry", models.MaxDeliveryAttempts)
	}
}

func TestDeliverOneSuccess(t *testing.T) {
	store := newFakeWebhookStore()
	store.secret = &models.WebhookSecret{Secret: "s"}
	d := &fakeDeliverer{outcome: DeliveryOutcome{StatusCode: 200, Body: "ok"}}
	svc := newWebhookService(store, d)

	a := models.NewDeliveryAttempt(uuid.New(), nil, models.TriggerBotStateChange, json.RawMessage(`{}`))
	svc.deliverOne(context.Background(), repositories.DueDelivery{Attempt: *a, URL: "https://example.com/hook", ProjectID: uuid.New()})

	if d.calls != 1 || d.lastURL != "https://example.com/hook" {
		t.Errorf("deliverer called %d times, url %q", d.calls, d.lastURL)
	}
	if len(store.succeeded) != 1 || store.succeeded[0] != a.ID {
		t.Error("success not recorded")
	}
	if len(store.attempts) != 0 {
		t.Error("success should not enqueue a retry")
	}
}

func TestDeliverOneTransportErrorChainsRetry(t *testing.T) {
	store := newFakeWebhookStore()
	store.secret = &models.WebhookSecret{Secret: "s"}
	d := &fakeDeliverer{outcome: DeliveryOutcome{Err: errors.New("connection refused")}}
	svc := newWebhookService(store, d)

	a := models.NewDeliveryAttempt(uuid.New(), nil, models.TriggerBotStateChange, json.RawMessage(`{}`))
	svc.deliverOne(context.Background(), repositories.DueDelivery{Attempt: *a, URL: "https://example.com/hook", ProjectID: uuid.New()})

	if msg := store.failed[a.ID]; msg != "connection refused" {
		t.Errorf("error message = %q", msg)
	}
	if len(store.attempts) != 1 || store.attempts[0].AttemptNumber != 2 {
		t.Error("transport failure should chain attempt 2")
	}
}

func TestDeliverOneWithoutSecretFails(t *testing.T) {
	store := newFakeWebhookStore()
	d := &fakeDeliverer{}
	svc := newWebhookService(store, d)

	a := models.NewDeliveryAttempt(uuid.New(), nil, models.TriggerBotStateChange, json.RawMessage(`{}`))
	svc.deliverOne(context.Background(), repositories.DueDelivery{Attempt: *a, URL: "https://example.com/hook", ProjectID: uuid.New()})

	if d.calls != 0 {
		t.Error("no POST should happen without a signing secret")
	}
	if _, ok := store.failed[a.ID]; !ok {
		t.Error("missing secret should record a failed attempt")
	}
}
