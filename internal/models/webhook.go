package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Webhook trigger types a subscription can opt into.
const (
	TriggerBotStateChange       = "bot_state_change"
	TriggerTranscriptUpdate     = "transcript_update"
	TriggerChatMessagesUpdate   = "chat_messages_update"
	TriggerParticipantJoinLeave = "participant_events_join_leave"
)

// Delivery attempt statuses
const (
	DeliveryStatusPending = "pending"
	DeliveryStatusSuccess = "success"
	DeliveryStatusFailure = "failure"
)

// MaxDeliveryAttempts bounds a delivery chain; the 5th failure is terminal.
const MaxDeliveryAttempts = 5

// TriggerForEvent maps a bot event type to the trigger its transition raises.
// Every edge in the transition table is a state change.
func TriggerForEvent(eventType string) string {
	return TriggerBotStateChange
}

// RetryDelay returns how long the attempt with the given number waits after the
// previous failure: 2^(n-1) minutes, so attempts 2..5 wait 2, 4, 8, 16 minutes.
// Attempt 1 is eligible immediately.
func RetryDelay(attemptNumber int) time.Duration {
	if attemptNumber <= 1 {
		return 0
	}
	return time.Duration(1<<(attemptNumber-1)) * time.Minute
}

type WebhookSecret struct {
	ID        uuid.UUID `json:"id"`
	ObjectID  string    `json:"object_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Secret    string    `json:"-"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type WebhookSubscription struct {
	ID           uuid.UUID  `json:"id"`
	ObjectID     string     `json:"object_id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	BotID        *uuid.UUID `json:"bot_id,omitempty"` // nil = project-wide
	URL          string     `json:"url"`
	TriggerTypes []string   `json:"trigger_types"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (s *WebhookSubscription) IsSubscribedTo(trigger string) bool {
	if !s.IsActive {
		return false
	}
	for _, t := range s.TriggerTypes {
		if t == trigger {
			return true
		}
	}
	return false
}

// WebhookDeliveryAttempt is one delivery try. Retries are new rows sharing
// RootAttemptID with increasing AttemptNumber; rows are never mutated back to
// pending.
type WebhookDeliveryAttempt struct {
	ID             uuid.UUID       `json:"id"`
	ObjectID       string          `json:"object_id"`
	SubscriptionID uuid.UUID       `json:"webhook_subscription_id"`
	BotID          *uuid.UUID      `json:"bot_id,omitempty"`
	RootAttemptID  uuid.UUID       `json:"root_attempt_id"`
	TriggerType    string          `json:"trigger_type"`
	Status         string          `json:"status"`
	Payload        json.RawMessage `json:"payload"`
	AttemptNumber  int             `json:"attempt_number"`
	HTTPStatusCode *int            `json:"http_status_code,omitempty"`
	ResponseBody   *string         `json:"response_body,omitempty"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	NextRetryAt    *time.Time      `json:"next_retry_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewDeliveryAttempt builds the first attempt of a chain. The row is its own
// chain root.
func NewDeliveryAttempt(subscriptionID uuid.UUID, botID *uuid.UUID, trigger string, payload json.RawMessage) *WebhookDeliveryAttempt {
	id := uuid.New()
	return &WebhookDeliveryAttempt{
		ID:             id,
		ObjectID:       NewObjectID("wda"),
		SubscriptionID: subscriptionID,
		BotID:          botID,
		RootAttemptID:  id,
		TriggerType:    trigger,
		Status:         DeliveryStatusPending,
		Payload:        payload,
		AttemptNumber:  1,
	}
}

// NextAttempt builds the follow-up row after this attempt failed. Returns nil
// when the chain is exhausted.
func (a *WebhookDeliveryAttempt) NextAttempt(now time.Time) *WebhookDeliveryAttempt {
	if a.AttemptNumber >= MaxDeliveryAttempts {
		return nil
	}
	n := a.AttemptNumber + 1
	retryAt := now.Add(RetryDelay(n))
	return &WebhookDeliveryAttempt{
		ID:             uuid.New(),
		ObjectID:       NewObjectID("wda"),
		SubscriptionID: a.SubscriptionID,
		BotID:          a.BotID,
		RootAttemptID:  a.RootAttemptID,
		TriggerType:    a.TriggerType,
		Status:         DeliveryStatusPending,
		Payload:        a.Payload,
		AttemptNumber:  n,
		NextRetryAt:    &retryAt,
	}
}
