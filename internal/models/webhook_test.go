package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attemptNumber int
		want          time.Duration
	}{
		{1, 0},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{4, 8 * time.Minute},
		{5, 16 * time.Minute},
	}

	for _, tt := range tests {
		if got := RetryDelay(tt.attemptNumber); got != tt.want {
			t.Errorf("RetryDelay(%d) = %v, want %v", tt.attemptNumber, got, tt.want)
		}
	}
}

func TestNewDeliveryAttemptIsChainRoot(t *testing.T) {
	subID := uuid.New()
	botID := uuid.New()
	payload := json.RawMessage(`{"bot_id":"x"}`)

	a := NewDeliveryAttempt(subID, &botID, TriggerBotStateChange, payload)

	if a.RootAttemptID != a.ID {
		t.Errorf("first attempt should be its own chain root, got root %s for id %s", a.RootAttemptID, a.ID)
	}
	if a.AttemptNumber != 1 {
		t.Errorf("first attempt number = %d, want 1", a.AttemptNumber)
	}
	if a.Status != DeliveryStatusPending {
		t.Errorf("first attempt status = %q, want pending", a.Status)
	}
	if a.NextRetryAt != nil {
		t.Error("first attempt should be eligible immediately")
	}
}

func TestNextAttemptChaining(t *testing.T) {
	subID := uuid.New()
	now := time.Now()
	a := NewDeliveryAttempt(subID, nil, TriggerBotStateChange, json.RawMessage(`{}`))

	next := a.NextAttempt(now)
	if next == nil {
		t.Fatal("attempt 1 failure should chain a retry")
	}
	if next.AttemptNumber != 2 {
		t.Errorf("retry attempt number = %d, want 2", next.AttemptNumber)
	}
	if next.RootAttemptID != a.ID {
		t.Error("retry should stay in the original chain")
	}
	if next.Status != DeliveryStatusPending {
		t.Errorf("retry status = %q, want pending", next.Status)
	}
	if next.NextRetryAt == nil {
		t.Fatal("retry should carry an eligibility time")
	}
	if got := next.NextRetryAt.Sub(now); got != 2*time.Minute {
		t.Errorf("attempt 2 eligible after %v, want 2m", got)
	}
	if string(next.Payload) != string(a.Payload) {
		t.Error("retry must reuse the original payload bytes")
	}
}

func TestNextAttemptExhaustsAtMax(t *testing.T) {
	a := NewDeliveryAttempt(uuid.New(), nil, TriggerBotStateChange, json.RawMessage(`{}`))
	a.AttemptNumber = MaxDeliveryAttempts

	if next := a.NextAttempt(time.Now()); next != nil {
		t.Errorf("attempt %d failure should terminate the chain, got attempt %d", MaxDeliveryAttempts, next.AttemptNumber)
	}
}

func TestIsSubscribedTo(t *testing.T) {
	sub := &WebhookSubscription{
		IsActive:     true,
		TriggerTypes: []string{TriggerBotStateChange, TriggerTranscriptUpdate},
	}

	if !sub.IsSubscribedTo(TriggerBotStateChange) {
		t.Error("expected subscription to bot_state_change")
	}
	if sub.IsSubscribedTo(TriggerChatMessagesUpdate) {
		t.Error("unexpected subscription to chat_messages_update")
	}

	sub.IsActive = false
	if sub.IsSubscribedTo(TriggerBotStateChange) {
		t.Error("inactive subscription should match nothing")
	}
}
