package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Event types
const (
	EventBotStateChanged  = "bot_state_changed"
	EventWebhookDelivered = "webhook_delivered"
	EventCreditsChanged   = "credits_changed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// ProjectStream is the redis channel carrying a project's bot lifecycle
// events; websocket clients subscribe per project.
func ProjectStream(projectID uuid.UUID) string {
	return fmt.Sprintf("events:project:%s", projectID)
}
