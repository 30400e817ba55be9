package dto

import "time"

type CreateBotRequest struct {
	ProjectID   string         `json:"project_id"`
	Name        string         `json:"name"`
	MeetingURL  string         `json:"meeting_url"`
	MeetingUUID *string        `json:"meeting_uuid,omitempty"`
	JoinAt      *time.Time     `json:"join_at,omitempty"` // set => bot starts in scheduled
	Settings    map[string]any `json:"settings,omitempty"`
}

// ReportEventRequest is the internal event ingestion body posted by runtime
// infrastructure on behalf of a bot.
type ReportEventRequest struct {
	EventType    string         `json:"event_type"`
	EventSubType *string        `json:"event_sub_type,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type HeartbeatRequest struct {
	Timestamp int64 `json:"timestamp,omitempty"` // unix seconds, 0 => server time
}

type CreateSubscriptionRequest struct {
	ProjectID    string   `json:"project_id"`
	BotID        *string  `json:"bot_id,omitempty"` // nil => project-wide
	URL          string   `json:"url"`
	TriggerTypes []string `json:"trigger_types"`
}

type AddCreditsRequest struct {
	Centicredits     int64  `json:"centicredits"`
	PaymentReference string `json:"payment_reference"`
}

type CreateAdjustmentRequest struct {
	Centicredits        int64  `json:"centicredits"`
	ParentTransactionID string `json:"parent_transaction_id"`
	Description         string `json:"description"`
}
