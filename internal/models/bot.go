package models

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Bot states
const (
	BotStateReady                 = "ready"
	BotStateScheduled             = "scheduled"
	BotStateStaged                = "staged"
	BotStateJoining               = "joining"
	BotStateWaitingRoom           = "waiting_room"
	BotStateJoinedNotRecording    = "joined_not_recording"
	BotStateJoinedRecording       = "joined_recording"
	BotStateJoinedRecordingPaused = "joined_recording_paused"
	BotStateLeaving               = "leaving"
	BotStatePostProcessing        = "post_processing"
	BotStateEnded                 = "ended"
	BotStateFatalError            = "fatal_error"
	BotStateDataDeleted           = "data_deleted"
)

// Bot event types
const (
	EventJoinRequested              = "join_requested"
	EventStaged                     = "staged"
	EventBotPutInWaitingRoom        = "bot_put_in_waiting_room"
	EventBotJoinedMeeting           = "bot_joined_meeting"
	EventCouldNotJoin               = "could_not_join"
	EventRecordingPermissionGranted = "bot_recording_permission_granted"
	EventRecordingPaused            = "recording_paused"
	EventRecordingResumed           = "recording_resumed"
	EventLeaveRequested             = "leave_requested"
	EventMeetingEnded               = "meeting_ended"
	EventBotLeftMeeting             = "bot_left_meeting"
	EventPostProcessing             = "post_processing"
	EventDataDeleted                = "data_deleted"
	EventFatalError                 = "fatal_error"
)

// Bot event sub-types
const (
	SubTypeCouldNotJoinMeetingNotStarted = "could_not_join_meeting_not_started"
	SubTypeCouldNotJoinAuthFailed        = "could_not_join_auth_failed"
	SubTypeFatalErrorProcessTerminated   = "fatal_error_process_terminated"
	SubTypeFatalErrorHeartbeatTimeout    = "fatal_error_heartbeat_timeout"
	SubTypeFatalErrorOutOfCredits        = "fatal_error_out_of_credits"
	SubTypeFatalErrorUIElementNotFound   = "fatal_error_ui_element_not_found"
	SubTypeLeaveRequestedUser            = "leave_requested_user"
	SubTypeLeaveRequestedAutoSilence     = "leave_requested_auto_silence"
)

// ErrInvalidTransition is returned when no edge exists from the bot's current
// state for the requested event. The failed transition has no side effects.
var ErrInvalidTransition = errors.New("invalid bot state transition")

// botTransitions is the full edge table: (current state, event type) -> new state.
var botTransitions = map[string]map[string]string{
	BotStateReady: {
		EventStaged:        BotStateStaged,
		EventJoinRequested: BotStateJoining,
		EventFatalError:    BotStateFatalError,
	},
	BotStateScheduled: {
		EventStaged:        BotStateStaged,
		EventJoinRequested: BotStateJoining,
		EventFatalError:    BotStateFatalError,
	},
	BotStateStaged: {
		EventJoinRequested: BotStateJoining,
		EventFatalError:    BotStateFatalError,
	},
	BotStateJoining: {
		EventBotPutInWaitingRoom: BotStateWaitingRoom,
		EventBotJoinedMeeting:    BotStateJoinedNotRecording,
		EventCouldNotJoin:        BotStateFatalError,
		EventLeaveRequested:      BotStateLeaving,
		EventFatalError:          BotStateFatalError,
	},
	BotStateWaitingRoom: {
		EventBotJoinedMeeting: BotStateJoinedNotRecording,
		EventCouldNotJoin:     BotStateFatalError,
		EventLeaveRequested:   BotStateLeaving,
		EventFatalError:       BotStateFatalError,
	},
	BotStateJoinedNotRecording: {
		EventRecordingPermissionGranted: BotStateJoinedRecording,
		EventLeaveRequested:             BotStateLeaving,
		EventMeetingEnded:               BotStateEnded,
		EventFatalError:                 BotStateFatalError,
	},
	BotStateJoinedRecording: {
		EventRecordingPaused: BotStateJoinedRecordingPaused,
		EventLeaveRequested:  BotStateLeaving,
		EventMeetingEnded:    BotStateEnded,
		EventFatalError:      BotStateFatalError,
	},
	BotStateJoinedRecordingPaused: {
		EventRecordingResumed: BotStateJoinedRecording,
		EventLeaveRequested:   BotStateLeaving,
		EventMeetingEnded:     BotStateEnded,
		EventFatalError:       BotStateFatalError,
	},
	BotStateLeaving: {
		EventMeetingEnded:   BotStateEnded,
		EventBotLeftMeeting: BotStateEnded,
		EventFatalError:     BotStateFatalError,
	},
	BotStateEnded: {
		EventPostProcessing: BotStatePostProcessing,
		EventFatalError:     BotStateFatalError,
	},
	BotStatePostProcessing: {
		EventDataDeleted: BotStateDataDeleted,
		EventFatalError:  BotStateFatalError,
	},
	BotStateFatalError: {
		EventDataDeleted: BotStateDataDeleted,
		EventFatalError:  BotStateFatalError,
	},
	BotStateDataDeleted: {},
}

// NextState looks up the edge table for (state, eventType).
func NextState(state, eventType string) (string, bool) {
	edges, ok := botTransitions[state]
	if !ok {
		return "", false
	}
	next, ok := edges[eventType]
	return next, ok
}

// IsActiveState reports whether a bot in this state is attached to a live meeting.
func IsActiveState(state string) bool {
	switch state {
	case BotStateJoining, BotStateWaitingRoom, BotStateJoinedNotRecording,
		BotStateJoinedRecording, BotStateJoinedRecordingPaused:
		return true
	}
	return false
}

// IsTerminalRuntimeState reports whether the bot's billable runtime is over.
func IsTerminalRuntimeState(state string) bool {
	return state == BotStateEnded || state == BotStateFatalError
}

type Bot struct {
	ID               uuid.UUID      `json:"id"`
	ObjectID         string         `json:"object_id"`
	ProjectID        uuid.UUID      `json:"project_id"`
	Name             string         `json:"name"`
	MeetingURL       string         `json:"meeting_url"`
	MeetingUUID      *string        `json:"meeting_uuid,omitempty"`
	State            string         `json:"state"`
	Settings         map[string]any `json:"settings,omitempty"`
	FirstHeartbeatTS *int64         `json:"first_heartbeat_timestamp,omitempty"`
	LastHeartbeatTS  *int64         `json:"last_heartbeat_timestamp,omitempty"`
	JoinAt           *time.Time     `json:"join_at,omitempty"`
	Billed           bool           `json:"-"`
	IsDeleted        bool           `json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (b *Bot) IsActive() bool {
	return IsActiveState(b.State) && !b.IsDeleted
}

type BotEvent struct {
	ID           uuid.UUID      `json:"id"`
	ObjectID     string         `json:"object_id"`
	BotID        uuid.UUID      `json:"bot_id"`
	OldState     string         `json:"old_state"`
	NewState     string         `json:"new_state"`
	EventType    string         `json:"event_type"`
	EventSubType *string        `json:"event_sub_type,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

const objectIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewObjectID returns a prefixed public identifier, e.g. "bot_x8Kq...".
func NewObjectID(prefix string) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = objectIDAlphabet[int(b[i])%len(objectIDAlphabet)]
	}
	return prefix + "_" + string(b)
}
