package models

import "testing"

func TestNextState(t *testing.T) {
	tests := []struct {
		state string
		event string
		want  string
		ok    bool
	}{
		// Join path
		{BotStateReady, EventJoinRequested, BotStateJoining, true},
		{BotStateScheduled, EventJoinRequested, BotStateJoining, true},
		{BotStateReady, EventStaged, BotStateStaged, true},
		{BotStateScheduled, EventStaged, BotStateStaged, true},
		{BotStateStaged, EventJoinRequested, BotStateJoining, true},
		{BotStateJoining, EventBotPutInWaitingRoom, BotStateWaitingRoom, true},
		{BotStateJoining, EventBotJoinedMeeting, BotStateJoinedNotRecording, true},
		{BotStateWaitingRoom, EventBotJoinedMeeting, BotStateJoinedNotRecording, true},

		// Recording controls
		{BotStateJoinedNotRecording, EventRecordingPermissionGranted, BotStateJoinedRecording, true},
		{BotStateJoinedRecording, EventRecordingPaused, BotStateJoinedRecordingPaused, true},
		{BotStateJoinedRecordingPaused, EventRecordingResumed, BotStateJoinedRecording, true},

		// Leave / end
		{BotStateJoining, EventLeaveRequested, BotStateLeaving, true},
		{BotStateWaitingRoom, EventLeaveRequested, BotStateLeaving, true},
		{BotStateJoinedNotRecording, EventLeaveRequested, BotStateLeaving, true},
		{BotStateJoinedRecording, EventLeaveRequested, BotStateLeaving, true},
		{BotStateJoinedRecordingPaused, EventLeaveRequested, BotStateLeaving, true},
		{BotStateLeaving, EventMeetingEnded, BotStateEnded, true},
		{BotStateLeaving, EventBotLeftMeeting, BotStateEnded, true},
		{BotStateJoinedRecording, EventMeetingEnded, BotStateEnded, true},

		// Failure paths
		{BotStateJoining, EventCouldNotJoin, BotStateFatalError, true},
		{BotStateWaitingRoom, EventCouldNotJoin, BotStateFatalError, true},
		{BotStateReady, EventFatalError, BotStateFatalError, true},
		{BotStateJoinedRecording, EventFatalError, BotStateFatalError, true},
		{BotStateEnded, EventFatalError, BotStateFatalError, true},
		{BotStateFatalError, EventFatalError, BotStateFatalError, true},

		// Post-run
		{BotStateEnded, EventPostProcessing, BotStatePostProcessing, true},
		{BotStatePostProcessing, EventDataDeleted, BotStateDataDeleted, true},
		{BotStateFatalError, EventDataDeleted, BotStateDataDeleted, true},

		// Invalid edges
		{BotStateReady, EventBotJoinedMeeting, "", false},
		{BotStateReady, EventLeaveRequested, "", false},
		{BotStateEnded, EventJoinRequested, "", false},
		{BotStateJoinedNotRecording, EventRecordingPaused, "", false},
		{BotStateJoinedRecording, EventRecordingPermissionGranted, "", false},
		{BotStateDataDeleted, EventFatalError, "", false},
		{BotStateDataDeleted, EventJoinRequested, "", false},
		{BotStateLeaving, EventJoinRequested, "", false},
		{"nonexistent", EventJoinRequested, "", false},
		{BotStateReady, "nonexistent", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.state+"+"+tt.event, func(t *testing.T) {
			got, ok := NextState(tt.state, tt.event)
			if ok != tt.ok || got != tt.want {
				t.Errorf("NextState(%q, %q) = (%q, %v), want (%q, %v)", tt.state, tt.event, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestAllStatesHaveTransitionEntry(t *testing.T) {
	allStates := []string{
		BotStateReady, BotStateScheduled, BotStateStaged, BotStateJoining,
		BotStateWaitingRoom, BotStateJoinedNotRecording, BotStateJoinedRecording,
		BotStateJoinedRecordingPaused, BotStateLeaving, BotStatePostProcessing,
		BotStateEnded, BotStateFatalError, BotStateDataDeleted,
	}

	for _, state := range allStates {
		if _, ok := botTransitions[state]; !ok {
			t.Errorf("state %q missing from botTransitions map", state)
		}
	}
}

func TestDataDeletedIsTerminal(t *testing.T) {
	if edges := botTransitions[BotStateDataDeleted]; len(edges) != 0 {
		t.Errorf("data_deleted should have no outgoing edges, got %v", edges)
	}
}

func TestEveryEdgeTargetsKnownState(t *testing.T) {
	for state, edges := range botTransitions {
		for event, next := range edges {
			if _, ok := botTransitions[next]; !ok {
				t.Errorf("edge (%s, %s) targets unknown state %q", state, event, next)
			}
		}
	}
}

func TestIsActiveState(t *testing.T) {
	active := []string{
		BotStateJoining, BotStateWaitingRoom, BotStateJoinedNotRecording,
		BotStateJoinedRecording, BotStateJoinedRecordingPaused,
	}
	inactive := []string{
		BotStateReady, BotStateScheduled, BotStateStaged, BotStateLeaving,
		BotStatePostProcessing, BotStateEnded, BotStateFatalError, BotStateDataDeleted,
	}
	for _, s := range active {
		if !IsActiveState(s) {
			t.Errorf("IsActiveState(%q) = false, want true", s)
		}
	}
	for _, s := range inactive {
		if IsActiveState(s) {
			t.Errorf("IsActiveState(%q) = true, want false", s)
		}
	}
}

func TestNewObjectID(t *testing.T) {
	id := NewObjectID("bot")
	if len(id) != len("bot_")+16 {
		t.Errorf("unexpected object id length: %q", id)
	}
	if id[:4] != "bot_" {
		t.Errorf("object id missing prefix: %q", id)
	}
	if NewObjectID("bot") == id {
		t.Error("object ids should not repeat")
	}
}
