package domain

import "testing"

func TestTaskStateTransitions(t *testing.T) {
	cases := []struct {
		from, to TaskState
		ok       bool
	}{
		{TaskStateSubmitted, TaskStateWorking, true},
		{TaskStateSubmitted, TaskStateCompleted, true},
		{TaskStateSubmitted, TaskStateFailed, true},
		{TaskStateWorking, TaskStateWorking, true},
		{TaskStateWorking, TaskStateCompleted, true},
		{TaskStateWorking, TaskStateFailed, true},
		{TaskStateWorking, TaskStateSubmitted, false},
		{TaskStateCompleted, TaskStateWorking, false},
		{TaskStateCompleted, TaskStateFailed, false},
		{TaskStateFailed, TaskStateWorking, false},
		{TaskStateFailed, TaskStateCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestTaskStateIsFinal(t *testing.T) {
	for state, want := range map[TaskState]bool{
		TaskStateSubmitted: false,
		TaskStateWorking:   false,
		TaskStateCompleted: true,
		TaskStateFailed:    true,
	} {
		if got := state.IsFinal(); got != want {
			t.Errorf("%s.IsFinal() = %v, want %v", state, got, want)
		}
	}
}

func TestMessageTypeIsError(t *testing.T) {
	for typ, want := range map[MessageType]bool{
		MessageTypeComponentSyntaxError:   true,
		MessageType("RENDER_HOST_ERROR"):  true,
		MessageTypeCreateVideoRequest:     false,
		MessageTypeComponentBuildSuccess:  false,
		MessageType("ERROR_REPORT_READY"): false,
	} {
		if got := typ.IsError(); got != want {
			t.Errorf("%s.IsError() = %v, want %v", typ, got, want)
		}
	}
}

func TestHumanMessageText(t *testing.T) {
	var nilMsg *HumanMessage
	if got := nilMsg.Text(); got != "" {
		t.Errorf("nil message text = %q", got)
	}
	msg := TextMessage("hello world")
	if got := msg.Text(); got != "hello world" {
		t.Errorf("text = %q", got)
	}
}
