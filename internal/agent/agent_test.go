package agent

import (
	"context"
	"io"
	"log"
	"testing"

	"vidsmith/internal/domain"
	"vidsmith/internal/store/memory"
	"vidsmith/internal/task"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestTasks(t *testing.T, description string) (*task.Manager, domain.Task) {
	t.Helper()
	m := task.NewManager(memory.New(), discardLogger())
	created, err := m.Create(context.Background(), task.CreateInput{
		ProjectID:   "project-1",
		Description: description,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return m, created
}

func requestMessage(typ domain.MessageType, to string, payload any) domain.AgentMessage {
	return domain.AgentMessage{
		ID:      "msg-1",
		Type:    typ,
		To:      to,
		From:    "test",
		Payload: mustJSON(payload),
	}
}
