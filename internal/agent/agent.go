// Package agent contains the five cooperating pipeline agents: coordinator,
// scene planner, design-brief generator, builder and error fixer. Agents are
// stateless between calls; all shared mutable state lives behind the Tasks
// interface.
package agent

import (
	"context"
	"encoding/json"
	"time"

	"vidsmith/internal/domain"
)

const (
	CoordinatorName    = "coordinator"
	ScenePlannerName   = "scene-planner"
	BriefGeneratorName = "design-brief-generator"
	BuilderName        = "builder"
	ErrorFixerName     = "error-fixer"
)

// Tasks is the slice of the task manager available to agents. Agents never
// mutate task state directly; every write goes through these operations.
type Tasks interface {
	GetTask(ctx context.Context, taskID string) (domain.Task, error)
	UpdateStatus(ctx context.Context, taskID string, state domain.TaskState, message string, stage domain.StageLabel, artifacts ...domain.Artifact) (domain.Task, error)
	AddArtifact(ctx context.Context, taskID string, artifact domain.Artifact) (domain.Artifact, error)
	IncrementRepairAttempts(ctx context.Context, taskID string) (int, error)
	Fail(ctx context.Context, taskID string, reason string) error
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

func newMessage(from, to string, typ domain.MessageType, correlationID string, payload any, text string, artifacts ...domain.Artifact) *domain.AgentMessage {
	msg := &domain.AgentMessage{
		ID:        correlationID,
		Type:      typ,
		Payload:   mustJSON(payload),
		From:      from,
		To:        to,
		Artifacts: artifacts,
		CreatedAt: time.Now().UTC(),
	}
	if text != "" {
		msg.Message = domain.TextMessage(text)
	}
	return msg
}

func dataArtifact(name, description, mimeType string, payload any) domain.Artifact {
	return domain.Artifact{
		Kind:        domain.ArtifactKindData,
		MimeType:    mimeType,
		Data:        mustJSON(payload),
		Name:        name,
		Description: description,
	}
}

func fileArtifact(name, description, mimeType, url string) domain.Artifact {
	return domain.Artifact{
		Kind:        domain.ArtifactKindFile,
		MimeType:    mimeType,
		URL:         url,
		Name:        name,
		Description: description,
	}
}
