package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"vidsmith/internal/domain"
)

func TestCoordinatorRoutesNewRequestToPlanner(t *testing.T) {
	ctx := context.Background()
	manager, created := newTestTasks(t, "Create a sunset clip")
	coord := NewCoordinator(manager, nil, 0, discardLogger())

	resp, err := coord.ProcessMessage(ctx, requestMessage(
		domain.MessageTypeCreateVideoRequest, CoordinatorName,
		domain.CreateVideoRequestPayload{
			TaskID:      created.ID,
			Description: created.Description,
			ProjectID:   created.ProjectID,
		}))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp == nil || resp.Type != domain.MessageTypePlanSceneRequest || resp.To != ScenePlannerName {
		t.Fatalf("expected %s to planner, got %+v", domain.MessageTypePlanSceneRequest, resp)
	}
	got, _ := manager.GetTask(ctx, created.ID)
	if got.State != domain.TaskStateWorking || got.Stage != domain.StagePlanning {
		t.Errorf("task state=%s stage=%s after routing", got.State, got.Stage)
	}
}

func TestCoordinatorRoutesBriefRequestDirectly(t *testing.T) {
	ctx := context.Background()
	manager, created := newTestTasks(t, "Generate a design brief for a red circle")
	coord := NewCoordinator(manager, nil, 0, discardLogger())

	resp, err := coord.ProcessMessage(ctx, requestMessage(
		domain.MessageTypeCreateVideoRequest, CoordinatorName,
		domain.CreateVideoRequestPayload{TaskID: created.ID, Description: created.Description}))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp == nil || resp.Type != domain.MessageTypeGenerateDesignBriefRequest || resp.To != BriefGeneratorName {
		t.Fatalf("expected %s to brief generator, got %+v", domain.MessageTypeGenerateDesignBriefRequest, resp)
	}
	var out domain.GenerateDesignBriefRequestPayload
	if err := json.Unmarshal(resp.Payload, &out); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if out.SceneID == "" {
		t.Error("expected a synthesized scene id for the direct route")
	}
}

func TestCoordinatorUnknownTaskRejected(t *testing.T) {
	manager, _ := newTestTasks(t, "placeholder")
	coord := NewCoordinator(manager, nil, 0, discardLogger())

	_, err := coord.ProcessMessage(context.Background(), requestMessage(
		domain.MessageTypeCreateVideoRequest, CoordinatorName,
		domain.CreateVideoRequestPayload{TaskID: "no-such-task", Description: "x"}))
	if err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestCoordinatorBoundsRepairLoop(t *testing.T) {
	ctx := context.Background()
	manager, created := newTestTasks(t, "build something")
	const maxAttempts = 3
	coord := NewCoordinator(manager, nil, maxAttempts, discardLogger())

	errMsg := requestMessage(domain.MessageTypeComponentSyntaxError, CoordinatorName,
		domain.ComponentSyntaxErrorPayload{
			TaskID:        created.ID,
			ComponentCode: "broken",
			Errors:        []string{"line 1: unexpected token"},
		})

	for i := 1; i <= maxAttempts; i++ {
		resp, err := coord.ProcessMessage(ctx, errMsg)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if resp == nil || resp.To != ErrorFixerName {
			t.Fatalf("attempt %d: expected forward to fixer, got %+v", i, resp)
		}
		got, _ := manager.GetTask(ctx, created.ID)
		if got.RepairAttempts != i || got.Stage != domain.StageFixingErrors {
			t.Fatalf("attempt %d: task = %+v", i, got)
		}
	}

	// the budget is spent: one more error fails the task
	resp, err := coord.ProcessMessage(ctx, errMsg)
	if err != nil {
		t.Fatalf("over-budget attempt: %v", err)
	}
	if resp != nil {
		t.Fatalf("expected no forward past the budget, got %+v", resp)
	}
	got, _ := manager.GetTask(ctx, created.ID)
	if got.State != domain.TaskStateFailed {
		t.Errorf("task state = %s, want failed", got.State)
	}
	if !strings.Contains(got.StatusMessage, "max repair attempts") {
		t.Errorf("status message = %q", got.StatusMessage)
	}
}

func TestCoordinatorBuildSuccessCompletesTask(t *testing.T) {
	ctx := context.Background()
	manager, created := newTestTasks(t, "build something")
	coord := NewCoordinator(manager, nil, 0, discardLogger())

	resp, err := coord.ProcessMessage(ctx, requestMessage(
		domain.MessageTypeComponentBuildSuccess, CoordinatorName,
		domain.ComponentBuildSuccessPayload{
			TaskID:      created.ID,
			ComponentID: "comp-1",
			OutputURL:   "builds/comp-1.js",
		}))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp != nil {
		t.Fatalf("build success is terminal, got forward %+v", resp)
	}
	got, _ := manager.GetTask(ctx, created.ID)
	if got.State != domain.TaskStateCompleted {
		t.Errorf("task state = %s, want completed", got.State)
	}
	if !strings.Contains(got.StatusMessage, "builds/comp-1.js") {
		t.Errorf("status message = %q", got.StatusMessage)
	}
}

func TestCoordinatorGenericErrorFailsTask(t *testing.T) {
	ctx := context.Background()
	manager, created := newTestTasks(t, "anything")
	coord := NewCoordinator(manager, nil, 0, discardLogger())

	resp, err := coord.ProcessMessage(ctx, requestMessage(
		domain.MessageType("RENDER_PIPELINE_ERROR"), CoordinatorName,
		domain.AgentErrorPayload{TaskID: created.ID, Stage: string(domain.StageBuilding), Error: "render host unreachable"}))
	if err != nil || resp != nil {
		t.Fatalf("expected terminal handling, got resp=%+v err=%v", resp, err)
	}
	got, _ := manager.GetTask(ctx, created.ID)
	if got.State != domain.TaskStateFailed || got.StatusMessage != "render host unreachable" {
		t.Errorf("task = %+v", got)
	}
}

func TestCoordinatorIgnoresUnknownNonErrorTypes(t *testing.T) {
	manager, created := newTestTasks(t, "anything")
	coord := NewCoordinator(manager, nil, 0, discardLogger())

	resp, err := coord.ProcessMessage(context.Background(), requestMessage(
		domain.MessageType("SOMETHING_NOVEL"), CoordinatorName,
		domain.CreateVideoRequestPayload{TaskID: created.ID}))
	if err != nil || resp != nil {
		t.Fatalf("expected silent drop, got resp=%+v err=%v", resp, err)
	}
	got, _ := manager.GetTask(context.Background(), created.ID)
	if got.State != domain.TaskStateSubmitted {
		t.Errorf("state changed on ignored message: %s", got.State)
	}
}
