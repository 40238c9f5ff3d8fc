package agent

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"vidsmith/internal/domain"
)

func TestScenePlannerProducesPlan(t *testing.T) {
	ctx := context.Background()
	manager, created := newTestTasks(t, "Create a bouncing ball animation with text")
	planner := NewScenePlanner(manager, 42, discardLogger())

	msg := requestMessage(domain.MessageTypePlanSceneRequest, ScenePlannerName, domain.PlanSceneRequestPayload{
		TaskID:      created.ID,
		Description: created.Description,
		ProjectID:   created.ProjectID,
	})
	resp, err := planner.ProcessMessage(ctx, msg)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp == nil || resp.Type != domain.MessageTypeScenePlanCreated {
		t.Fatalf("expected %s reply, got %+v", domain.MessageTypeScenePlanCreated, resp)
	}
	if resp.To != CoordinatorName {
		t.Errorf("reply addressed to %s, want %s", resp.To, CoordinatorName)
	}
	if resp.ID != msg.ID {
		t.Errorf("correlation id not preserved: got %s want %s", resp.ID, msg.ID)
	}

	arts, err := manager.GetArtifacts(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetArtifacts: %v", err)
	}
	if len(arts) != 1 || arts[0].Name != "scene-plan" {
		t.Fatalf("expected a single scene-plan artifact, got %+v", arts)
	}
	var plan domain.ScenePlan
	if err := json.Unmarshal(arts[0].Data, &plan); err != nil {
		t.Fatalf("decode scene plan: %v", err)
	}
	if plan.Duration < 3.0 || plan.Duration > 10.0 {
		t.Errorf("duration %g outside [3,10]", plan.Duration)
	}
	if len(plan.Elements) != 1 || plan.Elements[0].Type != "text" {
		t.Errorf("unexpected elements: %+v", plan.Elements)
	}

	var ev domain.ScenePlanCreatedPayload
	if err := json.Unmarshal(resp.Payload, &ev); err != nil {
		t.Fatalf("decode reply payload: %v", err)
	}
	if ev.SceneID != plan.ID {
		t.Errorf("reply scene id %s does not match plan id %s", ev.SceneID, plan.ID)
	}

	got, err := manager.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.State != domain.TaskStateWorking || got.Stage != domain.StagePlanning {
		t.Errorf("task state=%s stage=%s, want working/planning", got.State, got.Stage)
	}
}

func TestScenePlannerIgnoresOtherTypes(t *testing.T) {
	manager, created := newTestTasks(t, "anything")
	planner := NewScenePlanner(manager, 1, discardLogger())
	resp, err := planner.ProcessMessage(context.Background(), requestMessage(
		domain.MessageTypeBuildComponentRequest, ScenePlannerName,
		domain.BuildComponentRequestPayload{TaskID: created.ID}))
	if err != nil || resp != nil {
		t.Fatalf("expected silent drop, got resp=%+v err=%v", resp, err)
	}
}

func TestExtractElements(t *testing.T) {
	cases := []struct {
		description string
		wantTypes   []string
	}{
		{"a clip with text overlay", []string{"text"}},
		{"show our logo", []string{"logo"}},
		{"text then the logo", []string{"text", "logo"}},
		{"a red ball", []string{"visual"}},
	}
	for _, tc := range cases {
		got := ExtractElements(tc.description)
		var types []string
		for _, el := range got {
			types = append(types, el.Type)
		}
		if !reflect.DeepEqual(types, tc.wantTypes) {
			t.Errorf("ExtractElements(%q) types = %v, want %v", tc.description, types, tc.wantTypes)
		}
		if !reflect.DeepEqual(got, ExtractElements(tc.description)) {
			t.Errorf("ExtractElements(%q) is not deterministic", tc.description)
		}
	}
}
