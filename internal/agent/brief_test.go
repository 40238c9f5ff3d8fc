package agent

import (
	"context"
	"encoding/json"
	"testing"

	"vidsmith/internal/domain"
)

func TestBriefGeneratorRedBallOnBlueBackground(t *testing.T) {
	ctx := context.Background()
	const description = "Create a red ball bouncing on a blue background with text"
	manager, created := newTestTasks(t, description)
	gen := NewBriefGenerator(manager, domain.Dimensions{}, 0, discardLogger())

	resp, err := gen.ProcessMessage(ctx, requestMessage(
		domain.MessageTypeGenerateDesignBriefRequest, BriefGeneratorName,
		domain.GenerateDesignBriefRequestPayload{
			TaskID:      created.ID,
			Description: description,
			ProjectID:   created.ProjectID,
			SceneID:     "scene-1",
		}))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp == nil || resp.Type != domain.MessageTypeCreateComponentRequest || resp.To != CoordinatorName {
		t.Fatalf("expected %s reply to coordinator, got %+v", domain.MessageTypeCreateComponentRequest, resp)
	}

	var out domain.CreateComponentRequestPayload
	if err := json.Unmarshal(resp.Payload, &out); err != nil {
		t.Fatalf("decode reply payload: %v", err)
	}
	brief := out.DesignBrief
	if brief.DurationInFrames != 150 {
		t.Errorf("DurationInFrames = %d, want 150", brief.DurationInFrames)
	}
	if brief.Dimensions.Width != 1920 || brief.Dimensions.Height != 1080 {
		t.Errorf("dimensions = %+v, want 1920x1080", brief.Dimensions)
	}
	if len(brief.Elements) != 3 {
		t.Fatalf("expected background+shape+text, got %+v", brief.Elements)
	}
	bg := brief.Elements[0]
	if bg.Type != "background" || bg.Color != "blue" {
		t.Errorf("background element = %+v, want blue background first", bg)
	}
	shape := brief.Elements[1]
	if shape.Shape != "circle" || shape.Color != "red" {
		t.Errorf("shape element = %+v, want red circle", shape)
	}
	text := brief.Elements[2]
	if text.Type != "text" || text.Text == "" {
		t.Errorf("text element = %+v", text)
	}

	var bounce, fade *domain.Animation
	for i := range brief.Animations {
		switch brief.Animations[i].Type {
		case "bounce":
			bounce = &brief.Animations[i]
		case "fadeIn":
			fade = &brief.Animations[i]
		}
	}
	if bounce == nil || bounce.ElementID != shape.ID || bounce.Property != "translateY" {
		t.Fatalf("missing or misbound bounce animation: %+v", brief.Animations)
	}
	wantFrames := []domain.Keyframe{{Time: 0, Value: 0}, {Time: 45, Value: 200}, {Time: 90, Value: 0}}
	if len(bounce.Keyframes) != len(wantFrames) {
		t.Fatalf("bounce keyframes = %+v", bounce.Keyframes)
	}
	for i, kf := range wantFrames {
		if bounce.Keyframes[i] != kf {
			t.Errorf("bounce keyframe %d = %+v, want %+v", i, bounce.Keyframes[i], kf)
		}
	}
	if fade == nil || fade.ElementID != text.ID || fade.Property != "opacity" {
		t.Fatalf("missing or misbound fadeIn animation: %+v", brief.Animations)
	}

	arts, err := manager.GetArtifacts(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetArtifacts: %v", err)
	}
	if len(arts) != 1 || arts[0].Name != "animation-design-brief" {
		t.Fatalf("expected animation-design-brief artifact, got %+v", arts)
	}
}

func TestBriefGeneratorDefaults(t *testing.T) {
	manager, created := newTestTasks(t, "a gentle gradient")
	gen := NewBriefGenerator(manager, domain.Dimensions{}, 0, discardLogger())

	resp, err := gen.ProcessMessage(context.Background(), requestMessage(
		domain.MessageTypeGenerateDesignBriefRequest, BriefGeneratorName,
		domain.GenerateDesignBriefRequestPayload{
			TaskID:      created.ID,
			Description: created.Description,
			SceneID:     "scene-1",
		}))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	var out domain.CreateComponentRequestPayload
	if err := json.Unmarshal(resp.Payload, &out); err != nil {
		t.Fatalf("decode reply payload: %v", err)
	}
	if len(out.DesignBrief.Elements) != 1 || out.DesignBrief.Elements[0].Type != "background" {
		t.Errorf("expected only the background element, got %+v", out.DesignBrief.Elements)
	}
	if out.DesignBrief.Elements[0].Color != "black" {
		t.Errorf("default background color = %s, want black", out.DesignBrief.Elements[0].Color)
	}
	if len(out.DesignBrief.Animations) != 0 {
		t.Errorf("expected no animations, got %+v", out.DesignBrief.Animations)
	}
}
