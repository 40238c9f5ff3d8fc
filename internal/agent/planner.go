package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidsmith/internal/domain"
)

const (
	minSceneDuration = 3.0
	maxSceneDuration = 10.0
)

// ScenePlanner breaks a request into a scene plan. Element extraction is
// keyword-driven and duration is drawn from a bounded range; both stand in
// for a real planning model and stay isolated behind ExtractElements and the
// injected rand source.
type ScenePlanner struct {
	tasks  Tasks
	rng    *rand.Rand
	logger *log.Logger
}

func NewScenePlanner(tasks Tasks, seed int64, logger *log.Logger) *ScenePlanner {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ScenePlanner{
		tasks:  tasks,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

func (p *ScenePlanner) Name() string { return ScenePlannerName }

func (p *ScenePlanner) ProcessMessage(ctx context.Context, msg domain.AgentMessage) (*domain.AgentMessage, error) {
	if msg.Type != domain.MessageTypePlanSceneRequest {
		p.logger.Printf("scene planner ignored message type=%s from=%s", msg.Type, msg.From)
		return nil, nil
	}
	var req domain.PlanSceneRequestPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", msg.Type, err)
	}

	duration := minSceneDuration + p.rng.Float64()*(maxSceneDuration-minSceneDuration)
	plan := domain.ScenePlan{
		ID:          uuid.NewString(),
		Name:        planName(req.Description),
		Description: req.Description,
		Type:        "scene",
		Elements:    ExtractElements(req.Description),
		Transitions: []domain.SceneTransition{{Type: "fade", Duration: 0.5}},
		Duration:    math.Round(duration*10) / 10,
	}

	artifact := dataArtifact("scene-plan", "Scene plan for: "+planName(req.Description), "application/json", plan)
	if _, err := p.tasks.UpdateStatus(ctx, req.TaskID, domain.TaskStateWorking, "Scene plan created", domain.StagePlanning, artifact); err != nil {
		return nil, err
	}

	return newMessage(ScenePlannerName, CoordinatorName, domain.MessageTypeScenePlanCreated, msg.ID,
		domain.ScenePlanCreatedPayload{
			TaskID:      req.TaskID,
			ProjectID:   req.ProjectID,
			SceneID:     plan.ID,
			Description: req.Description,
		}, fmt.Sprintf("Planned 1 scene (%d elements, %.1fs)", len(plan.Elements), plan.Duration),
		artifact), nil
}

// ExtractElements derives scene elements from keyword signals in the
// request. Pure: same text, same elements.
func ExtractElements(description string) []domain.SceneElement {
	lc := strings.ToLower(description)
	var elements []domain.SceneElement
	if strings.Contains(lc, "text") {
		elements = append(elements, domain.SceneElement{ID: "text-1", Type: "text", Content: "Your message here"})
	}
	if strings.Contains(lc, "logo") {
		elements = append(elements, domain.SceneElement{ID: "logo-1", Type: "logo"})
	}
	if len(elements) == 0 {
		elements = append(elements, domain.SceneElement{ID: "visual-1", Type: "visual", Content: strings.TrimSpace(description)})
	}
	return elements
}

func planName(description string) string {
	name := strings.TrimSpace(description)
	if len(name) > 48 {
		name = strings.TrimSpace(name[:45]) + "..."
	}
	if name == "" {
		name = "Untitled scene"
	}
	return name
}
