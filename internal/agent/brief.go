package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"vidsmith/internal/domain"
)

var colorNames = []string{
	"red", "orange", "yellow", "green", "blue", "purple", "pink", "white", "black", "gray",
}

var shapeWords = map[string]string{
	"ball":     "circle",
	"circle":   "circle",
	"dot":      "circle",
	"square":   "square",
	"box":      "square",
	"triangle": "triangle",
}

// BriefGenerator turns a scene description into an animation design brief:
// concrete elements with positions and colors plus keyframe animations. The
// keyword heuristics are the swappable stand-in for a generation model.
type BriefGenerator struct {
	tasks      Tasks
	dimensions domain.Dimensions
	fps        int
	logger     *log.Logger
}

func NewBriefGenerator(tasks Tasks, dimensions domain.Dimensions, fps int, logger *log.Logger) *BriefGenerator {
	if dimensions.Width <= 0 || dimensions.Height <= 0 {
		dimensions = domain.Dimensions{Width: 1920, Height: 1080}
	}
	if fps <= 0 {
		fps = 30
	}
	if logger == nil {
		logger = log.Default()
	}
	return &BriefGenerator{
		tasks:      tasks,
		dimensions: dimensions,
		fps:        fps,
		logger:     logger,
	}
}

func (g *BriefGenerator) Name() string { return BriefGeneratorName }

func (g *BriefGenerator) ProcessMessage(ctx context.Context, msg domain.AgentMessage) (*domain.AgentMessage, error) {
	if msg.Type != domain.MessageTypeGenerateDesignBriefRequest {
		g.logger.Printf("brief generator ignored message type=%s from=%s", msg.Type, msg.From)
		return nil, nil
	}
	var req domain.GenerateDesignBriefRequestPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", msg.Type, err)
	}

	brief := g.compose(req)
	artifact := dataArtifact("animation-design-brief", "Animation design brief for scene "+req.SceneID, "application/json", brief)
	if _, err := g.tasks.UpdateStatus(ctx, req.TaskID, domain.TaskStateWorking, "Design brief generated", domain.StageGeneratingBrief, artifact); err != nil {
		return nil, err
	}

	return newMessage(BriefGeneratorName, CoordinatorName, domain.MessageTypeCreateComponentRequest, msg.ID,
		domain.CreateComponentRequestPayload{
			TaskID:      req.TaskID,
			ProjectID:   req.ProjectID,
			SceneID:     req.SceneID,
			DesignBrief: brief,
		}, fmt.Sprintf("Design brief ready (%d elements, %d animations)", len(brief.Elements), len(brief.Animations)),
		artifact), nil
}

func (g *BriefGenerator) compose(req domain.GenerateDesignBriefRequestPayload) domain.AnimationDesignBrief {
	lc := strings.ToLower(req.Description)
	centerX := float64(g.dimensions.Width) / 2
	centerY := float64(g.dimensions.Height) / 2

	// The background element always comes first and is rendered beneath
	// everything else.
	elements := []domain.BriefElement{{
		ID:       "background",
		Type:     "background",
		Color:    backgroundColor(lc),
		Position: domain.Position{X: 0, Y: 0},
	}}
	var animations []domain.Animation

	if shape := detectShape(lc); shape != "" {
		el := domain.BriefElement{
			ID:       "shape-1",
			Type:     "shape",
			Shape:    shape,
			Color:    subjectColor(lc),
			Position: domain.Position{X: centerX, Y: centerY},
			Size:     120,
		}
		elements = append(elements, el)
		if containsAny(lc, "bounc", "jump") {
			animations = append(animations, bounceAnimation(el.ID))
		}
	}

	if strings.Contains(lc, "text") {
		el := domain.BriefElement{
			ID:       "text-1",
			Type:     "text",
			Text:     "Your message here",
			Color:    "white",
			Position: domain.Position{X: centerX, Y: centerY * 1.6},
			Size:     64,
		}
		elements = append(elements, el)
		animations = append(animations, fadeInAnimation(el.ID))
	}

	return domain.AnimationDesignBrief{
		ID:               uuid.NewString(),
		Name:             planName(req.Description),
		Description:      req.Description,
		DurationInFrames: 5 * g.fps,
		Dimensions:       g.dimensions,
		Elements:         elements,
		Animations:       animations,
	}
}

func bounceAnimation(elementID string) domain.Animation {
	return domain.Animation{
		ElementID: elementID,
		Type:      "bounce",
		Property:  "translateY",
		Keyframes: []domain.Keyframe{
			{Time: 0, Value: 0},
			{Time: 45, Value: 200},
			{Time: 90, Value: 0},
		},
	}
}

func fadeInAnimation(elementID string) domain.Animation {
	return domain.Animation{
		ElementID: elementID,
		Type:      "fadeIn",
		Property:  "opacity",
		Keyframes: []domain.Keyframe{
			{Time: 0, Value: 0},
			{Time: 30, Value: 1},
		},
	}
}

func detectShape(lc string) string {
	best := -1
	shape := ""
	for word, s := range shapeWords {
		idx := strings.Index(lc, word)
		if idx >= 0 && (best < 0 || idx < best) {
			best = idx
			shape = s
		}
	}
	return shape
}

// subjectColor picks the first color name that does not describe the
// background ("... on a blue background" keeps blue off the subject).
func subjectColor(lc string) string {
	best := -1
	color := "white"
	for _, name := range colorNames {
		idx := colorIndexExcludingBackground(lc, name)
		if idx >= 0 && (best < 0 || idx < best) {
			best = idx
			color = name
		}
	}
	return color
}

func backgroundColor(lc string) string {
	for _, name := range colorNames {
		if strings.Contains(lc, name+" background") {
			return name
		}
	}
	return "black"
}

func colorIndexExcludingBackground(lc, name string) int {
	offset := 0
	for {
		idx := strings.Index(lc[offset:], name)
		if idx < 0 {
			return -1
		}
		abs := offset + idx
		rest := strings.TrimSpace(lc[abs+len(name):])
		if !strings.HasPrefix(rest, "background") {
			return abs
		}
		offset = abs + len(name)
	}
}
