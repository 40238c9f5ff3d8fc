package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"vidsmith/internal/domain"
)

// Coordinator owns the pipeline's routing decisions. Each known message type
// maps to exactly one state update plus one forwarded message; unknown types
// are logged and dropped.
type Coordinator struct {
	tasks             Tasks
	classifier        Classifier
	maxRepairAttempts int
	logger            *log.Logger
}

func NewCoordinator(tasks Tasks, classifier Classifier, maxRepairAttempts int, logger *log.Logger) *Coordinator {
	if classifier == nil {
		classifier = KeywordClassifier{}
	}
	if maxRepairAttempts <= 0 {
		maxRepairAttempts = 3
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		tasks:             tasks,
		classifier:        classifier,
		maxRepairAttempts: maxRepairAttempts,
		logger:            logger,
	}
}

func (c *Coordinator) Name() string { return CoordinatorName }

func (c *Coordinator) ProcessMessage(ctx context.Context, msg domain.AgentMessage) (*domain.AgentMessage, error) {
	switch msg.Type {
	case domain.MessageTypeCreateVideoRequest:
		return c.handleCreateVideo(ctx, msg)
	case domain.MessageTypeScenePlanCreated:
		return c.handleScenePlanCreated(ctx, msg)
	case domain.MessageTypeCreateComponentRequest:
		return c.handleCreateComponent(ctx, msg)
	case domain.MessageTypeComponentSyntaxError:
		return c.handleSyntaxError(ctx, msg)
	case domain.MessageTypeComponentBuildSuccess:
		return c.handleBuildSuccess(ctx, msg)
	default:
		if msg.Type.IsError() {
			return c.handleGenericError(ctx, msg)
		}
		c.logger.Printf("coordinator ignored message type=%s from=%s", msg.Type, msg.From)
		return nil, nil
	}
}

func (c *Coordinator) handleCreateVideo(ctx context.Context, msg domain.AgentMessage) (*domain.AgentMessage, error) {
	var req domain.CreateVideoRequestPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", msg.Type, err)
	}
	if _, err := c.tasks.GetTask(ctx, req.TaskID); err != nil {
		return nil, fmt.Errorf("load task %s: %w", req.TaskID, err)
	}

	cls := c.classifier.Classify(req.Description)
	c.logger.Printf("coordinator classified task=%s next=%s reason=%q", req.TaskID, cls.NextAgent, cls.Reason)

	switch cls.NextAgent {
	case BriefGeneratorName:
		if _, err := c.tasks.UpdateStatus(ctx, req.TaskID, domain.TaskStateWorking, "Generating animation design brief", domain.StageGeneratingBrief); err != nil {
			return nil, err
		}
		return newMessage(CoordinatorName, BriefGeneratorName, domain.MessageTypeGenerateDesignBriefRequest, msg.ID,
			domain.GenerateDesignBriefRequestPayload{
				TaskID:      req.TaskID,
				Description: req.Description,
				ProjectID:   req.ProjectID,
				SceneID:     uuid.NewString(),
			}, cls.Reason), nil
	case ErrorFixerName:
		if _, err := c.tasks.UpdateStatus(ctx, req.TaskID, domain.TaskStateWorking, "Repairing component source", domain.StageFixingErrors); err != nil {
			return nil, err
		}
		return newMessage(CoordinatorName, ErrorFixerName, domain.MessageTypeComponentSyntaxError, msg.ID,
			domain.ComponentSyntaxErrorPayload{
				TaskID:        req.TaskID,
				ComponentCode: req.Description,
				Errors:        []string{"user-reported error"},
			}, cls.Reason), nil
	default:
		if _, err := c.tasks.UpdateStatus(ctx, req.TaskID, domain.TaskStateWorking, "Planning scene breakdown", domain.StagePlanning); err != nil {
			return nil, err
		}
		return newMessage(CoordinatorName, ScenePlannerName, domain.MessageTypePlanSceneRequest, msg.ID,
			domain.PlanSceneRequestPayload{
				TaskID:      req.TaskID,
				Description: req.Description,
				ProjectID:   req.ProjectID,
			}, cls.Reason), nil
	}
}

func (c *Coordinator) handleScenePlanCreated(ctx context.Context, msg domain.AgentMessage) (*domain.AgentMessage, error) {
	var ev domain.ScenePlanCreatedPayload
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", msg.Type, err)
	}
	if _, err := c.tasks.UpdateStatus(ctx, ev.TaskID, domain.TaskStateWorking, "Generating animation design brief", domain.StageGeneratingBrief); err != nil {
		return nil, err
	}
	return newMessage(CoordinatorName, BriefGeneratorName, domain.MessageTypeGenerateDesignBriefRequest, msg.ID,
		domain.GenerateDesignBriefRequestPayload{
			TaskID:      ev.TaskID,
			Description: ev.Description,
			ProjectID:   ev.ProjectID,
			SceneID:     ev.SceneID,
		}, "scene plan accepted"), nil
}

func (c *Coordinator) handleCreateComponent(ctx context.Context, msg domain.AgentMessage) (*domain.AgentMessage, error) {
	var req domain.CreateComponentRequestPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", msg.Type, err)
	}
	if _, err := c.tasks.UpdateStatus(ctx, req.TaskID, domain.TaskStateWorking, "Building component", domain.StageBuilding); err != nil {
		return nil, err
	}
	return newMessage(CoordinatorName, BuilderName, domain.MessageTypeBuildComponentRequest, msg.ID,
		domain.BuildComponentRequestPayload{
			TaskID:      req.TaskID,
			ProjectID:   req.ProjectID,
			DesignBrief: req.DesignBrief,
		}, "design brief accepted"), nil
}

// handleSyntaxError bounds the builder/error-fixer loop: each pass through
// here consumes one repair attempt, and exhausting the budget fails the task.
func (c *Coordinator) handleSyntaxError(ctx context.Context, msg domain.AgentMessage) (*domain.AgentMessage, error) {
	var ev domain.ComponentSyntaxErrorPayload
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", msg.Type, err)
	}
	attempts, err := c.tasks.IncrementRepairAttempts(ctx, ev.TaskID)
	if err != nil {
		return nil, err
	}
	if attempts > c.maxRepairAttempts {
		if _, err := c.tasks.UpdateStatus(ctx, ev.TaskID, domain.TaskStateFailed, "max repair attempts exceeded", domain.StageFixingErrors); err != nil {
			return nil, err
		}
		return nil, nil
	}
	status := fmt.Sprintf("Repairing component syntax (attempt %d/%d)", attempts, c.maxRepairAttempts)
	if _, err := c.tasks.UpdateStatus(ctx, ev.TaskID, domain.TaskStateWorking, status, domain.StageFixingErrors); err != nil {
		return nil, err
	}
	return newMessage(CoordinatorName, ErrorFixerName, domain.MessageTypeComponentSyntaxError, msg.ID, ev, status), nil
}

func (c *Coordinator) handleBuildSuccess(ctx context.Context, msg domain.AgentMessage) (*domain.AgentMessage, error) {
	var ev domain.ComponentBuildSuccessPayload
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", msg.Type, err)
	}
	status := "Video component built: " + ev.OutputURL
	if _, err := c.tasks.UpdateStatus(ctx, ev.TaskID, domain.TaskStateCompleted, status, domain.StageBuilding); err != nil {
		return nil, err
	}
	return nil, nil
}

// handleGenericError covers any *_ERROR type without a dedicated entry in
// the dispatch table. The task fails with the reported error text and
// nothing is forwarded.
func (c *Coordinator) handleGenericError(ctx context.Context, msg domain.AgentMessage) (*domain.AgentMessage, error) {
	var ev domain.AgentErrorPayload
	if err := json.Unmarshal(msg.Payload, &ev); err != nil || ev.TaskID == "" {
		c.logger.Printf("coordinator received malformed %s from %s", msg.Type, msg.From)
		return nil, nil
	}
	reason := ev.Error
	if reason == "" {
		reason = string(msg.Type)
	}
	if err := c.tasks.Fail(ctx, ev.TaskID, reason); err != nil {
		return nil, err
	}
	return nil, nil
}
