package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"vidsmith/internal/agent"
	"vidsmith/internal/bus"
	"vidsmith/internal/domain"
	"vidsmith/internal/task"
)

// Config tunes the pipeline pump and the agents it hosts.
type Config struct {
	// MaxHops bounds the number of bus deliveries a single task may
	// consume before it is failed as runaway.
	MaxHops int
	// StageTimeout bounds the wall time of a single agent invocation.
	StageTimeout time.Duration
	// MaxRepairAttempts bounds the syntax repair loop.
	MaxRepairAttempts int
	// FaultRate is the probability that a fresh build emits defective
	// source. Useful for exercising the repair loop.
	FaultRate float64
	// Seed fixes the random streams of the planner and builder. Zero
	// picks a time-based seed.
	Seed int64

	Width         int
	Height        int
	FPS           int
	OutputBaseURL string
}

func (c Config) withDefaults() Config {
	if c.MaxHops <= 0 {
		c.MaxHops = 16
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = 30 * time.Second
	}
	if c.MaxRepairAttempts <= 0 {
		c.MaxRepairAttempts = 3
	}
	if c.Width <= 0 {
		c.Width = 1920
	}
	if c.Height <= 0 {
		c.Height = 1080
	}
	if c.FPS <= 0 {
		c.FPS = 30
	}
	if c.OutputBaseURL == "" {
		c.OutputBaseURL = "builds"
	}
	return c
}

// Pipeline owns the bus and the agent set and turns a video request into a
// completed or failed task.
type Pipeline struct {
	cfg    Config
	tasks  *task.Manager
	bus    *bus.Bus
	logger *log.Logger
}

func New(tasks *task.Manager, cfg Config, logger *log.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = log.Default()
	}
	cfg = cfg.withDefaults()

	b := bus.New(tasks, logger)
	agents := []bus.Agent{
		agent.NewCoordinator(tasks, agent.KeywordClassifier{}, cfg.MaxRepairAttempts, logger),
		agent.NewScenePlanner(tasks, cfg.Seed, logger),
		agent.NewBriefGenerator(tasks, domain.Dimensions{Width: cfg.Width, Height: cfg.Height}, cfg.FPS, logger),
		agent.NewBuilder(tasks, agent.BuilderOptions{
			OutputBaseURL: cfg.OutputBaseURL,
			FaultRate:     cfg.FaultRate,
			Seed:          cfg.Seed,
		}, logger),
		agent.NewErrorFixer(tasks, logger),
	}
	for _, a := range agents {
		if err := b.Register(a); err != nil {
			return nil, fmt.Errorf("register agent %s: %w", a.Name(), err)
		}
	}
	return &Pipeline{cfg: cfg, tasks: tasks, bus: b, logger: logger}, nil
}

// SubmitInput describes a new video request.
type SubmitInput struct {
	ProjectID   string
	Description string
}

// Submit creates the task and starts the pipeline in the background,
// returning as soon as the task is durable. The run outlives the caller's
// context.
func (p *Pipeline) Submit(ctx context.Context, in SubmitInput) (domain.Task, error) {
	t, err := p.createTask(ctx, in)
	if err != nil {
		return domain.Task{}, err
	}
	go p.run(context.WithoutCancel(ctx), t)
	return t, nil
}

// Execute runs the pipeline synchronously and returns the task in its final
// state.
func (p *Pipeline) Execute(ctx context.Context, in SubmitInput) (domain.Task, error) {
	t, err := p.createTask(ctx, in)
	if err != nil {
		return domain.Task{}, err
	}
	p.run(ctx, t)
	return p.tasks.GetTask(ctx, t.ID)
}

// Cancel fails a non-final task with a cancellation note.
func (p *Pipeline) Cancel(ctx context.Context, taskID, reason string) error {
	if reason == "" {
		reason = "canceled by operator"
	}
	return p.tasks.Fail(ctx, taskID, reason)
}

func (p *Pipeline) createTask(ctx context.Context, in SubmitInput) (domain.Task, error) {
	if in.Description == "" {
		return domain.Task{}, fmt.Errorf("submit: empty description")
	}
	if in.ProjectID == "" {
		in.ProjectID = uuid.NewString()
	}
	return p.tasks.Create(ctx, task.CreateInput{
		ProjectID:   in.ProjectID,
		Description: in.Description,
	})
}

// run pumps messages through the bus until an agent stops replying, the hop
// budget runs out, or a stage exceeds its deadline. The task is pre-created
// before the first send so every routed message references a known task.
func (p *Pipeline) run(ctx context.Context, t domain.Task) {
	payload, err := json.Marshal(domain.CreateVideoRequestPayload{
		TaskID:      t.ID,
		Description: t.Description,
		ProjectID:   t.ProjectID,
	})
	if err != nil {
		p.logger.Printf("pipeline: encode request task=%s: %v", t.ID, err)
		return
	}
	msg := domain.AgentMessage{
		Type:    domain.MessageTypeCreateVideoRequest,
		From:    "client",
		To:      agent.CoordinatorName,
		Payload: payload,
		Message: domain.TextMessage(t.Description),
	}

	for hop := 0; hop < p.cfg.MaxHops; hop++ {
		resp, ok := p.deliver(ctx, msg)
		if !ok {
			if err := p.tasks.Fail(ctx, t.ID, fmt.Sprintf("stage timed out at %s", msg.To)); err != nil {
				p.logger.Printf("pipeline: fail after timeout task=%s: %v", t.ID, err)
			}
			return
		}
		if resp == nil {
			return
		}
		msg = *resp
	}

	if err := p.tasks.Fail(ctx, t.ID, fmt.Sprintf("hop budget exhausted after %d deliveries", p.cfg.MaxHops)); err != nil {
		p.logger.Printf("pipeline: fail after hop budget task=%s: %v", t.ID, err)
	}
}

// deliver sends one message under the stage deadline. The second return is
// false only on timeout; the in-flight agent call is left to finish against
// its expired context.
func (p *Pipeline) deliver(ctx context.Context, msg domain.AgentMessage) (*domain.AgentMessage, bool) {
	stageCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	done := make(chan *domain.AgentMessage, 1)
	go func() {
		done <- p.bus.Send(stageCtx, msg)
	}()
	select {
	case resp := <-done:
		return resp, true
	case <-stageCtx.Done():
		p.logger.Printf("pipeline: stage timeout to=%s type=%s", msg.To, msg.Type)
		return nil, false
	}
}
