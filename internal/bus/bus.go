// Package bus routes typed messages between named agents. Dispatch is
// synchronous request/response: Send invokes the recipient's handler and
// hands the single reply, if any, back to the sender. The sender is
// responsible for forwarding replies, which keeps the pipeline's control
// flow explicit in the audit log.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidsmith/internal/domain"
)

// Agent handles a subset of message types. A nil response means the chain
// stops here (terminal stage or unrecognized type).
type Agent interface {
	Name() string
	ProcessMessage(ctx context.Context, msg domain.AgentMessage) (*domain.AgentMessage, error)
}

// TaskLog is the slice of the task manager the bus needs: audit logging,
// task existence checks, and failing a task when a handler blows up.
type TaskLog interface {
	GetTask(ctx context.Context, taskID string) (domain.Task, error)
	LogMessage(ctx context.Context, taskID string, msg domain.AgentMessage) error
	Fail(ctx context.Context, taskID string, reason string) error
}

// RoutingError reports an unresolvable recipient. It is logged and the
// message dropped; it never reaches the caller.
type RoutingError struct {
	To string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("no agent registered under %q", e.To)
}

type registration struct {
	agent Agent
	// serializes deliveries to one recipient so arrival order from any
	// single origin is preserved
	mu sync.Mutex
}

type Bus struct {
	mu     sync.RWMutex
	agents map[string]*registration
	tasks  TaskLog
	logger *log.Logger
}

func New(tasks TaskLog, logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{
		agents: make(map[string]*registration),
		tasks:  tasks,
		logger: logger,
	}
}

// Register wires an agent under its name. The full agent set is registered
// at construction time; the topology does not change afterwards.
func (b *Bus) Register(a Agent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	name := a.Name()
	if _, exists := b.agents[name]; exists {
		return fmt.Errorf("agent %q is already registered", name)
	}
	b.agents[name] = &registration{agent: a}
	return nil
}

// Send delivers msg to its recipient and returns the recipient's reply, or
// nil. All failure modes are contained here: unknown recipients, unknown
// tasks, handler errors and handler panics all result in a nil return, never
// an error propagated to the sender.
func (b *Bus) Send(ctx context.Context, msg domain.AgentMessage) *domain.AgentMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	taskID := taskIDOf(msg.Payload)
	if taskID != "" {
		if _, err := b.tasks.GetTask(ctx, taskID); err != nil {
			b.logger.Printf("bus dropped message type=%s to=%s: task %s not found", msg.Type, msg.To, taskID)
			return nil
		}
		if err := b.tasks.LogMessage(ctx, taskID, msg); err != nil {
			b.logger.Printf("bus audit log failed task=%s type=%s: %v", taskID, msg.Type, err)
		}
	}

	b.mu.RLock()
	reg, ok := b.agents[msg.To]
	b.mu.RUnlock()
	if !ok {
		b.logger.Printf("bus routing error: %v (message type=%s from=%s dropped)", &RoutingError{To: msg.To}, msg.Type, msg.From)
		return nil
	}

	reg.mu.Lock()
	resp, err := b.invoke(ctx, reg.agent, msg)
	reg.mu.Unlock()
	if err != nil {
		b.logger.Printf("agent %s failed on %s: %v", msg.To, msg.Type, err)
		if taskID != "" {
			if failErr := b.tasks.Fail(ctx, taskID, err.Error()); failErr != nil {
				b.logger.Printf("bus could not fail task %s: %v", taskID, failErr)
			}
		}
		return nil
	}
	return resp
}

// invoke contains handler panics so one agent can never take down the bus
// or a peer.
func (b *Bus) invoke(ctx context.Context, a Agent, msg domain.AgentMessage) (resp *domain.AgentMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("agent %s panicked on %s: %v", a.Name(), msg.Type, r)
		}
	}()
	return a.ProcessMessage(ctx, msg)
}

func taskIDOf(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var probe struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.TaskID
}
