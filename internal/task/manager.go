package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidsmith/internal/domain"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrIllegalTransition = errors.New("illegal task state transition")
)

// Store persists task records, artifacts and the per-task message log. The
// medium (in-memory map, sqlite) is invisible to agents; the Manager is the
// only writer.
type Store interface {
	CreateTask(ctx context.Context, t domain.Task) error
	GetTask(ctx context.Context, taskID string) (domain.Task, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	UpdateTask(ctx context.Context, t domain.Task) error

	AppendArtifact(ctx context.Context, taskID string, artifact domain.Artifact) error
	ListArtifacts(ctx context.Context, taskID string) ([]domain.Artifact, error)

	AppendMessage(ctx context.Context, taskID string, msg domain.AgentMessage) error
	ListMessages(ctx context.Context, taskID string, limit int) ([]domain.AgentMessage, error)
}

// Manager owns all per-task mutation. Concurrent updates to the same task
// are serialized through a per-task mutex, so no two handlers ever interleave
// writes to one record.
type Manager struct {
	store  Store
	logger *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(store Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		store:  store,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (m *Manager) taskLock(taskID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[taskID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[taskID] = lock
	}
	return lock
}

type CreateInput struct {
	ID          string
	ProjectID   string
	Description string
	Message     string
}

func (m *Manager) Create(ctx context.Context, in CreateInput) (domain.Task, error) {
	if strings.TrimSpace(in.Description) == "" {
		return domain.Task{}, fmt.Errorf("task description is required")
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Message == "" {
		in.Message = "Request received"
	}
	now := time.Now().UTC()
	t := domain.Task{
		ID:            in.ID,
		ProjectID:     in.ProjectID,
		Description:   in.Description,
		State:         domain.TaskStateSubmitted,
		StatusMessage: in.Message,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.withRetry(ctx, func() error {
		return m.store.CreateTask(ctx, t)
	}); err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// UpdateStatus moves a task along its state machine. Illegal transitions are
// rejected; nothing is ever removed from the artifact list.
func (m *Manager) UpdateStatus(
	ctx context.Context,
	taskID string,
	state domain.TaskState,
	message string,
	stage domain.StageLabel,
	artifacts ...domain.Artifact,
) (domain.Task, error) {
	lock := m.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	t, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if !t.State.CanTransitionTo(state) {
		return domain.Task{}, fmt.Errorf("%w: %s -> %s (task %s)", ErrIllegalTransition, t.State, state, taskID)
	}

	for _, artifact := range artifacts {
		stored, err := m.appendArtifactLocked(ctx, taskID, artifact)
		if err != nil {
			return domain.Task{}, err
		}
		m.logger.Printf("task %s artifact attached name=%s kind=%s id=%s", taskID, stored.Name, stored.Kind, stored.ID)
	}

	t.State = state
	t.StatusMessage = message
	if stage != "" {
		t.Stage = stage
	}
	t.UpdatedAt = time.Now().UTC()
	if err := m.withRetry(ctx, func() error {
		return m.store.UpdateTask(ctx, t)
	}); err != nil {
		return domain.Task{}, fmt.Errorf("update task status: %w", err)
	}
	return t, nil
}

// Fail forces a task to the failed state with the given reason. No-op when
// the task is already final.
func (m *Manager) Fail(ctx context.Context, taskID string, reason string) error {
	lock := m.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	t, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t.State.IsFinal() {
		return nil
	}
	t.State = domain.TaskStateFailed
	t.StatusMessage = reason
	t.UpdatedAt = time.Now().UTC()
	return m.withRetry(ctx, func() error {
		return m.store.UpdateTask(ctx, t)
	})
}

func (m *Manager) AddArtifact(ctx context.Context, taskID string, artifact domain.Artifact) (domain.Artifact, error) {
	lock := m.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()
	return m.appendArtifactLocked(ctx, taskID, artifact)
}

func (m *Manager) appendArtifactLocked(ctx context.Context, taskID string, artifact domain.Artifact) (domain.Artifact, error) {
	if artifact.ID == "" {
		artifact.ID = uuid.NewString()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	if artifact.Kind == "" {
		artifact.Kind = domain.ArtifactKindData
	}
	if artifact.Kind == domain.ArtifactKindData && artifact.Data == nil {
		artifact.Data = json.RawMessage("{}")
	}
	if err := m.withRetry(ctx, func() error {
		return m.store.AppendArtifact(ctx, taskID, artifact)
	}); err != nil {
		return domain.Artifact{}, fmt.Errorf("append artifact: %w", err)
	}
	return artifact, nil
}

// LogMessage appends a message to the task's time-ordered audit log. The log
// is independent of the artifact list and is never truncated.
func (m *Manager) LogMessage(ctx context.Context, taskID string, msg domain.AgentMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	lock := m.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()
	if err := m.withRetry(ctx, func() error {
		return m.store.AppendMessage(ctx, taskID, msg)
	}); err != nil {
		return fmt.Errorf("log message: %w", err)
	}
	return nil
}

// IncrementRepairAttempts bumps the builder/error-fixer loop counter and
// returns the new value, so the coordinator can bound the repair cycle.
func (m *Manager) IncrementRepairAttempts(ctx context.Context, taskID string) (int, error) {
	lock := m.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	t, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return 0, err
	}
	t.RepairAttempts++
	t.UpdatedAt = time.Now().UTC()
	if err := m.withRetry(ctx, func() error {
		return m.store.UpdateTask(ctx, t)
	}); err != nil {
		return 0, fmt.Errorf("increment repair attempts: %w", err)
	}
	return t.RepairAttempts, nil
}

func (m *Manager) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	return m.store.GetTask(ctx, taskID)
}

func (m *Manager) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return m.store.ListTasks(ctx)
}

func (m *Manager) GetArtifacts(ctx context.Context, taskID string) ([]domain.Artifact, error) {
	return m.store.ListArtifacts(ctx, taskID)
}

func (m *Manager) GetMessages(ctx context.Context, taskID string, limit int) ([]domain.AgentMessage, error) {
	return m.store.ListMessages(ctx, taskID, limit)
}

// withRetry absorbs transient store contention (sqlite busy) with a short
// backoff. This is storage-level retry, unrelated to the syntax-repair loop.
func (m *Manager) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < 6; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
		}
	}
	return lastErr
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}
