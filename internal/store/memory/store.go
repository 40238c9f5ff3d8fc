// Package memory backs the task manager with plain maps. It implements the
// same Store interface as the sqlite store and is the default for tests and
// ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"vidsmith/internal/domain"
	"vidsmith/internal/task"
)

type Store struct {
	mu        sync.RWMutex
	tasks     map[string]domain.Task
	artifacts map[string][]domain.Artifact
	messages  map[string][]domain.AgentMessage
}

var _ task.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		tasks:     make(map[string]domain.Task),
		artifacts: make(map[string][]domain.Artifact),
		messages:  make(map[string][]domain.AgentMessage),
	}
}

func (s *Store) CreateTask(_ context.Context, t domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	return nil
}

func (s *Store) GetTask(_ context.Context, taskID string) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return domain.Task{}, task.ErrTaskNotFound
	}
	return t, nil
}

func (s *Store) ListTasks(_ context.Context) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) UpdateTask(_ context.Context, t domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return task.ErrTaskNotFound
	}
	s.tasks[t.ID] = t
	return nil
}

func (s *Store) AppendArtifact(_ context.Context, taskID string, artifact domain.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		return task.ErrTaskNotFound
	}
	s.artifacts[taskID] = append(s.artifacts[taskID], artifact)
	return nil
}

// ListArtifacts returns a copy so readers never observe later appends
// through a shared slice.
func (s *Store) ListArtifacts(_ context.Context, taskID string) ([]domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.artifacts[taskID]
	result := make([]domain.Artifact, len(items))
	copy(result, items)
	return result, nil
}

func (s *Store) AppendMessage(_ context.Context, taskID string, msg domain.AgentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		return task.ErrTaskNotFound
	}
	s.messages[taskID] = append(s.messages[taskID], msg)
	return nil
}

func (s *Store) ListMessages(_ context.Context, taskID string, limit int) ([]domain.AgentMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.messages[taskID]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	result := make([]domain.AgentMessage, len(items))
	copy(result, items)
	return result, nil
}
