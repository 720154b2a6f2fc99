package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"task-manager/tasks"
)

// Compile-time check to ensure MemoryStorage implements Storage interface
var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps tasks in process memory. Nothing survives a restart,
// which makes it the default for development and tests.
type MemoryStorage struct {
	mu    sync.RWMutex
	tasks map[string]tasks.Task
	order []string
}

// NewMemoryStorage creates an empty MemoryStorage, optionally seeded.
func NewMemoryStorage(seed ...tasks.Task) *MemoryStorage {
	s := &MemoryStorage{
		tasks: make(map[string]tasks.Task),
	}
	for _, t := range seed {
		if _, exists := s.tasks[t.ID]; !exists {
			s.order = append(s.order, t.ID)
		}
		s.tasks[t.ID] = t.Clone()
	}
	return s
}

// GetAll returns copies of every task in insertion order.
func (s *MemoryStorage) GetAll(_ context.Context) ([]tasks.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]tasks.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id].Clone())
	}
	return out, nil
}

// Save adds a new task. It ensures id uniqueness to prevent accidental
// overwrites.
func (s *MemoryStorage) Save(ctx context.Context, task tasks.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("save task %s: %w", task.ID, ErrAlreadyExists)
	}
	s.tasks[task.ID] = task.Clone()
	s.order = append(s.order, task.ID)
	return nil
}

func (s *MemoryStorage) Update(ctx context.Context, task tasks.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		return fmt.Errorf("update task %s: %w", task.ID, ErrNotFound)
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	delete(s.tasks, id)
	s.order = slices.DeleteFunc(s.order, func(other string) bool { return other == id })
	return nil
}

// Len returns the number of stored tasks.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
