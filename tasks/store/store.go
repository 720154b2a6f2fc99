package store

import (
	"context"
	"errors"

	"task-manager/tasks"
)

var (
	ErrNotFound      = errors.New("task not found")
	ErrAlreadyExists = errors.New("task already exists")
)

// Storage defines the contract for durable task persistence.
type Storage interface {
	// GetAll returns every stored task in creation order.
	GetAll(ctx context.Context) ([]tasks.Task, error)
	// Save inserts a new task; it fails with ErrAlreadyExists if the id is taken.
	Save(ctx context.Context, task tasks.Task) error
	// Update replaces an existing task; it fails with ErrNotFound if missing.
	Update(ctx context.Context, task tasks.Task) error
	// Delete removes a task; it fails with ErrNotFound if missing.
	Delete(ctx context.Context, id string) error
}
