package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// TaskErrorType categorizes different kinds of task failures
type TaskErrorType string

const (
	ValidationError  TaskErrorType = "validation"
	NotFoundError    TaskErrorType = "not_found"
	PersistenceError TaskErrorType = "persistence"
	InternalError    TaskErrorType = "internal"
)

// TaskError provides structured error information with HTTP status suggestions
type TaskError struct {
	Type    TaskErrorType  `json:"type"`
	Message string         `json:"message"`
	Code    int            `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func firstDetails(details []map[string]any) map[string]any {
	if len(details) > 0 {
		return details[0]
	}
	return nil
}

// Constructor functions for common error types
func NewValidationError(message string, details ...map[string]any) *TaskError {
	return &TaskError{
		Type:    ValidationError,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: firstDetails(details),
	}
}

func NewNotFoundError(message string) *TaskError {
	return &TaskError{
		Type:    NotFoundError,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func NewInternalError(message string, details ...map[string]any) *TaskError {
	return &TaskError{
		Type:    InternalError,
		Message: message,
		Code:    http.StatusInternalServerError,
		Details: firstDetails(details),
	}
}

// IsTaskError checks if an error is (or wraps) a TaskError and returns it
func IsTaskError(err error) (*TaskError, bool) {
	var taskErr *TaskError
	if stderrors.As(err, &taskErr) {
		return taskErr, true
	}
	return nil, false
}

// IsValidation reports whether err is a validation TaskError.
func IsValidation(err error) bool {
	taskErr, ok := IsTaskError(err)
	return ok && taskErr.Type == ValidationError
}

// StorageFailure reports a durable write that failed after the in-memory
// list had already been changed. It only ever reaches callers through the
// "error" notification.
type StorageFailure struct {
	Op     string
	TaskID string
	// RolledBack is false when a newer mutation of the same task made the
	// compensating rollback stale, so it was skipped.
	RolledBack bool
	Err        error
}

func (e *StorageFailure) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("[%s] %s failed: %v", PersistenceError, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s of task %s failed: %v", PersistenceError, e.Op, e.TaskID, e.Err)
}

func (e *StorageFailure) Unwrap() error {
	return e.Err
}

// AsTaskError converts the failure into the structured form used by the
// HTTP layer and the event envelope.
func (e *StorageFailure) AsTaskError() *TaskError {
	return &TaskError{
		Type:    PersistenceError,
		Message: e.Error(),
		Code:    http.StatusInternalServerError,
		Details: map[string]any{
			"op":          e.Op,
			"task_id":     e.TaskID,
			"rolled_back": e.RolledBack,
		},
	}
}

// IsStorageFailure checks if an error is (or wraps) a StorageFailure and returns it
func IsStorageFailure(err error) (*StorageFailure, bool) {
	var failure *StorageFailure
	if stderrors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}
