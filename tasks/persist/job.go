package persist

import (
	"context"
	"time"
)

// Storage operations a job can perform.
const (
	OpLoad   = "load"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Job is one storage call plus the continuation that runs once it settles.
// Exactly one of OnSuccess and OnFailure is called, on the job's goroutine.
type Job struct {
	Op     string
	TaskID string

	Run       func(ctx context.Context) error
	OnSuccess func()
	OnFailure func(err error)

	StartTime time.Time
	EndTime   time.Time
	Err       error
}

// SetError captures the failure and end time.
func (j *Job) SetError(err error) {
	j.Err = err
	j.EndTime = time.Now()
}

// SetSuccess marks the end time of a successful call.
func (j *Job) SetSuccess() {
	j.EndTime = time.Now()
}

// IsSuccess provides a simple way to check the outcome.
func (j *Job) IsSuccess() bool {
	return j.Err == nil
}

// Duration is the time spent in the storage call.
func (j *Job) Duration() time.Duration {
	if j.EndTime.IsZero() {
		return time.Since(j.StartTime)
	}
	return j.EndTime.Sub(j.StartTime)
}
