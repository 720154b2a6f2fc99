package events

import (
	"time"

	"task-manager/errors"
	"task-manager/tasks"
)

// Envelope is the JSON form of a Notification, used by the relay queue
// and the HTTP event stream.
type Envelope struct {
	Event     string            `json:"event"`
	Task      *tasks.Task       `json:"task,omitempty"`
	Count     *int              `json:"count,omitempty"`
	Error     *errors.TaskError `json:"error,omitempty"`
	EmittedAt time.Time         `json:"emittedAt"`
}

// Envelope converts n to its wire form.
func (n Notification) Envelope() Envelope {
	env := Envelope{
		Event:     n.Name,
		EmittedAt: n.EmittedAt,
	}
	if n.Task != nil {
		t := n.Task.Clone()
		env.Task = &t
	}
	if n.Name == Ready {
		count := n.Count
		env.Count = &count
	}
	if n.Err != nil {
		env.Error = wireError(n.Err)
	}
	return env
}

func wireError(err error) *errors.TaskError {
	if failure, ok := errors.IsStorageFailure(err); ok {
		return failure.AsTaskError()
	}
	if taskErr, ok := errors.IsTaskError(err); ok {
		return taskErr
	}
	return errors.NewInternalError(err.Error())
}
