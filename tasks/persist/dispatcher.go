package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	"task-manager/logger"
)

// ErrStopped is returned by Submit once Stop has been called.
var ErrStopped = errors.New("persistence dispatcher stopped")

// Dispatcher runs each job on its own goroutine. Jobs sharing a TaskID run
// one after another in submission order, continuation included; jobs for
// different ids never wait on each other, so a hung storage call holds up
// only its own task.
type Dispatcher struct {
	logger  *logger.Logger
	timeout time.Duration

	mu       sync.Mutex
	inFlight int
	// idle is closed whenever inFlight is zero
	idle    chan struct{}
	stopped bool
	// tails maps a task id to the done channel of its last submitted job
	tails map[string]chan struct{}
}

// NewDispatcher creates a dispatcher. A zero timeout lets storage calls run
// for as long as they take.
func NewDispatcher(timeout time.Duration, lg *logger.Logger) *Dispatcher {
	idle := make(chan struct{})
	close(idle)
	return &Dispatcher{
		logger:  lg.With(map[string]any{"component": "persist"}),
		timeout: timeout,
		idle:    idle,
		tails:   make(map[string]chan struct{}),
	}
}

// Submit starts job in the background, behind any earlier job for the same
// task. It never blocks on the storage call.
func (d *Dispatcher) Submit(job *Job) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrStopped
	}
	if d.inFlight == 0 {
		d.idle = make(chan struct{})
	}
	d.inFlight++

	var prev, done chan struct{}
	if job.TaskID != "" {
		prev = d.tails[job.TaskID]
		done = make(chan struct{})
		d.tails[job.TaskID] = done
	}
	d.mu.Unlock()

	go d.run(job, prev, done)
	return nil
}

func (d *Dispatcher) run(job *Job, prev, done chan struct{}) {
	defer d.finish(job.TaskID, done)

	if prev != nil {
		<-prev
	}

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	job.StartTime = time.Now()
	if err := job.Run(ctx); err != nil {
		job.SetError(err)
	} else {
		job.SetSuccess()
	}
	d.logger.Persist(job.Op, job.TaskID, job.Duration(), job.Err)

	if !job.IsSuccess() {
		if job.OnFailure != nil {
			job.OnFailure(job.Err)
		}
		return
	}
	if job.OnSuccess != nil {
		job.OnSuccess()
	}
}

func (d *Dispatcher) finish(taskID string, done chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if done != nil {
		close(done)
		if d.tails[taskID] == done {
			delete(d.tails, taskID)
		}
	}
	d.inFlight--
	if d.inFlight == 0 {
		close(d.idle)
	}
}

// InFlight returns the number of jobs whose continuation has not finished.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// Wait blocks until no job is in flight or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	idle := d.idle
	d.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses further jobs and waits for the in-flight ones to drain.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	pending := d.inFlight
	d.mu.Unlock()

	d.logger.Info("stopping persistence dispatcher", map[string]any{
		"in_flight": pending,
	})

	if err := d.Wait(ctx); err != nil {
		d.logger.Warn("persistence drain timed out", map[string]any{
			"in_flight": d.InFlight(),
			"error":     err.Error(),
		})
		return err
	}

	d.logger.Info("persistence dispatcher stopped gracefully")
	return nil
}
