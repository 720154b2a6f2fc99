package events

import (
	"context"
	"time"

	"task-manager/logger"
)

const defaultRelayTimeout = 2 * time.Second

// Relay forwards every notification on a bus to a Queue.
type Relay struct {
	queue   Queue
	logger  *logger.Logger
	timeout time.Duration
	stop    func()
}

func NewRelay(queue Queue, lg *logger.Logger) *Relay {
	return &Relay{
		queue:   queue,
		logger:  lg.With(map[string]any{"component": "relay"}),
		timeout: defaultRelayTimeout,
	}
}

// Attach subscribes the relay to every event on s. Enqueue failures are
// logged and dropped; they never reach the emitter.
func (r *Relay) Attach(s Subscribable) {
	r.stop = OnAll(s, r.forward)
	r.logger.Info("relay attached", map[string]any{"events": All})
}

func (r *Relay) forward(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.queue.Enqueue(ctx, n.Envelope()); err != nil {
		r.logger.Error("failed to relay notification", map[string]any{
			"event": n.Name,
			"error": err.Error(),
		})
	}
}

// Detach unsubscribes from the bus and closes the queue.
func (r *Relay) Detach() error {
	if r.stop != nil {
		r.stop()
		r.stop = nil
	}
	return r.queue.Close()
}
