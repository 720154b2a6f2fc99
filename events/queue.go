package events

import "context"

// Queue carries envelopes to out-of-process consumers.
type Queue interface {
	// Enqueue adds an envelope to the tail of the queue
	Enqueue(ctx context.Context, env Envelope) error

	// Dequeue blocks until an envelope is available and removes it
	Dequeue(ctx context.Context) (Envelope, error)

	// Depth returns the number of envelopes waiting
	Depth(ctx context.Context) (int64, error)

	// Close cleanly shuts down the queue connection
	Close() error
}
