package events

import (
	"sync"
	"time"

	"task-manager/tasks"
)

// Event names emitted by the task manager.
const (
	Ready       = "ready"
	Error       = "error"
	TaskCreated = "task:created"
	TaskUpdated = "task:updated"
	TaskDeleted = "task:deleted"
)

// All lists every event name, in the order relays subscribe to them.
var All = []string{Ready, Error, TaskCreated, TaskUpdated, TaskDeleted}

// Notification is a single emission. Only the fields relevant to Name are
// set: Count for ready, Err for error, Task for the task:* events.
// An error notification may also carry the task it concerns.
type Notification struct {
	Name      string
	Task      *tasks.Task
	Count     int
	Err       error
	EmittedAt time.Time
}

// Handler receives notifications. It runs on the emitting goroutine.
type Handler func(Notification)

// Subscribable is the capability of accepting event handlers.
type Subscribable interface {
	On(name string, h Handler) (unsubscribe func())
}

type subscription struct {
	id uint64
	fn Handler
}

// Bus fans notifications out to subscribers, in registration order.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]subscription
}

var _ Subscribable = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]subscription),
	}
}

// On registers h for the named event and returns a func that removes it.
// Calling the returned func more than once is harmless.
func (b *Bus) On(name string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], subscription{id: id, fn: h})

	return func() { b.off(name, id) }
}

func (b *Bus) off(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[name]
	for i, s := range subs {
		if s.id == id {
			// copy so an in-progress Emit keeps its own snapshot intact
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			b.handlers[name] = next
			break
		}
	}
	if len(b.handlers[name]) == 0 {
		delete(b.handlers, name)
	}
}

// Emit delivers n to every current subscriber of n.Name and returns once
// they have all run. Handlers may subscribe or unsubscribe while running;
// such changes apply to the next emission.
func (b *Bus) Emit(n Notification) {
	if n.EmittedAt.IsZero() {
		n.EmittedAt = time.Now().UTC()
	}

	b.mu.RLock()
	subs := b.handlers[n.Name]
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(n)
	}
}

// Subscribers returns the number of handlers registered for name.
func (b *Bus) Subscribers(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}

// OnAll subscribes h to every event in All and returns a single func that
// removes all of those subscriptions.
func OnAll(s Subscribable, h Handler) func() {
	offs := make([]func(), 0, len(All))
	for _, name := range All {
		offs = append(offs, s.On(name, h))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}
