package manager

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"task-manager/events"
	"task-manager/logger"
	"task-manager/tasks"
	"task-manager/tasks/store"

	"github.com/stretchr/testify/require"
)

var clockStart = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// fakeStorage delegates to a real Storage unless a hook intercepts the
// call. Hooks must be set before the operation that triggers them.
type fakeStorage struct {
	store.Storage
	getAll   func(ctx context.Context) ([]tasks.Task, error)
	onSave   func(ctx context.Context, task tasks.Task) error
	onUpdate func(ctx context.Context, task tasks.Task) error
	onDelete func(ctx context.Context, id string) error
}

func newFakeStorage(seed ...tasks.Task) *fakeStorage {
	return &fakeStorage{Storage: store.NewMemoryStorage(seed...)}
}

func (s *fakeStorage) GetAll(ctx context.Context) ([]tasks.Task, error) {
	if s.getAll != nil {
		return s.getAll(ctx)
	}
	return s.Storage.GetAll(ctx)
}

func (s *fakeStorage) Save(ctx context.Context, task tasks.Task) error {
	if s.onSave != nil {
		if err := s.onSave(ctx, task); err != nil {
			return err
		}
	}
	return s.Storage.Save(ctx, task)
}

func (s *fakeStorage) Update(ctx context.Context, task tasks.Task) error {
	if s.onUpdate != nil {
		if err := s.onUpdate(ctx, task); err != nil {
			return err
		}
	}
	return s.Storage.Update(ctx, task)
}

func (s *fakeStorage) Delete(ctx context.Context, id string) error {
	if s.onDelete != nil {
		if err := s.onDelete(ctx, id); err != nil {
			return err
		}
	}
	return s.Storage.Delete(ctx, id)
}

// fakeClock advances one second on every reading.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// recorder keeps every notification emitted on a bus.
type recorder struct {
	mu  sync.Mutex
	got []events.Notification
}

func record(b *events.Bus) *recorder {
	r := &recorder{}
	events.OnAll(b, func(n events.Notification) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.got = append(r.got, n)
	})
	return r
}

func (r *recorder) named(name string) []events.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []events.Notification
	for _, n := range r.got {
		if n.Name == name {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

// signal returns a channel fed with every notification of the given name.
func signal(b *events.Bus, name string) <-chan events.Notification {
	ch := make(chan events.Notification, 64)
	b.On(name, func(n events.Notification) { ch <- n })
	return ch
}

func receive(t *testing.T, ch <-chan events.Notification) events.Notification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
		return events.Notification{}
	}
}

type harness struct {
	m       *Manager
	bus     *events.Bus
	storage *fakeStorage
	events  *recorder
}

// newHarness builds a manager over s and, unless the load is held back by
// a getAll hook, waits for it to become ready.
func newHarness(t *testing.T, s *fakeStorage, opts ...Option) *harness {
	t.Helper()

	bus := events.NewBus()
	rec := record(bus)
	clock := &fakeClock{now: clockStart}

	opts = append([]Option{WithBus(bus), WithClock(clock.Now)}, opts...)
	m := New(s, logger.Discard(), opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m.Close(ctx)
	})

	h := &harness{m: m, bus: bus, storage: s, events: rec}
	if s.getAll == nil {
		h.waitReady(t)
	}
	return h
}

func (h *harness) waitReady(t *testing.T) {
	t.Helper()
	select {
	case <-h.m.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("manager never became ready")
	}
}

func (h *harness) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.m.Wait(ctx))
}

func (h *harness) create(t *testing.T, title string) tasks.Task {
	t.Helper()
	task, err := h.m.Create(tasks.CreateParams{Title: title})
	require.NoError(t, err)
	return task
}

func ids(list []tasks.Task) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}

// assertDurableMatchesMemory checks that storage holds exactly the tasks in
// the manager's list, field for field where it matters.
func assertDurableMatchesMemory(t *testing.T, h *harness) {
	t.Helper()

	persisted, err := h.storage.Storage.GetAll(context.Background())
	require.NoError(t, err)

	key := func(task tasks.Task) string {
		return fmt.Sprintf("%s|%s|%s|%s|%d", task.ID, task.Title, task.Status, task.Priority, task.UpdatedAt.UnixNano())
	}
	durable := make([]string, 0, len(persisted))
	for _, task := range persisted {
		durable = append(durable, key(task))
	}

	h.m.mu.RLock()
	memory := make([]string, 0, len(h.m.tasks))
	for _, task := range h.m.tasks {
		memory = append(memory, key(task))
	}
	h.m.mu.RUnlock()

	require.ElementsMatch(t, memory, durable)
}
