package manager

import (
	"context"
	"slices"
	"sync"
	"time"

	"task-manager/errors"
	"task-manager/events"
	"task-manager/logger"
	"task-manager/tasks"
	"task-manager/tasks/persist"
	"task-manager/tasks/store"

	"github.com/google/uuid"
)

// Option customizes a Manager at construction.
type Option func(*Manager)

// WithBus makes the manager emit on b. Handlers registered on b before New
// is called are guaranteed to see the startup ready or error notification.
func WithBus(b *events.Bus) Option {
	return func(m *Manager) { m.bus = b }
}

// WithDispatcher replaces the default dispatcher, which has no timeout.
func WithDispatcher(d *persist.Dispatcher) Option {
	return func(m *Manager) { m.dispatcher = d }
}

// WithClock sets the source of creation and update timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator sets the source of new task ids.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// Stats is a point-in-time view of the manager.
type Stats struct {
	Ready     bool   `json:"ready"`
	Tasks     int    `json:"tasks"`
	InFlight  int    `json:"in_flight"`
	LoadError string `json:"load_error,omitempty"`
}

// Manager owns the canonical in-memory task list. Mutations apply locally
// and return at once; the matching storage call runs on the dispatcher and
// is compensated for if it fails.
type Manager struct {
	storage    store.Storage
	bus        *events.Bus
	dispatcher *persist.Dispatcher
	logger     *logger.Logger
	now        func() time.Time
	newID      func() string

	mu    sync.RWMutex
	tasks []tasks.Task

	// version maps a task id to the stamp of its newest unsettled mutation.
	// A rollback only applies while its own stamp is still the newest.
	version map[string]uint64
	counter uint64
	// durable holds, per id, the last state storage is known to have when a
	// stale rollback was discarded. The next applied rollback restores it.
	durable map[string]snapshot

	loaded  bool
	loadErr error
	// dropped holds ids deleted before the startup load finished
	dropped map[string]struct{}
	ready   chan struct{}
}

// snapshot is the state of one id in the list: absent, or a task at index.
type snapshot struct {
	task    tasks.Task
	present bool
	index   int
}

var _ events.Subscribable = (*Manager)(nil)

// New creates a manager over storage and starts loading its contents.
func New(storage store.Storage, lg *logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		storage:  storage,
		logger:   lg.With(map[string]any{"component": "manager"}),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		version:  make(map[string]uint64),
		durable:  make(map[string]snapshot),
		dropped:  make(map[string]struct{}),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus == nil {
		m.bus = events.NewBus()
	}
	if m.dispatcher == nil {
		m.dispatcher = persist.NewDispatcher(0, lg)
	}

	m.load()
	return m
}

// On subscribes h to the named event.
func (m *Manager) On(name string, h events.Handler) func() {
	return m.bus.On(name, h)
}

// Ready is closed once the startup load has settled, successfully or not.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

func (m *Manager) load() {
	var loaded []tasks.Task

	job := &persist.Job{
		Op: persist.OpLoad,
		Run: func(ctx context.Context) error {
			var err error
			loaded, err = m.storage.GetAll(ctx)
			return err
		},
		OnSuccess: func() {
			total := m.merge(loaded)
			m.logger.Info("tasks loaded", map[string]any{
				"loaded": len(loaded),
				"total":  total,
			})
			m.bus.Emit(events.Notification{Name: events.Ready, Count: len(loaded)})
			close(m.ready)
		},
		OnFailure: func(err error) {
			failure := &errors.StorageFailure{Op: persist.OpLoad, Err: err}

			m.mu.Lock()
			m.loaded = true
			m.loadErr = failure
			m.dropped = nil
			m.mu.Unlock()

			m.logger.Error("failed to load tasks, continuing with local state", map[string]any{
				"error": err.Error(),
			})
			m.bus.Emit(events.Notification{Name: events.Error, Err: failure})
			close(m.ready)
		},
	}
	m.submit(job)
}

// merge installs the loaded tasks ahead of anything created locally while
// the load was running, and returns the resulting list length.
func (m *Manager) merge(loaded []tasks.Task) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	local := make(map[string]int, len(m.tasks))
	for i, t := range m.tasks {
		local[t.ID] = i
	}

	merged := make([]tasks.Task, 0, len(loaded)+len(m.tasks))
	placed := make(map[string]struct{}, len(loaded)+len(m.tasks))
	for _, t := range loaded {
		if _, dup := placed[t.ID]; dup {
			continue
		}
		if _, gone := m.dropped[t.ID]; gone {
			continue
		}
		placed[t.ID] = struct{}{}
		if i, ok := local[t.ID]; ok {
			merged = append(merged, m.tasks[i])
			continue
		}
		merged = append(merged, t.Clone())
	}
	for _, t := range m.tasks {
		if _, ok := placed[t.ID]; !ok {
			placed[t.ID] = struct{}{}
			merged = append(merged, t)
		}
	}

	m.tasks = merged
	m.loaded = true
	m.dropped = nil
	return len(merged)
}

// Create validates p, appends the new task and persists it in the
// background. The returned task may later be retracted if storage rejects
// it; an error notification is the only signal of that.
func (m *Manager) Create(p tasks.CreateParams) (tasks.Task, error) {
	if err := p.Validate(); err != nil {
		return tasks.Task{}, err
	}

	task := p.Build(m.newID(), m.now())

	m.mu.Lock()
	if m.indexOf(task.ID) >= 0 {
		m.mu.Unlock()
		return tasks.Task{}, errors.NewInternalError("generated task id is already in use", map[string]any{
			"task_id": task.ID,
		})
	}
	m.tasks = append(m.tasks, task)
	stamp := m.stamp(task.ID)
	m.mu.Unlock()

	m.logger.Task(task.ID, "task created", map[string]any{"title": task.Title})

	saved := task.Clone()
	m.submit(&persist.Job{
		Op:     persist.OpCreate,
		TaskID: task.ID,
		Run: func(ctx context.Context) error {
			return m.storage.Save(ctx, saved)
		},
		OnSuccess: func() {
			m.settle(task.ID, stamp)
			m.emitTask(events.TaskCreated, saved)
		},
		OnFailure: func(err error) {
			rolledBack := m.rollback(task.ID, stamp, snapshot{})
			m.fail(persist.OpCreate, saved, rolledBack, err)
		},
	})

	return task.Clone(), nil
}

// Get returns a copy of the task with the given id.
func (m *Manager) Get(id string) (tasks.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOf(id)
	if i < 0 {
		return tasks.Task{}, false
	}
	return m.tasks[i].Clone(), true
}

// Update merges p into the task with the given id. The bool result is
// false, with no error and no notification, when the id is unknown.
func (m *Manager) Update(id string, p tasks.UpdateParams) (tasks.Task, bool, error) {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return tasks.Task{}, false, nil
	}
	if err := p.Validate(); err != nil {
		m.mu.Unlock()
		return tasks.Task{}, true, err
	}
	before := snapshot{task: m.tasks[i], present: true, index: i}
	next := p.Apply(m.tasks[i], m.now())
	m.tasks[i] = next
	stamp := m.stamp(id)
	m.mu.Unlock()

	m.logger.Task(id, "task updated", map[string]any{"status": string(next.Status)})

	saved := next.Clone()
	m.submit(&persist.Job{
		Op:     persist.OpUpdate,
		TaskID: id,
		Run: func(ctx context.Context) error {
			return m.storage.Update(ctx, saved)
		},
		OnSuccess: func() {
			m.settle(id, stamp)
			m.emitTask(events.TaskUpdated, saved)
		},
		OnFailure: func(err error) {
			rolledBack := m.rollback(id, stamp, before)
			m.fail(persist.OpUpdate, saved, rolledBack, err)
		},
	})

	return next.Clone(), true, nil
}

// Delete removes the task with the given id and reports whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	index := m.indexOf(id)
	if index < 0 {
		m.mu.Unlock()
		return false
	}
	removed := m.tasks[index]
	m.tasks = slices.Delete(m.tasks, index, index+1)
	if !m.loaded {
		m.dropped[id] = struct{}{}
	}
	stamp := m.stamp(id)
	m.mu.Unlock()

	m.logger.Task(id, "task deleted")

	m.submit(&persist.Job{
		Op:     persist.OpDelete,
		TaskID: id,
		Run: func(ctx context.Context) error {
			return m.storage.Delete(ctx, id)
		},
		OnSuccess: func() {
			m.settle(id, stamp)
			m.emitTask(events.TaskDeleted, removed)
		},
		OnFailure: func(err error) {
			before := snapshot{task: removed, present: true, index: index}
			rolledBack := m.rollback(id, stamp, before)
			m.fail(persist.OpDelete, removed, rolledBack, err)
		},
	})

	return true
}

// List returns copies of the tasks selected by f.
func (m *Manager) List(f tasks.Filter) []tasks.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return f.Apply(m.tasks)
}

// Wait blocks until every persistence job started so far has settled and
// its notification has been delivered.
func (m *Manager) Wait(ctx context.Context) error {
	return m.dispatcher.Wait(ctx)
}

// Close refuses further persistence jobs and drains the in-flight ones.
// Mutations made after Close are rolled back with an error notification.
func (m *Manager) Close(ctx context.Context) error {
	return m.dispatcher.Stop(ctx)
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		Ready:    m.loaded,
		Tasks:    len(m.tasks),
		InFlight: m.dispatcher.InFlight(),
	}
	if m.loadErr != nil {
		s.LoadError = m.loadErr.Error()
	}
	return s
}

func (m *Manager) submit(job *persist.Job) {
	if err := m.dispatcher.Submit(job); err != nil {
		// nothing will run the job, settle it here
		job.OnFailure(err)
	}
}

// indexOf must be called with mu held.
func (m *Manager) indexOf(id string) int {
	return slices.IndexFunc(m.tasks, func(t tasks.Task) bool { return t.ID == id })
}

// stamp records a new mutation of id and returns its stamp. Must be called
// with mu held.
func (m *Manager) stamp(id string) uint64 {
	m.counter++
	m.version[id] = m.counter
	return m.counter
}

// settle forgets a mutation whose storage call succeeded. Storage now holds
// that mutation's result, so any earlier durable snapshot is obsolete.
func (m *Manager) settle(id string, stamp uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.durable, id)
	if m.version[id] == stamp {
		delete(m.version, id)
	}
}

// rollback reverts id after a failed storage call and reports whether it
// did. before is the state the failed mutation replaced. Jobs for one id
// settle in submission order, so when a newer mutation exists the failure
// is stale: the revert is skipped and before is kept as the durable state
// for that newer mutation to fall back to.
func (m *Manager) rollback(id string, stamp uint64, before snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.durable[id]
	if !ok {
		target = before
	}

	if m.version[id] != stamp {
		m.durable[id] = target
		return false
	}

	m.restore(id, target)
	delete(m.durable, id)
	delete(m.version, id)
	return true
}

// restore puts id back into the state described by s. Must be called with
// mu held.
func (m *Manager) restore(id string, s snapshot) {
	i := m.indexOf(id)
	switch {
	case !s.present && i >= 0:
		m.tasks = slices.Delete(m.tasks, i, i+1)
	case s.present && i >= 0:
		m.tasks[i] = s.task
	case s.present:
		at := min(s.index, len(m.tasks))
		m.tasks = slices.Insert(m.tasks, at, s.task)
		delete(m.dropped, id)
	}
}

func (m *Manager) emitTask(name string, task tasks.Task) {
	t := task.Clone()
	m.bus.Emit(events.Notification{Name: name, Task: &t})
}

func (m *Manager) fail(op string, task tasks.Task, rolledBack bool, err error) {
	failure := &errors.StorageFailure{
		Op:         op,
		TaskID:     task.ID,
		RolledBack: rolledBack,
		Err:        err,
	}

	fields := map[string]any{"op": op, "error": err.Error()}
	if rolledBack {
		m.logger.Task(task.ID, "local change rolled back", fields)
	} else {
		m.logger.Warn("stale rollback discarded, task changed again", map[string]any{
			"task_id": task.ID,
			"op":      op,
			"error":   err.Error(),
		})
	}

	t := task.Clone()
	m.bus.Emit(events.Notification{Name: events.Error, Task: &t, Err: failure})
}
