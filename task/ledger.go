package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GoCodeAlone/taskledger/comms"
)

// Ledger applies the task rules on top of a Store. Calls are serialized:
// each runs to completion before the next begins, so a read-check-write
// sequence is never interleaved with another call. Owners are passed
// through ParseOwner on entry, so "0xAbC" and " 0xabc" share one sequence.
//
// Events are published while the call still holds the ledger, so observers
// see them in mutation order. Bus handlers must not call back into the
// Ledger.
type Ledger struct {
	mu     sync.Mutex
	store  Store
	bus    comms.Bus
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithBus publishes an event to bus after every successful mutation.
func WithBus(bus comms.Bus) Option {
	return func(l *Ledger) { l.bus = bus }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger used for event delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// NewLedger returns a Ledger backed by store.
func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateTask appends a new pending task to owner's sequence.
func (l *Ledger) CreateTask(ctx context.Context, owner Owner, content string) (Task, error) {
	owner, err := ParseOwner(string(owner))
	if err != nil {
		return Task{}, err
	}
	if err := ValidateContent(content); err != nil {
		return Task{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.store.Append(ctx, owner, content, l.now().Unix())
	if err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}
	l.publish(ctx, comms.TypeTaskCreated, owner, t.ID, t.Content, t.CreatedAt)
	return t, nil
}

// ToggleTask flips the completion state of a live task.
func (l *Ledger) ToggleTask(ctx context.Context, owner Owner, id uint64) (Task, error) {
	owner, err := ParseOwner(string(owner))
	if err != nil {
		return Task{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.liveSlot(ctx, owner, id)
	if err != nil {
		return Task{}, err
	}

	ts := l.now().Unix()
	typ := comms.TypeTaskUncompleted
	t.Completed = !t.Completed
	if t.Completed {
		t.CompletedAt = ts
		typ = comms.TypeTaskCompleted
	} else {
		t.CompletedAt = 0
	}
	if err := l.store.Save(ctx, owner, t); err != nil {
		return Task{}, fmt.Errorf("toggle task: %w", err)
	}
	l.publish(ctx, typ, owner, t.ID, "", ts)
	return t, nil
}

// UpdateTask replaces the content of a live task. Completion state and
// timestamps are left alone.
func (l *Ledger) UpdateTask(ctx context.Context, owner Owner, id uint64, content string) (Task, error) {
	owner, err := ParseOwner(string(owner))
	if err != nil {
		return Task{}, err
	}
	if err := ValidateContent(content); err != nil {
		return Task{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.liveSlot(ctx, owner, id)
	if err != nil {
		return Task{}, err
	}
	t.Content = content
	if err := l.store.Save(ctx, owner, t); err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	l.publish(ctx, comms.TypeTaskUpdated, owner, t.ID, t.Content, l.now().Unix())
	return t, nil
}

// DeleteTask soft-deletes a task. The slot keeps its ID but leaves every
// filtered view and the live count for good.
func (l *Ledger) DeleteTask(ctx context.Context, owner Owner, id uint64) error {
	owner, err := ParseOwner(string(owner))
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.store.Get(ctx, owner, id)
	if err != nil {
		return err
	}
	if t.Deleted() {
		return fmt.Errorf("owner %s task %d: %w", owner, id, ErrAlreadyDeleted)
	}
	if _, err := l.store.Tombstone(ctx, owner, id); err != nil {
		return err
	}
	l.publish(ctx, comms.TypeTaskDeleted, owner, id, "", l.now().Unix())
	return nil
}

// GetTask returns the raw slot, including deleted ones. Callers check
// Task.Deleted themselves.
func (l *Ledger) GetTask(ctx context.Context, owner Owner, id uint64) (Task, error) {
	owner, err := ParseOwner(string(owner))
	if err != nil {
		return Task{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Get(ctx, owner, id)
}

// GetAllTasks returns owner's full sequence in ID order, deleted slots
// included. Use Live to drop them.
func (l *Ledger) GetAllTasks(ctx context.Context, owner Owner) ([]Task, error) {
	owner, err := ParseOwner(string(owner))
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.List(ctx, owner)
}

// GetCompletedTasks returns owner's live completed tasks in ID order.
func (l *Ledger) GetCompletedTasks(ctx context.Context, owner Owner) ([]Task, error) {
	return l.filter(ctx, owner, true)
}

// GetPendingTasks returns owner's live pending tasks in ID order.
func (l *Ledger) GetPendingTasks(ctx context.Context, owner Owner) ([]Task, error) {
	return l.filter(ctx, owner, false)
}

// GetActiveTaskCount returns owner's maintained live count.
func (l *Ledger) GetActiveTaskCount(ctx context.Context, owner Owner) (uint64, error) {
	return l.liveCount(ctx, owner)
}

// GetTaskCountForUser returns another identity's live count. It is the only
// read that is not scoped to the caller.
func (l *Ledger) GetTaskCountForUser(ctx context.Context, user Owner) (uint64, error) {
	return l.liveCount(ctx, user)
}

func (l *Ledger) liveCount(ctx context.Context, owner Owner) (uint64, error) {
	owner, err := ParseOwner(string(owner))
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.LiveCount(ctx, owner)
}

func (l *Ledger) filter(ctx context.Context, owner Owner, completed bool) ([]Task, error) {
	owner, err := ParseOwner(string(owner))
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	tasks, err := l.store.List(ctx, owner)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.Deleted() && t.Completed == completed {
			out = append(out, t)
		}
	}
	return out, nil
}

// liveSlot fetches a slot that toggles and edits may act on. Deleted slots
// are index-valid but rejected, so a tombstone can never be revived.
func (l *Ledger) liveSlot(ctx context.Context, owner Owner, id uint64) (Task, error) {
	t, err := l.store.Get(ctx, owner, id)
	if err != nil {
		return Task{}, err
	}
	if t.Deleted() {
		return Task{}, fmt.Errorf("owner %s task %d: %w", owner, id, ErrTaskDeleted)
	}
	return t, nil
}

func (l *Ledger) publish(ctx context.Context, typ comms.EventType, owner Owner, id uint64, content string, ts int64) {
	if l.bus == nil {
		return
	}
	ev := comms.NewEvent(typ, string(owner), id, content, ts)
	if err := l.bus.Publish(ctx, ev); err != nil {
		l.logger.Warn("event delivery failed",
			slog.String("type", string(typ)),
			slog.String("owner", string(owner)),
			slog.Uint64("task_id", id),
			slog.Any("err", err),
		)
	}
}
