package task

import (
	"context"
	"fmt"
	"sync"
)

// sequence is one owner's append-only task list plus its cached live count.
type sequence struct {
	tasks []Task
	live  uint64
}

// MemoryStore keeps every owner's sequence in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	owners map[Owner]*sequence
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{owners: make(map[Owner]*sequence)}
}

func (m *MemoryStore) Append(_ context.Context, owner Owner, content string, createdAt int64) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq, ok := m.owners[owner]
	if !ok {
		seq = &sequence{}
		m.owners[owner] = seq
	}
	t := Task{ID: uint64(len(seq.tasks)), Content: content, CreatedAt: createdAt}
	seq.tasks = append(seq.tasks, t)
	seq.live++
	return t, nil
}

func (m *MemoryStore) Get(_ context.Context, owner Owner, id uint64) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seq, ok := m.owners[owner]
	if !ok || id >= uint64(len(seq.tasks)) {
		return Task{}, notFound(owner, id)
	}
	return seq.tasks[id], nil
}

func (m *MemoryStore) Save(_ context.Context, owner Owner, t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq, ok := m.owners[owner]
	if !ok || t.ID >= uint64(len(seq.tasks)) {
		return notFound(owner, t.ID)
	}
	slot := &seq.tasks[t.ID]
	slot.Content = t.Content
	slot.Completed = t.Completed
	slot.CompletedAt = t.CompletedAt
	return nil
}

func (m *MemoryStore) Tombstone(_ context.Context, owner Owner, id uint64) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq, ok := m.owners[owner]
	if !ok || id >= uint64(len(seq.tasks)) {
		return Task{}, notFound(owner, id)
	}
	slot := &seq.tasks[id]
	if slot.Deleted() {
		return Task{}, fmt.Errorf("owner %s task %d: %w", owner, id, ErrAlreadyDeleted)
	}
	slot.Content = ""
	slot.Completed = true
	seq.live--
	return *slot, nil
}

func (m *MemoryStore) List(_ context.Context, owner Owner) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seq, ok := m.owners[owner]
	if !ok {
		return []Task{}, nil
	}
	out := make([]Task, len(seq.tasks))
	copy(out, seq.tasks)
	return out, nil
}

func (m *MemoryStore) LiveCount(_ context.Context, owner Owner) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if seq, ok := m.owners[owner]; ok {
		return seq.live, nil
	}
	return 0, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
