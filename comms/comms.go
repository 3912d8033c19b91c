// Package comms provides the event bus the task ledger publishes to after
// every successful mutation.
package comms

import (
	"context"

	"github.com/google/uuid"
)

// EventType identifies the kind of ledger event.
type EventType string

const (
	TypeTaskCreated     EventType = "task_created"
	TypeTaskCompleted   EventType = "task_completed"   // completed flipped false -> true
	TypeTaskUncompleted EventType = "task_uncompleted" // completed flipped true -> false
	TypeTaskUpdated     EventType = "task_updated"
	TypeTaskDeleted     EventType = "task_deleted"
)

// Wildcard subscribes a handler to every owner's events.
const Wildcard = "*"

// Event records one accepted mutation. Content is set only for creations
// and updates.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Owner     string    `json:"owner"`
	TaskID    uint64    `json:"task_id"`
	Content   string    `json:"content,omitempty"`
	Timestamp int64     `json:"timestamp"` // unix seconds
}

// NewEvent builds an Event with a fresh ID.
func NewEvent(typ EventType, owner string, taskID uint64, content string, ts int64) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Owner:     owner,
		TaskID:    taskID,
		Content:   content,
		Timestamp: ts,
	}
}

// Handler processes a published event.
type Handler func(ctx context.Context, ev *Event) error

// Bus fans ledger events out to observers.
type Bus interface {
	// Publish delivers ev to handlers subscribed to ev.Owner and to Wildcard.
	Publish(ctx context.Context, ev *Event) error

	// Subscribe registers a handler for an owner's events, or for all events
	// when owner is Wildcard. Returns an unsubscribe function.
	Subscribe(owner string, handler Handler) (unsubscribe func())

	// History returns up to limit of the owner's most recent events in
	// chronological order. A limit <= 0 means no limit.
	History(owner string, limit int) ([]*Event, error)
}
