// Package task defines the per-owner task ledger: the task model, its
// persistence, and the rules that govern creation, completion, edits, and
// soft deletion.
package task

import (
	"strings"

	"golang.org/x/text/cases"
)

// MaxContentLength is the largest accepted task content, in bytes.
const MaxContentLength = 500

// Owner identifies the caller on whose behalf a task sequence is kept.
// It is the sole partition key for all task storage.
type Owner string

// ParseOwner normalizes a raw identity. Addresses differing only in case
// name the same owner.
func ParseOwner(s string) (Owner, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidOwner
	}
	// A Caser is stateful, so each call gets its own.
	return Owner(cases.Fold().String(s)), nil
}

// String returns the owner as a plain string.
func (o Owner) String() string { return string(o) }

// Task is one entry in an owner's append-only sequence.
//
// An empty Content marks the slot as deleted. Deleted slots stay in storage
// so that the IDs of their siblings never shift.
type Task struct {
	ID          uint64 `json:"id"`
	Content     string `json:"content"`
	Completed   bool   `json:"completed"`
	CreatedAt   int64  `json:"created_at"`   // unix seconds
	CompletedAt int64  `json:"completed_at"` // unix seconds, 0 when not completed
}

// Deleted reports whether the slot has been soft-deleted.
func (t Task) Deleted() bool { return t.Content == "" }

// Live returns the tasks that have not been deleted, preserving order.
func Live(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.Deleted() {
			out = append(out, t)
		}
	}
	return out
}

// ValidateContent checks the byte length of task content.
func ValidateContent(content string) error {
	switch {
	case len(content) == 0:
		return ErrEmptyContent
	case len(content) > MaxContentLength:
		return ErrContentTooLong
	}
	return nil
}
