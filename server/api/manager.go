// Package api defines the REST API handlers for the task ledger server.
package api

import (
	"context"

	"github.com/GoCodeAlone/taskledger/task"
)

// TaskLedger is the interface the API uses to read and mutate tasks.
// Implemented by *task.Ledger.
type TaskLedger interface {
	CreateTask(ctx context.Context, owner task.Owner, content string) (task.Task, error)
	ToggleTask(ctx context.Context, owner task.Owner, id uint64) (task.Task, error)
	UpdateTask(ctx context.Context, owner task.Owner, id uint64, content string) (task.Task, error)
	DeleteTask(ctx context.Context, owner task.Owner, id uint64) error

	GetTask(ctx context.Context, owner task.Owner, id uint64) (task.Task, error)
	GetAllTasks(ctx context.Context, owner task.Owner) ([]task.Task, error)
	GetCompletedTasks(ctx context.Context, owner task.Owner) ([]task.Task, error)
	GetPendingTasks(ctx context.Context, owner task.Owner) ([]task.Task, error)
	GetActiveTaskCount(ctx context.Context, owner task.Owner) (uint64, error)
	GetTaskCountForUser(ctx context.Context, user task.Owner) (uint64, error)
}
