package api

import (
	"context"

	"github.com/GoCodeAlone/taskledger/task"
)

type contextKey int

const ctxKeyOwner contextKey = 0

// ContextWithOwner returns a context carrying the authenticated owner.
func ContextWithOwner(ctx context.Context, owner task.Owner) context.Context {
	return context.WithValue(ctx, ctxKeyOwner, owner)
}

// OwnerFromContext returns the authenticated owner, if any.
func OwnerFromContext(ctx context.Context) (task.Owner, bool) {
	owner, ok := ctx.Value(ctxKeyOwner).(task.Owner)
	return owner, ok && owner != ""
}
