package task

import (
	"errors"
	"fmt"
)

// Error kinds returned by the ledger. Callers classify with errors.Is; every
// failure leaves state untouched.
var (
	ErrInvalidContent = errors.New("invalid content")
	ErrEmptyContent   = fmt.Errorf("%w: content is empty", ErrInvalidContent)
	ErrContentTooLong = fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidContent, MaxContentLength)

	ErrTaskNotFound   = errors.New("task not found")
	ErrAlreadyDeleted = errors.New("task already deleted")

	// ErrTaskDeleted rejects toggles and edits aimed at a deleted slot.
	ErrTaskDeleted = fmt.Errorf("%w: cannot modify", ErrAlreadyDeleted)

	ErrInvalidOwner = errors.New("invalid owner")
)

func notFound(owner Owner, id uint64) error {
	return fmt.Errorf("owner %s task %d: %w", owner, id, ErrTaskNotFound)
}
