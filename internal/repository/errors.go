package repository

import (
	"errors"
	"fmt"

	"github.com/roach88/warden/internal/ir"
)

// ErrNotFound is returned when no entity matches an id.
var ErrNotFound = errors.New("entity not found")

// CommittedError reports a post-phase violation under the advisory policy.
// The write it follows has been committed.
type CommittedError struct {
	Entity string
	Mode   ir.Mode
	ID     int64
	Err    error
}

// Error implements the error interface.
func (e *CommittedError) Error() string {
	return fmt.Sprintf("%s %s %d committed, post rule failed: %v", e.Mode, e.Entity, e.ID, e.Err)
}

// Unwrap returns the post-phase violation.
func (e *CommittedError) Unwrap() error {
	return e.Err
}

// IsCommitted returns true if err reports a violation after a committed write.
func IsCommitted(err error) bool {
	var ce *CommittedError
	return errors.As(err, &ce)
}
