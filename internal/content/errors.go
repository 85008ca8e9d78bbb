package content

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a content item does not exist.
var ErrNotFound = errors.New("content item not found")

// PreconditionError indicates the request itself is invalid for the item's
// current state (wrong status, missing media, over a platform limit). These
// map to client errors at the HTTP boundary.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// NewPreconditionError builds a PreconditionError for the given operation.
func NewPreconditionError(op, format string, args ...interface{}) *PreconditionError {
	return &PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// BlockedError indicates the system operating mode refused the operation.
// The request may be valid later once the mode changes.
type BlockedError struct {
	Op   string
	Mode string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s blocked: system mode is %s", e.Op, e.Mode)
}

// IsPrecondition reports whether err is (or wraps) a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsBlocked reports whether err is (or wraps) a BlockedError.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}
