package model

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks caller errors: bad ids, bad variants, missing
// required fields and unmet builder preconditions.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrInvalidVariant is returned when an operation is applied to an event
// variant it does not support.
var ErrInvalidVariant = fmt.Errorf("%w: invalid event variant", ErrInvalidArgument)

// InvalidArgument wraps ErrInvalidArgument with a formatted message.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// RequirePositive fails with ErrInvalidArgument unless uid > 0.
func RequirePositive(name string, uid int64) error {
	if uid <= 0 {
		return InvalidArgument("%s must be > 0, got %d", name, uid)
	}
	return nil
}
