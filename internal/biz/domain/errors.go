package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a privileged action is attempted by a sender
	// outside the privileged set. It is non-fatal: callers fall back to ordinary handling.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedCommand is returned when admin text matches no command form.
	// It wraps ErrUnauthorized so dispatch falls through the same way.
	ErrMalformedCommand = fmt.Errorf("%w: malformed command", ErrUnauthorized)

	// ErrGroupNotFound is returned when a name matches no managed group
	ErrGroupNotFound = errors.New("group not found")

	// ErrUserNotFound is returned when a name matches no friend or member
	ErrUserNotFound = errors.New("user not found")
)
