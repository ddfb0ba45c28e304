package remote

import (
	"errors"
	"fmt"
)

// Common errors returned by remote stores.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if remote.IsUnavailable(err) {
//	    // Queue the operation and retry later
//	}
var (
	// ErrUnavailable wraps transient failures: the remote is down,
	// unreachable, or timed out. Operations that fail with it are
	// safe to retry once connectivity returns.
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrNotFound is returned when an update or delete targets a log
	// that does not exist or is not owned by the caller.
	ErrNotFound = errors.New("log not found")

	// ErrUnknownDriver is returned by Open when no driver is
	// registered under the requested name.
	ErrUnknownDriver = errors.New("unknown remote driver")
)

// Unavailable wraps err so that IsUnavailable reports true for it.
// Drivers call this for connection-level failures.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// IsUnavailable returns true if the error indicates a transient
// connectivity failure rather than a permanent one.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
