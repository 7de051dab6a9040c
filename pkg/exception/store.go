package exception

import "github.com/yanun0323/errors"

// Store errors
var (
	// ErrStoreUnavailable marks a write the store could not accept right now.
	// The record must stay buffered and be retried on a later drain pass.
	ErrStoreUnavailable = errors.New("store: unavailable")

	// ErrInvalidRecord is returned when a record cannot be persisted as-is.
	ErrInvalidRecord = errors.New("store: invalid record")

	ErrStoreClosed = errors.New("store: closed")
)

// IsStoreUnavailable reports whether err is a transient store failure.
func IsStoreUnavailable(err error) bool {
	return err != nil && errors.Is(err, ErrStoreUnavailable)
}
