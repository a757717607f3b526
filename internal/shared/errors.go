package shared

import "errors"

var (
	// ErrNotFound indicates a missing entity.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates the entity cannot accept the operation.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidInput indicates the caller supplied bad values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnbalancedEntry indicates composition produced non-balancing output.
	// Internal invariant violation; must fail loudly and never be persisted.
	ErrUnbalancedEntry = errors.New("journal entry debits and credits do not balance")
	// ErrStoreUnavailable wraps I/O failures against the data store.
	ErrStoreUnavailable = errors.New("data store unavailable")
	// ErrLockHeld indicates another run holds the advisory lock.
	ErrLockHeld = errors.New("advisory lock already held")
)
