package ui

import "github.com/bamsammich/shelfscan/internal/event"

// Event is re-exported for convenience.
type Event = event.Event

// Re-export event types for convenience.
const (
	KeySuppressed      = event.KeySuppressed
	ScanCompleted      = event.ScanCompleted
	ScanExpired        = event.ScanExpired
	ScanReset          = event.ScanReset
	LookupStarted      = event.LookupStarted
	BookFound          = event.BookFound
	BookNotFound       = event.BookNotFound
	BookAdded          = event.BookAdded
	BookAlreadyPresent = event.BookAlreadyPresent
	DispatchFailed     = event.DispatchFailed
)
