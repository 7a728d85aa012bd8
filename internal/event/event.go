package event

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of event.
type Type int

const (
	KeySuppressed Type = iota + 1
	ScanCompleted
	ScanExpired
	ScanReset
	LookupStarted
	BookFound
	BookNotFound
	BookAdded
	BookAlreadyPresent
	DispatchFailed
)

var typeNames = [...]string{
	KeySuppressed:      "KeySuppressed",
	ScanCompleted:      "ScanCompleted",
	ScanExpired:        "ScanExpired",
	ScanReset:          "ScanReset",
	LookupStarted:      "LookupStarted",
	BookFound:          "BookFound",
	BookNotFound:       "BookNotFound",
	BookAdded:          "BookAdded",
	BookAlreadyPresent: "BookAlreadyPresent",
	DispatchFailed:     "DispatchFailed",
}

func (t Type) String() string {
	if int(t) < len(typeNames) && typeNames[t] != "" {
		return typeNames[t]
	}
	return "Unknown"
}

// ParseType returns the Type named s, as printed by String.
func ParseType(s string) (Type, bool) {
	for t, name := range typeNames {
		if name != "" && name == s {
			return Type(t), true
		}
	}
	return 0, false
}

// Terminal reports whether the event ends the processing of a scan.
func (t Type) Terminal() bool {
	switch t {
	case BookFound, BookNotFound, BookAdded, BookAlreadyPresent, DispatchFailed:
		return true
	default:
		return false
	}
}

// Event represents a single scan or dispatch outcome.
type Event struct {
	Type      Type
	Timestamp time.Time
	ScanID    uuid.UUID // zero for events not tied to a completed scan
	Code      string    // scanned code, or the discarded partial buffer
	Mode      string    // dispatch mode the scan was handled in
	Title     string    // book title, when one was resolved
	Authors   string    // comma-separated authors of the resolved book
	Library   string    // target library name in add mode
	Error     error
}

// NewScanID returns a fresh identifier for a completed scan.
func NewScanID() uuid.UUID {
	return uuid.New()
}
