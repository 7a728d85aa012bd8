package scan

import (
	"strings"
	"time"
)

// Buffer accumulates the keys of one in-progress scan together with the
// single deadline that discards it. The zero value is an empty buffer.
//
// A Buffer is owned by exactly one Capture and is not safe for concurrent
// use.
type Buffer struct {
	keys     []string
	deadline time.Time
	pending  bool
	// epoch increments every time a deadline is scheduled or cancelled, so
	// a timer armed for an older deadline can recognise itself as stale.
	epoch uint64
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Len returns the number of buffered keys.
func (b *Buffer) Len() int { return len(b.keys) }

// Empty reports whether no keys are buffered.
func (b *Buffer) Empty() bool { return len(b.keys) == 0 }

// String returns the buffered keys concatenated in arrival order.
func (b *Buffer) String() string { return strings.Join(b.keys, "") }

// Deadline returns the pending deadline and its epoch. ok is false when no
// deadline is pending.
func (b *Buffer) Deadline() (deadline time.Time, epoch uint64, ok bool) {
	return b.deadline, b.epoch, b.pending
}

func (b *Buffer) append(key string) {
	b.keys = append(b.keys, key)
}

// schedule replaces any pending deadline with at.
func (b *Buffer) schedule(at time.Time) uint64 {
	b.epoch++
	b.deadline = at
	b.pending = true
	return b.epoch
}

// clear empties the buffer, cancels the deadline, and returns what was
// buffered.
func (b *Buffer) clear() string {
	s := b.String()
	b.keys = b.keys[:0]
	if b.pending {
		b.epoch++
	}
	b.deadline = time.Time{}
	b.pending = false
	return s
}
