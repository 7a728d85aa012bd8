// Package scan turns a raw keystroke stream into completed barcode scans.
//
// A keyboard-emulating scanner types a whole code in a burst and finishes
// with a terminator key. Human typing is much slower. A Capture buffers keys
// while they keep arriving within the idle timeout and hands the buffer to
// its Handler when the terminator arrives; a buffer whose deadline passes is
// dropped silently.
package scan

import (
	"errors"
	"time"
)

// KeyEvent is a single key press observed by the host.
type KeyEvent struct {
	Key  string
	Time time.Time
	// Editable is set when an editable text control had input focus.
	Editable bool
}

// Handler receives completed scans.
type Handler func(code string)

// Observer receives the transitions that do not produce a scan. Every
// method is called on the goroutine that drives the Capture.
type Observer interface {
	KeySuppressed(ev KeyEvent)
	BufferExpired(partial string, deadline time.Time)
	BufferReset(partial string)
}

// State is the externally visible state of a Capture.
type State int

const (
	Idle State = iota
	Accumulating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Accumulating:
		return "Accumulating"
	default:
		return "Unknown"
	}
}

// Decision is the outcome of a single OnKeyEvent call.
type Decision int

const (
	// Ignored: terminator with an empty buffer.
	Ignored Decision = iota
	// Suppressed: key typed into an editable control.
	Suppressed
	// Buffered: key appended and deadline rescheduled.
	Buffered
	// Completed: terminator submitted a non-empty buffer.
	Completed
)

var decisionNames = [...]string{
	Ignored:    "Ignored",
	Suppressed: "Suppressed",
	Buffered:   "Buffered",
	Completed:  "Completed",
}

func (d Decision) String() string {
	if int(d) < len(decisionNames) {
		return decisionNames[d]
	}
	return "Unknown"
}

// Capture classifies key events. It is not safe for concurrent use: the
// host must deliver events, expiries and resets from one goroutine (see
// Loop for a dispatcher that does this).
type Capture struct {
	cfg      Config
	buf      *Buffer
	handler  Handler
	observer Observer
}

// Option configures a Capture.
type Option func(*Capture)

// WithObserver registers an Observer for non-emitting transitions.
func WithObserver(o Observer) Option {
	return func(c *Capture) { c.observer = o }
}

// New creates a Capture that accumulates into buf and reports completed
// scans to h.
func New(cfg Config, buf *Buffer, h Handler, opts ...Option) (*Capture, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, errors.New("scan buffer is required")
	}
	if h == nil {
		return nil, errors.New("scan handler is required")
	}
	c := &Capture{cfg: cfg, buf: buf, handler: h}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the configuration the Capture was built with.
func (c *Capture) Config() Config { return c.cfg }

// State reports Idle when nothing is buffered.
func (c *Capture) State() State {
	if c.buf.Empty() {
		return Idle
	}
	return Accumulating
}

// Buffered returns the keys accumulated so far.
func (c *Capture) Buffered() string { return c.buf.String() }

// Deadline returns the pending deadline and its epoch, if any.
func (c *Capture) Deadline() (time.Time, uint64, bool) { return c.buf.Deadline() }

// OnKeyEvent feeds one key event. Events must arrive in temporal order.
//
// A deadline that lies at or before ev.Time is applied first: its timer
// would have fired before this key was observed.
func (c *Capture) OnKeyEvent(ev KeyEvent) Decision {
	c.Expire(ev.Time)

	if c.cfg.SuppressWhenFocused && ev.Editable {
		if c.observer != nil {
			c.observer.KeySuppressed(ev)
		}
		return Suppressed
	}

	if ev.Key == c.cfg.Terminator {
		if c.buf.Empty() {
			return Ignored
		}
		code := c.buf.clear()
		c.handler(code)
		return Completed
	}

	c.buf.append(ev.Key)
	c.buf.schedule(ev.Time.Add(c.cfg.IdleTimeout))
	return Buffered
}

// Expire discards the buffer if its deadline is at or before now. It
// reports whether anything was discarded.
func (c *Capture) Expire(now time.Time) bool {
	deadline, _, ok := c.buf.Deadline()
	if !ok || now.Before(deadline) {
		return false
	}
	c.expire(deadline)
	return true
}

// Fire is the timer callback for the deadline scheduled under epoch. A
// stale epoch is ignored, so a late timer can never clear keys that were
// buffered after it was superseded.
func (c *Capture) Fire(epoch uint64) bool {
	deadline, current, ok := c.buf.Deadline()
	if !ok || current != epoch {
		return false
	}
	c.expire(deadline)
	return true
}

func (c *Capture) expire(deadline time.Time) {
	partial := c.buf.clear()
	if c.observer != nil {
		c.observer.BufferExpired(partial, deadline)
	}
}

// Reset clears the buffer and cancels the pending deadline without
// emitting anything.
func (c *Capture) Reset() {
	partial := c.buf.clear()
	if c.observer != nil && partial != "" {
		c.observer.BufferReset(partial)
	}
}
