package scan

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrLoopStopped is returned by Loop.Do once Run has returned.
var ErrLoopStopped = errors.New("scan loop stopped")

// Loop serializes key events, resets and deadline expiry for one Capture
// onto a single goroutine. It owns the only timer for that Capture: every
// rescheduled deadline re-arms the same timer, so two deadlines are never
// live at once. The TUI cannot cancel its ticks and relies on Fire's epoch
// check instead; see tui.expireCmd.
type Loop struct {
	capture *Capture
	clock   clockwork.Clock
	reqs    chan func(*Capture)
	stopped chan struct{}
}

// NewLoop creates a dispatcher for c. A nil clock uses the real clock.
func NewLoop(c *Capture, clock clockwork.Clock) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loop{
		capture: c,
		clock:   clock,
		reqs:    make(chan func(*Capture)),
		stopped: make(chan struct{}),
	}
}

// Run delivers events from keys until keys is closed or ctx is cancelled.
// Events with a zero Time are stamped with the loop's clock.
func (l *Loop) Run(ctx context.Context, keys <-chan KeyEvent) error {
	defer close(l.stopped)

	var (
		timer  clockwork.Timer
		timerC <-chan time.Time
		armed  uint64
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	rearm := func() {
		deadline, epoch, ok := l.capture.Deadline()
		if !ok {
			if timer != nil {
				timer.Stop()
			}
			timerC = nil
			return
		}
		if timerC != nil && epoch == armed {
			return
		}
		d := max(deadline.Sub(l.clock.Now()), 0)
		if timer == nil {
			timer = l.clock.NewTimer(d)
		} else {
			timer.Stop()
			timer.Reset(d)
		}
		timerC = timer.Chan()
		armed = epoch
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-keys:
			if !ok {
				return nil
			}
			if ev.Time.IsZero() {
				ev.Time = l.clock.Now()
			}
			l.capture.OnKeyEvent(ev)
		case fn := <-l.reqs:
			fn(l.capture)
		case <-timerC:
			timerC = nil
			// Compare against the clock rather than trusting the tick: a
			// tick that raced a re-arm must not clear the newer deadline.
			l.capture.Expire(l.clock.Now())
		}
		rearm()
	}
}

// Do runs fn on the loop goroutine and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func(*Capture)) error {
	done := make(chan struct{})
	req := func(c *Capture) {
		fn(c)
		close(done)
	}
	select {
	case l.reqs <- req:
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset clears the Capture's buffer and cancels its deadline before
// returning.
func (l *Loop) Reset(ctx context.Context) error {
	return l.Do(ctx, (*Capture).Reset)
}
