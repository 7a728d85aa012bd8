package dispatch

import (
	"log/slog"
	"time"

	"github.com/bamsammich/shelfscan/internal/event"
	"github.com/bamsammich/shelfscan/internal/scan"
)

// Listener connects a scan.Capture to a Dispatcher. Its Handle method is
// the Capture's handler and the Listener itself is the Capture's observer.
// None of its methods block.
type Listener struct {
	dispatcher *Dispatcher
	events     chan<- event.Event
	mode       func() Mode
	logger     *slog.Logger
}

// NewListener creates a Listener. mode is consulted for every completed
// scan, so the embedding application can switch modes at any time.
func NewListener(d *Dispatcher, events chan<- event.Event, mode func() Mode) *Listener {
	return &Listener{
		dispatcher: d,
		events:     events,
		mode:       mode,
		logger:     d.logger,
	}
}

var _ scan.Observer = (*Listener)(nil)

// Handle receives a completed scan.
func (l *Listener) Handle(code string) {
	id := event.NewScanID()
	mode := l.mode()
	l.emit(event.Event{Type: event.ScanCompleted, ScanID: id, Code: code, Mode: mode.String()})
	l.logger.Debug("scan completed", "code", code, "mode", mode, "scan", id)
	//nolint:errcheck // a full queue is reported as an event
	l.dispatcher.Submit(id, mode, code)
}

func (l *Listener) KeySuppressed(ev scan.KeyEvent) {
	l.emit(event.Event{Type: event.KeySuppressed, Timestamp: ev.Time})
}

func (l *Listener) BufferExpired(partial string, deadline time.Time) {
	l.logger.Debug("scan buffer expired", "partial", partial)
	l.emit(event.Event{Type: event.ScanExpired, Timestamp: deadline, Code: partial})
}

func (l *Listener) BufferReset(partial string) {
	l.logger.Debug("scan buffer reset", "partial", partial)
	l.emit(event.Event{Type: event.ScanReset, Code: partial})
}

func (l *Listener) emit(ev event.Event) {
	if l.events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case l.events <- ev:
	default:
		l.logger.Warn("event dropped", "type", ev.Type.String())
	}
}
