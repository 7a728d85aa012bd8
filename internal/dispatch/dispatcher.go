// Package dispatch resolves scanned codes against the library backend.
//
// The embedding application decides the Mode for every scan: Lookup shows
// the first catalogue match, Add stores it in the selected library.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bamsammich/shelfscan/internal/event"
	"github.com/bamsammich/shelfscan/internal/library"
)

// Mode selects what happens to a scanned code.
type Mode int

const (
	Lookup Mode = iota
	Add
)

func (m Mode) String() string {
	switch m {
	case Lookup:
		return "lookup"
	case Add:
		return "add"
	default:
		return "unknown"
	}
}

// ParseMode parses "lookup" or "add" (case-insensitive). "search" is
// accepted as an alias for lookup.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lookup", "search", "":
		return Lookup, nil
	case "add":
		return Add, nil
	default:
		return Lookup, fmt.Errorf("unknown mode %q (use lookup or add)", s)
	}
}

// ModeVar holds the current Mode for concurrent readers. The zero value
// holds Lookup.
type ModeVar struct {
	v atomic.Int32
}

func (m *ModeVar) Load() Mode   { return Mode(m.v.Load()) }
func (m *ModeVar) Store(v Mode) { m.v.Store(int32(v)) }

var (
	// ErrNoLibrary is returned in Add mode when no library is selected.
	ErrNoLibrary = errors.New("no library selected")
	// ErrQueueFull is reported when scans arrive faster than the backend
	// can resolve them.
	ErrQueueFull = errors.New("dispatch queue full")
)

// Backend is the part of the library client the dispatcher needs.
type Backend interface {
	Search(ctx context.Context, query string) ([]library.Book, error)
	AddBook(ctx context.Context, libraryID int, b library.Book) (library.AddResult, error)
}

// Result is the outcome of one dispatched code.
type Result struct {
	Book      library.Book
	Found     bool
	Added     bool
	Duplicate bool
	Library   library.Library
}

// Config configures a Dispatcher.
type Config struct {
	Backend Backend
	// Events receives outcome events. Sends never block; a full channel
	// drops the event with a warning.
	Events    chan<- event.Event
	QueueSize int
	Logger    *slog.Logger
}

type job struct {
	id   uuid.UUID
	mode Mode
	code string
}

// Dispatcher resolves scanned codes one at a time, in submission order.
type Dispatcher struct {
	backend Backend
	events  chan<- event.Event
	jobs    chan job
	logger  *slog.Logger

	mu      sync.RWMutex
	library *library.Library
}

// DefaultQueueSize bounds the number of scans waiting for the backend.
const DefaultQueueSize = 32

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		backend: cfg.Backend,
		events:  cfg.Events,
		jobs:    make(chan job, size),
		logger:  logger,
	}
}

// SetLibrary selects the library Add mode stores into.
func (d *Dispatcher) SetLibrary(l library.Library) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.library = &l
}

// Library returns the selected library, if any.
func (d *Dispatcher) Library() (library.Library, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.library == nil {
		return library.Library{}, false
	}
	return *d.library, true
}

// Submit queues a code for Run without blocking. A full queue reports a
// DispatchFailed event and returns ErrQueueFull.
func (d *Dispatcher) Submit(id uuid.UUID, mode Mode, code string) error {
	select {
	case d.jobs <- job{id: id, mode: mode, code: code}:
		return nil
	default:
		d.emit(event.Event{
			Type:   event.DispatchFailed,
			ScanID: id,
			Code:   code,
			Mode:   mode.String(),
			Error:  ErrQueueFull,
		})
		return ErrQueueFull
	}
}

// Run resolves queued codes until ctx is cancelled or Close has been
// called and the queue is drained.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j, ok := <-d.jobs:
			if !ok {
				return nil
			}
			//nolint:errcheck // outcome is reported through events
			d.dispatch(ctx, j.id, j.mode, j.code)
		}
	}
}

// Close stops accepting scans. Run returns once the queued ones are
// resolved. Submit must not be called after Close.
func (d *Dispatcher) Close() {
	close(d.jobs)
}

// Dispatch resolves a single code synchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, mode Mode, code string) (Result, error) {
	return d.dispatch(ctx, uuid.Nil, mode, code)
}

func (d *Dispatcher) dispatch(ctx context.Context, id uuid.UUID, mode Mode, raw string) (Result, error) {
	code := NormalizeCode(raw)
	base := event.Event{ScanID: id, Code: code, Mode: mode.String()}
	fail := func(err error) (Result, error) {
		ev := base
		ev.Type = event.DispatchFailed
		ev.Error = err
		d.emit(ev)
		d.logger.Warn("dispatch failed", "code", code, "mode", mode, "error", err)
		return Result{}, err
	}

	if !ValidISBN(code) {
		d.logger.Debug("scanned code is not a valid ISBN, searching anyway", "code", code)
	}

	var target library.Library
	if mode == Add {
		lib, ok := d.Library()
		if !ok {
			return fail(ErrNoLibrary)
		}
		target = lib
		base.Library = lib.Name
	}

	started := base
	started.Type = event.LookupStarted
	d.emit(started)

	books, err := d.backend.Search(ctx, code)
	if err != nil {
		return fail(err)
	}
	if len(books) == 0 {
		ev := base
		ev.Type = event.BookNotFound
		d.emit(ev)
		d.logger.Info("book not found", "code", code)
		return Result{}, nil
	}

	// The first result is taken as the scanned book.
	book := books[0]
	base.Title = book.Title
	base.Authors = book.Byline()
	res := Result{Book: book, Found: true, Library: target}

	if mode == Lookup {
		ev := base
		ev.Type = event.BookFound
		d.emit(ev)
		d.logger.Info("book found", "code", code, "title", book.Title)
		return res, nil
	}

	added, err := d.backend.AddBook(ctx, target.ID, book)
	if err != nil {
		return fail(err)
	}
	ev := base
	if added.Duplicate {
		ev.Type = event.BookAlreadyPresent
		res.Duplicate = true
	} else {
		ev.Type = event.BookAdded
		res.Added = true
	}
	d.emit(ev)
	d.logger.Info("book stored", "code", code, "title", book.Title,
		"library", target.Name, "duplicate", added.Duplicate)
	return res, nil
}

func (d *Dispatcher) emit(ev event.Event) {
	if d.events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case d.events <- ev:
	default:
		d.logger.Warn("event dropped", "type", ev.Type.String(), "code", ev.Code)
	}
}
