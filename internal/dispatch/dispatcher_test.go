package dispatch_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/shelfscan/internal/dispatch"
	"github.com/bamsammich/shelfscan/internal/event"
	"github.com/bamsammich/shelfscan/internal/library"
	"github.com/bamsammich/shelfscan/internal/library/librarytest"
	"github.com/bamsammich/shelfscan/internal/scan"
)

const duneISBN = "9780441013593"

var dune = library.Book{BookID: "B1", Title: "Dune", Authors: []string{"Frank Herbert"}, ISBN: duneISBN}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	backend *librarytest.Backend
	client  *library.Client
	events  chan event.Event
	d       *dispatch.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := librarytest.New(t)
	client, err := library.New(library.Options{BaseURL: backend.URL})
	require.NoError(t, err)
	events := make(chan event.Event, 64)
	d := dispatch.New(dispatch.Config{Backend: client, Events: events, Logger: quietLogger()})
	return &fixture{backend: backend, client: client, events: events, d: d}
}

func drain(ch chan event.Event) []event.Type {
	var types []event.Type
	for {
		select {
		case ev := <-ch:
			types = append(types, ev.Type)
		default:
			return types
		}
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]dispatch.Mode{
		"lookup": dispatch.Lookup, "Search": dispatch.Lookup, "": dispatch.Lookup, "ADD": dispatch.Add,
	} {
		got, err := dispatch.ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := dispatch.ParseMode("delete")
	assert.Error(t, err)
	assert.Equal(t, "add", dispatch.Add.String())
	assert.Equal(t, "unknown", dispatch.Mode(7).String())
}

func TestModeVar(t *testing.T) {
	t.Parallel()

	var m dispatch.ModeVar
	assert.Equal(t, dispatch.Lookup, m.Load(), "zero value is lookup")
	m.Store(dispatch.Add)
	assert.Equal(t, dispatch.Add, m.Load())
}

func TestDispatch_LookupFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.backend.AddCatalogue(duneISBN, dune)

	res, err := f.d.Dispatch(context.Background(), dispatch.Lookup, "978-0-441-01359-3")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.False(t, res.Added)
	assert.Equal(t, "Dune", res.Book.Title)
	assert.Equal(t, []event.Type{event.LookupStarted, event.BookFound}, drain(f.events))
	assert.Equal(t, []string{"GET /search?q=" + duneISBN}, f.backend.Requests())
}

func TestDispatch_FirstResultWins(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.backend.AddCatalogue(duneISBN, dune, library.Book{BookID: "B2", Title: "Dune Messiah"})

	res, err := f.d.Dispatch(context.Background(), dispatch.Lookup, duneISBN)
	require.NoError(t, err)
	assert.Equal(t, "B1", res.Book.BookID)
}

func TestDispatch_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res, err := f.d.Dispatch(context.Background(), dispatch.Lookup, duneISBN)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, []event.Type{event.LookupStarted, event.BookNotFound}, drain(f.events))
}

func TestDispatch_AddRequiresLibrary(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.backend.AddCatalogue(duneISBN, dune)

	_, err := f.d.Dispatch(context.Background(), dispatch.Add, duneISBN)
	require.ErrorIs(t, err, dispatch.ErrNoLibrary)
	assert.Equal(t, []event.Type{event.DispatchFailed}, drain(f.events))
	assert.Empty(t, f.backend.Requests())
}

func TestDispatch_AddAndDuplicate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.backend.AddCatalogue(duneISBN, dune)
	id := f.backend.AddLibrary("Home")

	lib, err := f.client.FindLibrary(context.Background(), "home")
	require.NoError(t, err)
	f.d.SetLibrary(lib)

	res, err := f.d.Dispatch(context.Background(), dispatch.Add, duneISBN)
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.Equal(t, "Home", res.Library.Name)

	res, err = f.d.Dispatch(context.Background(), dispatch.Add, duneISBN)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.False(t, res.Added)

	assert.Len(t, f.backend.Books(id), 1)
	assert.Equal(t, []event.Type{
		event.LookupStarted, event.BookAdded,
		event.LookupStarted, event.BookAlreadyPresent,
	}, drain(f.events))
}

func TestDispatch_BackendFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.backend.FailNext(http.StatusBadGateway)

	_, err := f.d.Dispatch(context.Background(), dispatch.Lookup, duneISBN)
	require.ErrorIs(t, err, library.ErrServer)
	assert.Equal(t, []event.Type{event.LookupStarted, event.DispatchFailed}, drain(f.events))
}

func TestSubmit_QueueFull(t *testing.T) {
	t.Parallel()
	events := make(chan event.Event, 8)
	d := dispatch.New(dispatch.Config{Events: events, QueueSize: 1, Logger: quietLogger()})

	require.NoError(t, d.Submit(uuid.New(), dispatch.Lookup, "1"))
	err := d.Submit(uuid.New(), dispatch.Lookup, "2")
	require.ErrorIs(t, err, dispatch.ErrQueueFull)

	ev := <-events
	assert.Equal(t, event.DispatchFailed, ev.Type)
	assert.Equal(t, "2", ev.Code)
}

func TestRun_ProcessesQueueInOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.backend.AddCatalogue("111", library.Book{BookID: "1", Title: "One"})
	f.backend.AddCatalogue("222", library.Book{BookID: "2", Title: "Two"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.d.Run(ctx) }()

	require.NoError(t, f.d.Submit(uuid.New(), dispatch.Lookup, "111"))
	require.NoError(t, f.d.Submit(uuid.New(), dispatch.Lookup, "222"))

	var titles []string
	timeout := time.After(5 * time.Second)
	for len(titles) < 2 {
		select {
		case ev := <-f.events:
			if ev.Type == event.BookFound {
				titles = append(titles, ev.Title)
			}
		case <-timeout:
			t.Fatal("timed out waiting for dispatch")
		}
	}
	assert.Equal(t, []string{"One", "Two"}, titles)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRun_CloseDrainsQueue(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.backend.AddCatalogue("111", library.Book{BookID: "1", Title: "One"})

	require.NoError(t, f.d.Submit(uuid.New(), dispatch.Lookup, "111"))
	require.NoError(t, f.d.Submit(uuid.New(), dispatch.Lookup, "999"))
	f.d.Close()

	require.NoError(t, f.d.Run(context.Background()))
	assert.Equal(t, []event.Type{
		event.LookupStarted, event.BookFound,
		event.LookupStarted, event.BookNotFound,
	}, drain(f.events))
}

func TestListener_EndToEnd(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.backend.AddCatalogue(duneISBN, dune)
	libID := f.backend.AddLibrary("Home")
	f.d.SetLibrary(library.Library{ID: libID, Name: "Home"})

	mode := dispatch.Lookup
	l := dispatch.NewListener(f.d, f.events, func() dispatch.Mode { return mode })
	c, err := scan.New(scan.DefaultConfig(), scan.NewBuffer(), l.Handle, scan.WithObserver(l))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.d.Run(ctx) //nolint:errcheck // stopped by cancel

	typeCode := func(start time.Time) {
		ts := start
		for _, r := range duneISBN {
			c.OnKeyEvent(scan.KeyEvent{Key: string(r), Time: ts})
			ts = ts.Add(5 * time.Millisecond)
		}
		c.OnKeyEvent(scan.KeyEvent{Key: scan.KeyEnter, Time: ts})
	}

	start := time.Now()
	typeCode(start)
	mode = dispatch.Add
	typeCode(start.Add(time.Second))

	var got []event.Event
	timeout := time.After(5 * time.Second)
	for terminal := 0; terminal < 2; {
		select {
		case ev := <-f.events:
			got = append(got, ev)
			if ev.Type.Terminal() {
				terminal++
			}
		case <-timeout:
			t.Fatal("timed out waiting for dispatch")
		}
	}

	var completed []event.Event
	for _, ev := range got {
		if ev.Type == event.ScanCompleted {
			completed = append(completed, ev)
		}
	}
	require.Len(t, completed, 2)
	assert.Equal(t, "lookup", completed[0].Mode)
	assert.Equal(t, "add", completed[1].Mode)
	assert.NotEqual(t, completed[0].ScanID, completed[1].ScanID)

	last := got[len(got)-1]
	assert.Equal(t, event.BookAdded, last.Type)
	assert.Equal(t, completed[1].ScanID, last.ScanID)
	assert.Len(t, f.backend.Books(libID), 1)
}
