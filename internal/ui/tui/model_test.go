package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/shelfscan/internal/dispatch"
	"github.com/bamsammich/shelfscan/internal/event"
	"github.com/bamsammich/shelfscan/internal/library"
	"github.com/bamsammich/shelfscan/internal/scan"
	"github.com/bamsammich/shelfscan/internal/stats"
)

type submission struct {
	mode dispatch.Mode
	code string
}

type fakeDispatcher struct {
	mu        sync.Mutex
	submitted []submission
	library   *library.Library
	err       error
}

func (d *fakeDispatcher) Submit(_ uuid.UUID, mode dispatch.Mode, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.submitted = append(d.submitted, submission{mode, code})
	return nil
}

func (d *fakeDispatcher) SetLibrary(l library.Library) { d.library = &l }

func (d *fakeDispatcher) Library() (library.Library, bool) {
	if d.library == nil {
		return library.Library{}, false
	}
	return *d.library, true
}

type fakeLister struct {
	libs []library.Library
	err  error
}

func (f fakeLister) Libraries(context.Context) ([]library.Library, error) { return f.libs, f.err }

type harness struct {
	m        Model
	scans    *[]string
	disp     *fakeDispatcher
	modeVar  *dispatch.ModeVar
	clockNow *time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	var scans []string
	c, err := scan.New(scan.DefaultConfig(), scan.NewBuffer(), func(code string) {
		scans = append(scans, code)
	})
	require.NoError(t, err)

	disp := &fakeDispatcher{}
	modeVar := &dispatch.ModeVar{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewModel(make(chan event.Event, 10), Config{
		Stats:      stats.NewCollector(),
		Capture:    c,
		Dispatcher: disp,
		Libraries:  fakeLister{libs: []library.Library{{ID: 1, Name: "Home"}, {ID: 2, Name: "Office"}}},
		Mode:       modeVar,
	})
	h := &harness{m: m, scans: &scans, disp: disp, modeVar: modeVar, clockNow: &now}
	h.m.now = func() time.Time { return *h.clockNow }
	return h
}

func (h *harness) send(t *testing.T, msg tea.Msg) tea.Cmd {
	t.Helper()
	updated, cmd := h.m.Update(msg)
	model, ok := updated.(Model)
	require.True(t, ok)
	model.now = h.m.now
	h.m = model
	return cmd
}

func (h *harness) advance(d time.Duration) { *h.clockNow = h.clockNow.Add(d) }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestModel_Init(t *testing.T) {
	h := newHarness(t)
	assert.NotNil(t, h.m.Init())
}

func TestModel_CtrlC_Quits(t *testing.T) {
	h := newHarness(t)
	cmd := h.send(t, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, h.m.quitting)
	assert.NotNil(t, cmd) // tea.Quit
	assert.Empty(t, h.m.View())
}

func TestModel_ScannedKeysComplete(t *testing.T) {
	h := newHarness(t)

	for _, r := range "978044101359" {
		h.send(t, runes(string(r)))
		h.advance(5 * time.Millisecond)
	}
	assert.Equal(t, scan.Accumulating, h.m.capture.State())
	assert.Contains(t, h.m.renderBuffer(), "978044101359")

	h.send(t, runes("3"))
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []string{"9780441013593"}, *h.scans)
	assert.Equal(t, scan.Idle, h.m.capture.State())
}

func TestModel_BurstRunesInOneMessage(t *testing.T) {
	h := newHarness(t)

	h.send(t, runes("9780441013593"))
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []string{"9780441013593"}, *h.scans)
}

func TestModel_ExpiryTimerDiscardsSlowTyping(t *testing.T) {
	h := newHarness(t)

	cmd := h.send(t, runes("1"))
	require.NotNil(t, cmd, "buffered key schedules an expiry")

	_, epoch, ok := h.m.capture.Deadline()
	require.True(t, ok)
	h.send(t, expireMsg{epoch: epoch})

	assert.Equal(t, scan.Idle, h.m.capture.State())
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, *h.scans)
}

func TestModel_StaleExpiryIgnored(t *testing.T) {
	h := newHarness(t)

	h.send(t, runes("1"))
	_, stale, _ := h.m.capture.Deadline()
	h.advance(10 * time.Millisecond)
	h.send(t, runes("2"))

	h.send(t, expireMsg{epoch: stale})
	assert.Equal(t, "12", h.m.capture.Buffered())
}

func TestModel_OnlyLatestExpiryTickActs(t *testing.T) {
	h := newHarness(t)

	var epochs []uint64
	for _, k := range []string{"9", "7", "8"} {
		require.NotNil(t, h.send(t, runes(k)), "each buffered key schedules a tick")
		_, epoch, ok := h.m.capture.Deadline()
		require.True(t, ok)
		epochs = append(epochs, epoch)
		h.advance(5 * time.Millisecond)
	}
	require.Len(t, epochs, 3)

	// Every earlier tick is still delivered by Bubble Tea; none may clear
	// the buffer, whatever order they arrive in.
	h.advance(time.Second)
	h.send(t, expireMsg{epoch: epochs[1]})
	h.send(t, expireMsg{epoch: epochs[0]})
	assert.Equal(t, "978", h.m.capture.Buffered())

	h.send(t, expireMsg{epoch: epochs[2]})
	assert.Empty(t, h.m.capture.Buffered())
	assert.Equal(t, scan.Idle, h.m.capture.State())

	// A tick arriving after the expiry is a no-op too.
	h.send(t, expireMsg{epoch: epochs[2]})
	assert.Equal(t, scan.Idle, h.m.capture.State())
}

func TestModel_TabSwitchesViewAndResets(t *testing.T) {
	h := newHarness(t)
	h.send(t, runes("97804"))

	h.send(t, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, viewAdd, h.m.view)
	assert.Equal(t, dispatch.Add, h.modeVar.Load())
	assert.Equal(t, scan.Idle, h.m.capture.State(), "view switch discards the partial scan")
	assert.Contains(t, h.m.statusMsg, "no library selected")

	h.send(t, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, viewLookup, h.m.view)
	assert.Equal(t, dispatch.Lookup, h.modeVar.Load())
}

func TestModel_SearchModalSuppressesCapture(t *testing.T) {
	h := newHarness(t)

	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlF})
	require.True(t, h.m.input.active)

	h.send(t, runes("dune"))
	h.send(t, tea.KeyMsg{Type: tea.KeySpace})
	h.send(t, runes("messiah"))
	assert.Equal(t, scan.Idle, h.m.capture.State())

	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, h.m.input.active)
	assert.Empty(t, *h.scans, "enter in the search field is not a scan")
	assert.Equal(t, []submission{{dispatch.Lookup, "dune messiah"}}, h.disp.submitted)
}

func TestModel_SearchSubmitError(t *testing.T) {
	h := newHarness(t)
	h.disp.err = dispatch.ErrQueueFull

	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlF})
	h.send(t, runes("x"))
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, h.m.statusMsg, "queue full")
}

func TestModel_SearchModalEscape(t *testing.T) {
	h := newHarness(t)

	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlF})
	h.send(t, runes("abc"))
	h.send(t, tea.KeyMsg{Type: tea.KeyEscape})
	assert.False(t, h.m.input.active)
	assert.Empty(t, h.disp.submitted)
}

func TestModel_LibraryPicker(t *testing.T) {
	h := newHarness(t)

	cmd := h.send(t, tea.KeyMsg{Type: tea.KeyCtrlL})
	require.True(t, h.m.picker.active)
	require.True(t, h.m.picker.loading)
	require.NotNil(t, cmd)

	h.send(t, cmd())
	require.False(t, h.m.picker.loading)
	require.Len(t, h.m.picker.libs, 2)

	h.send(t, tea.KeyMsg{Type: tea.KeyDown})
	h.send(t, tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, h.m.picker.active)
	lib, ok := h.disp.Library()
	require.True(t, ok)
	assert.Equal(t, "Office", lib.Name)
	assert.Empty(t, *h.scans, "enter in the picker is not a scan")
}

func TestModel_LibraryPickerError(t *testing.T) {
	h := newHarness(t)
	h.m.libraries = fakeLister{err: errors.New("connection refused")}

	cmd := h.send(t, tea.KeyMsg{Type: tea.KeyCtrlL})
	h.send(t, cmd())
	assert.Equal(t, "connection refused", h.m.picker.err)
	assert.Contains(t, h.m.View(), "connection refused")
}

func TestModel_ExternalKeys(t *testing.T) {
	h := newHarness(t)
	t0 := *h.clockNow

	for i, k := range []string{"4", "2", scan.KeyEnter} {
		h.send(t, keyEventMsg{Key: k, Time: t0.Add(time.Duration(i) * time.Millisecond)})
	}
	assert.Equal(t, []string{"42"}, *h.scans)
}

func TestModel_EngineEventUpdatesFeed(t *testing.T) {
	h := newHarness(t)

	cmd := h.send(t, engineEventMsg(event.Event{Type: event.BookFound, Code: "1", Title: "Dune", Authors: "Frank Herbert"}))
	assert.NotNil(t, cmd) // reads next event
	require.Len(t, h.m.feed.entries, 1)

	out := h.m.View()
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "Frank Herbert")
}

func TestModel_ChannelDone(t *testing.T) {
	h := newHarness(t)
	h.send(t, channelDoneMsg{})
	assert.True(t, h.m.done)
	assert.Contains(t, h.m.renderHeader(), "done")
}

func TestModel_AddViewShowsTarget(t *testing.T) {
	h := newHarness(t)
	h.disp.SetLibrary(library.Library{ID: 1, Name: "Home", Tags: []string{"fiction"}})

	h.send(t, tea.KeyMsg{Type: tea.KeyTab})
	out := h.m.View()
	assert.Contains(t, out, "ADD")
	assert.Contains(t, out, "adding to")
	assert.Contains(t, out, "Home")
}

func TestModel_SaveReport(t *testing.T) {
	h := newHarness(t)
	h.send(t, engineEventMsg(event.Event{Type: event.BookAdded, Code: "1", Title: "Dune", Library: "Home"}))
	h.send(t, engineEventMsg(event.Event{Type: event.BookNotFound, Code: "2"}))

	path := filepath.Join(t.TempDir(), "report.txt")
	cmd := h.m.writeReport(path)
	msg := cmd()

	result, ok := msg.(saveResultMsg)
	require.True(t, ok)
	require.NoError(t, result.err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "shelfscan session report")
	assert.Contains(t, string(data), "+  1              Dune  [Home]")
	assert.Contains(t, string(data), "?  2              not found")

	h.send(t, result)
	assert.Contains(t, h.m.statusMsg, "saved to")
}

func TestModel_SaveModalOpensWithDefault(t *testing.T) {
	h := newHarness(t)
	h.send(t, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.True(t, h.m.input.active)
	assert.Equal(t, inputSave, h.m.input.purpose)
	assert.Equal(t, "shelfscan-2024-05-01-120000.txt", h.m.input.value())
	assert.Contains(t, h.m.input.render(), "Save to: ")
}

func TestInputModal_Editing(t *testing.T) {
	s := newInputModal()
	s.open(inputSearch, "")
	s.update(runes("héllo"))
	assert.Equal(t, "héllo", s.value())

	for range 3 {
		s.update(tea.KeyMsg{Type: tea.KeyLeft})
	}
	s.update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "hllo", s.value())

	s.update(tea.KeyMsg{Type: tea.KeyDelete})
	assert.Equal(t, "hlo", s.value())

	s.update(tea.KeyMsg{Type: tea.KeyRight})
	s.update(tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, "hl o", s.value())
}

func TestInputModal_ReopenReplacesText(t *testing.T) {
	s := newInputModal()
	s.open(inputSearch, "")
	s.update(runes("dune"))
	s.close()
	assert.False(t, s.active)

	s.open(inputSave, "report.txt")
	assert.True(t, s.active)
	assert.Equal(t, "report.txt", s.value())
	s.update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "report.tx", s.value(), "cursor starts at the end")
}

func TestModel_Resize(t *testing.T) {
	h := newHarness(t)
	h.send(t, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, h.m.width)
	assert.Equal(t, 40, h.m.height)
}
