package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/bamsammich/shelfscan/internal/dispatch"
	"github.com/bamsammich/shelfscan/internal/event"
	"github.com/bamsammich/shelfscan/internal/library"
	"github.com/bamsammich/shelfscan/internal/scan"
	"github.com/bamsammich/shelfscan/internal/stats"
	"github.com/bamsammich/shelfscan/internal/ui"
)

// Dispatcher is the part of dispatch.Dispatcher the TUI drives.
type Dispatcher interface {
	Submit(id uuid.UUID, mode dispatch.Mode, code string) error
	SetLibrary(l library.Library)
	Library() (library.Library, bool)
}

// LibraryLister lists the libraries offered by the picker.
type LibraryLister interface {
	Libraries(ctx context.Context) ([]library.Library, error)
}

// Bubble Tea messages.
type engineEventMsg event.Event
type channelDoneMsg struct{}
type tickMsg time.Time
type saveResultMsg struct {
	path string
	err  error
}
type keyEventMsg scan.KeyEvent
type keysDoneMsg struct{}

// expireMsg is the timer for the capture deadline scheduled under epoch.
type expireMsg struct{ epoch uint64 }

type librariesMsg struct {
	libs []library.Library
	err  error
}

// readNextEvent returns a tea.Cmd that blocks on the event channel.
func readNextEvent(ch <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return channelDoneMsg{}
		}
		return engineEventMsg(ev)
	}
}

// readNextKey returns a tea.Cmd that blocks on an external key source.
func readNextKey(ch <-chan scan.KeyEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return keysDoneMsg{}
		}
		return keyEventMsg(ev)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// expireCmd fires when the pending capture deadline passes. Bubble Tea
// ticks cannot be cancelled, so each buffered key leaves one tick running.
// Every tick carries the epoch it was scheduled under and Capture.Fire
// ignores all but the current one, so at most one deadline is ever acted
// on, as with the single timer in scan.Loop.
func expireCmd(c *scan.Capture, now time.Time) tea.Cmd {
	deadline, epoch, ok := c.Deadline()
	if !ok {
		return nil
	}
	return tea.Tick(deadline.Sub(now), func(time.Time) tea.Msg {
		return expireMsg{epoch: epoch}
	})
}

func loadLibraries(l LibraryLister) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		libs, err := l.Libraries(ctx)
		return librariesMsg{libs: libs, err: err}
	}
}

type viewMode int

const (
	viewLookup viewMode = iota
	viewAdd
)

type inputPurpose int

const (
	inputSearch inputPurpose = iota
	inputSave
)

// inputModal is a one-line text field overlay. While it is open it has
// keyboard focus, so keys reach the capture flagged Editable.
type inputModal struct {
	active  bool
	purpose inputPurpose
	field   textinput.Model
}

func newInputModal() inputModal {
	f := textinput.New()
	f.PromptStyle = stylePrompt
	f.TextStyle = styleInput
	f.Cursor.Style = styleInput
	f.Cursor.SetMode(cursor.CursorStatic)
	return inputModal{field: f}
}

func (s *inputModal) open(p inputPurpose, initial string) {
	s.active = true
	s.purpose = p
	s.field.Prompt = "Search: "
	if p == inputSave {
		s.field.Prompt = "Save to: "
	}
	s.field.SetValue(initial)
	s.field.CursorEnd()
	s.field.Focus()
}

func (s *inputModal) close() {
	s.active = false
	s.field.Blur()
}

func (s *inputModal) value() string { return s.field.Value() }

// update lets the text field handle an editing key.
func (s *inputModal) update(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeySpace && len(msg.Runes) == 0 {
		msg.Runes = []rune{' '}
	}
	var cmd tea.Cmd
	s.field, cmd = s.field.Update(msg)
	return cmd
}

func (s *inputModal) render() string {
	return "  " + s.field.View()
}

// libraryPicker is the overlay for choosing the add-mode library.
type libraryPicker struct {
	active  bool
	loading bool
	libs    []library.Library
	cursor  int
	err     string
}

func (p *libraryPicker) render(current string) string {
	var b strings.Builder
	b.WriteString(styleDivider.Render("─ libraries"))
	b.WriteByte('\n')
	switch {
	case p.loading:
		b.WriteString(stylePrompt.Render("  loading..."))
		b.WriteByte('\n')
	case p.err != "":
		b.WriteString(styleError.Render("  " + p.err))
		b.WriteByte('\n')
	case len(p.libs) == 0:
		b.WriteString(stylePrompt.Render("  no libraries; create one with `shelfscan libraries create`"))
		b.WriteByte('\n')
	}
	for i, l := range p.libs {
		marker := "  "
		name := fmt.Sprintf("%s  (%d books)", l.Name, l.BookCount)
		if l.Name == current {
			name += "  *"
		}
		if i == p.cursor {
			marker = styleSelected.Render("› ")
			name = styleSelected.Render(name)
		}
		b.WriteString("  " + marker + name)
		b.WriteByte('\n')
	}
	return b.String()
}

// Config configures the TUI model.
type Config struct {
	Stats      stats.ReadTicker
	Capture    *scan.Capture
	Dispatcher Dispatcher
	Libraries  LibraryLister
	Mode       *dispatch.ModeVar
	// Keys optionally delivers key events from a source other than the
	// terminal, such as a grabbed input device.
	Keys <-chan scan.KeyEvent

	// Input and Output override the terminal. Nil means stdin and stderr.
	Input  io.Reader
	Output io.Writer
}

// Model is the root Bubble Tea model.
type Model struct {
	events     <-chan event.Event
	keys       <-chan scan.KeyEvent
	stats      stats.ReadTicker
	capture    *scan.Capture
	dispatcher Dispatcher
	libraries  LibraryLister
	mode       *dispatch.ModeVar
	now        func() time.Time

	view      viewMode
	feed      feedView
	rate      rateView
	width     int
	height    int
	statusMsg string // transient notification
	done      bool   // event stream closed
	quitting  bool

	lastSnap stats.Snapshot

	input  inputModal
	picker libraryPicker
}

// NewModel creates a new TUI model.
func NewModel(events <-chan event.Event, cfg Config) Model {
	mode := cfg.Mode
	if mode == nil {
		mode = &dispatch.ModeVar{}
	}
	v := viewLookup
	if mode.Load() == dispatch.Add {
		v = viewAdd
	}
	return Model{
		events:     events,
		keys:       cfg.Keys,
		stats:      cfg.Stats,
		capture:    cfg.Capture,
		dispatcher: cfg.Dispatcher,
		libraries:  cfg.Libraries,
		mode:       mode,
		now:        time.Now,
		view:       v,
		feed:       newFeedView(),
		input:      newInputModal(),
		width:      80,
		height:     24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		readNextEvent(m.events),
		readNextKey(m.keys),
		tickCmd(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case keyEventMsg:
		ev := scan.KeyEvent(msg)
		ev.Editable = m.focused()
		cmd := m.feedCapture(ev)
		return m, tea.Batch(cmd, readNextKey(m.keys))

	case keysDoneMsg:
		m.statusMsg = "input device closed"
		return m, nil

	case expireMsg:
		m.capture.Fire(msg.epoch)
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case engineEventMsg:
		m.feed.handleEvent(event.Event(msg))
		return m, readNextEvent(m.events)

	case channelDoneMsg:
		m.done = true
		m.lastSnap = m.stats.Snapshot()
		return m, nil

	case tickMsg:
		m.stats.Tick()
		m.lastSnap = m.stats.Snapshot()
		return m, tickCmd()

	case librariesMsg:
		m.picker.loading = false
		if msg.err != nil {
			m.picker.err = msg.err.Error()
			return m, nil
		}
		m.picker.libs = msg.libs
		m.picker.cursor = 0
		if cur, ok := m.dispatcher.Library(); ok {
			for i, l := range msg.libs {
				if l.ID == cur.ID {
					m.picker.cursor = i
				}
			}
		}
		return m, nil

	case saveResultMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("save failed: %v", msg.err)
		} else {
			m.statusMsg = fmt.Sprintf("saved to %s", msg.path)
		}
		return m, nil
	}

	return m, nil
}

// focused reports whether an overlay owns keyboard focus.
func (m Model) focused() bool {
	return m.input.active || m.picker.active
}

// feedCapture hands a key to the capture and schedules its expiry.
func (m Model) feedCapture(ev scan.KeyEvent) tea.Cmd {
	if ev.Time.IsZero() {
		ev.Time = m.now()
	}
	if m.capture.OnKeyEvent(ev) != scan.Buffered {
		return nil
	}
	return expireCmd(m.capture, m.now())
}

// captureKeys translates a terminal key press into capture keys.
func captureKeys(msg tea.KeyMsg) []string {
	switch msg.Type {
	case tea.KeyRunes:
		keys := make([]string, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			keys = append(keys, string(r))
		}
		return keys
	case tea.KeySpace:
		return []string{" "}
	case tea.KeyEnter:
		return []string{scan.KeyEnter}
	case tea.KeyTab:
		return []string{scan.KeyTab}
	default:
		return nil
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	// An open overlay has focus: the capture sees the keys as typed into
	// an editable control, then the overlay handles them.
	if m.focused() {
		var cmds []tea.Cmd
		now := m.now()
		for _, k := range captureKeys(msg) {
			cmds = append(cmds, m.feedCapture(scan.KeyEvent{Key: k, Time: now, Editable: true}))
		}
		var (
			next tea.Model
			cmd  tea.Cmd
		)
		if m.picker.active {
			next, cmd = m.handlePickerKey(msg)
		} else {
			next, cmd = m.handleInputKey(msg)
		}
		return next, tea.Batch(append(cmds, cmd)...)
	}

	switch msg.String() {
	case "tab", "ctrl+t":
		if msg.String() == "tab" && m.capture.Config().Terminator == "Tab" {
			break
		}
		return m.toggleView()

	case "ctrl+f":
		m.input.open(inputSearch, "")
		m.statusMsg = ""
		return m, nil

	case "ctrl+l":
		m.statusMsg = ""
		if m.libraries == nil {
			m.picker = libraryPicker{active: true, err: "library backend not configured"}
			return m, nil
		}
		m.picker = libraryPicker{active: true, loading: true}
		return m, loadLibraries(m.libraries)

	case "ctrl+s":
		m.input.open(inputSave, fmt.Sprintf("shelfscan-%s.txt", m.now().Format("2006-01-02-150405")))
		m.statusMsg = ""
		return m, nil

	// Scroll keys for the feed.
	case "down":
		m.feed.scrollDown()
		return m, nil

	case "up":
		m.feed.scrollUp()
		return m, nil

	case "end":
		m.feed.scrollToBottom()
		return m, nil

	case "home":
		m.feed.scrollToTop()
		return m, nil
	}

	var cmds []tea.Cmd
	now := m.now()
	for _, k := range captureKeys(msg) {
		cmds = append(cmds, m.feedCapture(scan.KeyEvent{Key: k, Time: now}))
	}
	return m, tea.Batch(cmds...)
}

// toggleView switches between lookup and add. Keys buffered under the old
// view are discarded.
func (m Model) toggleView() (tea.Model, tea.Cmd) {
	m.capture.Reset()
	if m.view == viewLookup {
		m.view = viewAdd
		m.mode.Store(dispatch.Add)
		if _, ok := m.dispatcher.Library(); !ok {
			m.statusMsg = "no library selected (ctrl+l)"
			return m, nil
		}
	} else {
		m.view = viewLookup
		m.mode.Store(dispatch.Lookup)
	}
	m.statusMsg = ""
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.input.close()
		m.statusMsg = ""
		return m, nil

	case tea.KeyEnter:
		m.input.close()
		text := strings.TrimSpace(m.input.value())
		if text == "" {
			return m, nil
		}
		if m.input.purpose == inputSave {
			return m, m.writeReport(text)
		}
		return m.submitSearch(text)
	}

	return m, m.input.update(msg)
}

// submitSearch sends a typed query through the same pipeline as a scan.
func (m Model) submitSearch(query string) (tea.Model, tea.Cmd) {
	mode := m.mode.Load()
	if err := m.dispatcher.Submit(event.NewScanID(), mode, query); err != nil {
		m.statusMsg = fmt.Sprintf("search failed: %v", err)
		return m, nil
	}
	m.statusMsg = fmt.Sprintf("%s %q...", mode, query)
	return m, nil
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.picker.active = false
		return m, nil

	case tea.KeyUp:
		if m.picker.cursor > 0 {
			m.picker.cursor--
		}
		return m, nil

	case tea.KeyDown:
		if m.picker.cursor < len(m.picker.libs)-1 {
			m.picker.cursor++
		}
		return m, nil

	case tea.KeyEnter:
		if len(m.picker.libs) == 0 {
			return m, nil
		}
		lib := m.picker.libs[m.picker.cursor]
		m.dispatcher.SetLibrary(lib)
		m.picker.active = false
		m.statusMsg = "library: " + lib.Name
		return m, nil
	}
	return m, nil
}

func (m Model) writeReport(path string) tea.Cmd {
	// Capture data needed by the goroutine.
	snap := m.stats.Snapshot()
	entries := make([]feedEntry, len(m.feed.entries))
	copy(entries, m.feed.entries)

	return func() tea.Msg {
		var b strings.Builder

		b.WriteString("shelfscan session report\n")
		b.WriteString("========================\n")
		fmt.Fprintf(&b, "written:   %s\n", time.Now().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "duration:  %s\n", ui.FormatDuration(snap.Elapsed))
		fmt.Fprintf(&b, "scans:     %s\n", ui.FormatCount(snap.ScansCompleted))
		fmt.Fprintf(&b, "added:     %s\n", ui.FormatCount(snap.BooksAdded))
		fmt.Fprintf(&b, "not found: %s\n", ui.FormatCount(snap.BooksNotFound))
		fmt.Fprintf(&b, "errors:    %d\n", snap.DispatchFailed)
		b.WriteString("\n--- scans ---\n")

		for _, e := range entries {
			switch e.outcome {
			case outcomeFound:
				fmt.Fprintf(&b, "v  %-13s  %s\n", e.code, e.title)
			case outcomeAdded:
				fmt.Fprintf(&b, "+  %-13s  %s  [%s]\n", e.code, e.title, e.library)
			case outcomeDuplicate:
				fmt.Fprintf(&b, "=  %-13s  %s  [%s, already present]\n", e.code, e.title, e.library)
			case outcomeNotFound:
				fmt.Fprintf(&b, "?  %-13s  not found\n", e.code)
			case outcomeFailed:
				fmt.Fprintf(&b, "x  %-13s  %s\n", e.code, e.errMsg)
			}
		}

		err := os.WriteFile(path, []byte(b.String()), 0o644) //nolint:gosec // user-chosen path for report output
		return saveResultMsg{path: path, err: err}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	// Header (1 line).
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')

	// Top panel: current book (lookup) or target library (add).
	var top string
	if m.view == viewLookup {
		top = m.renderCard()
	} else {
		top = m.renderTarget()
	}
	b.WriteString(top)

	// Buffer indicator.
	b.WriteString(m.renderBuffer())
	b.WriteByte('\n')

	rate := m.rate.view(m.width, m.lastSnap, m.stats)

	// Content area: header, top, buffer, rate, status, footer.
	contentHeight := max(m.height-1-strings.Count(top, "\n")-1-strings.Count(rate, "\n")-2, 3)

	if m.picker.active {
		b.WriteString(m.picker.render(m.currentLibraryName()))
	} else {
		b.WriteString(m.feed.view(m.width, contentHeight))
	}

	b.WriteString(rate)

	// Input modal or status message.
	switch {
	case m.input.active:
		b.WriteString(m.input.render())
	case m.statusMsg != "":
		b.WriteString(styleStatus.Render("  " + m.statusMsg))
	}
	b.WriteByte('\n')

	// Footer.
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m Model) currentLibraryName() string {
	if l, ok := m.dispatcher.Library(); ok {
		return l.Name
	}
	return ""
}

func (m Model) renderHeader() string {
	snap := m.lastSnap

	mode := styleModeLookup.Render("LOOKUP")
	if m.view == viewAdd {
		mode = styleModeAdd.Render("ADD")
	}

	header := fmt.Sprintf("  %s  %s  scans %s  found %s  added %s  %s",
		styleHeaderLabel.Render("shelfscan"),
		mode,
		ui.FormatCount(snap.ScansCompleted),
		ui.FormatCount(snap.BooksFound),
		ui.FormatCount(snap.BooksAdded),
		ui.FormatDuration(snap.Elapsed),
	)
	if m.done {
		header += "  " + styleIconFound.Render("done")
	}
	return styleHeader.Render(header)
}

// renderCard shows the most recently resolved book.
func (m Model) renderCard() string {
	e, ok := m.feed.last()
	if !ok {
		return stylePrompt.Render("  scan a barcode to look it up") + "\n\n"
	}
	switch e.outcome {
	case outcomeNotFound:
		return fmt.Sprintf("  %s  %s\n\n", styleIconFailed.Render("not found"), styleCode.Render(e.code))
	case outcomeFailed:
		return fmt.Sprintf("  %s  %s\n\n", styleError.Render(e.errMsg), styleCode.Render(e.code))
	}
	title := ui.Truncate(e.title, max(m.width-4, 10))
	return fmt.Sprintf("  %s\n  %s  %s\n",
		styleTitle.Render(title),
		styleAuthors.Render(e.authors),
		styleCode.Render(e.code))
}

// renderTarget shows where add mode stores books.
func (m Model) renderTarget() string {
	l, ok := m.dispatcher.Library()
	if !ok {
		return styleWarning.Render("  no library selected: press ctrl+l to choose one") + "\n\n"
	}
	return fmt.Sprintf("  adding to %s\n  %s\n",
		styleLibrary.Render(l.Name),
		stylePrompt.Render(strings.Join(l.Tags, ", ")))
}

func (m Model) renderBuffer() string {
	if m.capture.State() != scan.Accumulating {
		return styleDivider.Render("  ⟩")
	}
	return styleBuffer.Render("  ⟩ " + m.capture.Buffered())
}

func (m Model) renderFooter() string {
	type keybind struct {
		key   string
		label string
	}

	binds := []keybind{
		{"tab", "lookup/add"},
		{"ctrl+f", "search"},
		{"ctrl+l", "library"},
		{"ctrl+s", "save"},
		{"↑/↓", "scroll"},
		{"ctrl+c", "quit"},
	}
	if m.focused() {
		binds = []keybind{
			{"enter", "confirm"},
			{"esc", "cancel"},
		}
	}

	var parts []string
	for _, kb := range binds {
		parts = append(parts,
			styleKeybindKey.Render(kb.key)+" "+styleKeybindLabel.Render(kb.label))
	}

	return "  " + strings.Join(parts, "   ")
}
