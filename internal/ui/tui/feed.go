package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bamsammich/shelfscan/internal/event"
	"github.com/bamsammich/shelfscan/internal/ui"
)

type outcome int

const (
	outcomeFound outcome = iota
	outcomeAdded
	outcomeDuplicate
	outcomeNotFound
	outcomeFailed
)

type feedEntry struct {
	code    string
	title   string
	authors string
	library string
	outcome outcome
	errMsg  string
	time    time.Time
}

type errorEntry struct {
	code string
	err  string
	time time.Time
}

type feedView struct {
	entries      []feedEntry  // unbounded history
	errors       []errorEntry // never evicted
	scrollOffset int          // viewport offset into entries
	autoScroll   bool         // follow new entries
}

func newFeedView() feedView {
	return feedView{autoScroll: true}
}

func (f *feedView) handleEvent(ev event.Event) {
	e := feedEntry{
		code:    ev.Code,
		title:   ev.Title,
		authors: ev.Authors,
		library: ev.Library,
		time:    ev.Timestamp,
	}
	switch ev.Type {
	case event.BookFound:
		e.outcome = outcomeFound
	case event.BookAdded:
		e.outcome = outcomeAdded
	case event.BookAlreadyPresent:
		e.outcome = outcomeDuplicate
	case event.BookNotFound:
		e.outcome = outcomeNotFound
	case event.DispatchFailed:
		e.outcome = outcomeFailed
		e.errMsg = "error"
		if ev.Error != nil {
			e.errMsg = ev.Error.Error()
		}
		f.errors = append(f.errors, errorEntry{code: ev.Code, err: e.errMsg, time: ev.Timestamp})
	default:
		return
	}
	f.entries = append(f.entries, e)
}

// scrollDown moves the viewport down one line and disables autoScroll.
func (f *feedView) scrollDown() {
	f.autoScroll = false
	f.scrollOffset++
}

// scrollUp moves the viewport up one line and disables autoScroll.
func (f *feedView) scrollUp() {
	f.autoScroll = false
	if f.scrollOffset > 0 {
		f.scrollOffset--
	}
}

// scrollToTop jumps to the first entry.
func (f *feedView) scrollToTop() {
	f.autoScroll = false
	f.scrollOffset = 0
}

// scrollToBottom jumps to the most recent entry and re-enables autoScroll.
func (f *feedView) scrollToBottom() {
	f.autoScroll = true
}

func (f *feedView) view(width, height int) string {
	if width < 20 {
		width = 20
	}

	errCount := min(len(f.errors), 3)

	dividers := 0
	if errCount > 0 {
		dividers++
	}
	if len(f.entries) > 0 {
		dividers++
	}

	entriesHeight := max(height-errCount-dividers, 1)

	// Clamp scroll offset.
	maxOffset := max(len(f.entries)-entriesHeight, 0)
	if f.autoScroll {
		f.scrollOffset = maxOffset
	}
	f.scrollOffset = min(max(f.scrollOffset, 0), maxOffset)

	var b strings.Builder

	if lines := f.renderEntries(width, entriesHeight); lines != "" {
		b.WriteString(styleDivider.Render(fmt.Sprintf("─ scans (%d)", len(f.entries))))
		b.WriteByte('\n')
		b.WriteString(lines)
	}

	if lines := f.renderErrors(width, errCount); lines != "" {
		b.WriteString(styleDivider.Render(fmt.Sprintf("─ errors (%d)", len(f.errors))))
		b.WriteByte('\n')
		b.WriteString(lines)
	}

	return b.String()
}

func (f *feedView) renderEntries(width, viewportHeight int) string {
	if len(f.entries) == 0 {
		return ""
	}

	var b strings.Builder
	end := min(f.scrollOffset+viewportHeight, len(f.entries))
	titleWidth := max(width-30, 10)

	for _, e := range f.entries[f.scrollOffset:end] {
		var icon, extra string
		title := styleTitle.Render(ui.Truncate(e.title, titleWidth))

		switch e.outcome {
		case outcomeFound:
			icon = styleIconFound.Render("✓")
		case outcomeAdded:
			icon = styleIconAdded.Render("+")
			extra = styleLibrary.Render(e.library)
		case outcomeDuplicate:
			icon = styleIconDuplicate.Render("–")
			extra = styleIconDuplicate.Render("already in " + e.library)
		case outcomeNotFound:
			icon = styleIconFailed.Render("✗")
			title = styleIconDuplicate.Render("not found")
		case outcomeFailed:
			icon = styleIconFailed.Render("✗")
			title = styleError.Render(ui.Truncate(e.errMsg, titleWidth))
		}

		line := fmt.Sprintf("  %s  %s  %s", icon, styleCode.Render(fmt.Sprintf("%-13s", e.code)), title)
		if extra != "" {
			line += "  " + extra
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (f *feedView) renderErrors(width, maxLines int) string {
	if len(f.errors) == 0 || maxLines == 0 {
		return ""
	}

	var b strings.Builder
	// Show the most recent errors (tail).
	start := max(len(f.errors)-maxLines, 0)
	for _, e := range f.errors[start:] {
		msg := styleError.Render(ui.Truncate(e.err, max(width-24, 10)))
		fmt.Fprintf(&b, "  %s  %s  %s\n", styleIconFailed.Render("✗"), styleCode.Render(e.code), msg)
	}
	return b.String()
}

// last returns the most recent entry.
func (f *feedView) last() (feedEntry, bool) {
	if len(f.entries) == 0 {
		return feedEntry{}, false
	}
	return f.entries[len(f.entries)-1], true
}
