package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/shelfscan/internal/stats"
)

// ANSI escape sequences.
const (
	ansiDim   = "\033[2m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// hudPresenter provides a TTY display with a scrolling feed of resolved
// scans and a 2-line HUD that redraws in place.
type hudPresenter struct {
	w       io.Writer
	stats   stats.ReadTicker
	verbose bool

	// Internal state.
	hudDrawn     bool
	hudLineCount int // actual number of lines in the last HUD draw
	mode         string
	library      string
	lastHUDDraw  time.Time
}

const (
	sparklineWidth = 20
	hudMinInterval = 50 * time.Millisecond // don't redraw faster than this
	codeWidth      = 13
	titleWidth     = 48
)

func (p *hudPresenter) Run(events <-chan Event) error {
	// Fire first tick quickly to seed the ring buffer, then switch to 1s.
	secTicker := time.NewTicker(250 * time.Millisecond)
	defer secTicker.Stop()
	firstTickDone := false

	redrawTicker := time.NewTicker(time.Second)
	defer redrawTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearHUD()
				return nil
			}
			p.handleEvent(ev)
			p.maybeDrawHUD()

		case <-redrawTicker.C:
			p.drawHUD()

		case <-secTicker.C:
			p.stats.Tick()
			if !firstTickDone {
				firstTickDone = true
				secTicker.Reset(1 * time.Second)
			}
		}
	}
}

func (p *hudPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case ScanCompleted:
		p.mode = ev.Mode

	case BookFound:
		p.feed("✓", ev, "")

	case BookAdded:
		p.library = ev.Library
		p.feed("+", ev, "")

	case BookAlreadyPresent:
		p.library = ev.Library
		p.feed("–", ev, ansiDim+"already in library"+ansiReset)

	case BookNotFound:
		p.feed("✗", ev, ansiDim+"not found"+ansiReset)

	case DispatchFailed:
		p.feed("✗", ev, "")

	case ScanExpired, ScanReset:
		if p.verbose && ev.Code != "" {
			p.clearHUD()
			fmt.Fprintf(p.w, "%s·  %-*s  discarded%s\n", ansiDim, codeWidth, ev.Code, ansiReset)
			p.drawHUD()
		}

	case KeySuppressed, LookupStarted:
		// not shown
	}
}

// feed prints one line above the HUD.
func (p *hudPresenter) feed(glyph string, ev Event, note string) {
	p.clearHUD()
	detail := Truncate(Detail(ev), titleWidth)
	if ev.Type == BookAdded || ev.Type == BookFound {
		detail = ansiBold + detail + ansiReset
	}
	line := fmt.Sprintf("%s  %-*s  %s", glyph, codeWidth, ev.Code, detail)
	if note != "" {
		line += "  " + note
	}
	fmt.Fprintln(p.w, line)
	p.drawHUD() // always redraw HUD after feed line
}

// maybeDrawHUD redraws the HUD if enough time has passed since the last draw.
func (p *hudPresenter) maybeDrawHUD() {
	now := time.Now()
	if now.Sub(p.lastHUDDraw) < hudMinInterval {
		return
	}
	p.drawHUD()
}

func (p *hudPresenter) drawHUD() {
	snap := p.stats.Snapshot()

	// Clear previous HUD if drawn.
	p.clearHUD()

	target := "lookup"
	if p.mode == "add" {
		target = "add"
		if p.library != "" {
			target += " to " + p.library
		}
	}

	// Line 1: scan-rate sparkline + rate + mode.
	sparkData := p.stats.SparklineData(sparklineWidth)
	spark := Sparkline(sparkData, sparklineWidth)
	fmt.Fprintf(p.w, "       %s   %s   %s%s%s\n",
		spark, FormatPerMinute(p.stats.ScansPerMinute(1)),
		ansiDim, target, ansiReset)

	// Line 2: counters.
	fmt.Fprintf(p.w, " scans %s   found %s   added %s   missing %s   failed %s   %s\n",
		FormatCount(snap.ScansCompleted),
		FormatCount(snap.BooksFound),
		FormatCount(snap.BooksAdded),
		FormatCount(snap.BooksNotFound),
		FormatCount(snap.DispatchFailed),
		FormatDuration(snap.Elapsed))

	p.hudDrawn = true
	p.hudLineCount = 2
	p.lastHUDDraw = time.Now()
}

func (p *hudPresenter) clearHUD() {
	if !p.hudDrawn {
		return
	}
	lines := p.hudLineCount
	if lines == 0 {
		lines = 2 // fallback
	}
	// Move cursor up N lines and clear to end of screen.
	fmt.Fprintf(p.w, "\033[%dA\033[J", lines)
	p.hudDrawn = false
}

func (p *hudPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
