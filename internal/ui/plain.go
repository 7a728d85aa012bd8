package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/shelfscan/internal/stats"
)

// plainPresenter outputs one line per resolved scan to stdout, and
// periodic progress to stderr when not a TTY.
type plainPresenter struct {
	w     io.Writer
	errW  io.Writer
	stats stats.ReadTicker

	lastPrinted int64
}

const plainProgressInterval = 30 * time.Second

func (p *plainPresenter) Run(events <-chan Event) error {
	ticker := time.NewTicker(plainProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.printProgress()
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	label := Outcome(ev)
	if label == "" {
		return
	}
	fmt.Fprintf(p.w, "%-9s  %s  %s\n", label, ev.Code, Detail(ev))
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	if snap.ScansCompleted == p.lastPrinted {
		return
	}
	p.lastPrinted = snap.ScansCompleted
	fmt.Fprintf(p.errW, "progress: %s\n", snap)
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
