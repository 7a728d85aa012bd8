package ui

import (
	"fmt"
	"io"
)

// quietPresenter prints nothing but failed scans, so that -q still shows
// which codes need another try.
type quietPresenter struct {
	errW io.Writer
}

func (p *quietPresenter) Run(events <-chan Event) error {
	for ev := range events {
		if ev.Type == DispatchFailed && p.errW != nil {
			fmt.Fprintf(p.errW, "%s  %s  %s\n", Outcome(ev), ev.Code, Detail(ev))
		}
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	return ""
}
