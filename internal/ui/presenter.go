package ui

import (
	"io"

	"github.com/bamsammich/shelfscan/internal/stats"
)

// Presenter shows scan outcomes as they arrive.
type Presenter interface {
	Run(events <-chan Event) error // returns once events is closed
	Summary() string               // final line, empty when there is none
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer
	ErrWriter  io.Writer
	Stats      stats.ReadTicker
	IsTTY      bool
	Quiet      bool
	Verbose    bool
	NoProgress bool
}

// NewPresenter picks a presenter: quiet with -q, the live HUD when stderr
// is a terminal, and plain lines otherwise.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	switch {
	case cfg.Quiet:
		return &quietPresenter{errW: cfg.ErrWriter}
	case cfg.IsTTY && !cfg.NoProgress:
		// The HUD redraws in place on stderr.
		return &hudPresenter{
			w:       cfg.ErrWriter,
			stats:   cfg.Stats,
			verbose: cfg.Verbose,
		}
	default:
		return &plainPresenter{
			w:     cfg.Writer,
			errW:  cfg.ErrWriter,
			stats: cfg.Stats,
		}
	}
}
