// Package keysource produces scan.KeyEvents from the places a barcode
// scanner can type into: the controlling terminal, a Linux input device,
// or a recorded journal.
package keysource

import (
	"context"
	"errors"

	"github.com/bamsammich/shelfscan/internal/scan"
)

// Source delivers key presses until ctx is cancelled or input ends. Run
// returns nil when the input is exhausted.
type Source interface {
	Run(ctx context.Context, out chan<- scan.KeyEvent) error
}

// ErrInterrupted is returned by the terminal source when Ctrl-C is typed.
var ErrInterrupted = errors.New("interrupted")

// Key names for non-printing keys. Printable keys are their own text.
const (
	KeyTab       = scan.KeyTab
	KeyBackspace = "Backspace"
	KeySpace     = "Space"
)

func send(ctx context.Context, out chan<- scan.KeyEvent, ev scan.KeyEvent) error {
	select {
	case out <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
