package keysource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	"unicode"

	"golang.org/x/term"

	"github.com/bamsammich/shelfscan/internal/scan"
)

// Terminal reads keys from a byte stream, normally stdin. When the stream
// is a terminal it is switched to raw mode for the duration of Run so that
// keys arrive one at a time instead of a line at a time.
type Terminal struct {
	in  io.Reader
	now func() time.Time
}

// NewTerminal creates a Terminal source reading from in.
func NewTerminal(in io.Reader) *Terminal {
	return &Terminal{in: in, now: time.Now}
}

type readResult struct {
	r   rune
	err error
}

// Run decodes keys until EOF, Ctrl-D, Ctrl-C or ctx cancellation. CR and LF
// both become scan.KeyEnter. Escape sequences (arrow keys and friends) are
// discarded.
//
// A read blocked on the underlying stream is abandoned, not interrupted,
// when ctx is cancelled.
func (t *Terminal) Run(ctx context.Context, out chan<- scan.KeyEvent) error {
	if f, ok := t.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer term.Restore(int(f.Fd()), state) //nolint:errcheck // best-effort restore
	}

	runes := make(chan readResult, 64)
	go func() {
		br := bufio.NewReader(t.in)
		for {
			r, _, err := br.ReadRune()
			select {
			case runes <- readResult{r: r, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var esc escapeFilter
	for {
		var rr readResult
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rr = <-runes:
		}
		if rr.err != nil {
			if errors.Is(rr.err, io.EOF) {
				return nil
			}
			return rr.err
		}

		switch rr.r {
		case 0x03:
			return ErrInterrupted
		case 0x04:
			return nil
		}
		key, ok := esc.key(rr.r)
		if !ok {
			continue
		}
		if err := send(ctx, out, scan.KeyEvent{Key: key, Time: t.now()}); err != nil {
			return err
		}
	}
}

// escapeFilter maps terminal input runes to key names and swallows ANSI
// escape sequences. A lone ESC is dropped along with the sequence it may
// start.
type escapeFilter struct {
	state int // 0 = normal, 1 = after ESC, 2 = inside CSI
}

func (e *escapeFilter) key(r rune) (string, bool) {
	switch e.state {
	case 1:
		if r == '[' || r == 'O' {
			e.state = 2
			return "", false
		}
		e.state = 0
	case 2:
		// CSI parameters are 0x30-0x3F, the final byte is 0x40-0x7E.
		if r >= 0x40 && r <= 0x7e {
			e.state = 0
		}
		return "", false
	}

	switch {
	case r == '\r' || r == '\n':
		return scan.KeyEnter, true
	case r == '\t':
		return KeyTab, true
	case r == 0x1b:
		e.state = 1
		return "", false
	case r == 0x7f || r == 0x08:
		return KeyBackspace, true
	case unicode.IsPrint(r):
		return string(r), true
	default:
		return "", false
	}
}
