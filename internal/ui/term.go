package ui

import (
	"bytes"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/term"
)

// IsTTY reports whether the given file descriptor refers to a terminal.
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// Terminal records which standard streams are attached to a terminal.
type Terminal struct {
	Stdin  bool
	Stderr bool
}

// DetectTerminal inspects the process's stdin and stderr.
func DetectTerminal() Terminal {
	return Terminal{
		Stdin:  IsTTY(os.Stdin.Fd()),
		Stderr: IsTTY(os.Stderr.Fd()),
	}
}

// CanTUI reports whether a full-screen UI can both read keys and draw.
func (t Terminal) CanTUI() bool {
	return t.Stdin && t.Stderr
}

// LineWriter passes writes through to an underlying writer, translating
// "\n" into "\r\n" while raw mode is on. A terminal in raw mode does no
// output post-processing, so bare newlines would not return the cursor.
type LineWriter struct {
	w   io.Writer
	raw atomic.Bool
}

// NewLineWriter wraps w. Raw mode starts off.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// SetRaw switches newline translation on or off.
func (l *LineWriter) SetRaw(raw bool) {
	l.raw.Store(raw)
}

func (l *LineWriter) Write(p []byte) (int, error) {
	if !l.raw.Load() || bytes.IndexByte(p, '\n') < 0 {
		return l.w.Write(p)
	}
	if _, err := l.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
