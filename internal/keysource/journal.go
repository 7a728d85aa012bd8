package keysource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bamsammich/shelfscan/internal/scan"
)

// Entry is one line of a key journal: a key and its offset from the first
// recorded key.
//
// The journal is a text file with one "<offset> <key>" pair per line, the
// offset written as a Go duration ("0s", "12ms", "1.5s"). A space key is
// written as "Space". Blank lines and lines starting with '#' are ignored.
type Entry struct {
	Offset time.Duration
	Key    string
}

// ParseJournal reads a key journal. Offsets must not decrease.
func ParseJournal(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		off, key, ok := strings.Cut(text, " ")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("journal line %d: want \"<offset> <key>\", got %q", line, text)
		}
		d, err := time.ParseDuration(off)
		if err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		if n := len(entries); n > 0 && d < entries[n-1].Offset {
			return nil, fmt.Errorf("journal line %d: offset %s before previous %s", line, d, entries[n-1].Offset)
		}
		entries = append(entries, Entry{Offset: d, Key: decodeKey(key)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}

// Events stamps entries relative to start.
func Events(entries []Entry, start time.Time) []scan.KeyEvent {
	out := make([]scan.KeyEvent, len(entries))
	for i, e := range entries {
		out[i] = scan.KeyEvent{Key: e.Key, Time: start.Add(e.Offset)}
	}
	return out
}

// Journal replays recorded entries as a Source, sleeping between keys so
// that a downstream scan.Loop sees the original timing.
type Journal struct {
	entries []Entry
	clock   clockwork.Clock
}

// NewJournal creates a replaying Source. A nil clock uses the real clock.
func NewJournal(entries []Entry, clock clockwork.Clock) *Journal {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Journal{entries: entries, clock: clock}
}

// Run replays the journal and returns nil when it is exhausted.
func (j *Journal) Run(ctx context.Context, out chan<- scan.KeyEvent) error {
	start := j.clock.Now()
	for _, e := range j.entries {
		due := start.Add(e.Offset)
		if wait := due.Sub(j.clock.Now()); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-j.clock.After(wait):
			}
		}
		if err := send(ctx, out, scan.KeyEvent{Key: e.Key, Time: due}); err != nil {
			return err
		}
	}
	return nil
}

// Recorder writes key events in journal format.
type Recorder struct {
	mu    sync.Mutex
	w     io.Writer
	start time.Time
}

// NewRecorder creates a Recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w}
}

// Record appends ev to the journal. The first recorded event is offset 0.
func (r *Recorder) Record(ev scan.KeyEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.start.IsZero() {
		r.start = ev.Time
	}
	_, err := fmt.Fprintf(r.w, "%s %s\n", ev.Time.Sub(r.start), encodeKey(ev.Key))
	return err
}

// Tee forwards events from in to out, recording each one. It returns when
// in is closed or ctx is cancelled. Recording failures stop the tee.
func Tee(ctx context.Context, in <-chan scan.KeyEvent, out chan<- scan.KeyEvent, rec *Recorder) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			if ev.Time.IsZero() {
				ev.Time = time.Now()
			}
			if err := rec.Record(ev); err != nil {
				return fmt.Errorf("record key: %w", err)
			}
			if err := send(ctx, out, ev); err != nil {
				return err
			}
		}
	}
}

func encodeKey(k string) string {
	if k == " " {
		return KeySpace
	}
	return k
}

func decodeKey(k string) string {
	if k == KeySpace {
		return " "
	}
	return k
}
