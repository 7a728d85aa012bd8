// Package history keeps a SQLite log of resolved scans so that a session
// can be reviewed after the terminal is gone.
package history

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	"github.com/bamsammich/shelfscan/internal/event"
)

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("history closed")

// batchSize is the number of pending records that forces a flush.
const batchSize = 100

// Record is one resolved scan.
type Record struct {
	ScanID  string
	Time    time.Time
	Code    string
	Mode    string
	Outcome string
	Title   string
	Authors string
	Library string
	Error   string
}

// FromEvent converts a terminal event into a Record. ok is false for
// events that do not end a scan.
func FromEvent(ev event.Event) (r Record, ok bool) {
	if !ev.Type.Terminal() {
		return Record{}, false
	}
	r = Record{
		Time:    ev.Timestamp,
		Code:    ev.Code,
		Mode:    ev.Mode,
		Outcome: ev.Type.String(),
		Title:   ev.Title,
		Authors: ev.Authors,
		Library: ev.Library,
	}
	if ev.ScanID != uuid.Nil {
		r.ScanID = ev.ScanID.String()
	}
	if ev.Error != nil {
		r.Error = ev.Error.Error()
	}
	if r.Time.IsZero() {
		r.Time = time.Now()
	}
	return r, true
}

// Event rebuilds the terminal event r was recorded from.
func (r Record) Event() event.Event {
	typ, _ := event.ParseType(r.Outcome)
	ev := event.Event{
		Type:      typ,
		Timestamp: r.Time,
		Code:      r.Code,
		Mode:      r.Mode,
		Title:     r.Title,
		Authors:   r.Authors,
		Library:   r.Library,
	}
	if id, err := uuid.Parse(r.ScanID); err == nil {
		ev.ScanID = id
	}
	if r.Error != "" {
		ev.Error = errors.New(r.Error)
	}
	return ev
}

// DB is a SQLite-backed scan log. Writes are batched and flushed
// periodically.
type DB struct {
	db   *sql.DB
	path string

	mu      sync.Mutex
	batch   []Record
	done    chan struct{}
	stopped bool
}

// Open opens (or creates) the history database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	h := &DB{
		db:   db,
		path: path,
		done: make(chan struct{}),
	}

	if err := h.init(); err != nil {
		db.Close()
		return nil, err
	}

	go h.flushLoop()

	return h, nil
}

func (h *DB) init() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS scans (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id  TEXT NOT NULL,
			at       INTEGER NOT NULL,
			code     TEXT NOT NULL,
			mode     TEXT NOT NULL,
			outcome  TEXT NOT NULL,
			title    TEXT NOT NULL,
			authors  TEXT NOT NULL,
			library  TEXT NOT NULL,
			error    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS scans_at ON scans (at);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Observe records ev if it ends a scan. Errors are reported on the next
// Flush or Close.
func (h *DB) Observe(ev event.Event) {
	if r, ok := FromEvent(ev); ok {
		h.Add(r) //nolint:errcheck // surfaced by Flush
	}
}

// Add queues r for writing.
func (h *DB) Add(r Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return ErrClosed
	}
	h.batch = append(h.batch, r)
	if len(h.batch) >= batchSize {
		return h.flushLocked()
	}
	return nil
}

// Flush writes any pending records to the database.
func (h *DB) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flushLocked()
}

func (h *DB) flushLocked() error {
	if len(h.batch) == 0 {
		return nil
	}

	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO scans
		(scan_id, at, code, mode, outcome, title, authors, library, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range h.batch {
		_, err := stmt.Exec(r.ScanID, r.Time.UnixNano(), r.Code, r.Mode, r.Outcome,
			r.Title, r.Authors, r.Library, r.Error)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", r.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	h.batch = h.batch[:0]
	return nil
}

func (h *DB) flushLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.mu.Lock()
			_ = h.flushLocked()
			h.mu.Unlock()
		}
	}
}

// Query selects records. Zero fields do not filter.
type Query struct {
	Limit   int
	Outcome string
	Code    string
	Since   time.Time
}

// Recent returns matching records, newest first. Pending records are
// flushed first.
func (h *DB) Recent(q Query) ([]Record, error) {
	if err := h.Flush(); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if q.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, q.Outcome)
	}
	if q.Code != "" {
		where = append(where, "code = ?")
		args = append(args, q.Code)
	}
	if !q.Since.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	stmt := "SELECT scan_id, at, code, mode, outcome, title, authors, library, error FROM scans"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY at DESC, id DESC"
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := h.db.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r  Record
			at int64
		)
		if err := rows.Scan(&r.ScanID, &at, &r.Code, &r.Mode, &r.Outcome,
			&r.Title, &r.Authors, &r.Library, &r.Error); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Time = time.Unix(0, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Counts returns the number of records per outcome.
func (h *DB) Counts() (map[string]int64, error) {
	if err := h.Flush(); err != nil {
		return nil, err
	}
	rows, err := h.db.Query("SELECT outcome, COUNT(*) FROM scans GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			outcome string
			n       int64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// Close flushes any pending writes and closes the database.
func (h *DB) Close() error {
	h.mu.Lock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
	flushErr := h.flushLocked()
	h.mu.Unlock()
	return errors.Join(flushErr, h.db.Close())
}

// Path returns the path to the history database file.
func (h *DB) Path() string {
	return h.path
}

// backendID derives a stable file name component from a backend URL, so
// that each backend keeps its own history.
func backendID(backendURL string) string {
	h := blake3.New()
	h.Write([]byte(strings.TrimRight(backendURL, "/")))
	digest := h.Sum(nil)
	return hex.EncodeToString(digest[:8])
}

// DefaultPath returns the history database for backendURL under
// $XDG_STATE_HOME/shelfscan.
func DefaultPath(backendURL string) string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "shelfscan-history-"+backendID(backendURL)+".db")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "shelfscan", "history-"+backendID(backendURL)+".db")
}
