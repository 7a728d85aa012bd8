package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bamsammich/shelfscan/internal/event"
)

const ringSize = 60

// Reader is the read side of a Collector.
type Reader interface {
	Snapshot() Snapshot
}

// ReadTicker is a Reader that presenters also drive once per second.
type ReadTicker interface {
	Reader
	Tick()
	ScansPerMinute(minutes int) float64
	SparklineData(n int) []float64
}

// Collector tracks scan activity using lock-free atomic counters.
type Collector struct {
	keysSuppressed atomic.Int64
	scansCompleted atomic.Int64
	scansExpired   atomic.Int64
	scansReset     atomic.Int64
	booksFound     atomic.Int64
	booksNotFound  atomic.Int64
	booksAdded     atomic.Int64
	booksDuplicate atomic.Int64
	dispatchFailed atomic.Int64
	startTime      time.Time

	// Ring buffer, written only by the presenter's Tick().
	mu        sync.Mutex
	perTick   [ringSize]int64 // completed scans per tick
	ringIdx   int
	ringCount int
	lastScans int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	KeysSuppressed int64
	ScansCompleted int64
	ScansExpired   int64
	ScansReset     int64
	BooksFound     int64
	BooksNotFound  int64
	BooksAdded     int64
	BooksDuplicate int64
	DispatchFailed int64
	Elapsed        time.Duration
}

// Observe updates the counters from one event.
func (c *Collector) Observe(ev event.Event) {
	switch ev.Type {
	case event.KeySuppressed:
		c.keysSuppressed.Add(1)
	case event.ScanCompleted:
		c.scansCompleted.Add(1)
	case event.ScanExpired:
		c.scansExpired.Add(1)
	case event.ScanReset:
		c.scansReset.Add(1)
	case event.BookFound:
		c.booksFound.Add(1)
	case event.BookNotFound:
		c.booksNotFound.Add(1)
	case event.BookAdded:
		c.booksAdded.Add(1)
	case event.BookAlreadyPresent:
		c.booksDuplicate.Add(1)
	case event.DispatchFailed:
		c.dispatchFailed.Add(1)
	case event.LookupStarted:
		// counted through its terminal event
	}
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		KeysSuppressed: c.keysSuppressed.Load(),
		ScansCompleted: c.scansCompleted.Load(),
		ScansExpired:   c.scansExpired.Load(),
		ScansReset:     c.scansReset.Load(),
		BooksFound:     c.booksFound.Load(),
		BooksNotFound:  c.booksNotFound.Load(),
		BooksAdded:     c.booksAdded.Load(),
		BooksDuplicate: c.booksDuplicate.Load(),
		DispatchFailed: c.dispatchFailed.Load(),
		Elapsed:        c.Elapsed(),
	}
}

// Tick snapshots the completed-scan delta into the ring buffer. Called
// once per second by the presenter.
func (c *Collector) Tick() {
	current := c.scansCompleted.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.perTick[c.ringIdx] = current - c.lastScans
	c.lastScans = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// ScansPerMinute returns completed scans per minute averaged over the last
// n minutes of one-second samples (at most the ring size).
func (c *Collector) ScansPerMinute(minutes int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(minutes*60, c.ringCount)
	if count == 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.perTick[idx]
	}
	return float64(sum) / float64(count) * 60
}

// SparklineData returns the last n per-second samples, oldest first.
func (c *Collector) SparklineData(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(n, c.ringCount)
	if count == 0 {
		return nil
	}

	data := make([]float64, count)
	for i := range count {
		idx := (c.ringIdx - count + i + ringSize) % ringSize
		data[i] = float64(c.perTick[idx])
	}
	return data
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

// Failures is the number of scans whose dispatch did not succeed.
func (s Snapshot) Failures() int64 {
	return s.DispatchFailed + s.BooksNotFound
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"scans=%d expired=%d reset=%d suppressed=%d found=%d added=%d duplicate=%d notfound=%d failed=%d",
		s.ScansCompleted, s.ScansExpired, s.ScansReset, s.KeysSuppressed,
		s.BooksFound, s.BooksAdded, s.BooksDuplicate, s.BooksNotFound, s.DispatchFailed,
	)
}
