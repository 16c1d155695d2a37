package retry

import (
	"sort"
	"sync"
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// DeadLetterEntry is one terminal task held by the DLQ (spec §4.7:
// "bounded ring of {task, error, timestamp, attempts}").
type DeadLetterEntry struct {
	Task      *graph.Task
	Error     string
	Timestamp time.Time
	Attempts  int
}

// DLQConfig tunes ring capacity and retention (spec §5 "dlq
// {enabled, maxSize, retentionTime}").
type DLQConfig struct {
	Enabled       bool
	MaxSize       int
	RetentionTime time.Duration
}

// DefaultDLQConfig returns spec-aligned defaults.
func DefaultDLQConfig() DLQConfig {
	return DLQConfig{Enabled: true, MaxSize: 1000, RetentionTime: 24 * time.Hour}
}

// DLQ is a bounded ring buffer of dead-lettered tasks supporting
// inspection and selective requeue (spec §4.7).
type DLQ struct {
	cfg DLQConfig

	mu      sync.Mutex
	entries []DeadLetterEntry
	next    int // next ring-buffer write position once full
}

func NewDLQ(cfg DLQConfig) *DLQ {
	if cfg.MaxSize < 1 {
		cfg.MaxSize = 1
	}
	return &DLQ{cfg: cfg, entries: make([]DeadLetterEntry, 0, cfg.MaxSize)}
}

// Add records a dead-lettered task, evicting the oldest entry once
// MaxSize is reached.
func (d *DLQ) Add(task *graph.Task, cause error, attempts int) {
	if !d.cfg.Enabled {
		return
	}
	entry := DeadLetterEntry{Task: task, Error: cause.Error(), Timestamp: time.Now(), Attempts: attempts}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.entries) < d.cfg.MaxSize {
		d.entries = append(d.entries, entry)
		return
	}
	d.entries[d.next] = entry
	d.next = (d.next + 1) % d.cfg.MaxSize
}

// List returns a snapshot of all held entries, oldest first.
func (d *DLQ) List() []DeadLetterEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DeadLetterEntry, len(d.entries))
	copy(out, d.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Requeue removes the entry for taskID and returns its task with
// retryCount reset to 0, ready for the caller to re-enqueue (spec
// §4.7: "selective re-queue (resets retryCount to 0)").
func (d *DLQ) Requeue(taskID string) (*graph.Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.entries {
		if e.Task.ID == taskID {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)
			if d.next > i {
				d.next--
			}
			e.Task.RetryCount = 0
			return e.Task, true
		}
	}
	return nil, false
}

// Sweep removes entries older than RetentionTime (spec §4.7: "periodic
// sweep removes entries older than retention").
func (d *DLQ) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	cutoff := time.Now().Add(-d.cfg.RetentionTime)
	kept := d.entries[:0]
	removed := 0
	for _, e := range d.entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	d.entries = kept
	d.next = len(d.entries) % d.cfg.MaxSize
	return removed
}

// Len returns the number of held entries.
func (d *DLQ) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
