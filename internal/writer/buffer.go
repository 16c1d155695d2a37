// Package writer implements C6: the batch/streaming writer that
// buffers incoming entity/relationship/embedding fragments and
// flushes them to the external knowledge-graph sink under a
// size/timeout/explicit-flush trigger, with DAG ordering, idempotency,
// retries, and epoch tagging (spec §4.6). The size/timeout buffer
// trigger is grounded on the teacher's
// internal/indexing/debounced_rebuilder.go (mutex-guarded pending set
// + time.AfterFunc timer reset on each add); the batching/commit shape
// is grounded on other_examples' LocalPipeline (entity/relationship
// batch assembly before a single backend Execute call).
package writer

import (
	"sync"
	"time"
)

// fragment is one item queued for a kind-specific buffer, carrying
// enough to compute DAG dependencies and priority ordering.
type fragment struct {
	id       string
	priority int
	value    interface{}
}

// kindBuffer accumulates fragments of one kind until a size or timeout
// trigger fires flush.
type kindBuffer struct {
	mu        sync.Mutex
	items     []fragment
	maxSize   int
	timeout   time.Duration
	timer     *time.Timer
	onTrigger func()
}

func newKindBuffer(maxSize int, timeout time.Duration, onTrigger func()) *kindBuffer {
	return &kindBuffer{maxSize: maxSize, timeout: timeout, onTrigger: onTrigger}
}

// add appends a fragment, firing onTrigger immediately if the size
// threshold is reached, otherwise (re)starting the timeout timer.
func (b *kindBuffer) add(f fragment) {
	b.mu.Lock()
	b.items = append(b.items, f)
	full := len(b.items) >= b.maxSize
	if !full {
		if b.timer != nil {
			b.timer.Stop()
		}
		b.timer = time.AfterFunc(b.timeout, b.onTrigger)
	}
	b.mu.Unlock()

	if full {
		if b.timer != nil {
			b.timer.Stop()
		}
		b.onTrigger()
	}
}

// drain empties the buffer and returns what it held, for either a
// triggered or an explicit flush.
func (b *kindBuffer) drain() []fragment {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	out := b.items
	b.items = nil
	return out
}

func (b *kindBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
