// Package queue implements C4: the bounded, partitioned work queue
// (spec §4.4). The binary-heap-with-side-map shape — hand-rolled
// heapifyUp/heapifyDown plus a map for O(1) id lookup and removal —
// is grounded directly on the teacher's
// internal/indexing/concurrent_operations.go OperationQueue.
package queue

import (
	"errors"
	"sync"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// ErrQueueFull is returned by Enqueue when a partition is at capacity
// (spec §4.4 backpressure).
var ErrQueueFull = errors.New("queue: partition is full")

// ErrEmpty is returned by Dequeue when the partition has no ready
// tasks.
var ErrEmpty = errors.New("queue: partition is empty")

// partition is a single bounded, priority-ordered binary heap of
// tasks, grounded on the teacher's OperationQueue.
type partition struct {
	mu        sync.Mutex
	heap      []*graph.Task
	byID      map[string]*graph.Task
	sizeLimit int

	totalEnqueued int64
	totalDequeued int64
}

func newPartition(sizeLimit int) *partition {
	return &partition{
		heap:      make([]*graph.Task, 0),
		byID:      make(map[string]*graph.Task),
		sizeLimit: sizeLimit,
	}
}

// enqueue adds a task to the partition's heap, returning ErrQueueFull
// if the partition is at capacity (spec §4.4 backpressure).
func (p *partition) enqueue(t *graph.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.heap) >= p.sizeLimit {
		return ErrQueueFull
	}
	if _, exists := p.byID[t.ID]; exists {
		return nil // already queued; idempotent no-op
	}

	p.heap = append(p.heap, t)
	p.byID[t.ID] = t
	p.heapifyUp(len(p.heap) - 1)
	p.totalEnqueued++
	return nil
}

// dequeue removes and returns the highest-priority ready task.
func (p *partition) dequeue() (*graph.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dequeueLocked()
}

func (p *partition) dequeueLocked() (*graph.Task, error) {
	if len(p.heap) == 0 {
		return nil, ErrEmpty
	}
	t := p.heap[0]
	delete(p.byID, t.ID)

	last := len(p.heap) - 1
	p.heap[0] = p.heap[last]
	p.heap = p.heap[:last]
	if len(p.heap) > 0 {
		p.heapifyDown(0)
	}
	p.totalDequeued++
	return t, nil
}

// dequeueN pulls up to n ready tasks off the top of the heap.
func (p *partition) dequeueN(n int) []*graph.Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*graph.Task, 0, n)
	for i := 0; i < n; i++ {
		t, err := p.dequeueLocked()
		if err != nil {
			break
		}
		out = append(out, t)
	}
	return out
}

// peek returns the highest-priority task without removing it.
func (p *partition) peek() *graph.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.heap) == 0 {
		return nil
	}
	return p.heap[0]
}

// remove deletes a task from the partition by id, wherever it sits in
// the heap.
func (p *partition) remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.findIndex(id)
	if !ok {
		return false
	}
	delete(p.byID, id)
	last := len(p.heap) - 1
	if idx == last {
		p.heap = p.heap[:last]
		return true
	}
	p.heap[idx] = p.heap[last]
	p.heap = p.heap[:last]
	p.heapifyDown(idx)
	p.heapifyUp(idx)
	return true
}

func (p *partition) depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.heap)
}

func (p *partition) oldestCreatedAt() (t graph.Task, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var oldest *graph.Task
	for _, task := range p.heap {
		if oldest == nil || task.CreatedAt.Before(oldest.CreatedAt) {
			oldest = task
		}
	}
	if oldest == nil {
		return graph.Task{}, false
	}
	return *oldest, true
}

func (p *partition) findIndex(id string) (int, bool) {
	for i, t := range p.heap {
		if t.ID == id {
			return i, true
		}
	}
	return -1, false
}

// compare implements the partition ordering rule from spec §4.4:
// (priority desc, scheduledAt asc, createdAt asc). Returns <0 if i
// should sort before j (i.e. i is "smaller" in heap terms — higher
// priority).
func (p *partition) compare(i, j int) int {
	a, b := p.heap[i], p.heap[j]
	if a.Priority != b.Priority {
		return b.Priority - a.Priority // higher priority first
	}
	if !a.ScheduledAt.Equal(b.ScheduledAt) {
		if a.ScheduledAt.Before(b.ScheduledAt) {
			return -1
		}
		return 1
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	}
	return 0
}

func (p *partition) swap(i, j int) {
	p.heap[i], p.heap[j] = p.heap[j], p.heap[i]
}

func (p *partition) heapifyUp(index int) {
	for index > 0 {
		parent := (index - 1) / 2
		if p.compare(index, parent) < 0 {
			p.swap(index, parent)
			index = parent
		} else {
			break
		}
	}
}

func (p *partition) heapifyDown(index int) {
	size := len(p.heap)
	for {
		left := 2*index + 1
		right := 2*index + 2
		smallest := index

		if left < size && p.compare(left, smallest) < 0 {
			smallest = left
		}
		if right < size && p.compare(right, smallest) < 0 {
			smallest = right
		}
		if smallest == index {
			break
		}
		p.swap(index, smallest)
		index = smallest
	}
}
