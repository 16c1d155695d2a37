package queue

import (
	"container/heap"
	"sync"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// scheduledItem is one entry of the scheduled-task min-heap, ordered
// by ScheduledAt — tasks with scheduledAt>now are held here instead of
// a partition until a periodic sweep promotes them (spec §4.4).
type scheduledItem struct {
	task      *graph.Task
	partition int
}

// scheduledHeap implements container/heap.Interface. Unlike the
// per-partition priority heap (hand-rolled to match the teacher's
// OperationQueue), this secondary structure has no analogue in the
// teacher and is small enough that container/heap is the idiomatic
// choice rather than re-deriving heapifyUp/Down a second time.
type scheduledHeap []scheduledItem

func (h scheduledHeap) Len() int { return len(h) }
func (h scheduledHeap) Less(i, j int) bool {
	return h[i].task.ScheduledAt.Before(h[j].task.ScheduledAt)
}
func (h scheduledHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *scheduledHeap) Push(x interface{}) {
	*h = append(*h, x.(scheduledItem))
}
func (h *scheduledHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// scheduledQueue guards a scheduledHeap with a mutex and exposes the
// promotion sweep operation.
type scheduledQueue struct {
	mu sync.Mutex
	h  scheduledHeap
}

func newScheduledQueue() *scheduledQueue {
	sq := &scheduledQueue{h: make(scheduledHeap, 0)}
	heap.Init(&sq.h)
	return sq
}

func (sq *scheduledQueue) hold(t *graph.Task, partition int) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	heap.Push(&sq.h, scheduledItem{task: t, partition: partition})
}

// promoteDue pops every item for which isDue returns true (typically
// ScheduledAt <= now) and returns them for re-enqueue into their
// target partition.
func (sq *scheduledQueue) promoteDue(isDue func(scheduledItem) bool) []scheduledItem {
	sq.mu.Lock()
	defer sq.mu.Unlock()

	var due []scheduledItem
	for sq.h.Len() > 0 && isDue(sq.h[0]) {
		item := heap.Pop(&sq.h).(scheduledItem)
		due = append(due, item)
	}
	return due
}

func (sq *scheduledQueue) len() int {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	return sq.h.Len()
}
