package queue

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// Config tunes a PartitionedQueue's shape (spec §4.4).
type Config struct {
	Partitions        int
	Strategy          AssignStrategy
	PartitionCapacity int
	BackpressureDepth int // total-depth threshold across all partitions

	BackoffBase       time.Duration
	BackoffMultiplier float64
	BackoffMax        time.Duration
	JitterFraction    float64

	SweepInterval time.Duration
}

// DefaultConfig returns the spec's stated defaults: 4 partitions, hash
// assignment.
func DefaultConfig() Config {
	return Config{
		Partitions:        4,
		Strategy:          AssignHash,
		PartitionCapacity: 10_000,
		BackpressureDepth: 32_000,
		BackoffBase:       500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		BackoffMax:        5 * time.Minute,
		JitterFraction:    0.2,
		SweepInterval:     250 * time.Millisecond,
	}
}

// Stats is a snapshot of queue health: total depth, per-partition lag,
// oldest-item age and cumulative enqueue/dequeue/requeue/dead-letter
// counters. No throughput or error rate is computed here.
type Stats struct {
	TotalDepth      int
	PerPartitionLag []int
	OldestItemAge   time.Duration
	TotalEnqueued   int64
	TotalDequeued   int64
	TotalRequeued   int64
	TotalDeadLettered int64
}

// DeadLetterFunc is invoked when a task exhausts its retries instead
// of being requeued (spec §4.4: "C7 claims the task for
// dead-lettering").
type DeadLetterFunc func(t *graph.Task, cause error)

// PartitionedQueue is C4: a bounded work queue with N partitions, a
// scheduled-task min-heap, and exponential-backoff-with-jitter requeue
// — grounded on the teacher's OperationQueue, generalized to multiple
// independently-locked partitions.
type PartitionedQueue struct {
	cfg        Config
	partitions []*partition
	assigner   *assigner
	scheduled  *scheduledQueue
	onDeadLetter DeadLetterFunc

	mu            sync.Mutex
	totalRequeued int64
	totalDeadLettered int64

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewPartitionedQueue builds a queue with cfg.Partitions partitions
// and starts the scheduled-task promotion sweep.
func NewPartitionedQueue(cfg Config, onDeadLetter DeadLetterFunc) *PartitionedQueue {
	if cfg.Partitions < 1 {
		cfg.Partitions = 1
	}
	q := &PartitionedQueue{
		cfg:          cfg,
		partitions:   make([]*partition, cfg.Partitions),
		assigner:     newAssigner(cfg.Strategy, cfg.Partitions),
		scheduled:    newScheduledQueue(),
		onDeadLetter: onDeadLetter,
		stopSweep:    make(chan struct{}),
	}
	for i := range q.partitions {
		q.partitions[i] = newPartition(cfg.PartitionCapacity)
	}
	go q.sweepLoop()
	return q
}

// Close stops the background promotion sweep.
func (q *PartitionedQueue) Close() {
	q.sweepOnce.Do(func() { close(q.stopSweep) })
}

// Enqueue assigns t to a partition (by key, or t.PartitionKey if key
// is empty) and adds it. Tasks with a future ScheduledAt are held in
// the scheduled min-heap instead (spec §4.4).
func (q *PartitionedQueue) Enqueue(t *graph.Task, key string) error {
	if key == "" {
		key = t.PartitionKey
	}
	idx := q.assigner.assign(key, t.Priority)

	if q.TotalDepth() >= q.cfg.BackpressureDepth {
		return ErrQueueFull
	}

	if !t.ScheduledAt.IsZero() && t.ScheduledAt.After(time.Now()) {
		q.scheduled.hold(t, idx)
		return nil
	}
	return q.partitions[idx].enqueue(t)
}

// Dequeue pulls up to n tasks from one partition.
func (q *PartitionedQueue) Dequeue(partitionIdx int, n int) []*graph.Task {
	if partitionIdx < 0 || partitionIdx >= len(q.partitions) {
		return nil
	}
	return q.partitions[partitionIdx].dequeueN(n)
}

// DequeueBatch pulls up to batchSize tasks across all partitions,
// round-robining partitions so no single partition starves the batch
// (spec §4.4 dequeueBatch).
func (q *PartitionedQueue) DequeueBatch(batchSize int) []*graph.Task {
	out := make([]*graph.Task, 0, batchSize)
	for len(out) < batchSize {
		drained := true
		for _, p := range q.partitions {
			if len(out) >= batchSize {
				break
			}
			t, err := p.dequeue()
			if err == nil {
				out = append(out, t)
				drained = false
			}
		}
		if drained {
			break
		}
	}
	return out
}

// DequeueByPriority pulls the n globally-highest-priority ready tasks
// across all partitions (spec §4.4 dequeueByPriority).
func (q *PartitionedQueue) DequeueByPriority(n int) []*graph.Task {
	type candidate struct {
		task *graph.Task
		part int
	}
	var candidates []candidate
	for i, p := range q.partitions {
		if t := p.peek(); t != nil {
			candidates = append(candidates, candidate{t, i})
		}
	}

	out := make([]*graph.Task, 0, n)
	for len(out) < n && len(candidates) > 0 {
		bestIdx := 0
		for i := 1; i < len(candidates); i++ {
			if candidates[i].task.Priority > candidates[bestIdx].task.Priority {
				bestIdx = i
			}
		}
		best := candidates[bestIdx]
		t, err := q.partitions[best.part].dequeue()
		if err == nil {
			out = append(out, t)
		}
		if next := q.partitions[best.part].peek(); next != nil {
			candidates[bestIdx] = candidate{next, best.part}
		} else {
			candidates = append(candidates[:bestIdx], candidates[bestIdx+1:]...)
		}
	}
	return out
}

// Requeue implements spec §4.4's requeue policy: increments
// retryCount, applies exponential backoff with jitter to compute the
// new scheduledAt, and holds the task in the scheduled min-heap.
// Exhausted retries are handed to onDeadLetter instead of requeued.
func (q *PartitionedQueue) Requeue(t *graph.Task, cause error, key string) {
	t.RetryCount++
	if t.RetryCount > t.MaxRetries {
		q.mu.Lock()
		q.totalDeadLettered++
		q.mu.Unlock()
		if q.onDeadLetter != nil {
			q.onDeadLetter(t, cause)
		}
		return
	}

	delay := q.backoffDelay(t.RetryCount)
	t.ScheduledAt = time.Now().Add(delay)

	if key == "" {
		key = t.PartitionKey
	}
	idx := q.assigner.assign(key, t.Priority)
	q.scheduled.hold(t, idx)

	q.mu.Lock()
	q.totalRequeued++
	q.mu.Unlock()
}

// backoffDelay computes the exponential-backoff-with-jitter delay for
// the given retry attempt, using cenkalti/backoff's ExponentialBackOff
// as the underlying generator (base/multiplier/max/jitter all
// configurable per spec §4.4).
func (q *PartitionedQueue) backoffDelay(retryCount int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.cfg.BackoffBase
	b.Multiplier = q.cfg.BackoffMultiplier
	b.MaxInterval = q.cfg.BackoffMax
	b.RandomizationFactor = q.cfg.JitterFraction
	b.Reset()

	var d time.Duration
	for i := 0; i <= retryCount; i++ {
		d = b.NextBackOff()
	}
	return d
}

// sweepLoop periodically promotes due scheduled tasks into their
// target partition (spec §4.4: "promoted by a periodic sweep").
func (q *PartitionedQueue) sweepLoop() {
	ticker := time.NewTicker(q.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopSweep:
			return
		case <-ticker.C:
			q.sweepOnceNow()
		}
	}
}

func (q *PartitionedQueue) sweepOnceNow() {
	now := time.Now()
	due := q.scheduled.promoteDue(func(item scheduledItem) bool {
		return !item.task.ScheduledAt.After(now)
	})
	for _, item := range due {
		_ = q.partitions[item.partition].enqueue(item.task)
	}
}

// TotalDepth sums ready-queue depth across all partitions (does not
// include scheduled/held tasks).
func (q *PartitionedQueue) TotalDepth() int {
	total := 0
	for _, p := range q.partitions {
		total += p.depth()
	}
	return total
}

// Stats returns a snapshot of queue health (spec §4.4 metrics).
func (q *PartitionedQueue) Stats() Stats {
	lag := make([]int, len(q.partitions))
	var oldest time.Duration
	total := 0
	for i, p := range q.partitions {
		lag[i] = p.depth()
		total += lag[i]
		if oldestTask, ok := p.oldestCreatedAt(); ok {
			age := time.Since(oldestTask.CreatedAt)
			if age > oldest {
				oldest = age
			}
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	var enq, deq int64
	for _, p := range q.partitions {
		p.mu.Lock()
		enq += p.totalEnqueued
		deq += p.totalDequeued
		p.mu.Unlock()
	}
	return Stats{
		TotalDepth:        total,
		PerPartitionLag:   lag,
		OldestItemAge:     oldest,
		TotalEnqueued:     enq,
		TotalDequeued:     deq,
		TotalRequeued:     q.totalRequeued,
		TotalDeadLettered: q.totalDeadLettered,
	}
}
