// Package worker implements C5: an auto-scaled pool of workers that
// pull tasks off the C4 partitioned queue and dispatch them to a
// handler registered by task type (spec §4.5). The per-worker loop —
// pull from a channel, process, report status, yield — is grounded on
// the teacher's internal/indexing/pipeline_processor.go ProcessFiles
// (workerID-tagged goroutines pulling FileTask off a channel with
// adaptive back-pressure); the start/stop/health-check supervisor
// shape is grounded on concurrent_operations.go's QueueProcessor.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
	"github.com/Amicidal/codegraph-ingest/internal/queue"
)

// Status is a worker's current lifecycle state (spec §4.5).
type Status string

const (
	StatusIdle       Status = "idle"
	StatusBusy       Status = "busy"
	StatusErroring   Status = "erroring"
	StatusRestarting Status = "restarting"
)

// Handler processes one task of a registered type and returns the
// follow-on tasks it produces (if any) for re-enqueue — e.g. a parse
// handler fans out entity_upsert/relationship_upsert tasks.
type Handler func(ctx context.Context, task *graph.Task) ([]*graph.Task, error)

// WorkerState is a point-in-time snapshot of one pool slot (spec
// §4.5: "status, current task id, last heartbeat").
type WorkerState struct {
	ID              int
	Status          Status
	CurrentTaskID   string
	LastHeartbeat   time.Time
	ConsecutiveErrs int
}

type managedWorker struct {
	mu    sync.RWMutex
	state WorkerState

	cancel context.CancelFunc
	done   chan struct{}
}

func (w *managedWorker) snapshot() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *managedWorker) setStatus(s Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Status = s
	w.state.LastHeartbeat = time.Now()
}

func (w *managedWorker) setCurrentTask(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.CurrentTaskID = id
	w.state.LastHeartbeat = time.Now()
}

func (w *managedWorker) recordError() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.ConsecutiveErrs++
	w.state.Status = StatusErroring
	w.state.LastHeartbeat = time.Now()
	return w.state.ConsecutiveErrs
}

func (w *managedWorker) recordSuccess() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.ConsecutiveErrs = 0
	w.state.Status = StatusIdle
	w.state.LastHeartbeat = time.Now()
}

// Config tunes a Pool's auto-scaling and health-check behavior (spec
// §4.5).
type Config struct {
	MinWorkers int
	MaxWorkers int

	// ScaleUpQueueDepth is the per-poll queue depth above which, with
	// every live worker busy, a new worker is spawned.
	ScaleUpQueueDepth int
	// ScaleDownIdleFor is how long the pool must see spare idle
	// capacity before shedding a worker.
	ScaleDownIdleFor time.Duration
	ScaleCooldown    time.Duration

	// MaxConsecutiveErrors restarts a worker once its per-task error
	// streak reaches this threshold.
	MaxConsecutiveErrors int

	PollInterval time.Duration
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		MinWorkers:           2,
		MaxWorkers:           16,
		ScaleUpQueueDepth:    50,
		ScaleDownIdleFor:     30 * time.Second,
		ScaleCooldown:        10 * time.Second,
		MaxConsecutiveErrors: 5,
		PollInterval:         50 * time.Millisecond,
	}
}

// Pool is C5: an auto-scaled set of workers pulling from a
// PartitionedQueue and dispatching by task type.
type Pool struct {
	cfg      Config
	q        *queue.PartitionedQueue
	handlers map[graph.TaskType]Handler

	mu      sync.Mutex
	workers []*managedWorker
	nextID  int

	lastScaleUp   time.Time
	idleSince     time.Time
	running       bool
	stopCtx       context.Context
	stopCancel    context.CancelFunc
	supervisorWG  sync.WaitGroup
}

// NewPool builds a pool bound to q, initially at cfg.MinWorkers.
func NewPool(cfg Config, q *queue.PartitionedQueue) *Pool {
	if cfg.MinWorkers < 1 {
		cfg.MinWorkers = 1
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	return &Pool{
		cfg:      cfg,
		q:        q,
		handlers: make(map[graph.TaskType]Handler),
	}
}

// RegisterHandler binds a handler to a task type (spec §4.5: "handlers
// registered for the four task types").
func (p *Pool) RegisterHandler(t graph.TaskType, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[t] = h
}

// Start launches MinWorkers workers plus the scaling/health-check
// supervisor loop.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCtx, p.stopCancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.MinWorkers; i++ {
		p.spawnWorkerLocked()
	}
	p.mu.Unlock()

	p.supervisorWG.Add(1)
	go p.superviseLoop()
}

// Stop cancels every worker and waits for the supervisor to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.stopCancel
	workers := append([]*managedWorker(nil), p.workers...)
	p.mu.Unlock()

	cancel()
	for _, w := range workers {
		<-w.done
	}
	p.supervisorWG.Wait()
}

// Snapshot returns the current state of every worker (spec §4.5
// per-worker status/heartbeat).
func (p *Pool) Snapshot() []WorkerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]WorkerState, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w.snapshot())
	}
	return out
}

// spawnWorkerLocked adds one worker goroutine. Caller holds p.mu.
func (p *Pool) spawnWorkerLocked() *managedWorker {
	id := p.nextID
	p.nextID++

	workerCtx, cancel := context.WithCancel(p.stopCtx)
	w := &managedWorker{
		state:  WorkerState{ID: id, Status: StatusIdle, LastHeartbeat: time.Now()},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.workers = append(p.workers, w)

	go p.runWorker(workerCtx, w)
	return w
}

// runWorker is the per-worker loop: poll C4, dispatch, report status,
// restart-on-error-streak.
func (p *Pool) runWorker(ctx context.Context, w *managedWorker) {
	defer close(w.done)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task := p.pullOne()
			if task == nil {
				w.setStatus(StatusIdle)
				continue
			}
			p.dispatch(ctx, w, task)

			if streak := w.snapshot().ConsecutiveErrs; streak >= p.cfg.MaxConsecutiveErrors {
				p.restartWorker(w)
				return
			}
		}
	}
}

// pullOne dequeues a single highest-priority ready task from across
// all partitions.
func (p *Pool) pullOne() *graph.Task {
	tasks := p.q.DequeueByPriority(1)
	if len(tasks) == 0 {
		return nil
	}
	return tasks[0]
}

// dispatch runs the registered handler for task.Type, re-enqueues any
// follow-on tasks it produces, and requeues the task itself through
// C4's backoff policy on failure.
func (p *Pool) dispatch(ctx context.Context, w *managedWorker, task *graph.Task) {
	w.setCurrentTask(task.ID)
	w.setStatus(StatusBusy)

	p.mu.Lock()
	handler, ok := p.handlers[task.Type]
	p.mu.Unlock()
	if !ok {
		w.recordError()
		w.setCurrentTask("")
		return
	}

	followOn, err := handler(ctx, task)
	if err != nil {
		w.recordError()
		p.q.Requeue(task, err, task.PartitionKey)
		w.setCurrentTask("")
		return
	}

	for _, ft := range followOn {
		_ = p.q.Enqueue(ft, ft.PartitionKey)
	}
	w.recordSuccess()
	w.setCurrentTask("")
}

// restartWorker replaces a worker that tripped the consecutive-error
// threshold (spec §4.5 health check restart): the old worker is
// removed from the pool and a fresh one with a new ID is appended.
func (p *Pool) restartWorker(old *managedWorker) {
	old.setStatus(StatusRestarting)
	old.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	for i, w := range p.workers {
		if w == old {
			p.workers = append(p.workers[:i], p.workers[i+1:]...)
			break
		}
	}
	p.spawnWorkerLocked()
}
