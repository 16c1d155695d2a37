package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Amicidal/codegraph-ingest/internal/cache"
	"github.com/Amicidal/codegraph-ingest/internal/graph"
	"github.com/Amicidal/codegraph-ingest/internal/parse"
	"github.com/Amicidal/codegraph-ingest/internal/queue"
	"github.com/Amicidal/codegraph-ingest/internal/resolve"
	"github.com/Amicidal/codegraph-ingest/internal/retry"
	"github.com/Amicidal/codegraph-ingest/internal/sink"
	"github.com/Amicidal/codegraph-ingest/internal/telemetry"
	"github.com/Amicidal/codegraph-ingest/internal/worker"
	"github.com/Amicidal/codegraph-ingest/internal/writer"
)

// defaultTaskTimeout is the per-task-type execution deadline (spec §5:
// "worker task execution has a per-type timeout (default 30 s)").
const defaultTaskTimeout = 30 * time.Second

// defaultStopGrace is how long Stop waits for in-flight tasks to drain
// before force-cancelling them (spec §5: "force-stop terminates after
// an additional grace period").
const defaultStopGrace = 10 * time.Second

// Config bundles every collaborator and tunable the orchestrator needs
// to build C4/C5/C6 and register their handlers.
type Config struct {
	Root string

	GraphSink        sink.GraphSink
	EmbeddingService sink.EmbeddingService // optional; nil skips enrichment (spec §6)

	QueueConfig  queue.Config
	WorkerConfig worker.Config
	WriterConfig writer.Config

	ResolveBudgetCap int

	TaskTimeout time.Duration
	StopGrace   time.Duration

	// Include/Exclude are doublestar glob patterns a ChangeEvent's
	// FilePath must satisfy before it is accepted, grounded on the
	// teacher's internal/indexing/pipeline_types.go
	// shouldIncludeFast/shouldExcludeFast. Exclude is checked first;
	// an empty Include matches everything.
	Include []string
	Exclude []string

	OnEnrichmentResult func(graph.EnrichmentResult)
}

// DefaultConfig wires the defaults each sub-component already declares
// for itself, plus this package's own ambient defaults.
func DefaultConfig(root string, gs sink.GraphSink) Config {
	return Config{
		Root:             root,
		GraphSink:        gs,
		QueueConfig:      queue.DefaultConfig(),
		WorkerConfig:     worker.DefaultConfig(),
		WriterConfig:     writer.DefaultConfig(),
		ResolveBudgetCap: resolve.DefaultCap,
		TaskTimeout:      defaultTaskTimeout,
		StopGrace:        defaultStopGrace,
	}
}

// Pipeline is C9: the orchestrator wiring C1 (cache)/C2 (parse)/C3
// (resolve budget)/C4 (queue)/C5 (worker pool)/C6 (writer) behind a
// linear lifecycle state machine, assigning priority and routing
// ingress events. Grounded on the teacher's internal/server.IndexServer
// (lifecycle + admin surface) and internal/indexing/pipeline.go's
// FileScanner (back-pressure-aware ingress).
type Pipeline struct {
	cfg Config
	log *slog.Logger

	mu    sync.RWMutex
	state State

	epoch uint64 // pipeline-start epoch, stamped on every C6 batch (spec §4.6)

	fileCache   *cache.FileCache
	symbolIndex *cache.SymbolIndex
	budget      *resolve.Budget
	parser      *parse.Parser

	q  *queue.PartitionedQueue
	wp *worker.Pool
	wr *writer.Writer

	dlq        *retry.DLQ
	breaker    *retry.Breaker
	collector  *telemetry.Collector
	reporter   *retry.Reporter

	accepting atomic.Bool // false while paused/stopped: IngestChangeEvent is rejected
}

// New builds a Pipeline in the stopped state; Start wires C4/C5/C6.
func New(cfg Config) *Pipeline {
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	return &Pipeline{
		cfg:   cfg,
		log:   slog.Default().With("component", "pipeline"),
		state: StateStopped,
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// transition moves the pipeline to `to`, failing if the move is not a
// valid linear step from the current state (spec §4.9).
func (p *Pipeline) transition(to State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !canTransition(p.state, to) {
		return &ErrInvalidTransition{From: p.state, To: to}
	}
	p.state = to
	return nil
}

// Start initializes C4, then C5, then C6 in that order, registers
// handlers, and begins accepting ingress (spec §4.9: "`start`
// initializes C4/C5/C6 in that order and registers handlers").
func (p *Pipeline) Start(ctx context.Context) error {
	if err := p.transition(StateStarting); err != nil {
		return err
	}

	p.mu.Lock()
	epoch := atomic.AddUint64(&p.epoch, 1)
	p.fileCache = cache.NewFileCache()
	p.symbolIndex = cache.NewSymbolIndex()
	p.budget = resolve.NewBudget(p.cfg.ResolveBudgetCap)
	p.parser = parse.NewParser(parse.DefaultConfig())

	p.dlq = retry.NewDLQ(retry.DefaultDLQConfig())
	p.breaker = retry.NewBreaker(retry.DefaultBreakerConfig())
	p.collector = telemetry.NewCollector(telemetry.DefaultWindowCapacity, func() int {
		if p.q == nil {
			return 0
		}
		return p.q.TotalDepth()
	})
	p.reporter = retry.NewReporter(retry.DefaultReporterConfig(), p.collector)

	// C4: queue, with dead-lettering wired through C7.
	p.q = queue.NewPartitionedQueue(p.cfg.QueueConfig, func(t *graph.Task, cause error) {
		p.dlq.Add(t, cause, t.RetryCount)
		p.reporter.Report("queue.dead_letter", cause)
	})

	// C5: worker pool, bound to the queue just created.
	p.wp = worker.NewPool(p.cfg.WorkerConfig, p.q)

	// C6: writer, bound to this epoch and the external sink (guarded by
	// C7's circuit breaker), also dead-lettering through C7.
	guardedSink := newBreakerGraphSink(p.cfg.GraphSink, p.breaker)
	p.wr = writer.NewWriter(p.cfg.WriterConfig, guardedSink, epoch, func(kind writer.FragmentKind, fragments []interface{}, cause error) {
		p.reporter.Report("writer.dead_letter:"+kind.String(), cause)
	})

	p.registerHandlersLocked()
	p.mu.Unlock()

	p.wp.Start(ctx)
	p.accepting.Store(true)

	return p.transition(StateRunning)
}

// registerHandlersLocked binds the four task-type handlers, each
// wrapped with the per-type execution timeout (spec §5). Caller holds
// p.mu.
func (p *Pipeline) registerHandlersLocked() {
	parseHandler := worker.NewParseHandler(worker.ParseDeps{
		Root:        p.cfg.Root,
		Parser:      p.parser,
		FileCache:   p.fileCache,
		SymbolIndex: p.symbolIndex,
		Budget:      p.budget,
	})

	adapter := newWriterAdapter(p.wr, p.epoch)
	entityHandler := worker.NewEntityUpsertHandler(adapter)
	relHandler := worker.NewRelationshipUpsertHandler(adapter)

	var enrichmentHandler worker.Handler
	if p.cfg.EmbeddingService != nil {
		subHandlers := map[graph.EnrichmentSubType]worker.EnrichmentHandler{
			graph.EnrichEmbedding: p.embeddingEnrichment,
		}
		enrichmentHandler = worker.NewEnrichmentHandler(subHandlers, p.cfg.OnEnrichmentResult)
	}

	p.wp.RegisterHandler(graph.TaskParse, p.withTimeout(parseHandler))
	p.wp.RegisterHandler(graph.TaskEntityUpsert, p.withTimeout(entityHandler))
	p.wp.RegisterHandler(graph.TaskRelationshipUpsert, p.withTimeout(relHandler))
	if enrichmentHandler != nil {
		p.wp.RegisterHandler(graph.TaskEnrichment, p.withTimeout(enrichmentHandler))
	}
}

// withTimeout wraps a handler so that every invocation respects
// cfg.TaskTimeout (spec §5 cancellation/timeouts), and feeds the
// resulting latency/outcome into C8's Collector.
func (p *Pipeline) withTimeout(h worker.Handler) worker.Handler {
	return func(ctx context.Context, task *graph.Task) ([]*graph.Task, error) {
		taskCtx, cancel := context.WithTimeout(ctx, p.cfg.TaskTimeout)
		defer cancel()

		start := time.Now()
		followOn, err := h(taskCtx, task)
		p.collector.RecordLatency(string(task.Type), time.Since(start))
		p.collector.RecordOutcome(err == nil)
		if err != nil {
			p.reporter.Report(string(task.Type), err)
		}
		return followOn, err
	}
}

// embeddingEnrichment is the `embedding` enrichment sub-handler,
// delegating to the optional EmbeddingService collaborator (spec §6:
// "Absence skips enrichment rather than failing the pipeline").
func (p *Pipeline) embeddingEnrichment(ctx context.Context, entityID string) (interface{}, error) {
	res, err := p.cfg.EmbeddingService.GenerateAndStore(ctx, entityID, sink.EmbeddingOptions{})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Stop drains the queue, stops C5, flushes and closes C6, then stops
// C4 — the reverse of Start (spec §4.9: "`stop` reverses").
func (p *Pipeline) Stop(ctx context.Context) error {
	if err := p.transition(StateStopping); err != nil {
		return err
	}
	p.accepting.Store(false)

	drainCtx, cancel := context.WithTimeout(ctx, p.cfg.StopGrace)
	defer cancel()
	p.waitForDrain(drainCtx)

	p.mu.Lock()
	wp, wr, q := p.wp, p.wr, p.q
	p.mu.Unlock()

	if wp != nil {
		wp.Stop()
	}
	if wr != nil {
		wr.Flush(ctx)
		wr.Close()
	}
	if q != nil {
		q.Close()
	}

	return p.transition(StateStopped)
}

// waitForDrain polls the queue depth until it reaches zero or ctx
// expires (force-stop after the grace period, spec §5).
func (p *Pipeline) waitForDrain(ctx context.Context) {
	p.mu.RLock()
	q := p.q
	p.mu.RUnlock()
	if q == nil {
		return
	}
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if q.TotalDepth() == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Pause stops accepting new ingress but leaves the queue/workers
// running so in-flight work drains (spec §4.9).
func (p *Pipeline) Pause() error {
	if err := p.transition(StatePausing); err != nil {
		return err
	}
	p.accepting.Store(false)
	return p.transition(StatePaused)
}

// Resume re-enables ingress after a Pause (spec §4.9).
func (p *Pipeline) Resume() error {
	if err := p.transition(StateResuming); err != nil {
		return err
	}
	p.accepting.Store(true)
	return p.transition(StateRunning)
}

// IngestChangeEvent implements spec §6's ingestChangeEvent(event).
func (p *Pipeline) IngestChangeEvent(event graph.ChangeEvent) error {
	if !p.accepting.Load() {
		return fmt.Errorf("pipeline: not accepting ingress in state %s", p.State())
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("pipeline: invalid change event: %w", err)
	}
	if !p.pathAccepted(event.FilePath) {
		return fmt.Errorf("pipeline: invalid change event: %s excluded by include/exclude patterns", event.FilePath)
	}

	task := &graph.Task{
		ID:           event.ID + ":parse",
		Type:         graph.TaskParse,
		Priority:     assignPriority(event),
		Payload:      graph.ParseTaskPayload{Event: event},
		CreatedAt:    time.Now(),
		MaxRetries:   5,
		PartitionKey: event.Module,
	}

	p.mu.RLock()
	q := p.q
	p.mu.RUnlock()
	if q == nil {
		return fmt.Errorf("pipeline: queue not initialized")
	}
	if err := q.Enqueue(task, task.PartitionKey); err != nil {
		return fmt.Errorf("pipeline: enqueue change event %s: %w", event.ID, err)
	}
	p.collector.AddThroughput(telemetry.ThroughputFiles, 1)
	return nil
}

// pathAccepted reports whether path satisfies the configured
// Include/Exclude glob patterns (spec §9 file-filtering supplement).
// Exclude is checked first; an empty Include list matches everything.
func (p *Pipeline) pathAccepted(path string) bool {
	for _, pattern := range p.cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, path); matched {
			return false
		}
	}
	if len(p.cfg.Include) == 0 {
		return true
	}
	for _, pattern := range p.cfg.Include {
		if matched, _ := doublestar.Match(pattern, path); matched {
			return true
		}
	}
	return false
}

// IngestChangeEvents implements spec §6's ingestChangeEvents([event]).
// It is not atomic: each event is ingested independently, and the
// first failure is returned after every event has been attempted.
func (p *Pipeline) IngestChangeEvents(events []graph.ChangeEvent) error {
	var firstErr error
	for _, e := range events {
		if err := p.IngestChangeEvent(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// QueueStats exposes C4's health snapshot for the admin surface.
func (p *Pipeline) QueueStats() queue.Stats {
	p.mu.RLock()
	q := p.q
	p.mu.RUnlock()
	if q == nil {
		return queue.Stats{}
	}
	return q.Stats()
}

// WorkerSnapshot exposes C5's per-worker state for the admin surface.
func (p *Pipeline) WorkerSnapshot() []worker.WorkerState {
	p.mu.RLock()
	wp := p.wp
	p.mu.RUnlock()
	if wp == nil {
		return nil
	}
	return wp.Snapshot()
}

// TelemetrySnapshot exposes C8's collected metrics for the admin
// surface.
func (p *Pipeline) TelemetrySnapshot() telemetry.Snapshot {
	p.mu.RLock()
	c := p.collector
	p.mu.RUnlock()
	if c == nil {
		return telemetry.Snapshot{}
	}
	return c.Snapshot()
}

// DeadLetters exposes C7's DLQ contents for the admin surface.
func (p *Pipeline) DeadLetters() []retry.DeadLetterEntry {
	p.mu.RLock()
	d := p.dlq
	p.mu.RUnlock()
	if d == nil {
		return nil
	}
	return d.List()
}

// SymbolIndex exposes C1's global symbol index for read-only
// inspection surfaces (e.g. internal/mcpadmin's list_symbols/
// inspect_symbol tools). Returns nil before Start has run.
func (p *Pipeline) SymbolIndex() *cache.SymbolIndex {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.symbolIndex
}
