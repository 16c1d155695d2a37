package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
	"github.com/Amicidal/codegraph-ingest/internal/sink"
)

// Config tunes buffer sizes/timeouts, concurrency, retries, and
// idempotency per spec §4.6.
type Config struct {
	EntityBatchSize          int
	EntityBatchTimeout       time.Duration
	RelationshipBatchSize    int
	RelationshipBatchTimeout time.Duration
	EmbeddingBatchSize       int
	EmbeddingBatchTimeout    time.Duration

	MaxInFlight int

	IdempotencyTTL time.Duration

	MaxAttempts               int
	BackoffBase               time.Duration
	BackoffMax                time.Duration
	IndividualRetryThreshold  int // batches at or below this size retry fragment-by-fragment on persistent failure

	EpochTTL time.Duration
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		EntityBatchSize:          200,
		EntityBatchTimeout:       2 * time.Second,
		RelationshipBatchSize:    200,
		RelationshipBatchTimeout: 2 * time.Second,
		EmbeddingBatchSize:       50,
		EmbeddingBatchTimeout:    5 * time.Second,
		MaxInFlight:              4,
		IdempotencyTTL:           5 * time.Minute,
		MaxAttempts:              5,
		BackoffBase:              250 * time.Millisecond,
		BackoffMax:               30 * time.Second,
		IndividualRetryThreshold: 10,
		EpochTTL:                 30 * time.Minute,
	}
}

// DeadLetterFunc receives a batch that exhausted its retries.
type DeadLetterFunc func(kind FragmentKind, fragments []interface{}, cause error)

// FragmentKind distinguishes the three independently-buffered lanes
// (spec §4.6: "separate buffers per fragment kind").
type FragmentKind int

const (
	FragmentEntity FragmentKind = iota
	FragmentRelationship
	FragmentEmbedding
)

func (k FragmentKind) String() string {
	switch k {
	case FragmentEntity:
		return "entity"
	case FragmentRelationship:
		return "relationship"
	case FragmentEmbedding:
		return "embedding"
	default:
		return "unknown"
	}
}

// Writer is C6: a DAG-ordered, idempotent, epoch-tagged batch writer.
type Writer struct {
	cfg  Config
	gs   sink.GraphSink
	epoch uint64

	entities      *kindBuffer
	relationships *kindBuffer
	embeddings    *kindBuffer

	inFlight chan struct{}

	idemMu sync.Mutex
	idem   map[string]time.Time

	onDeadLetter DeadLetterFunc

	log *slog.Logger

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewWriter builds a Writer bound to gs, stamped with the given
// pipeline-start epoch (spec §4.6 epochs).
func NewWriter(cfg Config, gs sink.GraphSink, epoch uint64, onDeadLetter DeadLetterFunc) *Writer {
	if cfg.MaxInFlight < 1 {
		cfg.MaxInFlight = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	w := &Writer{
		cfg:          cfg,
		gs:           gs,
		epoch:        epoch,
		inFlight:     make(chan struct{}, cfg.MaxInFlight),
		idem:         make(map[string]time.Time),
		onDeadLetter: onDeadLetter,
		log:          slog.Default().With("component", "writer", "epoch", epoch),
		stopSweep:    make(chan struct{}),
	}
	w.entities = newKindBuffer(cfg.EntityBatchSize, cfg.EntityBatchTimeout, func() { w.flushEntities(context.Background()) })
	w.relationships = newKindBuffer(cfg.RelationshipBatchSize, cfg.RelationshipBatchTimeout, func() { w.flushRelationships(context.Background()) })
	w.embeddings = newKindBuffer(cfg.EmbeddingBatchSize, cfg.EmbeddingBatchTimeout, func() { w.flushEmbeddings(context.Background()) })

	go w.sweepIdempotency()
	return w
}

// Close stops the idempotency-sweep goroutine.
func (w *Writer) Close() {
	w.sweepOnce.Do(func() { close(w.stopSweep) })
}

// Epoch returns the writer's pipeline-start epoch.
func (w *Writer) Epoch() uint64 { return w.epoch }

// SubmitEntities queues entities into the entity buffer, dropping
// them with no error if batchEpoch is stale (spec §4.6: "stale epoch
// batches are dropped with a warning").
func (w *Writer) SubmitEntities(entities []graph.Entity, priority int, batchEpoch uint64) {
	if batchEpoch != 0 && batchEpoch != w.epoch {
		return
	}
	for _, e := range entities {
		w.entities.add(fragment{id: e.ID, priority: priority, value: e})
	}
}

// SubmitRelationships queues relationships into the relationship
// buffer.
func (w *Writer) SubmitRelationships(relationships []graph.Relationship, priority int, batchEpoch uint64) {
	if batchEpoch != 0 && batchEpoch != w.epoch {
		return
	}
	for _, r := range relationships {
		w.relationships.add(fragment{id: r.ID, priority: priority, value: r})
	}
}

// SubmitEmbeddings queues embedding results into the embedding
// buffer.
func (w *Writer) SubmitEmbeddings(entityIDs []string, vectors []interface{}, priority int, batchEpoch uint64) {
	if batchEpoch != 0 && batchEpoch != w.epoch {
		return
	}
	for i, id := range entityIDs {
		var v interface{}
		if i < len(vectors) {
			v = vectors[i]
		}
		w.embeddings.add(fragment{id: id, priority: priority, value: v})
	}
}

// Flush forces all three buffers to commit immediately (spec §4.6
// "explicit flush").
func (w *Writer) Flush(ctx context.Context) {
	w.flushEntities(ctx)
	w.flushRelationships(ctx)
	w.flushEmbeddings(ctx)
}

func (w *Writer) flushEntities(ctx context.Context) {
	items := w.entities.drain()
	if len(items) == 0 {
		return
	}
	w.commit(ctx, FragmentEntity, items)
}

// flushRelationships implements spec §4.6's DAG ordering: if any
// relationship's endpoints are still sitting in the (not yet flushed)
// entity buffer, the entity buffer is force-drained and committed
// first, synchronously, before the relationship batch is committed.
func (w *Writer) flushRelationships(ctx context.Context) {
	items := w.relationships.drain()
	if len(items) == 0 {
		return
	}

	if w.relationshipsReferencePendingEntities(items) {
		pending := w.entities.drain()
		if len(pending) > 0 {
			w.commit(ctx, FragmentEntity, pending)
		}
		w.commit(ctx, FragmentRelationship, items)
		return
	}

	go w.commit(ctx, FragmentRelationship, items)
}

func (w *Writer) relationshipsReferencePendingEntities(relFragments []fragment) bool {
	w.entities.mu.Lock()
	pendingIDs := make(map[string]bool, len(w.entities.items))
	for _, f := range w.entities.items {
		pendingIDs[f.id] = true
	}
	w.entities.mu.Unlock()
	if len(pendingIDs) == 0 {
		return false
	}

	for _, f := range relFragments {
		r, ok := f.value.(graph.Relationship)
		if !ok {
			continue
		}
		if pendingIDs[r.FromEntityID] || pendingIDs[r.ToEntityID] {
			return true
		}
	}
	return false
}

func (w *Writer) flushEmbeddings(ctx context.Context) {
	items := w.embeddings.drain()
	if len(items) == 0 {
		return
	}
	go w.commit(ctx, FragmentEmbedding, items)
}

// batchKey derives the idempotency key from sorted fragment ids (spec
// §4.6).
func batchKey(items []fragment) string {
	ids := make([]string, len(items))
	for i, f := range items {
		ids[i] = f.id
	}
	sort.Strings(ids)
	return fmt.Sprintf("%x", xxhash.Sum64String(strings.Join(ids, "|")))
}

// commit runs the size-bounded in-flight-capped submission with
// idempotency suppression and retry/dead-letter handling (spec §4.6).
func (w *Writer) commit(ctx context.Context, kind FragmentKind, items []fragment) {
	key := batchKey(items)
	if w.recentlySubmitted(key) {
		return
	}

	// correlationID identifies this specific commit attempt in logs,
	// independent of the content-derived idempotency key above (which
	// must stay stable across retries of the same logical batch).
	correlationID := uuid.NewString()

	w.inFlight <- struct{}{}
	defer func() { <-w.inFlight }()

	values := make([]interface{}, len(items))
	for i, f := range items {
		values[i] = f.value
	}

	err := w.submitWithRetry(ctx, kind, values)
	if err == nil {
		w.markSubmitted(key)
		return
	}

	if len(items) <= w.cfg.IndividualRetryThreshold {
		w.log.Warn("batch commit failed, retrying fragments individually",
			"correlation_id", correlationID, "kind", kind.String(), "size", len(items), "err", err)
		w.retryIndividually(ctx, kind, items)
		return
	}

	w.log.Error("batch commit exhausted retries, dead-lettering",
		"correlation_id", correlationID, "kind", kind.String(), "size", len(items), "err", err)
	if w.onDeadLetter != nil {
		w.onDeadLetter(kind, values, err)
	}
}

// submitWithRetry retries transient batch failures with exponential
// backoff up to MaxAttempts (spec §4.6 retries), using
// cenkalti/backoff/v4 as the generator (same dependency C4 already
// uses for requeue backoff).
func (w *Writer) submitWithRetry(ctx context.Context, kind FragmentKind, values []interface{}) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.BackoffBase
	b.MaxInterval = w.cfg.BackoffMax
	b.Reset()

	var lastErr error
	for attempt := 0; attempt < w.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.NextBackOff()):
			}
		}
		if err := w.submitOnce(ctx, kind, values); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func (w *Writer) submitOnce(ctx context.Context, kind FragmentKind, values []interface{}) error {
	switch kind {
	case FragmentEntity:
		_, err := w.gs.CreateEntitiesBulk(ctx, values)
		return err
	case FragmentRelationship:
		_, err := w.gs.CreateRelationshipsBulk(ctx, values)
		return err
	case FragmentEmbedding:
		_, err := w.gs.CreateEmbeddingsBatch(ctx, values, nil)
		return err
	default:
		return fmt.Errorf("writer: unknown fragment kind %d", kind)
	}
}

// retryIndividually resubmits each fragment of a small, persistently
// failing batch on its own (spec §4.6: "individual fragments are
// retried one-by-one if the batch has <= 10 items").
func (w *Writer) retryIndividually(ctx context.Context, kind FragmentKind, items []fragment) {
	for _, item := range items {
		if err := w.submitWithRetry(ctx, kind, []interface{}{item.value}); err != nil {
			w.log.Error("individual fragment retry failed, dead-lettering",
				"correlation_id", uuid.NewString(), "kind", kind.String(), "fragment_id", item.id, "err", err)
			if w.onDeadLetter != nil {
				w.onDeadLetter(kind, []interface{}{item.value}, err)
			}
		}
	}
}

func (w *Writer) recentlySubmitted(key string) bool {
	w.idemMu.Lock()
	defer w.idemMu.Unlock()
	expiry, ok := w.idem[key]
	return ok && time.Now().Before(expiry)
}

func (w *Writer) markSubmitted(key string) {
	w.idemMu.Lock()
	defer w.idemMu.Unlock()
	w.idem[key] = time.Now().Add(w.cfg.IdempotencyTTL)
}

func (w *Writer) sweepIdempotency() {
	interval := w.cfg.IdempotencyTTL / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopSweep:
			return
		case <-ticker.C:
			now := time.Now()
			w.idemMu.Lock()
			for k, exp := range w.idem {
				if now.After(exp) {
					delete(w.idem, k)
				}
			}
			w.idemMu.Unlock()
		}
	}
}

// PendingDepth returns the number of not-yet-flushed fragments per
// kind, useful for telemetry (C8) and tests.
func (w *Writer) PendingDepth() (entities, relationships, embeddings int) {
	return w.entities.len(), w.relationships.len(), w.embeddings.len()
}
