package pipeline

import (
	"context"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
	"github.com/Amicidal/codegraph-ingest/internal/writer"
)

// writerAdapter satisfies worker.BatchWriter by forwarding to C6's
// Writer. Submission is intentionally fire-and-forget (spec §5:
// "enqueue... never blocks indefinitely") — the Writer buffers and
// flushes on its own size/timeout triggers, so the adapter always
// returns nil rather than blocking the calling worker on a flush.
type writerAdapter struct {
	w     *writer.Writer
	epoch uint64
}

func newWriterAdapter(w *writer.Writer, epoch uint64) *writerAdapter {
	return &writerAdapter{w: w, epoch: epoch}
}

func (a *writerAdapter) UpsertEntities(_ context.Context, entities []graph.Entity, priority int) error {
	a.w.SubmitEntities(entities, priority, a.epoch)
	return nil
}

func (a *writerAdapter) UpsertRelationships(_ context.Context, relationships []graph.Relationship, priority int) error {
	a.w.SubmitRelationships(relationships, priority, a.epoch)
	return nil
}
