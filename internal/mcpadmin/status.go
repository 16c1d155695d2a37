package mcpadmin

import (
	"github.com/Amicidal/codegraph-ingest/internal/pipeline"
	"github.com/Amicidal/codegraph-ingest/internal/queue"
	"github.com/Amicidal/codegraph-ingest/internal/retry"
	"github.com/Amicidal/codegraph-ingest/internal/telemetry"
	"github.com/Amicidal/codegraph-ingest/internal/worker"
)

// PipelineStatus is the narrow read surface this package needs from
// the running orchestrator, scoped to exactly the accessors
// pipeline_status reports — the same interface-only-contract shape as
// internal/sink.GraphSink — and satisfied structurally by
// *pipeline.Pipeline with no explicit implements declaration.
type PipelineStatus interface {
	State() pipeline.State
	QueueStats() queue.Stats
	WorkerSnapshot() []worker.WorkerState
	TelemetrySnapshot() telemetry.Snapshot
	DeadLetters() []retry.DeadLetterEntry
}
