package config

import (
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/pipeline"
	"github.com/Amicidal/codegraph-ingest/internal/queue"
	"github.com/Amicidal/codegraph-ingest/internal/sink"
	"github.com/Amicidal/codegraph-ingest/internal/worker"
	"github.com/Amicidal/codegraph-ingest/internal/writer"
)

// ToPipelineConfig assembles a pipeline.Config from the loaded KDL
// settings, grounded on the teacher's pattern of translating a parsed
// Config into the concrete structs its subsystems consume (e.g.
// internal/indexing building a scanner's options from Config.Index).
func (c *Config) ToPipelineConfig(gs sink.GraphSink) pipeline.Config {
	strategy := queue.AssignHash
	switch c.Queue.Strategy {
	case "roundrobin":
		strategy = queue.AssignRoundRobin
	case "priorityband":
		strategy = queue.AssignPriorityBanded
	}

	backoffBase, backoffMax, sweepInterval := queueBackoffDurations(c.Queue.BackoffBaseMs, c.Queue.BackoffMaxMs, c.Queue.SweepIntervalSec)

	maxWorkers := c.Worker.MaxWorkers
	if maxWorkers == 0 {
		maxWorkers = defaultMaxGoroutines()
	}

	return pipeline.Config{
		Root:      c.Project.Root,
		GraphSink: gs,
		QueueConfig: queue.Config{
			Partitions:        c.Queue.Partitions,
			Strategy:          strategy,
			PartitionCapacity: c.Queue.PartitionCapacity,
			BackpressureDepth: c.Queue.BackpressureDepth,
			BackoffBase:       backoffBase,
			BackoffMultiplier: 2.0,
			BackoffMax:        backoffMax,
			JitterFraction:    c.Queue.JitterFraction,
			SweepInterval:     sweepInterval,
		},
		WorkerConfig: worker.Config{
			MinWorkers:           c.Worker.MinWorkers,
			MaxWorkers:           maxWorkers,
			ScaleUpQueueDepth:    c.Worker.ScaleUpQueueDepth,
			ScaleDownIdleFor:     time.Duration(c.Worker.ScaleDownIdleForSec) * time.Second,
			ScaleCooldown:        time.Duration(c.Worker.ScaleCooldownSec) * time.Second,
			MaxConsecutiveErrors: c.Worker.MaxConsecutiveErrors,
			PollInterval:         time.Duration(c.Worker.PollIntervalMs) * time.Millisecond,
		},
		WriterConfig: writer.Config{
			EntityBatchSize:          c.Writer.EntityBatchSize,
			EntityBatchTimeout:       time.Duration(c.Writer.EntityBatchTimeoutMs) * time.Millisecond,
			RelationshipBatchSize:    c.Writer.RelationshipBatchSize,
			RelationshipBatchTimeout: time.Duration(c.Writer.RelationshipBatchTimeoutMs) * time.Millisecond,
			EmbeddingBatchSize:       c.Writer.EmbeddingBatchSize,
			EmbeddingBatchTimeout:    time.Duration(c.Writer.EmbeddingBatchTimeoutMs) * time.Millisecond,
			MaxInFlight:              c.Writer.MaxInFlight,
			IdempotencyTTL:           time.Duration(c.Writer.IdempotencyTTLSec) * time.Second,
			MaxAttempts:              c.Writer.MaxAttempts,
			BackoffBase:              time.Duration(c.Writer.BackoffBaseMs) * time.Millisecond,
			BackoffMax:               time.Duration(c.Writer.BackoffMaxMs) * time.Millisecond,
			IndividualRetryThreshold: c.Writer.IndividualRetryThreshold,
			EpochTTL:                 time.Duration(c.Writer.EpochTTLSec) * time.Second,
		},
		ResolveBudgetCap: c.Pipeline.ResolveBudgetCap,
		TaskTimeout:      time.Duration(c.Pipeline.TaskTimeoutSec) * time.Second,
		StopGrace:        time.Duration(c.Pipeline.StopGraceSec) * time.Second,
		Include:          c.Include,
		Exclude:          c.Exclude,
	}
}
