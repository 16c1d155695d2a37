package config

import (
	"fmt"

	"github.com/Amicidal/codegraph-ingest/internal/ingesterrors"
)

// Validator validates a loaded Config and fills in smart defaults,
// grounded on the teacher's internal/config/validator.go (one
// validate* method per sub-section, returning a wrapped
// ingesterrors.ConfigErr on the first violation).
type Validator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates cfg and applies smart defaults in
// place, mirroring the teacher's ValidateAndSetDefaults call order.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProject(&cfg.Project); err != nil {
		return ingesterrors.NewConfigErr("project", cfg.Project.Root, err)
	}
	if err := v.validateQueue(&cfg.Queue); err != nil {
		return ingesterrors.NewConfigErr("queue", fmt.Sprintf("%+v", cfg.Queue), err)
	}
	if err := v.validateWorker(&cfg.Worker); err != nil {
		return ingesterrors.NewConfigErr("worker", fmt.Sprintf("%+v", cfg.Worker), err)
	}
	if err := v.validateWriter(&cfg.Writer); err != nil {
		return ingesterrors.NewConfigErr("writer", fmt.Sprintf("%+v", cfg.Writer), err)
	}
	if err := v.validatePipeline(&cfg.Pipeline); err != nil {
		return ingesterrors.NewConfigErr("pipeline", fmt.Sprintf("%+v", cfg.Pipeline), err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProject(p *Project) error {
	if p.Root == "" {
		return fmt.Errorf("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateQueue(q *QueueTuning) error {
	if q.Partitions <= 0 {
		return fmt.Errorf("Partitions must be positive, got %d", q.Partitions)
	}
	if q.PartitionCapacity <= 0 {
		return fmt.Errorf("PartitionCapacity must be positive, got %d", q.PartitionCapacity)
	}
	if q.Strategy != "" && q.Strategy != "hash" && q.Strategy != "roundrobin" && q.Strategy != "priorityband" {
		return fmt.Errorf("Strategy must be one of hash|roundrobin|priorityband, got %q", q.Strategy)
	}
	if q.JitterFraction < 0 || q.JitterFraction > 1 {
		return fmt.Errorf("JitterFraction must be between 0 and 1, got %v", q.JitterFraction)
	}
	return nil
}

func (v *Validator) validateWorker(w *WorkerTuning) error {
	if w.MinWorkers < 0 {
		return fmt.Errorf("MinWorkers cannot be negative, got %d", w.MinWorkers)
	}
	if w.MaxWorkers < 0 {
		return fmt.Errorf("MaxWorkers cannot be negative, got %d", w.MaxWorkers)
	}
	if w.MaxWorkers > 0 && w.MinWorkers > w.MaxWorkers {
		return fmt.Errorf("MinWorkers (%d) cannot exceed MaxWorkers (%d)", w.MinWorkers, w.MaxWorkers)
	}
	return nil
}

func (v *Validator) validateWriter(wr *WriterTuning) error {
	if wr.EntityBatchSize <= 0 {
		return fmt.Errorf("EntityBatchSize must be positive, got %d", wr.EntityBatchSize)
	}
	if wr.RelationshipBatchSize <= 0 {
		return fmt.Errorf("RelationshipBatchSize must be positive, got %d", wr.RelationshipBatchSize)
	}
	if wr.MaxAttempts <= 0 {
		return fmt.Errorf("MaxAttempts must be positive, got %d", wr.MaxAttempts)
	}
	if wr.MaxInFlight <= 0 {
		return fmt.Errorf("MaxInFlight must be positive, got %d", wr.MaxInFlight)
	}
	return nil
}

func (v *Validator) validatePipeline(p *PipelineTuning) error {
	if p.TaskTimeoutSec <= 0 {
		return fmt.Errorf("TaskTimeoutSec must be positive, got %d", p.TaskTimeoutSec)
	}
	if p.StopGraceSec < 0 {
		return fmt.Errorf("StopGraceSec cannot be negative, got %d", p.StopGraceSec)
	}
	return nil
}

// setSmartDefaults fills in zero-valued tuning knobs from
// DefaultConfig, mirroring the teacher's cores-aware defaulting for
// anything left at its zero value by the KDL file.
func (v *Validator) setSmartDefaults(cfg *Config) {
	defaults := DefaultConfig(cfg.Project.Root)

	if cfg.Queue.Partitions == 0 {
		cfg.Queue.Partitions = defaults.Queue.Partitions
	}
	if cfg.Queue.PartitionCapacity == 0 {
		cfg.Queue.PartitionCapacity = defaults.Queue.PartitionCapacity
	}
	if cfg.Queue.Strategy == "" {
		cfg.Queue.Strategy = defaults.Queue.Strategy
	}
	if cfg.Worker.MaxWorkers == 0 {
		cfg.Worker.MaxWorkers = defaultMaxGoroutines()
	}
	if cfg.Worker.MinWorkers == 0 {
		cfg.Worker.MinWorkers = defaults.Worker.MinWorkers
	}
	if cfg.Writer.EntityBatchSize == 0 {
		cfg.Writer.EntityBatchSize = defaults.Writer.EntityBatchSize
	}
	if cfg.Writer.RelationshipBatchSize == 0 {
		cfg.Writer.RelationshipBatchSize = defaults.Writer.RelationshipBatchSize
	}
	if cfg.Pipeline.TaskTimeoutSec == 0 {
		cfg.Pipeline.TaskTimeoutSec = defaults.Pipeline.TaskTimeoutSec
	}
	if cfg.Pipeline.StopGraceSec == 0 {
		cfg.Pipeline.StopGraceSec = defaults.Pipeline.StopGraceSec
	}
	if cfg.Fanout.Listen == "" {
		cfg.Fanout.Listen = defaults.Fanout.Listen
	}
}
