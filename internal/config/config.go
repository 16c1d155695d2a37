// Package config is the pipeline's KDL-based configuration layer,
// grounded on the teacher's internal/config package: the same
// global-then-project KDL merge (Load/LoadWithRoot/LoadKDL), the same
// Validator/smart-defaults split, and the same build-artifact-aware
// exclusion enrichment — retargeted from file
// indexing settings to the ingestion pipeline's own components
// (queue partitioning, worker scaling, writer batching, retry/circuit
// breaker tuning, fan-out listen address, admin socket).
package config

import (
	"os"
	"runtime"
	"time"
)

// Project identifies the root the pipeline ingests from.
type Project struct {
	Root string
	Name string
}

// QueueTuning configures C4's partitioned task queue.
type QueueTuning struct {
	Partitions        int
	Strategy          string // "hash", "roundrobin" or "priorityband" (mapped onto internal/queue.AssignStrategy)
	PartitionCapacity int
	BackpressureDepth int

	BackoffBaseMs    int
	BackoffMaxMs     int
	JitterFraction   float64
	SweepIntervalSec int
}

// WorkerTuning configures C5's elastic worker pool.
type WorkerTuning struct {
	MinWorkers           int
	MaxWorkers           int
	ScaleUpQueueDepth    int
	ScaleDownIdleForSec  int
	ScaleCooldownSec     int
	MaxConsecutiveErrors int
	PollIntervalMs       int
}

// WriterTuning configures C6's DAG-ordered batch writer.
type WriterTuning struct {
	EntityBatchSize          int
	EntityBatchTimeoutMs     int
	RelationshipBatchSize    int
	RelationshipBatchTimeoutMs int
	EmbeddingBatchSize       int
	EmbeddingBatchTimeoutMs  int
	MaxInFlight              int
	IdempotencyTTLSec        int
	MaxAttempts              int
	BackoffBaseMs            int
	BackoffMaxMs             int
	IndividualRetryThreshold int
	EpochTTLSec              int
}

// PipelineTuning configures C9's orchestrator-level knobs.
type PipelineTuning struct {
	ResolveBudgetCap int
	TaskTimeoutSec   int
	StopGraceSec     int
}

// FanoutTuning configures C10's subscription server.
type FanoutTuning struct {
	Listen           string
	JWTSecret        string
	HeartbeatSec     int
}

// AdminTuning configures C9's admin.AdminServer.
type AdminTuning struct {
	SocketPath string // empty derives a per-root path, see cmd/pipelinectl.defaultSocketPath
}

// Config is the pipeline's full configuration surface, loaded from
// .pipeline.kdl (global ~/.pipeline.kdl, merged with a project-local
// file) the same way the teacher loads .lci.kdl.
type Config struct {
	Version int
	Project Project

	Queue    QueueTuning
	Worker   WorkerTuning
	Writer   WriterTuning
	Pipeline PipelineTuning
	Fanout   FanoutTuning
	Admin    AdminTuning

	Include []string
	Exclude []string
}

// Load is LoadWithRoot with an empty rootDir: it merges
// ~/.pipeline.kdl (if present) with the .pipeline.kdl in the current
// directory. path is not consulted by either function.
func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot loads a global base config from ~/.pipeline.kdl (if
// present), then a project config from rootDir, merging project
// settings over the base the same way the teacher's Load does:
// project overrides base, but base exclusions are preserved alongside
// project ones.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	kdlCfg, err := LoadKDL(searchDir)
	if err != nil {
		return nil, err
	}
	if kdlCfg != nil {
		projectConfig = kdlCfg
	}

	switch {
	case baseConfig != nil && projectConfig != nil:
		return mergeConfigs(baseConfig, projectConfig), nil
	case projectConfig != nil:
		return projectConfig, nil
	case baseConfig != nil:
		baseConfig.Project.Root = searchDir
		return baseConfig, nil
	}

	cfg := DefaultConfig(searchDir)
	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

// DefaultConfig returns the KDL layer's own defaults. The worker
// values equal worker.DefaultConfig; several queue, writer and
// pipeline values differ from those packages' DefaultConfig (for
// example BackpressureDepth 8000 here vs 32000 in queue, the writer
// batch timeouts, and StopGraceSec 15 vs the pipeline's 10s).
func DefaultConfig(root string) *Config {
	if root == "" {
		if cwd, err := os.Getwd(); err == nil {
			root = cwd
		} else {
			root = "."
		}
	}
	return &Config{
		Version: 1,
		Project: Project{Root: root},
		Queue: QueueTuning{
			Partitions:        4,
			Strategy:          "hash",
			PartitionCapacity: 10_000,
			BackpressureDepth: 8_000,
			BackoffBaseMs:     100,
			BackoffMaxMs:      10_000,
			JitterFraction:    0.2,
			SweepIntervalSec:  5,
		},
		Worker: WorkerTuning{
			MinWorkers:           2,
			MaxWorkers:           16,
			ScaleUpQueueDepth:    50,
			ScaleDownIdleForSec:  30,
			ScaleCooldownSec:     10,
			MaxConsecutiveErrors: 5,
			PollIntervalMs:       50,
		},
		Writer: WriterTuning{
			EntityBatchSize:            200,
			EntityBatchTimeoutMs:       500,
			RelationshipBatchSize:      200,
			RelationshipBatchTimeoutMs: 500,
			EmbeddingBatchSize:         50,
			EmbeddingBatchTimeoutMs:    1000,
			MaxInFlight:                4,
			IdempotencyTTLSec:          300,
			MaxAttempts:                5,
			BackoffBaseMs:              200,
			BackoffMaxMs:               10_000,
			IndividualRetryThreshold:   10,
			EpochTTLSec:                3600,
		},
		Pipeline: PipelineTuning{
			ResolveBudgetCap: 50,
			TaskTimeoutSec:   30,
			StopGraceSec:     15,
		},
		Fanout: FanoutTuning{
			Listen:       ":8900",
			JWTSecret:    "change-me",
			HeartbeatSec: 30,
		},
		Include: []string{},
		Exclude: []string{},
	}
}

// mergeConfigs merges a base config with a project config: project
// settings win, but base and project exclusions are unioned (spec
// §9-adjacent: a user's global ignore rules should never be silently
// dropped by a project's own .pipeline.kdl).
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		seen := make(map[string]bool, len(base.Exclude)+len(project.Exclude))
		merged.Exclude = make([]string, 0, len(base.Exclude)+len(project.Exclude))
		for _, pattern := range base.Exclude {
			if !seen[pattern] {
				seen[pattern] = true
				merged.Exclude = append(merged.Exclude, pattern)
			}
		}
		for _, pattern := range project.Exclude {
			if !seen[pattern] {
				seen[pattern] = true
				merged.Exclude = append(merged.Exclude, pattern)
			}
		}
	}

	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

// EnrichExclusionsWithBuildArtifacts appends language-specific build
// output directories (detected from package.json/Cargo.toml/etc.) to
// Exclude, unchanged from the teacher's own enrichment step.
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}
	detector := NewBuildArtifactDetector(c.Project.Root)
	if patterns := detector.DetectOutputDirectories(); len(patterns) > 0 {
		c.Exclude = append(c.Exclude, patterns...)
		c.Exclude = DeduplicatePatterns(c.Exclude)
	}
}

// defaultMaxGoroutines mirrors the teacher's cores-minus-one headroom
// rule, reused here for Worker.MaxWorkers when left at zero.
func defaultMaxGoroutines() int {
	if n := runtime.NumCPU() - 1; n > 0 {
		return n
	}
	return 1
}

// queueBackoffDurations converts the KDL-friendly millisecond/second
// fields into the time.Duration shapes internal/queue.Config expects.
func queueBackoffDurations(base, max, sweep int) (time.Duration, time.Duration, time.Duration) {
	return time.Duration(base) * time.Millisecond, time.Duration(max) * time.Millisecond, time.Duration(sweep) * time.Second
}
