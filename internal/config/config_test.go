package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_ProducesValidatableDefaults(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	if err := NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if cfg.Queue.Partitions != 4 {
		t.Errorf("Queue.Partitions = %d, want 4", cfg.Queue.Partitions)
	}
	if cfg.Worker.MinWorkers == 0 || cfg.Worker.MaxWorkers == 0 {
		t.Errorf("expected non-zero worker bounds, got %+v", cfg.Worker)
	}
}

func TestLoadKDL_ParsesProjectQueueWorkerAndExcludeSections(t *testing.T) {
	root := t.TempDir()
	kdl := `
project {
	root "."
	name "demo"
}
queue {
	partitions 8
	strategy "roundrobin"
	jitter_fraction 0.1
}
worker {
	min_workers 3
	max_workers 20
}
fanout {
	listen ":9100"
}
exclude {
	"**/vendor/**"
	"**/*.generated.go"
}
`
	if err := os.WriteFile(filepath.Join(root, ".pipeline.kdl"), []byte(kdl), 0o644); err != nil {
		t.Fatalf("write .pipeline.kdl: %v", err)
	}

	cfg, err := LoadKDL(root)
	if err != nil {
		t.Fatalf("LoadKDL: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected a parsed config, got nil")
	}
	if cfg.Project.Name != "demo" {
		t.Errorf("Project.Name = %q, want demo", cfg.Project.Name)
	}
	if cfg.Queue.Partitions != 8 || cfg.Queue.Strategy != "roundrobin" {
		t.Errorf("Queue = %+v, want Partitions=8 Strategy=roundrobin", cfg.Queue)
	}
	if cfg.Worker.MinWorkers != 3 || cfg.Worker.MaxWorkers != 20 {
		t.Errorf("Worker = %+v, want MinWorkers=3 MaxWorkers=20", cfg.Worker)
	}
	if cfg.Fanout.Listen != ":9100" {
		t.Errorf("Fanout.Listen = %q, want :9100", cfg.Fanout.Listen)
	}
	if len(cfg.Exclude) != 2 {
		t.Errorf("Exclude = %v, want 2 entries", cfg.Exclude)
	}
}

func TestLoadKDL_MissingFileReturnsNilWithoutError(t *testing.T) {
	cfg, err := LoadKDL(t.TempDir())
	if err != nil {
		t.Fatalf("LoadKDL on missing file: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config when .pipeline.kdl is absent, got %+v", cfg)
	}
}

func TestMergeConfigs_UnionsExclusionsProjectWins(t *testing.T) {
	base := DefaultConfig("/base")
	base.Exclude = []string{"**/base-only/**", "**/shared/**"}

	project := DefaultConfig("/project")
	project.Exclude = []string{"**/shared/**", "**/project-only/**"}
	project.Worker.MaxWorkers = 99

	merged := mergeConfigs(base, project)
	if merged.Worker.MaxWorkers != 99 {
		t.Errorf("expected project settings to win, MaxWorkers = %d", merged.Worker.MaxWorkers)
	}
	if len(merged.Exclude) != 3 {
		t.Errorf("Exclude = %v, want 3 deduplicated entries", merged.Exclude)
	}
}

func TestToPipelineConfig_TranslatesTuningIntoComponentConfigs(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.Queue.Strategy = "roundrobin"
	pcfg := cfg.ToPipelineConfig(nil)

	if pcfg.QueueConfig.Partitions != cfg.Queue.Partitions {
		t.Errorf("QueueConfig.Partitions = %d, want %d", pcfg.QueueConfig.Partitions, cfg.Queue.Partitions)
	}
	if pcfg.WorkerConfig.MinWorkers != cfg.Worker.MinWorkers {
		t.Errorf("WorkerConfig.MinWorkers = %d, want %d", pcfg.WorkerConfig.MinWorkers, cfg.Worker.MinWorkers)
	}
	if pcfg.WriterConfig.EntityBatchSize != cfg.Writer.EntityBatchSize {
		t.Errorf("WriterConfig.EntityBatchSize = %d, want %d", pcfg.WriterConfig.EntityBatchSize, cfg.Writer.EntityBatchSize)
	}
}

func TestValidator_RejectsMinWorkersAboveMaxWorkers(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.Worker.MinWorkers = 10
	cfg.Worker.MaxWorkers = 2

	if err := NewValidator().ValidateAndSetDefaults(cfg); err == nil {
		t.Error("expected validation error when MinWorkers exceeds MaxWorkers")
	}
}

func TestValidator_RejectsEmptyProjectRoot(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.Project.Root = ""

	if err := NewValidator().ValidateAndSetDefaults(cfg); err == nil {
		t.Error("expected validation error for empty project root")
	}
}
