package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
	"github.com/Amicidal/codegraph-ingest/internal/sink"
)

func testConfig(t *testing.T, gs sink.GraphSink) Config {
	t.Helper()
	root := t.TempDir()
	cfg := DefaultConfig(root, gs)
	cfg.TaskTimeout = 2 * time.Second
	cfg.StopGrace = 2 * time.Second
	cfg.WorkerConfig.PollInterval = 5 * time.Millisecond
	cfg.WriterConfig.EntityBatchSize = 1
	cfg.WriterConfig.EntityBatchTimeout = 20 * time.Millisecond
	cfg.WriterConfig.RelationshipBatchSize = 1
	cfg.WriterConfig.RelationshipBatchTimeout = 20 * time.Millisecond
	return cfg
}

func writeSourceFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture file: %v", err)
	}
	return path
}

func TestPipeline_StartTransitionsToRunning(t *testing.T) {
	gs := sink.NewFakeGraphSink()
	p := New(testConfig(t, gs))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	if got := p.State(); got != StateRunning {
		t.Errorf("State() = %s, want running", got)
	}
}

func TestPipeline_DoubleStartFailsInvalidTransition(t *testing.T) {
	gs := sink.NewFakeGraphSink()
	p := New(testConfig(t, gs))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	if err := p.Start(context.Background()); err == nil {
		t.Error("expected second Start from running to fail")
	}
}

func TestPipeline_PauseRejectsIngressAndResumeReEnables(t *testing.T) {
	gs := sink.NewFakeGraphSink()
	cfg := testConfig(t, gs)
	p := New(cfg)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	if err := p.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	path := writeSourceFile(t, cfg.Root, "a.go", "package a\n")
	event := graph.ChangeEvent{ID: "ev-1", Module: "a", FilePath: path, EventType: graph.EventCreated, Timestamp: time.Now()}
	if err := p.IngestChangeEvent(event); err == nil {
		t.Error("expected IngestChangeEvent to be rejected while paused")
	}

	if err := p.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := p.IngestChangeEvent(event); err != nil {
		t.Errorf("expected IngestChangeEvent to succeed after resume, got %v", err)
	}
}

func TestPipeline_IngestChangeEventRejectsInvalidEvent(t *testing.T) {
	gs := sink.NewFakeGraphSink()
	p := New(testConfig(t, gs))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	if err := p.IngestChangeEvent(graph.ChangeEvent{}); err == nil {
		t.Error("expected empty change event to be rejected")
	}
}

func TestPipeline_IngestChangeEventRejectsExcludedPath(t *testing.T) {
	gs := sink.NewFakeGraphSink()
	cfg := testConfig(t, gs)
	cfg.Exclude = []string{"**/*_test.go"}
	p := New(cfg)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	path := writeSourceFile(t, cfg.Root, "a_test.go", "package a\n")
	event := graph.ChangeEvent{ID: "ev-1", Module: "a", FilePath: path, EventType: graph.EventCreated, Timestamp: time.Now()}
	if err := p.IngestChangeEvent(event); err == nil {
		t.Error("expected an excluded path to be rejected")
	}
}

func TestPipeline_IngestChangeEventRequiresIncludeMatch(t *testing.T) {
	gs := sink.NewFakeGraphSink()
	cfg := testConfig(t, gs)
	cfg.Include = []string{"**/*.ts"}
	p := New(cfg)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	goPath := writeSourceFile(t, cfg.Root, "a.go", "package a\n")
	goEvent := graph.ChangeEvent{ID: "ev-1", Module: "a", FilePath: goPath, EventType: graph.EventCreated, Timestamp: time.Now()}
	if err := p.IngestChangeEvent(goEvent); err == nil {
		t.Error("expected a non-matching path to be rejected when Include is set")
	}

	tsPath := writeSourceFile(t, cfg.Root, "a.ts", "export {}\n")
	tsEvent := graph.ChangeEvent{ID: "ev-2", Module: "a", FilePath: tsPath, EventType: graph.EventCreated, Timestamp: time.Now()}
	if err := p.IngestChangeEvent(tsEvent); err != nil {
		t.Errorf("expected a matching path to be accepted, got %v", err)
	}
}

func TestPipeline_EndToEndIngestFlowsToGraphSink(t *testing.T) {
	gs := sink.NewFakeGraphSink()
	cfg := testConfig(t, gs)
	p := New(cfg)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	path := writeSourceFile(t, cfg.Root, "a.go", "package a\n\nfunc Hello() {}\n")
	event := graph.ChangeEvent{ID: "ev-1", Module: "a", FilePath: path, EventType: graph.EventCreated, Timestamp: time.Now()}
	if err := p.IngestChangeEvent(event); err != nil {
		t.Fatalf("IngestChangeEvent: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if gs.EntitiesCalls > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if gs.EntitiesCalls == 0 {
		t.Error("expected at least one entity batch to reach the graph sink")
	}
	if p.State() != StateStopped {
		t.Errorf("State() after Stop = %s, want stopped", p.State())
	}
}

func TestPipeline_IngestChangeEventsAttemptsAllAndReturnsFirstError(t *testing.T) {
	gs := sink.NewFakeGraphSink()
	cfg := testConfig(t, gs)
	p := New(cfg)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	good := graph.ChangeEvent{ID: "ev-ok", Module: "a", FilePath: writeSourceFile(t, cfg.Root, "b.go", "package a\n"), EventType: graph.EventCreated, Timestamp: time.Now()}
	bad := graph.ChangeEvent{ID: "", Module: "a", FilePath: "", EventType: graph.EventCreated}

	err := p.IngestChangeEvents([]graph.ChangeEvent{bad, good})
	if err == nil {
		t.Error("expected first error (from the invalid event) to be returned")
	}
}
