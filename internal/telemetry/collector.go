package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time read of everything the Collector tracks,
// consumed by AlertThresholds.Evaluate and the admin status surface
// (C9's /status, /stats endpoints).
type Snapshot struct {
	Latencies        map[string]LatencyMetrics
	Throughput       map[ThroughputKind]ThroughputRates
	Resources        ResourceSample
	RecentErrors     []ErrorTailEntry
	ErrorRatePercent float64
	QueueDepth       float64
}

// Collector is C8: the rolling-window latency tracker, throughput
// counter, resource sampler, and error tail wired together, exposing
// derived metrics and alert evaluation.
type Collector struct {
	windowCapacity int

	mu      sync.RWMutex
	windows map[string]*Window

	throughput *Throughput
	resources  *ResourceHistory
	errors     *ErrorTail

	totalOps   int64
	failedOps  int64

	queueDepthFn func() int
}

// NewCollector builds a Collector. queueDepthFn, if non-nil, is polled
// by Snapshot to populate QueueDepth (wired to C4's PartitionedQueue
// by the orchestrator).
func NewCollector(windowCapacity int, queueDepthFn func() int) *Collector {
	return &Collector{
		windowCapacity: windowCapacity,
		windows:        make(map[string]*Window),
		throughput:     NewThroughput(),
		resources:      NewResourceHistory(60),
		errors:         NewErrorTail(DefaultErrorTailCapacity),
		queueDepthFn:   queueDepthFn,
	}
}

func (c *Collector) windowFor(op string) *Window {
	c.mu.RLock()
	w, ok := c.windows[op]
	c.mu.RUnlock()
	if ok {
		return w
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.windows[op]; ok {
		return w
	}
	w = NewWindow(c.windowCapacity)
	c.windows[op] = w
	return w
}

// RecordLatency records one completed operation's duration under op.
func (c *Collector) RecordLatency(op string, d time.Duration) {
	c.windowFor(op).Record(d)
}

// RecordOutcome tallies a completed operation toward the derived error
// rate.
func (c *Collector) RecordOutcome(success bool) {
	atomic.AddInt64(&c.totalOps, 1)
	if !success {
		atomic.AddInt64(&c.failedOps, 1)
	}
}

// AddThroughput records n units of kind processed.
func (c *Collector) AddThroughput(kind ThroughputKind, n int64) {
	c.throughput.Add(kind, n)
}

// SampleResourcesNow takes and records one resource reading.
func (c *Collector) SampleResourcesNow() ResourceSample {
	s := SampleResources()
	c.resources.Record(s)
	return s
}

// ReportError implements retry.ErrorSink so the Collector itself can
// be passed as a retry.Reporter's sink. It feeds only the error tail;
// the error rate comes from RecordOutcome tallies.
func (c *Collector) ReportError(op string, err error, ts time.Time) {
	c.errors.ReportError(op, err, ts)
}

// errorRatePercent derives the error rate from RecordOutcome tallies.
func (c *Collector) errorRatePercent() float64 {
	total := atomic.LoadInt64(&c.totalOps)
	if total == 0 {
		return 0
	}
	failed := atomic.LoadInt64(&c.failedOps)
	return float64(failed) / float64(total) * 100
}

// Snapshot assembles the current state of every tracked metric.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	latencies := make(map[string]LatencyMetrics, len(c.windows))
	for op, w := range c.windows {
		latencies[op] = w.Metrics()
	}
	c.mu.RUnlock()

	throughput := make(map[ThroughputKind]ThroughputRates)
	for _, kind := range []ThroughputKind{ThroughputFiles, ThroughputEntities, ThroughputRelationships, ThroughputLines, ThroughputBytes} {
		throughput[kind] = c.throughput.Rates(kind)
	}

	resources, _ := c.resources.Latest()

	queueDepth := 0.0
	if c.queueDepthFn != nil {
		queueDepth = float64(c.queueDepthFn())
	}

	return Snapshot{
		Latencies:        latencies,
		Throughput:       throughput,
		Resources:        resources,
		RecentErrors:     c.errors.Recent(),
		ErrorRatePercent: c.errorRatePercent(),
		QueueDepth:       queueDepth,
	}
}
