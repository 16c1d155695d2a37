package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter mirrors a Collector's snapshot into Prometheus
// gauges on scrape, the way vjache-cie's cmd/cie/index.go
// mounts promhttp.Handler on /metrics.
type PrometheusExporter struct {
	collector *Collector

	latencyP95  *prometheus.GaugeVec
	throughput  *prometheus.GaugeVec
	memoryAlloc prometheus.Gauge
	goroutines  prometheus.Gauge
	errorRate   prometheus.Gauge
	queueDepth  prometheus.Gauge

	registry *prometheus.Registry
}

// NewPrometheusExporter builds an exporter bound to its own registry
// (isolated, the way the teacher-adjacent kubernaut example builds a
// test-scoped registry rather than using the global default).
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	reg := prometheus.NewRegistry()

	e := &PrometheusExporter{
		collector: collector,
		registry:  reg,
		latencyP95: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "codegraph_ingest",
			Name:      "operation_latency_p95_seconds",
			Help:      "p95 latency per operation type.",
		}, []string{"operation"}),
		throughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "codegraph_ingest",
			Name:      "throughput_per_second",
			Help:      "Per-second throughput per counter kind.",
		}, []string{"kind"}),
		memoryAlloc: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "codegraph_ingest",
			Name:      "memory_alloc_bytes",
			Help:      "Last sampled runtime.MemStats.Alloc.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "codegraph_ingest",
			Name:      "goroutines",
			Help:      "Last sampled runtime.NumGoroutine.",
		}),
		errorRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "codegraph_ingest",
			Name:      "error_rate_percent",
			Help:      "Derived error rate over all recorded operation outcomes.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "codegraph_ingest",
			Name:      "queue_depth",
			Help:      "Current total task queue depth.",
		}),
	}

	reg.MustRegister(e.latencyP95, e.throughput, e.memoryAlloc, e.goroutines, e.errorRate, e.queueDepth)
	return e
}

// refresh pulls a fresh Collector snapshot into the registered gauges.
func (e *PrometheusExporter) refresh() {
	snap := e.collector.Snapshot()
	for op, m := range snap.Latencies {
		e.latencyP95.WithLabelValues(op).Set(float64(m.P95) / float64(1e9))
	}
	for kind, rates := range snap.Throughput {
		e.throughput.WithLabelValues(string(kind)).Set(rates.PerSecond)
	}
	e.memoryAlloc.Set(float64(snap.Resources.AllocBytes))
	e.goroutines.Set(float64(snap.Resources.NumGoroutine))
	e.errorRate.Set(snap.ErrorRatePercent)
	e.queueDepth.Set(snap.QueueDepth)
}

// Handler returns an http.Handler that refreshes gauges from the
// latest Collector snapshot and serves them in Prometheus exposition
// format, suitable for mounting at /metrics.
func (e *PrometheusExporter) Handler() http.Handler {
	base := promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.refresh()
		base.ServeHTTP(w, r)
	})
}
