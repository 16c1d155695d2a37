package telemetry

import "time"

// Severity classifies an alert's urgency.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is emitted when a configured threshold is breached (spec
// §4.8: "an alert {severity, metric, value, threshold, timestamp} is
// emitted").
type Alert struct {
	Severity  Severity
	Metric    string
	Value     float64
	Threshold float64
	Timestamp time.Time
}

// AlertThresholds configures the breach points the spec names
// ("configurable thresholds for p95 latency, memory, error rate,
// minimum throughput, max queue depth").
type AlertThresholds struct {
	P95LatencyMillis float64
	MemoryAllocBytes float64
	ErrorRatePercent float64
	MinThroughputPerSecond float64
	MaxQueueDepth    float64
}

// Evaluate compares a metric snapshot against thresholds and returns
// every breach found. A zero threshold disables that check.
func (th AlertThresholds) Evaluate(snap Snapshot) []Alert {
	var alerts []Alert
	now := time.Now()

	if th.P95LatencyMillis > 0 {
		for op, m := range snap.Latencies {
			p95ms := float64(m.P95) / float64(time.Millisecond)
			if p95ms > th.P95LatencyMillis {
				alerts = append(alerts, Alert{Severity: SeverityWarning, Metric: "p95_latency_ms:" + op, Value: p95ms, Threshold: th.P95LatencyMillis, Timestamp: now})
			}
		}
	}

	if th.MemoryAllocBytes > 0 && snap.Resources.AllocBytes > 0 {
		allocF := float64(snap.Resources.AllocBytes)
		if allocF > th.MemoryAllocBytes {
			alerts = append(alerts, Alert{Severity: SeverityCritical, Metric: "memory_alloc_bytes", Value: allocF, Threshold: th.MemoryAllocBytes, Timestamp: now})
		}
	}

	if th.ErrorRatePercent > 0 && snap.ErrorRatePercent > th.ErrorRatePercent {
		alerts = append(alerts, Alert{Severity: SeverityCritical, Metric: "error_rate_percent", Value: snap.ErrorRatePercent, Threshold: th.ErrorRatePercent, Timestamp: now})
	}

	if th.MinThroughputPerSecond > 0 {
		rate := snap.Throughput[ThroughputFiles].PerSecond
		if rate < th.MinThroughputPerSecond {
			alerts = append(alerts, Alert{Severity: SeverityWarning, Metric: "throughput_files_per_second", Value: rate, Threshold: th.MinThroughputPerSecond, Timestamp: now})
		}
	}

	if th.MaxQueueDepth > 0 && snap.QueueDepth > th.MaxQueueDepth {
		alerts = append(alerts, Alert{Severity: SeverityCritical, Metric: "queue_depth", Value: snap.QueueDepth, Threshold: th.MaxQueueDepth, Timestamp: now})
	}

	return alerts
}
