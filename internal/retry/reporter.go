package retry

import (
	"math/rand"
	"sync"
	"time"
)

// ErrorSink receives sampled errors for external reporting (spec
// §4.7: "emits sampled errors with rate limits ... to an external
// sink"). C8's telemetry collector is the expected implementer.
type ErrorSink interface {
	ReportError(op string, err error, ts time.Time)
}

// ReporterConfig tunes sampling and the per-minute cap.
type ReporterConfig struct {
	SampleRate    float64 // 0..1, fraction of errors forwarded
	MaxPerMinute  int
}

// DefaultReporterConfig samples every error up to 60/minute.
func DefaultReporterConfig() ReporterConfig {
	return ReporterConfig{SampleRate: 1.0, MaxPerMinute: 60}
}

// Reporter forwards a sampled, rate-limited stream of errors to an
// ErrorSink so a single noisy failure mode can't flood telemetry.
type Reporter struct {
	cfg  ReporterConfig
	sink ErrorSink

	mu          sync.Mutex
	windowStart time.Time
	countInWin  int
	rng         *rand.Rand
}

func NewReporter(cfg ReporterConfig, sink ErrorSink) *Reporter {
	if cfg.MaxPerMinute < 1 {
		cfg.MaxPerMinute = 1
	}
	return &Reporter{cfg: cfg, sink: sink, windowStart: time.Time{}, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Report samples err per SampleRate and forwards it to the sink if the
// per-minute cap has not been reached.
func (r *Reporter) Report(op string, err error) {
	if r.sink == nil || err == nil {
		return
	}
	if r.cfg.SampleRate < 1.0 && r.rng.Float64() >= r.cfg.SampleRate {
		return
	}

	now := time.Now()
	r.mu.Lock()
	if now.Sub(r.windowStart) >= time.Minute {
		r.windowStart = now
		r.countInWin = 0
	}
	if r.countInWin >= r.cfg.MaxPerMinute {
		r.mu.Unlock()
		return
	}
	r.countInWin++
	r.mu.Unlock()

	r.sink.ReportError(op, err, now)
}
