package retry

import (
	"sync"
	"time"
)

// BreakerState mirrors BR-CONTEXT-008's {closed, open, half-open}
// states (spec §4.7).
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes the consecutive-failure threshold and reset
// timeout (spec §4.7, config block §5 "failureThreshold, resetTimeout,
// monitoringWindow").
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	SuccessesToClose int
}

// DefaultBreakerConfig mirrors BR-CONTEXT-008's "3 failures → open for
// 60s" default.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 3, ResetTimeout: 60 * time.Second, SuccessesToClose: 3}
}

// Breaker is a consecutive-failure-triggered circuit breaker gating
// calls to a degraded downstream (spec §4.7).
type Breaker struct {
	cfg BreakerConfig

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	consecutiveSuccess  int
	openedAt            time.Time
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessesToClose < 1 {
		cfg.SuccessesToClose = 1
	}
	return &Breaker{cfg: cfg, state: BreakerClosed}
}

// Allow reports whether a call may proceed, transitioning open→half-open
// once the reset timeout has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if time.Since(b.openedAt) >= b.cfg.ResetTimeout {
			b.state = BreakerHalfOpen
			b.consecutiveSuccess = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess reports a successful call. In half-open, after
// SuccessesToClose consecutive successes the breaker closes.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	if b.state == BreakerHalfOpen {
		b.consecutiveSuccess++
		if b.consecutiveSuccess >= b.cfg.SuccessesToClose {
			b.state = BreakerClosed
			b.consecutiveSuccess = 0
		}
		return
	}
	b.state = BreakerClosed
}

// RecordFailure reports a failed call. A single failure in half-open
// reopens the breaker; FailureThreshold consecutive failures in closed
// state opens it.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.openedAt = time.Now()
		b.consecutiveSuccess = 0
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		b.state = BreakerOpen
		b.openedAt = time.Now()
	}
}

// State returns the breaker's current state, for telemetry.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn through the breaker: fails fast with ErrCircuitOpen while
// open, otherwise runs fn and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	if !b.Allow() {
		return ErrCircuitOpen
	}
	err := fn()
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}
