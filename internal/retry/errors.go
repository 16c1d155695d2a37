// Package retry implements C7: the error-classification, backoff,
// circuit-breaker, and dead-letter layer that sits between the worker
// pool (C5) and every outbound call it makes (spec §4.7). The error
// taxonomy is grounded on the teacher's internal/errors/errors.go
// (typed errors, Unwrap, a Recoverable flag); the breaker state
// machine is grounded on
// other_examples/09c96a56_jordigilh-kubernaut__pkg-contextapi-query-executor.go's
// BR-CONTEXT-008 circuit breaker (consecutive-failure threshold, reset
// timeout, half-open probing).
package retry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a failure the way the worker pool needs to route it
// (spec §4.7's classification table).
type Kind string

const (
	KindTransient    Kind = "transient"
	KindPermanent    Kind = "permanent"
	KindBatchPartial Kind = "batch_partial"
	KindCircuitOpen  Kind = "circuit_open"
)

// defaultRetryableSubstrings is the configured substring set a plain
// error message is matched against when it carries no explicit tag
// (spec §4.7).
var defaultRetryableSubstrings = []string{
	"timeout",
	"connection",
	"network",
	"temporary",
	"rate limit",
	"service unavailable",
}

// TaggedError wraps an error with an explicit retry classification,
// the way the teacher's IndexingError carries a Recoverable flag.
type TaggedError struct {
	Kind       Kind
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewTaggedError tags err as retryable or not for op.
func NewTaggedError(op string, kind Kind, err error) *TaggedError {
	return &TaggedError{Kind: kind, Operation: op, Underlying: err, Timestamp: time.Now()}
}

func (e *TaggedError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.Operation, e.Underlying)
}

func (e *TaggedError) Unwrap() error { return e.Underlying }

// ErrCircuitOpen is returned by Breaker.Do when calls are
// fail-fasted (spec §4.7: "all calls through the breaker while open
// fail fast with a circuit-open error").
var ErrCircuitOpen = errors.New("retry: circuit breaker open")

// IsRetryable classifies err per spec §4.7: explicit TaggedError wins;
// otherwise its message is matched against the configured substring
// set, case-insensitively.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var tagged *TaggedError
	if errors.As(err, &tagged) {
		return tagged.Kind == KindTransient || tagged.Kind == KindBatchPartial || tagged.Kind == KindCircuitOpen
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range defaultRetryableSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
