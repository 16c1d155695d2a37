package fanout

import (
	"sync"
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// DefaultBackpressureThresholdBytes is the buffered-byte ceiling past
// which a session is throttled instead of sent to (spec §4.10, default
// 512 KB).
const DefaultBackpressureThresholdBytes = 512 * 1024

// DefaultThrottleRetryDelay is how long a throttled send waits before
// the next attempt (spec §4.10, default 100 ms).
const DefaultThrottleRetryDelay = 100 * time.Millisecond

// DefaultMaxConsecutiveThrottles is the bound after which a session is
// closed as a transient overload (spec §4.10, default 5).
const DefaultMaxConsecutiveThrottles = 5

// DefaultHeartbeatGrace is the idle duration after which a ping is
// sent (spec §4.10, default 15s).
const DefaultHeartbeatGrace = 15 * time.Second

// DefaultHeartbeatTimeout terminates a session with no activity for
// this long (spec §4.10, default 30s).
const DefaultHeartbeatTimeout = 30 * time.Second

// DefaultIdleSweepTimeout is the separate sweep's idle bound (spec
// §4.10, default 60s).
const DefaultIdleSweepTimeout = 60 * time.Second

// Transport is the minimal framed-message connection contract a
// Session needs; *websocket.Conn satisfies it directly, letting tests
// substitute a fake.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Session is one long-lived bidirectional subscriber connection (spec
// §4.10): session id, authenticated principal + scopes, its
// subscription set, last-activity timestamp, and send-buffer
// accounting for backpressure.
type Session struct {
	ID        string
	Principal string
	Scopes    []string

	conn Transport
	send chan []byte

	mu            sync.Mutex
	subscriptions map[string]graph.Subscription
	lastActivity  time.Time
	pendingBytes  int
	throttleCount int
	closed        bool

	done chan struct{}
}

// NewSession wraps conn with the bookkeeping the session manager
// needs. The caller must run Session.WriteLoop in its own goroutine.
func NewSession(id, principal string, scopes []string, conn Transport) *Session {
	return &Session{
		ID:            id,
		Principal:     principal,
		Scopes:        scopes,
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: make(map[string]graph.Subscription),
		lastActivity:  time.Now(),
		done:          make(chan struct{}),
	}
}

// HasScope reports whether the session's authenticated principal holds
// scope (spec §4.10: "session stays open only while holding the read
// scope").
func (s *Session) HasScope(scope string) bool {
	for _, sc := range s.Scopes {
		if sc == scope {
			return true
		}
	}
	return false
}

// Touch records activity, resetting the idle clock for heartbeat
// purposes.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// IdleFor reports how long the session has seen no activity.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// AddSubscription registers sub under its own id.
func (s *Session) AddSubscription(sub graph.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.ID] = sub
}

// RemoveSubscription removes by subscription id, reporting whether one
// was found.
func (s *Session) RemoveSubscription(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscriptions[id]; !ok {
		return false
	}
	delete(s.subscriptions, id)
	return true
}

// RemoveSubscriptionsForEvent removes every subscription matching
// eventType, returning how many were removed (spec §4.10:
// "unsubscribe {subscriptionId | event}").
func (s *Session) RemoveSubscriptionsForEvent(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sub := range s.subscriptions {
		if sub.EventType == eventType {
			delete(s.subscriptions, id)
			n++
		}
	}
	return n
}

// ClearSubscriptions removes every subscription (spec §4.10
// unsubscribe_all).
func (s *Session) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions = make(map[string]graph.Subscription)
}

// Subscriptions returns a snapshot of the session's current
// subscriptions.
func (s *Session) Subscriptions() []graph.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]graph.Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		out = append(out, sub)
	}
	return out
}

// sendResult is what TrySend reports back to the caller so the
// manager can decide whether to emit a throttled hint upstream.
type sendResult int

const (
	sendOK sendResult = iota
	sendThrottled
	sendClosed
)

// TrySend implements spec §4.10's per-connection backpressure gate:
// before each send, check the transport's buffered-byte count; over
// threshold, refuse and let the caller emit `throttled`. A successful
// send clears the throttle counter; DefaultMaxConsecutiveThrottles
// consecutive refusals close the session.
func (s *Session) TrySend(data []byte) sendResult {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return sendClosed
	}
	if s.pendingBytes+len(data) > DefaultBackpressureThresholdBytes {
		s.throttleCount++
		closeNow := s.throttleCount >= DefaultMaxConsecutiveThrottles
		s.mu.Unlock()
		if closeNow {
			s.Close()
			return sendClosed
		}
		return sendThrottled
	}
	s.pendingBytes += len(data)
	s.throttleCount = 0
	s.mu.Unlock()

	select {
	case s.send <- data:
		return sendOK
	default:
		// Channel itself is full despite the byte accounting passing;
		// treat as a throttle rather than blocking the broadcaster.
		s.mu.Lock()
		s.pendingBytes -= len(data)
		s.throttleCount++
		s.mu.Unlock()
		return sendThrottled
	}
}

// WriteLoop drains the send channel to the transport until Close is
// called; run it in its own goroutine per session.
func (s *Session) WriteLoop() {
	for {
		select {
		case data, ok := <-s.send:
			if !ok {
				return
			}
			s.mu.Lock()
			s.pendingBytes -= len(data)
			if s.pendingBytes < 0 {
				s.pendingBytes = 0
			}
			s.mu.Unlock()
			if err := s.conn.WriteMessage(1, data); err != nil { // 1 == websocket.TextMessage
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// Close closes the transport and stops the write loop; safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	_ = s.conn.Close()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
