package fanout

import (
	"testing"
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

func TestSession_HasScope(t *testing.T) {
	s := NewSession("s1", "alice", []string{"codegraph:read", "codegraph:write"}, newFakeTransport())
	if !s.HasScope("codegraph:read") {
		t.Error("expected HasScope to find a held scope")
	}
	if s.HasScope("codegraph:admin") {
		t.Error("expected HasScope to reject an unheld scope")
	}
}

func TestSession_SubscriptionLifecycle(t *testing.T) {
	s := NewSession("s1", "alice", nil, newFakeTransport())
	s.AddSubscription(graph.Subscription{ID: "sub-1", EventType: "entity_created"})
	s.AddSubscription(graph.Subscription{ID: "sub-2", EventType: "entity_updated"})

	if len(s.Subscriptions()) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(s.Subscriptions()))
	}

	if !s.RemoveSubscription("sub-1") {
		t.Error("expected RemoveSubscription to find sub-1")
	}
	if len(s.Subscriptions()) != 1 {
		t.Fatalf("expected 1 subscription after removal, got %d", len(s.Subscriptions()))
	}

	s.AddSubscription(graph.Subscription{ID: "sub-3", EventType: "entity_updated"})
	if n := s.RemoveSubscriptionsForEvent("entity_updated"); n != 2 {
		t.Errorf("expected 2 subscriptions removed by event type, got %d", n)
	}
}

func TestSession_ClearSubscriptions(t *testing.T) {
	s := NewSession("s1", "alice", nil, newFakeTransport())
	s.AddSubscription(graph.Subscription{ID: "sub-1", EventType: "entity_created"})
	s.ClearSubscriptions()
	if len(s.Subscriptions()) != 0 {
		t.Error("expected ClearSubscriptions to empty the set")
	}
}

func TestSession_TrySendQueuesUnderThreshold(t *testing.T) {
	s := NewSession("s1", "alice", nil, newFakeTransport())
	if got := s.TrySend([]byte("hello")); got != sendOK {
		t.Errorf("TrySend() = %v, want sendOK", got)
	}
}

func TestSession_TrySendThrottlesOverThreshold(t *testing.T) {
	s := NewSession("s1", "alice", nil, newFakeTransport())
	big := make([]byte, DefaultBackpressureThresholdBytes+1)
	if got := s.TrySend(big); got != sendThrottled {
		t.Errorf("TrySend() = %v, want sendThrottled", got)
	}
}

func TestSession_ClosesAfterMaxConsecutiveThrottles(t *testing.T) {
	s := NewSession("s1", "alice", nil, newFakeTransport())
	big := make([]byte, DefaultBackpressureThresholdBytes+1)
	var last sendResult
	for i := 0; i < DefaultMaxConsecutiveThrottles; i++ {
		last = s.TrySend(big)
	}
	if last != sendClosed {
		t.Errorf("TrySend() after %d throttles = %v, want sendClosed", DefaultMaxConsecutiveThrottles, last)
	}
	if !s.Closed() {
		t.Error("expected session to be closed after exceeding the throttle bound")
	}
}

func TestSession_WriteLoopDeliversQueuedFrames(t *testing.T) {
	transport := newFakeTransport()
	s := NewSession("s1", "alice", nil, transport)
	go s.WriteLoop()

	s.TrySend([]byte("frame-1"))
	s.TrySend([]byte("frame-2"))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(transport.Sent()) >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Close()

	sent := transport.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 frames delivered, got %d", len(sent))
	}
	if string(sent[0]) != "frame-1" || string(sent[1]) != "frame-2" {
		t.Errorf("unexpected frame contents: %q, %q", sent[0], sent[1])
	}
}

func TestSession_IdleForReflectsTouch(t *testing.T) {
	s := NewSession("s1", "alice", nil, newFakeTransport())
	time.Sleep(10 * time.Millisecond)
	if s.IdleFor() < 10*time.Millisecond {
		t.Error("expected IdleFor to reflect elapsed time since creation")
	}
	s.Touch()
	if s.IdleFor() >= 10*time.Millisecond {
		t.Error("expected Touch to reset the idle clock")
	}
}
