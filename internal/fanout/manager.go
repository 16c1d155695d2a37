package fanout

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// pinger is satisfied by *websocket.Conn; heartbeat frames are
// transport-native (spec §6), sent as a control frame rather than a
// JSON Envelope.
type pinger interface {
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

const websocketPingMessage = 9 // gorilla/websocket.PingMessage's value, avoided as an import here to keep Transport decoupled from gorilla.

// Manager is C10: the session registry, protocol dispatcher, and
// broadcast fan-out. Concurrency model per spec §5: sessions are
// independent; broadcast copies the subscriber set at send time so
// churn mid-broadcast cannot invalidate the iteration.
type Manager struct {
	log *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	replayMu sync.RWMutex
	replay   map[string]graph.DomainEvent // last event per event type

	// onThrottled, if set, is notified of a throttled send so the
	// upstream source can react (spec §4.10: "emit a throttled hint...
	// to the upstream source").
	onThrottled func(sessionID, eventType string)
}

// NewManager builds an empty session manager.
func NewManager() *Manager {
	return &Manager{
		log:      slog.Default().With("component", "fanout"),
		sessions: make(map[string]*Session),
		replay:   make(map[string]graph.DomainEvent),
	}
}

// OnThrottled registers a callback invoked whenever a send is
// throttled.
func (m *Manager) OnThrottled(fn func(sessionID, eventType string)) {
	m.onThrottled = fn
}

// Register adds a session to the live set.
func (m *Manager) Register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

// Unregister removes and closes a session.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// snapshot copies the current subscriber set (spec §5 concurrency
// model).
func (m *Manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Broadcast fans event out to every session holding a matching
// subscription, replacing the replay-per-type cache as it goes (spec
// §4.10).
func (m *Manager) Broadcast(event graph.DomainEvent) {
	m.replayMu.Lock()
	m.replay[event.Type] = event
	m.replayMu.Unlock()

	for _, s := range m.snapshot() {
		for _, sub := range s.Subscriptions() {
			if sub.EventType != event.Type {
				continue
			}
			if !matches(sub.Normalized, event) {
				continue
			}
			m.deliver(s, event)
			break
		}
	}
}

func (m *Manager) deliver(s *Session, event graph.DomainEvent) {
	env := newEnvelope(MsgEvent)
	env.Event = event.Type
	env.Payload = event.Payload

	data, err := env.Marshal()
	if err != nil {
		m.log.Error("marshal event envelope", "err", err)
		return
	}

	switch s.TrySend(data) {
	case sendThrottled:
		m.sendThrottledHint(s, event.Type)
	case sendClosed:
		m.Unregister(s.ID)
	}
}

func (m *Manager) sendThrottledHint(s *Session, eventType string) {
	if m.onThrottled != nil {
		m.onThrottled(s.ID, eventType)
	}
	env := newEnvelope(MsgThrottled)
	env.Event = eventType
	if data, err := env.Marshal(); err == nil {
		// Best-effort: if even the throttle notice can't be queued, the
		// session's own TrySend/Close path will handle it on the next
		// broadcast.
		_ = s.TrySend(data)
	}
}

// HandleEnvelope processes one inbound client frame and writes any
// direct response to s (spec §4.10 protocol).
func (m *Manager) HandleEnvelope(s *Session, env *Envelope) {
	s.Touch()
	switch env.Type {
	case MsgSubscribe:
		m.handleSubscribe(s, env)
	case MsgUnsubscribe:
		m.handleUnsubscribe(s, env)
	case MsgUnsubscribeAll:
		s.ClearSubscriptions()
		m.respond(s, newEnvelope(MsgUnsubscribed))
	case MsgPing:
		m.respond(s, newEnvelope(MsgPong))
	case MsgListSubscriptions:
		m.handleListSubscriptions(s)
	default:
		resp := newEnvelope(MsgError)
		resp.Error = "unknown message type: " + string(env.Type)
		m.respond(s, resp)
	}
}

func (m *Manager) handleSubscribe(s *Session, env *Envelope) {
	if env.Event == "" {
		resp := newEnvelope(MsgError)
		resp.Error = "subscribe requires an event type"
		m.respond(s, resp)
		return
	}

	subID := env.SubscriptionID
	if subID == "" {
		subID = uuid.NewString()
	}
	sub := graph.Subscription{
		ID:           subID,
		ConnectionID: s.ID,
		EventType:    env.Event,
		RawFilter:    env.Filter,
		Normalized:   normalizeFilter(env.Filter),
		CreatedAt:    time.Now(),
	}
	s.AddSubscription(sub)

	resp := newEnvelope(MsgSubscribed)
	resp.SubscriptionID = subID
	resp.Event = env.Event
	m.respond(s, resp)

	m.replayMu.RLock()
	last, ok := m.replay[env.Event]
	m.replayMu.RUnlock()
	if ok && matches(sub.Normalized, last) {
		m.deliver(s, last)
	}
}

func (m *Manager) handleUnsubscribe(s *Session, env *Envelope) {
	removed := false
	if env.SubscriptionID != "" {
		removed = s.RemoveSubscription(env.SubscriptionID)
	} else if env.Event != "" {
		removed = s.RemoveSubscriptionsForEvent(env.Event) > 0
	}

	resp := newEnvelope(MsgUnsubscribed)
	resp.SubscriptionID = env.SubscriptionID
	resp.Event = env.Event
	if !removed {
		resp.Error = "no matching subscription"
	}
	m.respond(s, resp)
}

func (m *Manager) handleListSubscriptions(s *Session) {
	subs := s.Subscriptions()
	views := make([]SubscriptionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, SubscriptionView{SubscriptionID: sub.ID, Event: sub.EventType, Filter: sub.RawFilter})
	}
	resp := newEnvelope(MsgSubscriptions)
	resp.Subscriptions = views
	m.respond(s, resp)
}

func (m *Manager) respond(s *Session, env *Envelope) {
	data, err := env.Marshal()
	if err != nil {
		m.log.Error("marshal response envelope", "err", err)
		return
	}
	s.TrySend(data)
}

// HeartbeatSweep runs until stopCh is closed, ticking every interval:
// sessions idle past DefaultHeartbeatTimeout or
// DefaultIdleSweepTimeout are terminated; sessions idle past
// DefaultHeartbeatGrace (but still under timeout) receive a
// transport-native ping frame (spec §4.10, §6).
func (m *Manager) HeartbeatSweep(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *Manager) sweepOnce() {
	now := time.Now()
	for _, s := range m.snapshot() {
		idle := s.IdleFor()
		switch {
		case idle > DefaultIdleSweepTimeout || idle > DefaultHeartbeatTimeout:
			m.Unregister(s.ID)
		case idle > DefaultHeartbeatGrace:
			if p, ok := s.conn.(pinger); ok {
				_ = p.WriteControl(websocketPingMessage, nil, now.Add(5*time.Second))
			}
		}
	}
}
