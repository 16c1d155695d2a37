// Package fanout implements C10: a session manager for long-lived
// bidirectional subscriptions over the graph's change stream. The
// per-connection message-type dispatch and buffered send-channel
// shape is grounded on the teacher's sibling pack member
// evalgo-org-eve's internal/coordinator (WSMessage/MessageType over
// gorilla/websocket, a per-connection sendChan drained by a dedicated
// sender goroutine); JWT authentication is grounded on that same
// repo's internal/security/jwt.go (lestrrat-go/jwx/v2 HS256
// sign/parse with issuer/audience validation).
package fanout

import (
	"encoding/json"
	"time"
)

// MessageType enumerates the protocol's client<->server frame kinds
// (spec §4.10).
type MessageType string

const (
	// Client -> server.
	MsgSubscribe         MessageType = "subscribe"
	MsgUnsubscribe       MessageType = "unsubscribe"
	MsgUnsubscribeAll    MessageType = "unsubscribe_all"
	MsgPing              MessageType = "ping"
	MsgListSubscriptions MessageType = "list_subscriptions"

	// Server -> client.
	MsgSubscribed   MessageType = "subscribed"
	MsgUnsubscribed MessageType = "unsubscribed"
	MsgSubscriptions MessageType = "subscriptions"
	MsgEvent        MessageType = "event"
	MsgPong         MessageType = "pong"
	MsgThrottled    MessageType = "throttled"
	MsgShutdown     MessageType = "shutdown"
	MsgError        MessageType = "error"
)

// Envelope is the wire frame for every message exchanged over a
// session's transport (spec §4.10: "bidirectional framed messages,
// JSON payloads").
type Envelope struct {
	Type           MessageType            `json:"type"`
	SubscriptionID string                 `json:"subscriptionId,omitempty"`
	Event          string                 `json:"event,omitempty"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	Subscriptions  []SubscriptionView      `json:"subscriptions,omitempty"`
	Error          string                 `json:"error,omitempty"`
	RequiredScopes []string               `json:"requiredScopes,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// SubscriptionView is the wire shape of one subscription returned by
// `list_subscriptions` (spec §4.10).
type SubscriptionView struct {
	SubscriptionID string                 `json:"subscriptionId"`
	Event          string                 `json:"event"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
}

// Marshal serializes an Envelope to JSON bytes.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope deserializes one inbound frame.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func newEnvelope(t MessageType) *Envelope {
	return &Envelope{Type: t, Timestamp: time.Now()}
}
