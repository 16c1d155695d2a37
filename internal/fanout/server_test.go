package fanout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestServerWithAuth(t *testing.T) (*httptest.Server, *Manager, *Authenticator) {
	t.Helper()
	manager := NewManager()
	auth := NewAuthenticator(testSecret)
	srv := NewServer(manager, auth)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, manager, auth
}

func TestServer_UnauthenticatedUpgradeRejectedWith401(t *testing.T) {
	ts, _, _ := newTestServerWithAuth(t)

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := body["requiredScopes"]; !ok {
		t.Error("expected requiredScopes in the rejection body")
	}
}

func TestServer_InsufficientScopeRejectedWith403(t *testing.T) {
	ts, _, _ := newTestServerWithAuth(t)
	tok := signTestToken(t, "alice", "codegraph:write", "", "", time.Hour)

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestServer_ValidTokenUpgradesAndRoundTripsSubscription(t *testing.T) {
	ts, _, _ := newTestServerWithAuth(t)
	tok := signTestToken(t, "alice", ReadScope, "", "", time.Hour)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	header := http.Header{}
	header.Set("Authorization", "Bearer "+tok)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Dial: %v (resp=%v)", err, resp)
	}
	defer conn.Close()

	sub := &Envelope{Type: MsgSubscribe, Event: "entity_created"}
	data, err := sub.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, reply, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	env, err := ParseEnvelope(reply)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Type != MsgSubscribed {
		t.Fatalf("Type = %v, want subscribed", env.Type)
	}

	unsub := &Envelope{Type: MsgUnsubscribe, SubscriptionID: env.SubscriptionID}
	data, err = unsub.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, reply, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	env, err = ParseEnvelope(reply)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Type != MsgUnsubscribed {
		t.Fatalf("Type = %v, want unsubscribed", env.Type)
	}
	if env.Error != "" {
		t.Errorf("unexpected unsubscribe error: %q", env.Error)
	}
}
