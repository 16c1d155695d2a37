package fanout

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server upgrades authenticated HTTP requests to the subscription
// transport and hands each connection to the Manager (spec §4.10,
// §6: "Upgrade preconditions: authenticated, has the required read
// scope").
type Server struct {
	manager *Manager
	auth    *Authenticator
	log     *slog.Logger

	upgrader websocket.Upgrader
}

// NewServer builds an upgrade handler bound to manager and auth.
func NewServer(manager *Manager, auth *Authenticator) *Server {
	return &Server{
		manager: manager,
		auth:    auth,
		log:     slog.Default().With("component", "fanout"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements the upgrade handshake: authenticate, check the
// read scope, upgrade, register a Session, and run its read/write
// loops until the connection closes.
func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, err := srv.auth.Authenticate(r, ReadScope)
	if err != nil {
		authErr, ok := err.(*AuthError)
		status := http.StatusUnauthorized
		if ok {
			status = authErr.Status
		}
		srv.log.Warn("fanout upgrade rejected", "status", status, "query", RedactedQuery(r))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		body := map[string]interface{}{"error": err.Error()}
		if ok {
			body["requiredScopes"] = authErr.RequiredScopes
		}
		json.NewEncoder(w).Encode(body)
		return
	}

	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Error("websocket upgrade failed", "err", err)
		return
	}

	session := NewSession(uuid.NewString(), principal.Subject, principal.Scopes, conn)
	srv.manager.Register(session)

	go session.WriteLoop()
	srv.readLoop(session)
}

// readLoop pumps inbound frames to the Manager until the connection
// closes, then unregisters the session (spec §4.10: session stays
// open only while holding the read scope — scope is fixed at upgrade
// time, so a revoked scope takes effect on the session's next
// reconnect rather than mid-session).
func (srv *Server) readLoop(s *Session) {
	defer srv.manager.Unregister(s.ID)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.Touch()

		env, err := ParseEnvelope(data)
		if err != nil {
			resp := newEnvelope(MsgError)
			resp.Error = "malformed message: " + err.Error()
			if b, merr := resp.Marshal(); merr == nil {
				s.TrySend(b)
			}
			continue
		}
		srv.manager.HandleEnvelope(s, env)
	}
}
