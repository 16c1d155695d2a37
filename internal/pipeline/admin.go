package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"
)

// AdminServer exposes a read-mostly operational surface over a Unix
// socket, mirroring the teacher's internal/server.IndexServer
// (registerHandlers/Start/Shutdown over a chmod'd Unix-socket
// listener), generalized from "index status" to "pipeline status".
type AdminServer struct {
	p          *Pipeline
	socketPath string
	startTime  time.Time

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup
	running  bool
}

// NewAdminServer builds an admin surface for p, listening at
// socketPath once Start is called.
func NewAdminServer(p *Pipeline, socketPath string) *AdminServer {
	return &AdminServer{p: p, socketPath: socketPath, startTime: time.Now()}
}

// Start begins listening on the Unix socket and serving requests in
// the background.
func (a *AdminServer) Start() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("admin server already running")
	}
	a.running = true
	a.mu.Unlock()

	os.Remove(a.socketPath)
	listener, err := net.Listen("unix", a.socketPath)
	if err != nil {
		return fmt.Errorf("admin server: listen on %s: %w", a.socketPath, err)
	}
	os.Chmod(a.socketPath, 0600)

	mux := http.NewServeMux()
	a.registerHandlers(mux)

	a.mu.Lock()
	a.listener = listener
	a.server = &http.Server{Handler: mux}
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			a.p.log.Error("admin server error", "err", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the admin server and removes the socket
// file.
func (a *AdminServer) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	server := a.server
	a.mu.Unlock()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("admin server: shutdown: %w", err)
		}
	}
	a.wg.Wait()
	os.Remove(a.socketPath)
	return nil
}

func (a *AdminServer) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/status", a.handleStatus)
	mux.HandleFunc("/ping", a.handlePing)
	mux.HandleFunc("/stats", a.handleStats)
	mux.HandleFunc("/shutdown", a.handleShutdown)
}

type statusResponse struct {
	State         string `json:"state"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	QueueDepth    int    `json:"queueDepth"`
	WorkerCount   int    `json:"workerCount"`
	DeadLettered  int    `json:"deadLettered"`
}

func (a *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State:         a.p.State().String(),
		UptimeSeconds: time.Since(a.startTime).Seconds(),
		QueueDepth:    a.p.QueueStats().TotalDepth,
		WorkerCount:   len(a.p.WorkerSnapshot()),
		DeadLettered:  len(a.p.DeadLetters()),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type pingResponse struct {
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

func (a *AdminServer) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pingResponse{UptimeSeconds: time.Since(a.startTime).Seconds()})
}

func (a *AdminServer) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a.p.TelemetrySnapshot())
}

type shutdownResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleShutdown triggers a pipeline Stop in the background after
// acknowledging the request, mirroring the teacher's
// handleShutdown's sleep-then-close pattern.
func (a *AdminServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(shutdownResponse{Success: true, Message: "pipeline stopping"})

	go func() {
		time.Sleep(100 * time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), a.p.cfg.StopGrace)
		defer cancel()
		_ = a.p.Stop(ctx)
	}()
}
