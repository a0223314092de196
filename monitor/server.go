// Package monitor is a tiny read-only HTTP+WebSocket server exposing a
// running FDC session's status to a local observer: current protocol
// mode, loaded pattern, and a live event stream. It never accepts
// writes; the FDC engine remains the session's sole writer.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mhallin/knitty-gritty/fdc"
)

// StateSnapshot is the current session status, as returned by
// GET /api/v1/state.
type StateSnapshot struct {
	Mode          string `json:"mode"`
	LoadedPattern int    `json:"loadedPattern"`
	PatternCount  int    `json:"patternCount"`
}

// StateFunc returns the session's current status. Implementations must
// not block; the orchestrator snapshot is read under whatever locking
// it needs on its own side.
type StateFunc func() StateSnapshot

// Server is the monitor's HTTP server. Grounded on the teacher's
// api.Server: a mux, a broadcaster, and a thin http.Server wrapper.
type Server struct {
	stateFn     StateFunc
	broadcaster *Broadcaster
	mux         *http.ServeMux
	httpServer  *http.Server
	addr        string
}

// NewServer creates a monitor server bound to addr, reporting status
// via stateFn.
func NewServer(addr string, stateFn StateFunc) *Server {
	s := &Server{
		stateFn:     stateFn,
		broadcaster: NewBroadcaster(),
		mux:         http.NewServeMux(),
		addr:        addr,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/state", s.handleState)
	s.mux.HandleFunc("/api/v1/ws", s.handleWebSocket)
}

// Handler returns the server's http.Handler, for tests that want to
// drive it with httptest instead of a real listener.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the HTTP server until it is shut down. Blocks; run it in
// its own goroutine.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server and disconnects all WebSocket
// clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.broadcaster.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Publish forwards a completed FDC request to every connected
// WebSocket client.
func (s *Server) Publish(ev fdc.Event) {
	status := ev.Status
	s.broadcaster.Publish(Event{
		Command:     string(ev.Command),
		SectorIndex: ev.SectorIndex,
		Status:      status,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.stateFn())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
