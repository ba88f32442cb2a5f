// Package server provides the HTTP and websocket surface of the GestureLab relay.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Ankur3509/GestureLab/internal/relay"
	"github.com/Ankur3509/GestureLab/internal/store"
	"github.com/rs/zerolog/log"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Source    string
	Hub       *Hub
	Relay     *relay.Relay
	Store     *store.Store
}

// Server represents the HTTP server for the relay.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	http   *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Hub != nil {
		s.mux.Handle("/socket", s.config.Hub)
	}

	if s.config.Relay != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Relay))
		s.mux.HandleFunc("/api/tracking", s.handleTracking)
	}

	if s.config.Store != nil {
		s.mux.HandleFunc("/api/sessions", s.handleSessions)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
		"source": s.config.Source,
	}
	if s.config.Hub != nil {
		response["clients"] = s.config.Hub.Count()
	}
	if s.config.Relay != nil {
		response["enabled"] = s.config.Relay.Enabled()
		response["stats"] = s.config.Relay.Stats()
	}

	writeJSON(w, http.StatusOK, response)
}

type trackingState struct {
	Enabled bool `json:"enabled"`
}

// handleTracking reads (GET) or sets (POST {"enabled":bool}) the tracking flag.
func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req trackingState
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		s.config.Relay.SetEnabled(req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, trackingState{Enabled: s.config.Relay.Enabled()})
}

// handleSessions lists journaled sessions, newest first. ?limit=N caps the list.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	sessions, err := s.config.Store.Sessions().List(limit)
	if err != nil {
		log.Error().Err(err).Msg("list sessions")
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled or
// the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. Request contexts derive from ctx,
// so long-lived handlers such as the MJPEG stream end when shutdown starts.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.config.Hub != nil {
		s.config.Hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
