// Package server provides the HTTP server for the shadowdepth UI and API.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/shadowdepth/internal/app"
	"github.com/ayusman/shadowdepth/internal/plugin"
	"github.com/ayusman/shadowdepth/internal/server/api"
	"github.com/ayusman/shadowdepth/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
}

// Server represents the HTTP server for the shadowdepth application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
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

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	if a := s.config.App; a != nil {
		s.mux.Handle("/api/config", api.NewConfigHandler(s.config.Store, a))

		plugins := api.NewPluginHandler(a.PluginManager(), plugin.NewExecutor(0))
		s.mux.Handle("/api/plugins", plugins)
		s.mux.Handle("/api/plugins/", plugins)

		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.Handle("/api/stream", NewStreamHandler(a))
		s.mux.Handle("/api/estimates", NewEstimatesHandler(a))
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

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	writeJSON(w, http.StatusOK, response)
}

type statusResponse struct {
	Enabled bool             `json:"enabled"`
	Running bool             `json:"running"`
	Session *app.SessionInfo `json:"session,omitempty"`
	Latest  *app.FrameResult `json:"latest,omitempty"`
}

type updateStatusRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleStatus reports the live state on GET and toggles estimation on PUT.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	a := s.config.App

	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req updateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
			return
		}
		a.SetEnabled(*req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := statusResponse{Enabled: a.IsEnabled(), Running: a.Running()}
	if info, ok := a.Session(); ok {
		response.Session = &info
	}
	if latest, ok := a.Latest(); ok {
		response.Latest = &latest
	}
	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
