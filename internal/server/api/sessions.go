package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/shadowdepth/internal/store"
)

// DefaultListLimit caps GET /api/sessions without a limit parameter.
const DefaultListLimit = 50

// SessionHandler handles HTTP requests for recorded sessions and their
// touch events.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes /api/sessions, /api/sessions/{id} and
// /api/sessions/{id}/events.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, id)
		case http.MethodDelete:
			h.delete(w, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "events":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.events(w, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type sessionResponse struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	Config    json.RawMessage `json:"config,omitempty"`
	Frames    int             `json:"frames"`
	Touches   int             `json:"touches"`
	Active    bool            `json:"active"`
	StartedAt string          `json:"started_at"`
	EndedAt   *string         `json:"ended_at"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type eventResponse struct {
	ID               string  `json:"id"`
	SessionID        string  `json:"session_id"`
	StartedAt        string  `json:"started_at"`
	EndedAt          *string `json:"ended_at"`
	DurationMS       int64   `json:"duration_ms"`
	Frames           int     `json:"frames"`
	MinDepthCM       float64 `json:"min_depth_cm"`
	MaxIntensityDrop float64 `json:"max_intensity_drop"`
}

type listEventsResponse struct {
	Events []eventResponse `json:"events"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		Source:    s.Source,
		Config:    s.Config,
		Frames:    s.Frames,
		Touches:   s.Touches,
		Active:    s.Active(),
		StartedAt: formatTime(s.StartedAt),
		EndedAt:   formatTimePtr(s.EndedAt),
	}
}

func toEventResponse(e *store.TouchEvent) eventResponse {
	return eventResponse{
		ID:               e.ID,
		SessionID:        e.SessionID,
		StartedAt:        formatTime(e.StartedAt),
		EndedAt:          formatTimePtr(e.EndedAt),
		DurationMS:       e.Duration().Milliseconds(),
		Frames:           e.Frames,
		MinDepthCM:       e.MinDepthCM,
		MaxIntensityDrop: e.MaxIntensityDrop,
	}
}

// list handles GET /api/sessions?limit=N, newest first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, id string) {
	session, err := h.store.Sessions().Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// delete handles DELETE /api/sessions/{id}; its events go with it.
func (h *SessionHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// events handles GET /api/sessions/{id}/events.
func (h *SessionHandler) events(w http.ResponseWriter, id string) {
	if _, err := h.store.Sessions().Get(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	events, err := h.store.Events().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	response := listEventsResponse{Events: make([]eventResponse, 0, len(events))}
	for _, e := range events {
		response.Events = append(response.Events, toEventResponse(e))
	}
	writeJSON(w, http.StatusOK, response)
}
