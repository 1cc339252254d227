package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/shadowdepth/internal/plugin"
)

// PluginHandler lists alert plugins and lets the UI rescan or test them.
type PluginHandler struct {
	manager  *plugin.Manager
	executor *plugin.Executor
}

// NewPluginHandler creates a PluginHandler.
func NewPluginHandler(m *plugin.Manager, e *plugin.Executor) *PluginHandler {
	return &PluginHandler{manager: m, executor: e}
}

type pluginResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Events      []plugin.Event `json:"events"`
}

type listPluginsResponse struct {
	Plugins []pluginResponse `json:"plugins"`
}

// ServeHTTP routes GET /api/plugins, POST /api/plugins/rescan and
// POST /api/plugins/{name}/test.
func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/plugins"), "/")

	switch {
	case path == "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w)
	case path == "rescan":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := h.manager.Discover(); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to scan plugins")
			return
		}
		h.list(w)
	case strings.HasSuffix(path, "/test"):
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.test(w, r, strings.TrimSuffix(path, "/test"))
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *PluginHandler) list(w http.ResponseWriter) {
	plugins := h.manager.List()
	response := listPluginsResponse{Plugins: make([]pluginResponse, 0, len(plugins))}
	for _, p := range plugins {
		events := p.Manifest.Events
		if len(events) == 0 {
			events = []plugin.Event{plugin.EventTouchStart, plugin.EventTouchEnd}
		}
		response.Plugins = append(response.Plugins, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Events:      events,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// test runs a plugin once with a synthetic touch_start request.
func (h *PluginHandler) test(w http.ResponseWriter, r *http.Request, name string) {
	p, err := h.manager.Get(name)
	if err != nil {
		if errors.Is(err, plugin.ErrPluginNotFound) {
			writeError(w, http.StatusNotFound, "Plugin not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get plugin")
		return
	}

	resp, err := h.executor.Execute(r.Context(), p, &plugin.Request{
		Event:     plugin.EventTouchStart,
		Action:    "touching",
		Session:   "test",
		Timestamp: time.Now(),
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
