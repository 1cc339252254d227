package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/shadowdepth/internal/config"
	"github.com/ayusman/shadowdepth/internal/depth"
	"github.com/ayusman/shadowdepth/internal/store"
)

// MaxWindow bounds the smoothing window accepted over the API.
const MaxWindow = 100

// DepthTuner exposes the estimator configuration used for new sessions.
type DepthTuner interface {
	DepthConfig() depth.Config
	SetDepthConfig(depth.Config)
}

// ConfigHandler serves and updates the depth tuning at /api/config.
type ConfigHandler struct {
	store *store.Store
	tuner DepthTuner
}

// NewConfigHandler creates a ConfigHandler. The store may be nil, in which
// case changes are not persisted.
func NewConfigHandler(s *store.Store, tuner DepthTuner) *ConfigHandler {
	return &ConfigHandler{store: s, tuner: tuner}
}

// updateConfigRequest holds a partial update; absent fields are unchanged.
type updateConfigRequest struct {
	MaxDepthCM       *float64 `json:"max_depth_cm"`
	TouchThresholdCM *float64 `json:"touch_threshold_cm"`
	ShadowThreshold  *float64 `json:"shadow_threshold"`
	Window           *int     `json:"window"`
}

// ServeHTTP implements the http.Handler interface.
func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.tuner.DepthConfig())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// update handles PUT /api/config. The new values apply from the next
// session on.
func (h *ConfigHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	cfg := h.tuner.DepthConfig()
	if req.MaxDepthCM != nil {
		cfg.MaxDepthCM = *req.MaxDepthCM
	}
	if req.TouchThresholdCM != nil {
		cfg.TouchThresholdCM = *req.TouchThresholdCM
	}
	if req.ShadowThreshold != nil {
		cfg.ShadowThreshold = *req.ShadowThreshold
	}
	if req.Window != nil {
		cfg.Window = *req.Window
	}

	if msg := validate(cfg); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if h.store != nil {
		if err := h.store.Settings().SetAll(config.DepthSettings(cfg)); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
	}

	h.tuner.SetDepthConfig(cfg)
	writeJSON(w, http.StatusOK, cfg)
}

func validate(c depth.Config) string {
	switch {
	case c.MaxDepthCM <= 0:
		return "max_depth_cm must be positive"
	case c.TouchThresholdCM <= 0 || c.TouchThresholdCM > c.MaxDepthCM:
		return "touch_threshold_cm must be in (0, max_depth_cm]"
	case c.ShadowThreshold <= 0 || c.ShadowThreshold >= 1:
		return "shadow_threshold must be in (0, 1)"
	case c.Window <= 0 || c.Window > MaxWindow:
		return "window must be in [1, 100]"
	}
	return ""
}
