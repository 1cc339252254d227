// Package depth maps shadow intensity metrics to a smoothed hand-to-face
// distance and a touch classification.
package depth

import (
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/shadowdepth/internal/shadow"
)

// Action is the interaction label derived from a depth estimate.
type Action string

const (
	// ActionTouching means the smoothed depth is below the touch threshold.
	ActionTouching Action = "touching"
	// ActionAway means the hand is at or beyond the touch threshold.
	ActionAway Action = "away"
	// ActionWaiting is set by callers when no face was found for the frame.
	ActionWaiting Action = "waiting"
)

// Label returns the human-readable overlay text for the action.
func (a Action) Label() string {
	switch a {
	case ActionTouching:
		return "TOUCHING FACE / EATING"
	case ActionAway:
		return "HAND AWAY"
	default:
		return "WAITING"
	}
}

// Estimate is the per-frame output of the estimator.
type Estimate struct {
	DepthCM float64 `json:"depth_cm"`
	Action  Action  `json:"action"`
}

// Config holds the tuning of the shadow-to-depth curve.
// The defaults are empirical, not physical constants. A field <= 0 is unset
// and takes its default, so a ShadowThreshold of exactly 0 cannot be
// expressed; use a tiny positive value to count every darkening as shadow.
type Config struct {
	// MaxDepthCM is the far sentinel and the scale of the falloff curve.
	MaxDepthCM float64 `json:"max_depth_cm"`
	// TouchThresholdCM is the smoothed depth below which the hand touches.
	TouchThresholdCM float64 `json:"touch_threshold_cm"`
	// ShadowThreshold is the intensity drop at or below which no shadow is assumed.
	ShadowThreshold float64 `json:"shadow_threshold"`
	// Window is the moving average length.
	Window int `json:"window"`
}

// DefaultConfig returns a Config with the calibrated default values.
func DefaultConfig() Config {
	return Config{
		MaxDepthCM:       50.0,
		TouchThresholdCM: 5.0,
		ShadowThreshold:  0.05,
		Window:           5,
	}
}

// WithDefaults returns c with every field <= 0 taken from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.MaxDepthCM <= 0 {
		c.MaxDepthCM = d.MaxDepthCM
	}
	if c.TouchThresholdCM <= 0 {
		c.TouchThresholdCM = d.TouchThresholdCM
	}
	if c.ShadowThreshold <= 0 {
		c.ShadowThreshold = d.ShadowThreshold
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	return c
}

// RawDepth maps an intensity drop to an unsmoothed depth in cm.
// A drop at or below ShadowThreshold returns MaxDepthCM; above it the depth
// falls off with the square of the remaining brightness.
func (c Config) RawDepth(intensityDrop float64) float64 {
	if intensityDrop <= c.ShadowThreshold {
		return c.MaxDepthCM
	}
	remaining := 1 - clamp(intensityDrop, 0, 1)
	return c.MaxDepthCM * remaining * remaining
}

// Classify labels a smoothed depth.
func (c Config) Classify(depthCM float64) Action {
	if depthCM < c.TouchThresholdCM {
		return ActionTouching
	}
	return ActionAway
}

// Estimator smooths raw depths over a short window.
// It is owned by a single tracking session and is not safe for concurrent use.
type Estimator struct {
	config  Config
	history []float64
}

// NewEstimator creates an Estimator. Zero fields of config take their defaults.
func NewEstimator(config Config) *Estimator {
	config = config.WithDefaults()
	return &Estimator{
		config:  config,
		history: make([]float64, 0, config.Window),
	}
}

// Estimate consumes one frame's metrics and returns the smoothed estimate.
// A nil m means no shadow was measured and counts as an intensity drop of 0.
// Every call shifts the smoothing window.
func (e *Estimator) Estimate(m *shadow.Metrics) Estimate {
	var drop float64
	if m != nil {
		drop = m.IntensityDrop
	}

	if len(e.history) >= e.config.Window {
		copy(e.history, e.history[1:])
		e.history = e.history[:e.config.Window-1]
	}
	e.history = append(e.history, e.config.RawDepth(drop))

	smoothed := stat.Mean(e.history, nil)
	return Estimate{
		DepthCM: smoothed,
		Action:  e.config.Classify(smoothed),
	}
}

// History returns a copy of the raw depths currently in the window, oldest first.
func (e *Estimator) History() []float64 {
	out := make([]float64, len(e.history))
	copy(out, e.history)
	return out
}

// Reset empties the smoothing window.
func (e *Estimator) Reset() {
	e.history = e.history[:0]
}

// Config returns the estimator configuration.
func (e *Estimator) Config() Config {
	return e.config
}

// Waiting returns the estimate reported when no face is present.
func (e *Estimator) Waiting() Estimate {
	return Estimate{DepthCM: e.config.MaxDepthCM, Action: ActionWaiting}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
