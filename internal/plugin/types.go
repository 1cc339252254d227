// Package plugin discovers and runs external alert hooks fired when a hand
// starts or stops touching the face.
package plugin

import (
	"encoding/json"
	"slices"
	"time"
)

// Event names a hook trigger.
type Event string

const (
	// EventTouchStart fires when the smoothed estimate turns TOUCHING.
	EventTouchStart Event = "touch_start"
	// EventTouchEnd fires when a touch ends.
	EventTouchEnd Event = "touch_end"
)

// Manifest describes a plugin's metadata and the events it handles.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Events       []Event         `json:"events"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Handles reports whether the plugin subscribes to event. A manifest
// without events subscribes to all of them.
func (m Manifest) Handles(event Event) bool {
	return len(m.Events) == 0 || slices.Contains(m.Events, event)
}

// Request is written to a plugin's stdin as JSON.
type Request struct {
	Event         Event           `json:"event"`
	Action        string          `json:"action"`
	Session       string          `json:"session"`
	DepthCM       float64         `json:"depth_cm"`
	IntensityDrop float64         `json:"intensity_drop"`
	Duration      time.Duration   `json:"duration_ns,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Config        json.RawMessage `json:"config,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
