package detector

import (
	"image"

	"gocv.io/x/gocv"
)

// Detector defines the interface for face and hand perception implementations.
type Detector interface {
	// Detect analyzes a BGR video frame and returns the face and hand regions.
	// A frame without a face yields a Perception with a nil Face.
	Detect(frame *gocv.Mat) (Perception, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Perception is the per-frame output of a Detector, in frame pixel coordinates.
type Perception struct {
	Face  *image.Rectangle `json:"face,omitempty"`
	Hands []Hand           `json:"hands"`
}

// FaceRegion returns the face rectangle when it has a positive area.
func (p Perception) FaceRegion() (image.Rectangle, bool) {
	if p.Face == nil || p.Face.Dx() <= 0 || p.Face.Dy() <= 0 {
		return image.Rectangle{}, false
	}
	return *p.Face, true
}

// Hand is a detected hand bounding box.
type Hand struct {
	Box   image.Rectangle `json:"box"`
	Label string          `json:"label"` // "Left", "Right" or "Unknown"
	Score float64         `json:"score"`
}

// Config holds configuration options for perception.
type Config struct {
	// MaxFaces is the maximum number of faces to detect (default: 1).
	MaxFaces int

	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxFaces:        1,
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
