package detector

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
)

// DefaultCascadeFile is the OpenCV frontal face Haar cascade.
const DefaultCascadeFile = "haarcascade_frontalface_default.xml"

// ErrCascadeNotFound is returned when no cascade file can be loaded.
var ErrCascadeNotFound = errors.New("face cascade not found")

// CascadeDetector implements Detector with an OpenCV Haar cascade.
// It finds faces only; Hands is always empty.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	mu         sync.Mutex
}

// NewCascadeDetector loads the cascade at path, or searches the usual
// locations when path is empty.
func NewCascadeDetector(path string) (*CascadeDetector, error) {
	candidates := []string{path}
	if path == "" {
		candidates = cascadeCandidates()
	}

	classifier := gocv.NewCascadeClassifier()
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if classifier.Load(p) {
			return &CascadeDetector{classifier: classifier}, nil
		}
	}

	classifier.Close()
	if path != "" {
		return nil, fmt.Errorf("load cascade %s: %w", path, ErrCascadeNotFound)
	}
	return nil, ErrCascadeNotFound
}

// Detect returns the largest detected face.
func (d *CascadeDetector) Detect(frame *gocv.Mat) (Perception, error) {
	if frame == nil || frame.Empty() {
		return Perception{}, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.EqualizeHist(gray, &gray)

	d.mu.Lock()
	rects := d.classifier.DetectMultiScale(gray)
	d.mu.Unlock()

	face, ok := largest(rects)
	if !ok {
		return Perception{}, nil
	}
	face = face.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	return Perception{Face: &face}, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}

func largest(rects []image.Rectangle) (image.Rectangle, bool) {
	var best image.Rectangle
	found := false
	for _, r := range rects {
		if r.Dx() <= 0 || r.Dy() <= 0 {
			continue
		}
		if !found || r.Dx()*r.Dy() > best.Dx()*best.Dy() {
			best = r
			found = true
		}
	}
	return best, found
}

func cascadeCandidates() []string {
	return []string{
		filepath.Join("models", DefaultCascadeFile),
		filepath.Join(execDir(), "models", DefaultCascadeFile),
		filepath.Join(os.Getenv("HOME"), ".shadowdepth", "models", DefaultCascadeFile),
		filepath.Join("/usr/share/opencv4/haarcascades", DefaultCascadeFile),
		filepath.Join("/usr/local/share/opencv4/haarcascades", DefaultCascadeFile),
		filepath.Join("/opt/homebrew/share/opencv4/haarcascades", DefaultCascadeFile),
	}
}
