package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion detection constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
)

// MotionDetector measures frame-to-frame change, optionally inside a region
// of interest such as the neighbourhood of a face. The capture loop uses it
// to switch between idle and active frame rates.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a new MotionDetector with the given threshold.
// The threshold is the percentage of pixels that must change to detect motion.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares the whole frame with the previous one.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	return m.DetectIn(frame, image.Rectangle{})
}

// DetectIn compares frame with the previous one and returns whether motion
// was detected and the percentage of changed pixels inside roi. An empty roi
// means the whole frame. The baseline is always the full previous frame, so
// the roi may move between calls.
//
// Algorithm:
// 1. Convert to grayscale and blur (21x21)
// 2. First frame, or a size change, becomes the baseline
// 3. Absolute difference with the baseline, thresholded at 25
// 4. changePercent = non-zero / total pixels inside roi
func (m *MotionDetector) DetectIn(frame *gocv.Mat, roi image.Rectangle) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(GaussianBlurSize, GaussianBlurSize), 0, 0, gocv.BorderDefault)

	if !m.initialized || m.prevGray.Rows() != blurred.Rows() || m.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	blurred.CopyTo(&m.prevGray)

	bounds := image.Rect(0, 0, thresh.Cols(), thresh.Rows())
	if !roi.Empty() {
		bounds = roi.Intersect(bounds)
	}
	if bounds.Empty() {
		return false, 0
	}

	region := thresh.Region(bounds)
	defer region.Close()

	changePercent := float64(gocv.CountNonZero(region)) / float64(bounds.Dx()*bounds.Dy()) * 100.0

	return changePercent > m.threshold, changePercent
}

// Reset clears the baseline so the next frame starts a new comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases resources used by the motion detector.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// SetThreshold sets the motion detection threshold.
// Values less than or equal to 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}

// ExpandRect grows r by margin times its size on every side, clamped to bounds.
func ExpandRect(r image.Rectangle, margin float64, bounds image.Rectangle) image.Rectangle {
	dx := int(float64(r.Dx()) * margin)
	dy := int(float64(r.Dy()) * margin)
	return image.Rect(r.Min.X-dx, r.Min.Y-dy, r.Max.X+dx, r.Max.Y+dy).Intersect(bounds)
}
