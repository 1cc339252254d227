package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the perception results.
type MockDetector struct {
	perception Perception
	err        error
	calls      int
	mu         sync.Mutex
}

// NewMockDetector creates a new MockDetector that finds nothing.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFace sets the face box returned by Detect. A zero rectangle clears it.
func (m *MockDetector) SetFace(r image.Rectangle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Empty() {
		m.perception.Face = nil
		return
	}
	m.perception.Face = &r
}

// SetHands sets the hands returned by Detect.
func (m *MockDetector) SetHands(hands []Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perception.Hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured perception or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (Perception, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return Perception{}, m.err
	}
	p := Perception{Hands: append([]Hand(nil), m.perception.Hands...)}
	if m.perception.Face != nil {
		face := *m.perception.Face
		p.Face = &face
	}
	return p, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}
