package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back in-memory frames for tests.
type MockCamera struct {
	frames  []gocv.Mat
	index   int
	loop    bool
	fps     int
	reads   int
	mu      sync.Mutex
	running bool
}

// NewMockCamera creates a MockCamera over clones of frames.
// When loop is false, ReadFrame returns ErrEndOfStream after the last frame.
func NewMockCamera(frames []gocv.Mat, loop bool) *MockCamera {
	c := &MockCamera{loop: loop, fps: 15}
	c.SetFrames(frames)
	return c
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// ReadFrame returns a clone of the next frame.
func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}
	if len(c.frames) == 0 {
		return nil, errors.New("no frames available")
	}

	if c.index >= len(c.frames) {
		if !c.loop {
			return nil, ErrEndOfStream
		}
		c.index = 0
	}

	frame := c.frames[c.index].Clone()
	c.index++
	c.reads++

	return &frame, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Reads returns the number of frames handed out.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// SetFrames replaces the frame sequence with clones of frames.
func (c *MockCamera) SetFrames(frames []gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range c.frames {
		f.Close()
	}
	c.frames = make([]gocv.Mat, len(frames))
	for i, f := range frames {
		c.frames[i] = f.Clone()
	}
	c.index = 0
}

// Release closes the stored frames.
func (c *MockCamera) Release() {
	c.SetFrames(nil)
}
