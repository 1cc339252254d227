package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// FileCamera reads frames from a video file. It implements Camera so a
// recording can drive the same pipeline as a live device.
type FileCamera struct {
	path    string
	mirror  bool
	capture *gocv.VideoCapture
	fps     int
	mu      sync.Mutex
}

// NewFileCamera creates a FileCamera for the video at path.
func NewFileCamera(path string, mirror bool) *FileCamera {
	return &FileCamera{path: path, mirror: mirror}
}

// Open opens the video file and reads its native frame rate.
func (c *FileCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.VideoCaptureFile(c.path)
	if err != nil {
		return fmt.Errorf("open video %s: %w", c.path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open video %s: not readable", c.path)
	}

	c.capture = vc
	if c.fps <= 0 {
		c.fps = int(vc.Get(gocv.VideoCaptureFPS) + 0.5)
	}
	return nil
}

// Close closes the file.
func (c *FileCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

// ReadFrame returns the next frame or ErrEndOfStream.
func (c *FileCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}
	return readFrom(c.capture, c.mirror)
}

// FrameCount returns the number of frames reported by the container,
// or 0 when unknown.
func (c *FileCamera) FrameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return 0
	}
	n := int(c.capture.Get(gocv.VideoCaptureFrameCount))
	if n < 0 {
		return 0
	}
	return n
}

// SetFPS overrides the playback rate reported by FPS.
func (c *FileCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

// FPS returns the file frame rate.
func (c *FileCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// IsOpen reports whether the file is open.
func (c *FileCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}
