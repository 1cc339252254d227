// Package app runs the capture loop: it reads frames, estimates the
// hand-to-face depth per frame and publishes annotated results.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/shadowdepth/internal/capture"
	"github.com/ayusman/shadowdepth/internal/depth"
	"github.com/ayusman/shadowdepth/internal/detector"
	"github.com/ayusman/shadowdepth/internal/log"
	"github.com/ayusman/shadowdepth/internal/plugin"
	"github.com/ayusman/shadowdepth/internal/render"
	"github.com/ayusman/shadowdepth/internal/shadow"
	"github.com/ayusman/shadowdepth/internal/store"
)

// Pipeline timing constants.
const (
	// IdleFPS is the frame rate when no motion is detected near the face.
	IdleFPS = 5
	// ActiveFPS is the frame rate while the scene is changing.
	ActiveFPS = 15
	// IdleTimeoutMs is the time in milliseconds to wait before switching back to idle mode.
	IdleTimeoutMs = 2000
	// FaceMargin widens the motion region around the last face.
	FaceMargin = 0.5
)

// Config holds configuration options for the application.
type Config struct {
	Store     *store.Store
	PluginDir string
	// Camera overrides the webcam built from CameraConfig.
	Camera       capture.Camera
	CameraConfig capture.CameraConfig
	// Source labels sessions; defaults to "camera:<id>".
	Source string
	// Detector overrides detector selection.
	Detector      detector.Detector
	CascadePath   string
	MotionThresh  float64
	Depth         depth.Config
	JPEGQuality   int
	PluginTimeout time.Duration
}

// App orchestrates capture, estimation, persistence and alert hooks.
type App struct {
	config    Config
	camera    capture.Camera
	motion    *capture.MotionDetector
	detector  detector.Detector
	segmenter *shadow.Segmenter
	pluginMgr *plugin.Manager
	hooks     *plugin.Hooks
	depthCfg  depth.Config
	session   *Session
	recorder  *recorder
	latest    *FrameResult
	subs      map[int]chan FrameResult
	nextSub   int
	seq       int64
	enabled   bool
	mu        sync.RWMutex
	stopCh    chan struct{}
	doneCh    chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	hookWG    sync.WaitGroup
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	motionThreshold := config.MotionThresh
	if motionThreshold <= 0 {
		motionThreshold = 1.0 // 1% pixel change
	}

	camera := config.Camera
	if camera == nil {
		camera = capture.NewCamera(config.CameraConfig)
	}
	if config.Source == "" {
		config.Source = fmt.Sprintf("camera:%d", config.CameraConfig.DeviceID)
	}

	pluginMgr := plugin.NewManager(config.PluginDir)
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		config:    config,
		camera:    camera,
		motion:    capture.NewMotionDetector(motionThreshold),
		detector:  config.Detector,
		segmenter: shadow.NewSegmenter(),
		pluginMgr: pluginMgr,
		hooks:     plugin.NewHooks(pluginMgr, plugin.NewExecutor(config.PluginTimeout)),
		depthCfg:  config.Depth.WithDefaults(),
		subs:      make(map[int]chan FrameResult),
		enabled:   true,
		ctx:       ctx,
		cancel:    cancel,
	}

	if a.detector == nil {
		a.detector = SelectDetector(config.CascadePath)
	}

	return a
}

// SelectDetector prefers MediaPipe (face and hands), then a Haar cascade
// (face only), and finally a mock detector that never finds a face.
func SelectDetector(cascadePath string) detector.Detector {
	mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig())
	if err == nil {
		log.Info("using MediaPipe face and hand detection")
		return mp
	}
	log.Warn("MediaPipe not available", "error", err)

	cd, err := detector.NewCascadeDetector(cascadePath)
	if err == nil {
		log.Info("using Haar cascade face detection")
		return cd
	}
	log.Warn("Haar cascade not available", "error", err)

	log.Warn("no face detector available, every frame will be WAITING")
	return detector.NewMockDetector()
}

// SetEnabled enables or disables estimation. A disabled app keeps the
// camera open but skips frames.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether estimation is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Detector returns the detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// DepthConfig returns the estimator configuration used for new sessions.
func (a *App) DepthConfig() depth.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.depthCfg
}

// SetDepthConfig changes the estimator configuration. It applies to the
// next session; the running session keeps its estimator. Zero fields take
// their defaults.
func (a *App) SetDepthConfig(c depth.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.depthCfg = c.WithDefaults()
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Session returns a snapshot of the running session.
func (a *App) Session() (SessionInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return SessionInfo{}, false
	}
	return a.session.Info(), true
}

// Latest returns the most recently published frame result.
func (a *App) Latest() (FrameResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.latest == nil {
		return FrameResult{}, false
	}
	return *a.latest, true
}

// Running reports whether the capture loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Start opens the camera, begins a session and starts the capture loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.camera.SetFPS(IdleFPS)
	a.motion.Reset()

	a.session = NewSession(a.config.Source, a.depthCfg, time.Now())
	a.recorder = newRecorder(a.config.Store, a.session)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	log.Info("capture started", "session", a.session.ID, "source", a.session.Source)
	return nil
}

// Done is closed when the capture loop exits, either through Stop or at
// the end of a finite source. It is nil before Start.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.doneCh
}

// Stop halts the capture loop, ends the session and closes the camera.
// Stop may be called again after Start.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh = nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	now := time.Now()
	a.mu.Lock()
	sess, rec := a.session, a.recorder
	t := sess.End(now)
	frames := sess.Frames()
	a.mu.Unlock()

	if t != nil {
		a.handleTransition(rec, sess, *t)
	}
	rec.end(frames, now)

	if err := a.camera.Close(); err != nil {
		log.Warn("error closing camera", "error", err)
	}

	log.Info("capture stopped")
}

// Close stops the loop, waits for running hooks, ends every subscription
// and releases the detector. The App cannot be restarted afterwards.
// Later calls return the first call's result.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.Stop()
		a.hookWG.Wait()
		a.cancel()

		a.mu.Lock()
		a.closed = true
		for id, ch := range a.subs {
			close(ch)
			delete(a.subs, id)
		}
		a.mu.Unlock()

		a.motion.Close()
		if d := a.Detector(); d != nil {
			a.closeErr = d.Close()
		}
	})
	return a.closeErr
}

// Subscribe returns a channel receiving every published frame result and
// a function that cancels the subscription. Slow subscribers miss frames.
// After Close the returned channel is already closed.
func (a *App) Subscribe(buffer int) (<-chan FrameResult, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan FrameResult, buffer)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	a.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if c, ok := a.subs[id]; ok {
				close(c)
				delete(a.subs, id)
			}
		})
	}
}

// publish stores r as the latest result and fans it out without blocking.
func (a *App) publish(r FrameResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.latest = &r
	for _, ch := range a.subs {
		select {
		case ch <- r:
		default:
		}
	}
}

// quality returns the configured JPEG quality.
func (a *App) quality() int {
	if a.config.JPEGQuality > 0 {
		return a.config.JPEGQuality
	}
	return render.DefaultJPEGQuality
}

// handleTransition persists a touch transition and fires the alert hooks
// in the background. Storage failures are logged; the capture loop never
// stops for them.
func (a *App) handleTransition(rec *recorder, s *Session, t Transition) {
	log.Info("touch transition", "event", t.Event, "session", s.ID,
		"min_depth_cm", t.Touch.MinDepthCM, "frames", t.Touch.Frames)

	rec.transition(t)

	req := transitionRequest(t, s.Estimator().Config())
	a.hookWG.Add(1)
	go func() {
		defer a.hookWG.Done()
		a.hooks.Fire(a.ctx, req)
	}()
}

// transitionRequest builds the plugin request for a transition.
func transitionRequest(t Transition, cfg depth.Config) plugin.Request {
	raw, _ := json.Marshal(cfg)
	req := plugin.Request{
		Event:         t.Event,
		Action:        string(depth.ActionTouching),
		Session:       t.Touch.SessionID,
		DepthCM:       t.Touch.MinDepthCM,
		IntensityDrop: t.Touch.MaxIntensityDrop,
		Timestamp:     t.Touch.StartedAt,
		Config:        raw,
	}
	if t.Event == plugin.EventTouchEnd {
		req.Action = string(depth.ActionAway)
		req.Duration = t.Touch.Duration()
		if t.Touch.EndedAt != nil {
			req.Timestamp = *t.Touch.EndedAt
		}
	}
	return req
}
