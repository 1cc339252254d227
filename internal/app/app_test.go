package app

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/shadowdepth/internal/capture"
	"github.com/ayusman/shadowdepth/internal/depth"
	"github.com/ayusman/shadowdepth/internal/detector"
	"github.com/ayusman/shadowdepth/internal/plugin"
	"github.com/ayusman/shadowdepth/internal/render"
	"github.com/ayusman/shadowdepth/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestApp builds an App over n shadow frames and a detector that finds
// testFace.
func newTestApp(t *testing.T, st *store.Store, n int) (*App, *detector.MockDetector) {
	t.Helper()

	frame := shadowFrame()
	frames := make([]gocv.Mat, n)
	for i := range frames {
		frames[i] = frame
	}
	cam := capture.NewMockCamera(frames, false)
	frame.Close()
	t.Cleanup(cam.Release)

	det := detector.NewMockDetector()
	det.SetFace(testFace)

	a := New(Config{
		Store:     st,
		PluginDir: t.TempDir(),
		Camera:    cam,
		Source:    "test",
		Detector:  det,
	})
	return a, det
}

func TestApp_EnableDisable(t *testing.T) {
	a, _ := newTestApp(t, nil, 1)
	defer a.Close()

	if !a.IsEnabled() {
		t.Error("App should be enabled by default")
	}
	a.SetEnabled(false)
	if a.IsEnabled() {
		t.Error("App should be disabled after SetEnabled(false)")
	}
}

func TestApp_DepthConfigAppliesToNextSession(t *testing.T) {
	a, _ := newTestApp(t, nil, 100)
	defer a.Close()

	a.SetDepthConfig(depth.Config{MaxDepthCM: 40, TouchThresholdCM: 4, ShadowThreshold: 0.1, Window: 3})
	if err := a.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	a.SetDepthConfig(depth.DefaultConfig())
	info, ok := a.Session()
	if !ok {
		t.Fatal("Session() reported no session after Start")
	}
	if info.Config.MaxDepthCM != 40 || info.Config.Window != 3 {
		t.Errorf("running session config = %+v, want the config at Start", info.Config)
	}

	a.Stop()
	if err := a.Start(); err != nil {
		t.Fatalf("second Start() failed: %v", err)
	}
	defer a.Stop()

	next, _ := a.Session()
	if next.ID == info.ID {
		t.Error("restart should begin a new session")
	}
	if next.Config != depth.DefaultConfig() {
		t.Errorf("new session config = %+v, want defaults", next.Config)
	}
}

func TestApp_ProcessTick(t *testing.T) {
	st := newTestStore(t)
	a, det := newTestApp(t, st, 1)
	defer a.Close()

	if _, err := a.processTick(gocv.NewMat(), time.Now()); err == nil {
		t.Fatal("processTick() without a session should fail")
	}

	a.session = NewSession("test", depth.DefaultConfig(), time.Now())
	a.recorder = newRecorder(st, a.session)

	ch, cancel := a.Subscribe(4)
	defer cancel()

	frame := shadowFrame()
	defer frame.Close()

	res, err := a.processTick(frame, time.Now())
	if err != nil {
		t.Fatalf("processTick() failed: %v", err)
	}
	if det.Calls() != 1 {
		t.Errorf("detector calls = %d, want 1", det.Calls())
	}
	if res.Seq != 1 || res.SessionID != a.session.ID {
		t.Errorf("result = seq %d session %q", res.Seq, res.SessionID)
	}
	if res.Metrics == nil || res.Face == nil {
		t.Fatalf("result = %+v, want metrics and face", res)
	}
	if res.Action != depth.ActionAway || res.Label != "HAND AWAY" {
		t.Errorf("action = %q (%q), want away", res.Action, res.Label)
	}
	if len(res.JPEG) == 0 {
		t.Fatal("result has no JPEG")
	}

	img, err := render.DecodeJPEG(res.JPEG)
	if err != nil {
		t.Fatalf("DecodeJPEG() failed: %v", err)
	}
	if img.Cols() != frame.Cols() || img.Rows() != frame.Rows() {
		t.Errorf("JPEG size = %dx%d, want %dx%d", img.Cols(), img.Rows(), frame.Cols(), frame.Rows())
	}
	img.Close()

	select {
	case got := <-ch:
		if got.Seq != res.Seq {
			t.Errorf("subscriber got seq %d, want %d", got.Seq, res.Seq)
		}
	default:
		t.Error("subscriber received nothing")
	}

	latest, ok := a.Latest()
	if !ok || latest.Seq != 1 {
		t.Errorf("Latest() = %d, %v", latest.Seq, ok)
	}

	// a lost face reports WAITING
	det.SetFace(image.Rectangle{})
	res, err = a.processTick(frame, time.Now())
	if err != nil {
		t.Fatalf("processTick() failed: %v", err)
	}
	if res.Action != depth.ActionWaiting || res.Face != nil {
		t.Errorf("result = %+v, want waiting without face", res)
	}

	det.SetError(errors.New("detector down"))
	if _, err := a.processTick(frame, time.Now()); err == nil {
		t.Error("processTick() should return the detector error")
	}
}

func TestApp_Subscribe_Cancel(t *testing.T) {
	a, _ := newTestApp(t, nil, 1)
	defer a.Close()

	ch, cancel := a.Subscribe(0)
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	// publishing with a cancelled subscriber must not panic
	a.publish(FrameResult{Seq: 1})
}

func TestApp_Close_EndsSubscriptions(t *testing.T) {
	a, _ := newTestApp(t, nil, 1)

	ch, cancel := a.Subscribe(1)
	defer cancel()

	if err := a.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("subscription should be closed by Close")
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}

	late, lateCancel := a.Subscribe(1)
	defer lateCancel()
	select {
	case _, ok := <-late:
		if ok {
			t.Error("subscription after Close received a frame")
		}
	case <-time.After(time.Second):
		t.Error("subscription after Close should already be closed")
	}
}

func TestApp_Publish_SlowSubscriber(t *testing.T) {
	a, _ := newTestApp(t, nil, 1)
	defer a.Close()

	ch, cancel := a.Subscribe(1)
	defer cancel()

	a.publish(FrameResult{Seq: 1})
	a.publish(FrameResult{Seq: 2})

	if got := <-ch; got.Seq != 1 {
		t.Errorf("first result seq = %d, want 1", got.Seq)
	}
	if latest, _ := a.Latest(); latest.Seq != 2 {
		t.Errorf("Latest().Seq = %d, want 2", latest.Seq)
	}
}

func TestApp_RunsFiniteSource(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	st := newTestStore(t)
	a, _ := newTestApp(t, st, 3)

	if err := a.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !a.Running() {
		t.Error("Running() = false after Start")
	}

	select {
	case <-a.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not finish the source")
	}

	info, _ := a.Session()
	if err := a.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if a.Running() {
		t.Error("Running() = true after Close")
	}

	sess, err := st.Sessions().Get(info.ID)
	if err != nil {
		t.Fatalf("Get(session) failed: %v", err)
	}
	if sess.Frames != 3 {
		t.Errorf("stored frames = %d, want 3", sess.Frames)
	}
	if sess.Active() {
		t.Error("stored session should be ended")
	}
	if sess.Source != "test" {
		t.Errorf("stored source = %q, want test", sess.Source)
	}
}

func TestApp_HandleTransition_StoresEvents(t *testing.T) {
	st := newTestStore(t)
	a, _ := newTestApp(t, st, 1)
	defer a.Close()

	now := time.Now()
	sess := NewSession("test", depth.DefaultConfig(), now)
	rec := newRecorder(st, sess)

	start := sess.Observe(estimate(3, depth.ActionTouching), nil, now)
	a.handleTransition(rec, sess, *start)
	end := sess.Observe(estimate(20, depth.ActionAway), nil, now.Add(2*time.Second))
	a.handleTransition(rec, sess, *end)

	events, err := st.Events().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("ListBySession() failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("stored %d events, want 1", len(events))
	}
	if events[0].EndedAt == nil {
		t.Error("stored event should be ended")
	}
	if events[0].MinDepthCM != 3 {
		t.Errorf("MinDepthCM = %v, want 3", events[0].MinDepthCM)
	}
}

func TestTransitionRequest(t *testing.T) {
	now := time.Now()
	sess := NewSession("test", depth.DefaultConfig(), now)

	start := sess.Observe(estimate(2.5, depth.ActionTouching), nil, now)
	req := transitionRequest(*start, sess.Estimator().Config())
	if req.Event != plugin.EventTouchStart || req.Action != "touching" {
		t.Errorf("start request = %+v", req)
	}
	if req.Session != sess.ID || req.DepthCM != 2.5 || !req.Timestamp.Equal(now) {
		t.Errorf("start request = %+v", req)
	}
	if len(req.Config) == 0 {
		t.Error("request should carry the depth config")
	}

	endAt := now.Add(1500 * time.Millisecond)
	end := sess.Observe(estimate(12, depth.ActionAway), nil, endAt)
	req = transitionRequest(*end, sess.Estimator().Config())
	if req.Event != plugin.EventTouchEnd || req.Action != "away" {
		t.Errorf("end request = %+v", req)
	}
	if req.Duration != 1500*time.Millisecond || !req.Timestamp.Equal(endAt) {
		t.Errorf("end request duration %v at %v", req.Duration, req.Timestamp)
	}
}

func TestAnalyze(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	st := newTestStore(t)

	frame := shadowFrame()
	frames := []gocv.Mat{frame, frame, frame, frame, frame, frame}
	cam := capture.NewMockCamera(frames, false)
	frame.Close()
	defer cam.Release()
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	det := detector.NewMockDetector()
	det.SetFace(testFace)

	var progress []int
	sum, err := Analyze(context.Background(), cam, det, AnalyzeOptions{
		Source:   "clip.mp4",
		Store:    st,
		Progress: func(done int) { progress = append(progress, done) },
	})
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}

	if sum.Frames != 6 || sum.FaceFrames != 6 {
		t.Errorf("frames = %d, faces = %d, want 6 and 6", sum.Frames, sum.FaceFrames)
	}
	if len(progress) != 6 || progress[5] != 6 {
		t.Errorf("progress = %v, want 1..6", progress)
	}
	if sum.TouchingFrames != 0 || len(sum.Touches) != 0 {
		t.Errorf("summary = %+v, want no touches for a half shadow", sum)
	}
	if sum.MinDepthCM < 6 || sum.MinDepthCM > 10.5 {
		t.Errorf("MinDepthCM = %v, want about 8", sum.MinDepthCM)
	}
	if sum.MeanDepthCM < sum.MinDepthCM {
		t.Errorf("MeanDepthCM %v below MinDepthCM %v", sum.MeanDepthCM, sum.MinDepthCM)
	}
	if sum.MeanDrop < 0.55 || sum.MeanDrop > 0.65 {
		t.Errorf("MeanDrop = %v, want about 0.6", sum.MeanDrop)
	}

	sess, err := st.Sessions().Get(sum.SessionID)
	if err != nil {
		t.Fatalf("Get(session) failed: %v", err)
	}
	if sess.Frames != 6 || sess.Source != "clip.mp4" || sess.Active() {
		t.Errorf("stored session = %+v", sess)
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	st := newTestStore(t)

	frame := shadowFrame()
	cam := capture.NewMockCamera([]gocv.Mat{frame}, true)
	frame.Close()
	defer cam.Release()
	cam.Open()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Analyze(ctx, cam, detector.NewMockDetector(), AnalyzeOptions{Source: "cancelled", Store: st})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Analyze() error = %v, want context.Canceled", err)
	}

	stored, err := st.Sessions().List(0)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored sessions = %d, want 1", len(stored))
	}
	if stored[0].Active() {
		t.Errorf("cancelled session still active: %+v", stored[0])
	}
}

// failingCamera serves its frames and then fails instead of ending.
type failingCamera struct {
	*capture.MockCamera
	after int
	reads int
}

var errCameraUnplugged = errors.New("camera unplugged")

func (c *failingCamera) ReadFrame() (*gocv.Mat, error) {
	if c.reads >= c.after {
		return nil, errCameraUnplugged
	}
	c.reads++
	return c.MockCamera.ReadFrame()
}

func TestAnalyze_ReadErrorEndsSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	st := newTestStore(t)

	frame := shadowFrame()
	mock := capture.NewMockCamera([]gocv.Mat{frame}, true)
	frame.Close()
	defer mock.Release()
	mock.Open()
	cam := &failingCamera{MockCamera: mock, after: 5}

	det := detector.NewMockDetector()
	det.SetFace(testFace)

	// a held half shadow is about 8 cm, so every frame touches
	cfg := depth.DefaultConfig()
	cfg.TouchThresholdCM = 12

	_, err := Analyze(context.Background(), cam, det, AnalyzeOptions{
		Source: "unplugged",
		Depth:  cfg,
		FPS:    10,
		Store:  st,
	})
	if !errors.Is(err, errCameraUnplugged) {
		t.Fatalf("Analyze() error = %v, want %v", err, errCameraUnplugged)
	}

	stored, err := st.Sessions().List(0)
	if err != nil || len(stored) != 1 {
		t.Fatalf("List() = %d sessions, %v; want 1", len(stored), err)
	}
	sess := stored[0]
	if sess.Active() || sess.Frames != 5 {
		t.Errorf("stored session = %+v, want ended after 5 frames", sess)
	}

	events, err := st.Events().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("ListBySession() failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.EndedAt == nil {
		t.Fatal("touch event left open after the read error")
	}
	// the last frame read is frame 4, 400ms after the start
	if got := ev.EndedAt.Sub(sess.StartedAt); got < 399*time.Millisecond || got > 401*time.Millisecond {
		t.Errorf("event ended %v after the session start, want 400ms", got)
	}
}

func TestAnalyzeImage(t *testing.T) {
	frame := shadowFrame()
	defer frame.Close()

	det := detector.NewMockDetector()
	det.SetFace(testFace)

	report, annotated, err := AnalyzeImage(frame, det, depth.DefaultConfig())
	if err != nil {
		t.Fatalf("AnalyzeImage() failed: %v", err)
	}
	defer annotated.Close()

	if report.Metrics == nil {
		t.Fatal("report has no metrics")
	}
	// one sample: smoothed equals raw
	want := depth.DefaultConfig().RawDepth(report.Metrics.IntensityDrop)
	if report.Estimate.DepthCM != want {
		t.Errorf("DepthCM = %v, want %v", report.Estimate.DepthCM, want)
	}
	if annotated.Cols() != frame.Cols() || annotated.Rows() != frame.Rows() {
		t.Error("annotated image should match the input size")
	}
}
