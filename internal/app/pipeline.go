package app

import (
	"errors"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/shadowdepth/internal/capture"
	"github.com/ayusman/shadowdepth/internal/log"
	"github.com/ayusman/shadowdepth/internal/render"
)

// runPipeline is the capture loop. It is the only writer of the session's
// estimator.
//
// Pipeline logic:
// 1. Start in idle mode (IdleFPS)
// 2. Motion near the last face (or anywhere without one) switches to ActiveFPS
// 3. Every tick runs detection, segmentation and estimation
// 4. After IdleTimeoutMs without motion, switch back to idle mode
// 5. Touch transitions are stored and fired at the alert hooks
// 6. A finite source ends the loop at its last frame
func (a *App) runPipeline(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	activeMode := false
	lastMotionTime := time.Now()
	var lastFace image.Rectangle

	ticker := time.NewTicker(time.Second / time.Duration(IdleFPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				if errors.Is(err, capture.ErrEndOfStream) {
					log.Info("source exhausted")
					return
				}
				log.Warn("error reading frame", "error", err)
				continue
			}

			roi := image.Rectangle{}
			if !lastFace.Empty() {
				roi = capture.ExpandRect(lastFace, FaceMargin, render.Bounds(*frame))
			}
			motionDetected, _ := a.motion.DetectIn(frame, roi)

			if motionDetected {
				lastMotionTime = time.Now()
				if !activeMode {
					activeMode = true
					a.camera.SetFPS(ActiveFPS)
					ticker.Reset(time.Second / time.Duration(ActiveFPS))
					log.Debug("switched to active mode")
				}
			} else if activeMode && time.Since(lastMotionTime) > time.Duration(IdleTimeoutMs)*time.Millisecond {
				activeMode = false
				a.camera.SetFPS(IdleFPS)
				ticker.Reset(time.Second / time.Duration(IdleFPS))
				log.Debug("switched to idle mode")
			}

			result, err := a.processTick(*frame, time.Now())
			frame.Close()
			if err != nil {
				log.Warn("error processing frame", "error", err)
				continue
			}

			lastFace = image.Rectangle{}
			if result.Face != nil {
				lastFace = *result.Face
			}
		}
	}
}

// processTick runs one frame through detection and estimation, records
// touch transitions and publishes the result.
func (a *App) processTick(frame gocv.Mat, at time.Time) (FrameResult, error) {
	perception, err := a.Detector().Detect(&frame)
	if err != nil {
		return FrameResult{}, err
	}

	a.mu.RLock()
	sess, rec := a.session, a.recorder
	a.mu.RUnlock()
	if sess == nil {
		return FrameResult{}, errors.New("no active session")
	}

	analysis := ProcessFrame(frame, perception, a.segmenter, sess.Estimator())
	defer analysis.Close()

	var mask *gocv.Mat
	if analysis.Metrics != nil {
		mask = &analysis.ShadowMask
	}
	annotated := render.Annotate(frame, perception, mask, analysis.Estimate)
	jpeg, err := render.EncodeJPEG(annotated, a.quality())
	annotated.Close()
	if err != nil {
		log.Warn("error encoding frame", "error", err)
	}

	a.mu.Lock()
	t := sess.Observe(analysis.Estimate, analysis.Metrics, at)
	a.seq++
	seq := a.seq
	a.mu.Unlock()

	if t != nil {
		a.handleTransition(rec, sess, *t)
	}

	result := FrameResult{
		Seq:       seq,
		Timestamp: at,
		SessionID: sess.ID,
		DepthCM:   analysis.Estimate.DepthCM,
		Action:    analysis.Estimate.Action,
		Label:     analysis.Estimate.Action.Label(),
		Metrics:   analysis.Metrics,
		Face:      analysis.Face,
		Hands:     perception.Hands,
		JPEG:      jpeg,
	}
	a.publish(result)
	return result, nil
}
