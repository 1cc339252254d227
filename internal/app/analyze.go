package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/shadowdepth/internal/capture"
	"github.com/ayusman/shadowdepth/internal/depth"
	"github.com/ayusman/shadowdepth/internal/detector"
	"github.com/ayusman/shadowdepth/internal/log"
	"github.com/ayusman/shadowdepth/internal/plugin"
	"github.com/ayusman/shadowdepth/internal/render"
	"github.com/ayusman/shadowdepth/internal/shadow"
	"github.com/ayusman/shadowdepth/internal/store"
)

// DefaultAnalyzeFPS timestamps frames of sources that report no frame rate.
const DefaultAnalyzeFPS = 30

// AnalyzeOptions configures an offline analysis.
type AnalyzeOptions struct {
	Source string
	Depth  depth.Config
	// FPS converts frame indices into timestamps; <= 0 uses the source FPS.
	FPS float64
	// Store, when set, receives the session and its touch events.
	Store *store.Store
	// Output, when set, is a video file receiving the annotated frames.
	Output string
	// Progress is called after every frame with the number of frames done.
	Progress func(done int)
}

// Summary describes an analyzed source.
type Summary struct {
	SessionID      string             `json:"session_id"`
	Source         string             `json:"source"`
	StartedAt      time.Time          `json:"started_at"`
	Frames         int                `json:"frames"`
	FaceFrames     int                `json:"face_frames"`
	TouchingFrames int                `json:"touching_frames"`
	MeanDepthCM    float64            `json:"mean_depth_cm"`
	StdDepthCM     float64            `json:"std_depth_cm"`
	MinDepthCM     float64            `json:"min_depth_cm"`
	MeanDrop       float64            `json:"mean_intensity_drop"`
	Touches        []store.TouchEvent `json:"touches"`
}

// Analyze runs every frame of an already opened finite source through the
// estimator of a fresh session. Frame timestamps are derived from the frame
// index so results do not depend on processing speed.
func Analyze(ctx context.Context, cam capture.Camera, det detector.Detector, opts AnalyzeOptions) (*Summary, error) {
	fps := opts.FPS
	if fps <= 0 {
		fps = float64(cam.FPS())
	}
	if fps <= 0 {
		fps = DefaultAnalyzeFPS
	}

	start := time.Now()
	sess := NewSession(opts.Source, opts.Depth, start)
	rec := newRecorder(opts.Store, sess)

	seg := shadow.NewSegmenter()
	summary := &Summary{
		SessionID: sess.ID,
		Source:    opts.Source,
		StartedAt: start,
		Touches:   []store.TouchEvent{},
	}

	var depths, drops []float64
	var writer *gocv.VideoWriter
	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	at := start
	finished := false
	// A failed run still closes its open touch and ends the stored session
	// at the last frame seen.
	defer func() {
		if finished {
			return
		}
		if t := sess.End(at); t != nil {
			rec.transition(*t)
		}
		rec.end(sess.Frames(), at)
	}()

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := cam.ReadFrame()
		if errors.Is(err, capture.ErrEndOfStream) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", i, err)
		}

		at = start.Add(time.Duration(float64(i) / fps * float64(time.Second)))

		perception, err := det.Detect(frame)
		if err != nil {
			log.Warn("detection failed", "frame", i, "error", err)
			perception = detector.Perception{}
		}

		analysis := ProcessFrame(*frame, perception, seg, sess.Estimator())

		if opts.Output != "" {
			if writer == nil {
				writer, err = gocv.VideoWriterFile(opts.Output, "MJPG", fps, frame.Cols(), frame.Rows(), true)
				if err != nil {
					analysis.Close()
					frame.Close()
					return nil, fmt.Errorf("open output %s: %w", opts.Output, err)
				}
			}
			var mask *gocv.Mat
			if analysis.Metrics != nil {
				mask = &analysis.ShadowMask
			}
			annotated := render.Annotate(*frame, perception, mask, analysis.Estimate)
			writer.Write(annotated)
			annotated.Close()
		}

		if t := sess.Observe(analysis.Estimate, analysis.Metrics, at); t != nil {
			rec.transition(*t)
			if t.Event == plugin.EventTouchEnd {
				summary.Touches = append(summary.Touches, t.Touch)
			}
		}

		if analysis.Estimate.Action != depth.ActionWaiting {
			depths = append(depths, analysis.Estimate.DepthCM)
			if analysis.Metrics != nil {
				drops = append(drops, analysis.Metrics.IntensityDrop)
			}
		}
		if analysis.Estimate.Action == depth.ActionTouching {
			summary.TouchingFrames++
		}

		analysis.Close()
		frame.Close()

		if opts.Progress != nil {
			opts.Progress(i + 1)
		}
	}

	finished = true
	if t := sess.End(at); t != nil {
		rec.transition(*t)
		summary.Touches = append(summary.Touches, t.Touch)
	}
	rec.end(sess.Frames(), at)

	summary.Frames = sess.Frames()
	summary.FaceFrames = sess.Faces()
	if len(depths) > 0 {
		summary.MeanDepthCM, summary.StdDepthCM = stat.MeanStdDev(depths, nil)
		summary.MinDepthCM = floats.Min(depths)
	}
	if len(drops) > 0 {
		summary.MeanDrop = stat.Mean(drops, nil)
	}
	return summary, nil
}

// ImageReport is the result of analyzing a single still image.
type ImageReport struct {
	Perception detector.Perception `json:"perception"`
	Metrics    *shadow.Metrics     `json:"metrics,omitempty"`
	Estimate   depth.Estimate      `json:"estimate"`
}

// AnalyzeImage estimates depth from one image with a fresh estimator, so
// the smoothed depth equals the raw depth. It also returns the annotated
// image, which the caller closes.
func AnalyzeImage(img gocv.Mat, det detector.Detector, cfg depth.Config) (ImageReport, gocv.Mat, error) {
	perception, err := det.Detect(&img)
	if err != nil {
		return ImageReport{}, gocv.NewMat(), fmt.Errorf("detect: %w", err)
	}

	analysis := ProcessFrame(img, perception, shadow.NewSegmenter(), depth.NewEstimator(cfg))
	defer analysis.Close()

	var mask *gocv.Mat
	if analysis.Metrics != nil {
		mask = &analysis.ShadowMask
	}
	annotated := render.Annotate(img, perception, mask, analysis.Estimate)

	return ImageReport{
		Perception: perception,
		Metrics:    analysis.Metrics,
		Estimate:   analysis.Estimate,
	}, annotated, nil
}
