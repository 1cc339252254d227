package app

import (
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/shadowdepth/internal/depth"
	"github.com/ayusman/shadowdepth/internal/detector"
	"github.com/ayusman/shadowdepth/internal/shadow"
)

// Analysis is the core result of one frame.
type Analysis struct {
	Estimate depth.Estimate
	// Metrics is nil when no face was found.
	Metrics *shadow.Metrics
	// Face is the face region actually cropped, clamped to the frame.
	Face *image.Rectangle
	// ShadowMask is aligned with Face. It is empty when Metrics is nil.
	ShadowMask gocv.Mat
}

// Close releases the shadow mask.
func (a *Analysis) Close() {
	a.ShadowMask.Close()
}

// ProcessFrame runs crop, segmentation and estimation for one frame.
// Without a usable face region the estimator is left untouched and the
// result is WAITING. The caller closes the returned Analysis.
func ProcessFrame(frame gocv.Mat, p detector.Perception, seg *shadow.Segmenter, est *depth.Estimator) Analysis {
	face, ok := p.FaceRegion()
	if ok {
		face = face.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
		ok = !face.Empty()
	}
	if !ok {
		return Analysis{Estimate: est.Waiting(), ShadowMask: gocv.NewMat()}
	}

	crop := frame.Region(face)
	defer crop.Close()

	res, found := seg.Detect(crop)
	if !found {
		return Analysis{Estimate: est.Estimate(nil), Face: &face, ShadowMask: gocv.NewMat()}
	}
	res.Skin.Close()

	m := res.Metrics
	return Analysis{
		Estimate:   est.Estimate(&m),
		Metrics:    &m,
		Face:       &face,
		ShadowMask: res.Mask,
	}
}

// FrameResult is the published snapshot of one processed frame. It holds
// no Mats, so it can be shared between goroutines.
type FrameResult struct {
	Seq       int64            `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	SessionID string           `json:"session_id"`
	DepthCM   float64          `json:"depth_cm"`
	Action    depth.Action     `json:"action"`
	Label     string           `json:"label"`
	Metrics   *shadow.Metrics  `json:"metrics,omitempty"`
	Face      *image.Rectangle `json:"face,omitempty"`
	Hands     []detector.Hand  `json:"hands"`
	// JPEG is the annotated frame.
	JPEG []byte `json:"-"`
}

// IntensityDrop returns the measured drop, 0 without metrics.
func (r FrameResult) IntensityDrop() float64 {
	if r.Metrics == nil {
		return 0
	}
	return r.Metrics.IntensityDrop
}
