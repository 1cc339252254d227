package shadow

import (
	"image"

	"gocv.io/x/gocv"
)

// Segmentation constants.
const (
	// BlurSize is the Gaussian kernel applied to the luminance channel.
	BlurSize = 5
	// MinBackground replaces an empty or black background mean.
	MinBackground = 0.001

	openIterations  = 1
	closeIterations = 2
)

// Metrics are the scalar reductions of a shadow mask over a face crop.
type Metrics struct {
	// Area is the number of shadow pixels.
	Area int `json:"area"`
	// MeanShadow is the mean luminance under the shadow mask, 0 when empty.
	MeanShadow float64 `json:"mean_shadow"`
	// MeanBackground is the mean luminance of skin outside the shadow,
	// never below MinBackground.
	MeanBackground float64 `json:"mean_bg"`
	// IntensityDrop is (MeanBackground - MeanShadow) / MeanBackground,
	// or 0 when Area is 0.
	IntensityDrop float64 `json:"intensity_drop"`
}

// Result holds the masks and metrics of one segmentation.
// Mask and Skin are CV_8UC1 and aligned with the input crop.
type Result struct {
	Mask    gocv.Mat
	Skin    gocv.Mat
	Metrics Metrics
}

// Close releases the masks.
func (r *Result) Close() {
	r.Mask.Close()
	r.Skin.Close()
}

// Segmenter finds shadow regions on skin inside a face crop.
// It holds no per-frame state and may be shared between sessions.
type Segmenter struct {
	skin SkinRange
}

// NewSegmenter creates a Segmenter with the default skin range.
func NewSegmenter() *Segmenter {
	return &Segmenter{skin: DefaultSkinRange()}
}

// Detect segments the shadow in a BGR face crop and computes its metrics.
// It returns false, and a zero Result, when the crop is empty.
// The caller is responsible for closing a returned Result.
//
// Algorithm:
// 1. Convert to Lab and keep L
// 2. Gaussian blur (5x5)
// 3. Invert and binarize with Otsu, so the darkest regions become foreground
// 4. AND with the skin mask
// 5. Open (3x3 rect, once) to drop speckle, then close (twice) to fill gaps
// 6. Clip back to the skin mask
// 7. Reduce to area, shadow mean, background mean and relative drop
func (s *Segmenter) Detect(face gocv.Mat) (Result, bool) {
	if face.Empty() || face.Rows() == 0 || face.Cols() == 0 {
		return Result{}, false
	}

	lum := luminance(face)
	defer lum.Close()

	candidates := darkCandidates(lum)
	defer candidates.Close()

	skin := s.skin.Mask(face)

	mask := gocv.NewMat()
	gocv.BitwiseAnd(candidates, skin, &mask)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	morphOpen(&mask, kernel, openIterations)
	morphClose(&mask, kernel, closeIterations)

	// closing can grow blobs past the skin boundary
	clipped := gocv.NewMat()
	gocv.BitwiseAnd(mask, skin, &clipped)
	mask.Close()

	return Result{
		Mask:    clipped,
		Skin:    skin,
		Metrics: measure(lum, clipped, skin),
	}, true
}

// luminance returns the L channel of the Lab conversion of a BGR image.
func luminance(img gocv.Mat) gocv.Mat {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(img, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	for _, c := range channels[1:] {
		c.Close()
	}
	return channels[0]
}

// darkCandidates binarizes the blurred, inverted luminance with Otsu.
// A channel without contrast has no bimodal split and yields no candidates.
func darkCandidates(lum gocv.Mat) gocv.Mat {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(lum, &blurred, image.Pt(BlurSize, BlurSize), 0, 0, gocv.BorderDefault)

	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(blurred, &inverted)

	out := gocv.NewMatWithSize(lum.Rows(), lum.Cols(), gocv.MatTypeCV8UC1)
	minVal, maxVal, _, _ := gocv.MinMaxLoc(inverted)
	if minVal == maxVal {
		out.SetTo(gocv.NewScalar(0, 0, 0, 0))
		return out
	}

	gocv.Threshold(inverted, &out, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)
	return out
}

// measure computes Metrics from the unblurred luminance and the two masks.
func measure(lum, shadowMask, skin gocv.Mat) Metrics {
	m := Metrics{Area: gocv.CountNonZero(shadowMask)}

	if m.Area > 0 {
		m.MeanShadow = lum.MeanWithMask(shadowMask).Val1
	}

	notShadow := gocv.NewMat()
	defer notShadow.Close()
	gocv.BitwiseNot(shadowMask, &notShadow)

	background := gocv.NewMat()
	defer background.Close()
	gocv.BitwiseAnd(skin, notShadow, &background)

	if gocv.CountNonZero(background) > 0 {
		m.MeanBackground = lum.MeanWithMask(background).Val1
	}
	if m.MeanBackground == 0 {
		m.MeanBackground = MinBackground
	}

	// without shadow pixels there is nothing darker than the background
	if m.Area > 0 {
		m.IntensityDrop = (m.MeanBackground - m.MeanShadow) / m.MeanBackground
	}
	return m
}
