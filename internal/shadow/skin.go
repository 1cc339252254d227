// Package shadow segments hand-cast shadows on a face crop and reduces them
// to scalar intensity metrics.
package shadow

import (
	"image"

	"gocv.io/x/gocv"
)

// SkinRange is an inclusive HSV box classifying a pixel as skin.
// Hue uses the OpenCV 8-bit convention.
type SkinRange struct {
	Lower gocv.Scalar
	Upper gocv.Scalar
}

// DefaultSkinRange returns H in [0,20], S in [20,255], V in [70,255].
func DefaultSkinRange() SkinRange {
	return SkinRange{
		Lower: gocv.NewScalar(0, 20, 70, 0),
		Upper: gocv.NewScalar(20, 255, 255, 0),
	}
}

// Skin mask clean-up constants.
const (
	// skinOpenIterations is the erode/dilate count of the opening pass.
	skinOpenIterations = 2
	// skinDilateIterations restores boundary pixels lost to the opening.
	skinDilateIterations = 1
)

// SkinMask classifies skin pixels of a BGR image using DefaultSkinRange.
// The caller is responsible for closing the returned Mat.
func SkinMask(img gocv.Mat) gocv.Mat {
	return DefaultSkinRange().Mask(img)
}

// Mask returns a CV_8UC1 mask the size of img where 255 marks skin.
// An empty image yields an empty mask.
func (r SkinRange) Mask(img gocv.Mat) gocv.Mat {
	mask := gocv.NewMat()
	if img.Empty() {
		return mask
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)

	gocv.InRangeWithScalar(hsv, r.Lower, r.Upper, &mask)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3))
	defer kernel.Close()

	morphOpen(&mask, kernel, skinOpenIterations)
	dilate(&mask, kernel, skinDilateIterations)

	return mask
}

// morphOpen performs a morphological opening with OpenCV iteration semantics:
// n erosions followed by n dilations.
func morphOpen(m *gocv.Mat, kernel gocv.Mat, n int) {
	erode(m, kernel, n)
	dilate(m, kernel, n)
}

// morphClose performs a morphological closing: n dilations followed by n erosions.
func morphClose(m *gocv.Mat, kernel gocv.Mat, n int) {
	dilate(m, kernel, n)
	erode(m, kernel, n)
}

func erode(m *gocv.Mat, kernel gocv.Mat, n int) {
	for i := 0; i < n; i++ {
		tmp := gocv.NewMat()
		gocv.Erode(*m, &tmp, kernel)
		m.Close()
		*m = tmp
	}
}

func dilate(m *gocv.Mat, kernel gocv.Mat, n int) {
	for i := 0; i < n; i++ {
		tmp := gocv.NewMat()
		gocv.Dilate(*m, &tmp, kernel)
		m.Close()
		*m = tmp
	}
}
