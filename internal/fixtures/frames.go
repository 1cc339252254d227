// Package fixtures generates synthetic face frames with hand-cast shadows.
package fixtures

import (
	"image"
	"os"

	"gocv.io/x/gocv"
)

// Frame geometry.
const (
	Width  = 160
	Height = 120
)

var (
	// Face is where every generated frame paints its face.
	Face = image.Rect(40, 20, 120, 100)

	// Skin is a lit skin tone; Shadow is the same tone at 40% brightness.
	// Both fall inside the default skin range.
	Skin       = gocv.NewScalar(80, 120, 200, 0)
	Shadow     = gocv.NewScalar(32, 48, 80, 0)
	Background = gocv.NewScalar(255, 0, 0, 0)
)

// Frame returns a BGR frame with a skin face at Face whose right coverage
// fraction (0..1) of columns is shadowed. The caller closes the Mat.
func Frame(coverage float64) gocv.Mat {
	frame := gocv.NewMatWithSizeFromScalar(Background, Height, Width, gocv.MatTypeCV8UC3)

	face := frame.Region(Face)
	face.SetTo(Skin)
	face.Close()

	if coverage <= 0 {
		return frame
	}
	if coverage > 1 {
		coverage = 1
	}

	left := Face.Max.X - int(coverage*float64(Face.Dx()))
	shadowed := frame.Region(image.Rect(left, Face.Min.Y, Face.Max.X, Face.Max.Y))
	shadowed.SetTo(Shadow)
	shadowed.Close()

	return frame
}

// Sequence returns one Frame per coverage value.
func Sequence(coverages ...float64) []gocv.Mat {
	frames := make([]gocv.Mat, len(coverages))
	for i, c := range coverages {
		frames[i] = Frame(c)
	}
	return frames
}

// Approach returns lit frames, then held half-shadow frames, then lit frames
// again: a hand that comes close to the face and leaves.
func Approach(lit, held int) []gocv.Mat {
	coverages := make([]float64, 0, 2*lit+held)
	for i := 0; i < lit; i++ {
		coverages = append(coverages, 0)
	}
	for i := 0; i < held; i++ {
		coverages = append(coverages, 0.5)
	}
	for i := 0; i < lit; i++ {
		coverages = append(coverages, 0)
	}
	return Sequence(coverages...)
}

// Close releases every frame of a sequence.
func Close(frames []gocv.Mat) {
	for i := range frames {
		frames[i].Close()
	}
}

// WriteImage encodes Frame(coverage) to path; the format follows the extension.
func WriteImage(path string, coverage float64) error {
	frame := Frame(coverage)
	defer frame.Close()

	if !gocv.IMWrite(path, frame) {
		return os.ErrInvalid
	}
	return nil
}
