package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/shadowdepth/internal/depth"
	"github.com/ayusman/shadowdepth/internal/detector"
)

const (
	// PanelHeight is the height of the info panel at the bottom of the frame.
	PanelHeight = 100
	// ShadowAlpha is the weight of the red tint blended over shadow pixels.
	ShadowAlpha = 0.3

	lineThickness = 2
	labelOffset   = 10
	boxFontScale  = 0.5
	infoFontScale = 0.8
	markerRadius  = 3
)

// DrawOverlay returns a copy of frame with the face box, hand boxes, a dot
// at the centre of each box and the depth/action info panel drawn on it.
// The caller closes the returned Mat.
func DrawOverlay(frame gocv.Mat, p detector.Perception, est depth.Estimate) gocv.Mat {
	out := frame.Clone()
	if out.Empty() {
		return out
	}

	if p.Face != nil {
		gocv.Rectangle(&out, *p.Face, Green, lineThickness)
		gocv.Circle(&out, detector.Centroid(*p.Face), markerRadius, Green, -1)
		gocv.PutText(&out, "FACE", image.Pt(p.Face.Min.X, p.Face.Min.Y-labelOffset),
			gocv.FontHersheySimplex, boxFontScale, Green, lineThickness)
	}

	for _, h := range p.Hands {
		gocv.Rectangle(&out, h.Box, Blue, lineThickness)
		gocv.Circle(&out, detector.Centroid(h.Box), markerRadius, Blue, -1)
		gocv.PutText(&out, "HAND: "+h.Label, image.Pt(h.Box.Min.X, h.Box.Min.Y-labelOffset),
			gocv.FontHersheySimplex, boxFontScale, Blue, lineThickness)
	}

	drawPanel(&out, est)
	return out
}

// drawPanel fills the bottom band black and writes the depth and action.
func drawPanel(img *gocv.Mat, est depth.Estimate) {
	h, w := img.Rows(), img.Cols()
	gocv.Rectangle(img, image.Rect(0, h-PanelHeight, w, h), Black, -1)

	clr := ActionColor(est.Action)
	gocv.PutText(img, fmt.Sprintf("Est. Depth: %.2f cm", est.DepthCM), image.Pt(20, h-60),
		gocv.FontHersheySimplex, infoFontScale, clr, lineThickness)
	gocv.PutText(img, "Action: "+est.Action.Label(), image.Pt(20, h-20),
		gocv.FontHersheySimplex, infoFontScale, clr, lineThickness)
}

// ActionColor is yellow for a hand away and red for everything else.
func ActionColor(a depth.Action) color.RGBA {
	if a == depth.ActionAway {
		return Yellow
	}
	return Red
}

// OverlayShadow tints the shadow pixels of face red in place.
// mask is resized to the face region when the sizes differ. Nothing is
// drawn when the region falls outside frame or mask is empty.
func OverlayShadow(frame *gocv.Mat, face image.Rectangle, mask gocv.Mat) {
	if frame == nil || frame.Empty() || mask.Empty() {
		return
	}
	face = face.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if face.Empty() {
		return
	}

	roi := frame.Region(face)
	defer roi.Close()

	m := mask
	if mask.Rows() != roi.Rows() || mask.Cols() != roi.Cols() {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(mask, &resized, image.Pt(roi.Cols(), roi.Rows()), 0, 0, gocv.InterpolationNearestNeighbor)
		m = resized
	}

	tint := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), roi.Rows(), roi.Cols(), roi.Type())
	defer tint.Close()

	blended := gocv.NewMat()
	defer blended.Close()
	gocv.AddWeighted(roi, 1-ShadowAlpha, tint, ShadowAlpha, 0, &blended)

	// roi shares memory with frame
	blended.CopyToWithMask(&roi, m)
}
