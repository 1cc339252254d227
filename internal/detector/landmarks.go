// Package detector provides face and hand perception for the shadow depth pipeline.
package detector

import "image"

// Point2D is a landmark in normalized image coordinates (0-1).
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox converts normalized landmarks to a pixel rectangle clamped to
// a w x h frame. It returns false when there are no landmarks or the clamped
// box has no area.
func BoundingBox(points []Point2D, w, h int) (image.Rectangle, bool) {
	if len(points) == 0 {
		return image.Rectangle{}, false
	}

	xMin, yMin := w, h
	xMax, yMax := 0, 0

	for _, p := range points {
		x := int(p.X * float64(w))
		y := int(p.Y * float64(h))
		xMin = min(xMin, x)
		yMin = min(yMin, y)
		xMax = max(xMax, x)
		yMax = max(yMax, y)
	}

	// Clamp to image. image.Rect would swap inverted corners, so build directly.
	r := image.Rectangle{
		Min: image.Pt(max(0, xMin), max(0, yMin)),
		Max: image.Pt(min(w, xMax), min(h, yMax)),
	}
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return image.Rectangle{}, false
	}
	return r, true
}

// Centroid returns the integer centre of a rectangle.
func Centroid(r image.Rectangle) image.Point {
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}
