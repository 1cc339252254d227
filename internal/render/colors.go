// Package render draws the estimator's state onto frames for preview
// windows and the annotated stream.
package render

import "image/color"

// Colors used by the overlays. gocv converts them to BGR when drawing.
var (
	Red    = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	Green  = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	Blue   = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 0}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 0}
)
