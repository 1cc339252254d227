package render

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Heatmap dimensions.
const (
	HeatmapWidth  = 300
	HeatmapHeight = 200
)

// Heatmap renders the intensity drop as a horizontal bar. The bar grows with
// the drop and shifts from red to green. The caller closes the returned Mat.
func Heatmap(intensityDrop float64) gocv.Mat {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), HeatmapHeight, HeatmapWidth, gocv.MatTypeCV8UC3)

	val := int(intensityDrop * 255)
	if val < 0 {
		val = 0
	}
	if val > 255 {
		val = 255
	}

	width := int(HeatmapWidth * intensityDrop)
	if width > HeatmapWidth {
		width = HeatmapWidth
	}
	if width > 0 {
		bar := gocv.NewScalar(0, float64(val), float64(255-val), 0)
		region := img.Region(image.Rect(0, 50, width, 150))
		region.SetTo(bar)
		region.Close()
	}

	gocv.PutText(&img, fmt.Sprintf("Shadow Intensity: %.2f", intensityDrop), image.Pt(10, 30),
		gocv.FontHersheySimplex, 0.7, White, lineThickness)
	return img
}
