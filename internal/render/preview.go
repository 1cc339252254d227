package render

import (
	"gocv.io/x/gocv"
)

// Window titles of the live preview.
const (
	MainWindowTitle    = "Shadow Depth Action Recognition"
	HeatmapWindowTitle = "Shadow Intensity Heatmap"
)

// Preview shows annotated frames and the heatmap in two desktop windows.
type Preview struct {
	main    *gocv.Window
	heatmap *gocv.Window
}

// NewPreview opens the preview windows.
func NewPreview() *Preview {
	return &Preview{
		main:    gocv.NewWindow(MainWindowTitle),
		heatmap: gocv.NewWindow(HeatmapWindowTitle),
	}
}

// Show displays one frame and its heatmap and pumps the window events.
// It returns false once the user pressed q or closed the main window.
func (p *Preview) Show(frame gocv.Mat, intensityDrop float64) bool {
	if !frame.Empty() {
		p.main.IMShow(frame)
	}

	hm := Heatmap(intensityDrop)
	p.heatmap.IMShow(hm)
	hm.Close()

	key := p.main.WaitKey(1)
	if key&0xFF == 'q' {
		return false
	}
	return p.main.IsOpen()
}

// Close destroys both windows.
func (p *Preview) Close() error {
	p.heatmap.Close()
	return p.main.Close()
}
