package render

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/shadowdepth/internal/depth"
	"github.com/ayusman/shadowdepth/internal/detector"
)

// DefaultJPEGQuality is used for streamed frames.
const DefaultJPEGQuality = 80

// Annotate composes the full presentation of one frame: the shadow tint
// inside the face box (when a mask is given) and then the box/panel overlay.
// frame is not modified. The caller closes the returned Mat.
func Annotate(frame gocv.Mat, p detector.Perception, shadowMask *gocv.Mat, est depth.Estimate) gocv.Mat {
	base := frame.Clone()
	defer base.Close()

	if face, ok := p.FaceRegion(); ok && shadowMask != nil {
		OverlayShadow(&base, face, *shadowMask)
	}
	return DrawOverlay(base, p, est)
}

// EncodeJPEG encodes img as JPEG bytes.
func EncodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	if img.Empty() {
		return nil, fmt.Errorf("encode jpeg: empty image")
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory that Close frees
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// DecodeJPEG decodes JPEG (or any format OpenCV reads) bytes into a BGR Mat.
func DecodeJPEG(data []byte) (gocv.Mat, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return img, fmt.Errorf("decode image: %w", err)
	}
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("decode image: no data")
	}
	return img, nil
}

// Bounds returns the image rectangle covering m.
func Bounds(m gocv.Mat) image.Rectangle {
	return image.Rect(0, 0, m.Cols(), m.Rows())
}
