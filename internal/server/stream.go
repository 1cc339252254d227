package server

import (
	"fmt"
	"net/http"

	"github.com/ayusman/shadowdepth/internal/app"
)

// Publisher fans out processed frames.
type Publisher interface {
	Subscribe(buffer int) (<-chan app.FrameResult, func())
}

// StreamHandler serves the annotated frames as MJPEG.
type StreamHandler struct {
	source Publisher
}

// NewStreamHandler creates a new StreamHandler over a frame publisher.
func NewStreamHandler(source Publisher) *StreamHandler {
	return &StreamHandler{source: source}
}

// ServeHTTP streams one JPEG part per published frame until the client
// goes away or the publisher shuts down.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frames, cancel := h.source.Subscribe(2)
	defer cancel()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case res, ok := <-frames:
			if !ok {
				return
			}
			if len(res.JPEG) == 0 {
				continue
			}

			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(res.JPEG))
			if _, err := w.Write(res.JPEG); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")

			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
