package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/shadowdepth/internal/log"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EstimatesHandler pushes every frame result as JSON over a WebSocket.
type EstimatesHandler struct {
	source Publisher
}

// NewEstimatesHandler creates a new EstimatesHandler over a frame publisher.
func NewEstimatesHandler(source Publisher) *EstimatesHandler {
	return &EstimatesHandler{source: source}
}

// ServeHTTP upgrades the connection and writes results until either side
// closes. Each client has its own subscription, so a slow client only
// drops its own frames.
func (h *EstimatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	results, cancel := h.source.Subscribe(8)
	defer cancel()

	// the read loop only notices the client closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case res, ok := <-results:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(res); err != nil {
				log.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
