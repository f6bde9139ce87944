package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage wraps every frame on the status stream.
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// handleWS streams the session's round status at tick cadence so clients can
// animate the multiplier without polling. One connection serves one player.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess := s.session(playerID(r, ""))

	// Drain client frames; the read failing is how we learn the peer is gone.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := s.cfg.TickInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := conn.WriteJSON(wsMessage{Type: "status", Data: sess.Status()}); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(wsMessage{Type: "status", Data: sess.Status()}); err != nil {
				return
			}
		}
	}
}
