package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sinvec/gimp-kandinsky/coordinator"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the server binds to loopback for a local editor plugin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleProgressStream pushes the progress response for ?token= every
// ProgressInterval. The stream ends with a close frame once the worker is
// listening, when the client goes away, or when the server stops.
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	defer conn.Close()

	log := s.logger.With(zap.String("token", token))
	log.Debug("Progress stream opened")

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(s.config.ProgressInterval)
	defer ticker.Stop()

	for {
		p := s.coord.Progress(token)
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(p); err != nil {
			log.Debug("Progress stream write failed", zap.Error(err))
			return
		}
		if p.Status == coordinator.StatusListening {
			closeStream(conn, websocket.CloseNormalClosure, "job finished")
			log.Debug("Progress stream finished")
			return
		}

		select {
		case <-ticker.C:
		case <-closed:
			log.Debug("Progress stream closed by client")
			return
		case <-r.Context().Done():
			closeStream(conn, websocket.CloseGoingAway, "server stopping")
			return
		}
	}
}

// readPump consumes control frames until the peer closes the connection.
// Clients never send data on this stream.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(wsMaxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeStream(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
