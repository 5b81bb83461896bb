package web

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// stream is a websocket connection with serialised writes.
type stream struct {
	socket *websocket.Conn
	mu     sync.Mutex
	closed atomic.Bool
}

func (s *stream) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return s.socket.WriteJSON(v)
}

func (s *stream) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.socket.Close()
}

// handleEvents pushes a display model for every state change until the
// client disconnects.
func (s *Server) handleEvents(c *gin.Context) {
	socket, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := &stream{socket: socket}
	defer conn.Close()

	updates, unsubscribe := s.pipeline.Subscribe(8)
	defer unsubscribe()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		_ = socket.SetReadDeadline(time.Now().Add(pongWait))
		socket.SetPongHandler(func(string) error {
			return socket.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := socket.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case state, ok := <-updates:
			if !ok {
				_ = conn.writeClose()
				return
			}
			if err := conn.writeJSON(s.presenter.Present(state)); err != nil {
				s.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

func (s *stream) writeClose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
	return s.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
