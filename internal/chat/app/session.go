package app

import (
	"errors"
	"sync"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var (
	// ErrSessionClosed send after the connection went away
	ErrSessionClosed = errors.New("session closed")
	// ErrEgressFull the client is not reading fast enough
	ErrEgressFull = errors.New("egress buffer full")
)

// frameWriter the part of *websocket.Conn the write pump uses
type frameWriter interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

// wsSession one live connection. Send only enqueues, writePump is the single writer of the socket.
type wsSession struct {
	identity  string
	egress    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(identity string, buffer int) *wsSession {
	if buffer <= 0 {
		buffer = 1
	}
	return &wsSession{
		identity: identity,
		egress:   make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

// Send implements presence.Conn
func (s *wsSession) Send(event domain.Event) error {
	frame, err := event.Encode()
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.egress <- frame:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrEgressFull
	}
}

func (s *wsSession) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// writePump 負責寫出事件與定期 ping, 直到 session 關閉或寫入失敗
func (s *wsSession) writePump(w frameWriter, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.egress:
			if err := w.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Log.Warn("websocket write error", zap.String("identity", s.identity), zap.Error(err))
				s.close()
				return
			}
		case <-ticker.C:
			if err := w.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				logger.Log.Warn("websocket ping error", zap.String("identity", s.identity), zap.Error(err))
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}
