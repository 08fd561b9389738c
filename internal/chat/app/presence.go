package app

import (
	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/presence"
	"direct_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// PresenceRegistry what the realtime components need from presence.Registry
type PresenceRegistry interface {
	Register(identity string, conn presence.Conn) presence.Token
	Unregister(identity string, token presence.Token) bool
	Lookup(identity string) (presence.Conn, bool)
	Broadcast(event domain.Event)
}

// emit best effort send, a failed send only costs the realtime shortcut
func emit(conn presence.Conn, event domain.Event) {
	if err := conn.Send(event); err != nil {
		logger.Log.Debug("emit dropped", zap.String("event", string(event.Name)), zap.Error(err))
	}
}
