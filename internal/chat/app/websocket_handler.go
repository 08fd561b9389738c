package app

import (
	"context"
	"encoding/json"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/pkg/config"
	"direct_chat_service/pkg/logger"
	"direct_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// QueryUserID optional handshake parameter, must agree with the token
const QueryUserID = "userId"

// inboundHandler one client -> server event kind
type inboundHandler func(h *ChatWebsocketHandler, ctx context.Context, identity string, data json.RawMessage) error

// inboundHandlers server-only events (online_users, user_status, conversation_updated) are ignored
var inboundHandlers = map[domain.EventName]inboundHandler{
	domain.EventNewMessage:  (*ChatWebsocketHandler).onNewMessage,
	domain.EventMessageRead: (*ChatWebsocketHandler).onMessageRead,
	domain.EventTyping:      (*ChatWebsocketHandler).onTyping,
	domain.EventStopTyping:  (*ChatWebsocketHandler).onStopTyping,
}

// ChatWebsocketHandler 處理 /ws 連線
type ChatWebsocketHandler struct {
	presence     PresenceRegistry
	coordinator  *DeliveryCoordinator
	typing       *TypingRelay
	pingInterval time.Duration
	egressBuffer int
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(
	presence PresenceRegistry,
	coordinator *DeliveryCoordinator,
	typing *TypingRelay,
	wsCfg config.WebsocketConfig,
) *ChatWebsocketHandler {
	if wsCfg.PingInterval <= 0 {
		wsCfg.PingInterval = 30 * time.Second
	}
	return &ChatWebsocketHandler{
		presence:     presence,
		coordinator:  coordinator,
		typing:       typing,
		pingInterval: wsCfg.PingInterval,
		egressBuffer: wsCfg.EgressBuffer,
	}
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	memberID, _ := conn.Locals(middlewares.TokenMemberID).(string)
	if memberID == "" {
		closeWebSocketConnection(conn, websocket.ClosePolicyViolation, "missing identity")
		return
	}
	if q := conn.Query(QueryUserID); q != "" && q != memberID {
		logger.Log.Warn("websocket identity mismatch", zap.String("token", memberID), zap.String("query", q))
		closeWebSocketConnection(conn, websocket.ClosePolicyViolation, "identity mismatch")
		return
	}

	//client發出close, fiber會在read msg 回傳err, 這裡只做紀錄
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Info("websocket close frame", zap.String("identity", memberID), zap.Int("code", code), zap.String("text", text))
		return nil
	})

	//server發出ping之後client連線正常會回pong
	conn.SetPongHandler(func(appData string) error {
		logger.Log.Debug("received pong", zap.String("identity", memberID))
		return nil
	})

	// 連線斷了就取消還在跑的 dispatch, 寫入失敗也算斷線
	ctx, cancel := context.WithCancel(ctx)
	sess := newSession(memberID, h.egressBuffer)
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		defer cancel()
		sess.writePump(conn, h.pingInterval)
	}()

	token := h.presence.Register(memberID, sess)
	logger.Log.Info("websocket connected", zap.String("identity", memberID), zap.Uint64("token", uint64(token)))

	defer func() {
		cancel()
		h.presence.Unregister(memberID, token)
		sess.close()
		<-pumpDone
		conn.Close()
		logger.Log.Info("websocket close", zap.String("identity", memberID))
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Info("connection closed", zap.String("identity", memberID))
			} else {
				//直接斷線 1006
				logger.Log.Warn("websocket read error", zap.String("identity", memberID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			logger.Log.Debug("non text frame ignored", zap.String("identity", memberID), zap.Int("type", mt))
			continue
		}
		h.dispatch(ctx, memberID, message)
	}
}

// dispatch decode one frame and run its handler, malformed or unknown frames are logged and dropped
func (h *ChatWebsocketHandler) dispatch(ctx context.Context, identity string, frame []byte) {
	env, err := domain.DecodeEnvelope(frame)
	if err != nil {
		logger.Log.Warn("malformed frame", zap.String("identity", identity), zap.Error(err))
		return
	}

	handler, ok := inboundHandlers[env.Event]
	if !ok {
		logger.Log.Debug("unhandled event", zap.String("identity", identity), zap.String("event", string(env.Event)))
		return
	}
	if err := handler(h, ctx, identity, env.Data); err != nil {
		logger.Log.Warn("event dropped", zap.String("identity", identity), zap.String("event", string(env.Event)), zap.Error(err))
	}
}

func (h *ChatWebsocketHandler) onNewMessage(ctx context.Context, identity string, data json.RawMessage) error {
	var req domain.NewMessagePayload
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	h.coordinator.Send(ctx, identity, req)
	return nil
}

func (h *ChatWebsocketHandler) onMessageRead(ctx context.Context, identity string, data json.RawMessage) error {
	var req domain.MessageReadPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	h.coordinator.Read(ctx, identity, req)
	return nil
}

func (h *ChatWebsocketHandler) onTyping(_ context.Context, identity string, data json.RawMessage) error {
	var req domain.TypingPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	h.typing.Typing(identity, req)
	return nil
}

func (h *ChatWebsocketHandler) onStopTyping(_ context.Context, identity string, data json.RawMessage) error {
	var req domain.TypingPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	h.typing.StopTyping(identity, req)
	return nil
}

func closeWebSocketConnection(conn *websocket.Conn, code int, reason string) {
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait)); err != nil {
		logger.Log.Warn("failed to send close message", zap.Error(err))
	}
	conn.Close()
}
