package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/pkg/logger"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	// Path websocket endpoint of the chat service
	Path = "/ws"
	// DefaultWriteTimeout bound of one outbound frame
	DefaultWriteTimeout = 5 * time.Second

	readLimit = 1 << 20
)

var (
	// ErrNotConnected outbound intent while there is no live connection, the intent is dropped
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected Connect on a bridge that already holds a connection
	ErrAlreadyConnected = errors.New("already connected")
)

// Inbound 接收 server 推來的事件, 每個事件同步處理, 順序即傳輸順序
type Inbound interface {
	OnlineUsers(identities []string)
	UserStatus(p domain.UserStatusPayload)
	NewMessage(p domain.NewMessagePayload)
	ConversationUpdated(p domain.ConversationUpdatedPayload)
	Typing(p domain.TypingPayload)
	StopTyping(p domain.TypingPayload)
	MessageRead(p domain.MessageReadPayload)
}

type inboundHandler func(in Inbound, data json.RawMessage) error

// on decode the payload into T and hand it to fn
func on[T any](fn func(Inbound, T)) inboundHandler {
	return func(in Inbound, data json.RawMessage) error {
		var p T
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		fn(in, p)
		return nil
	}
}

var inboundHandlers = map[domain.EventName]inboundHandler{
	domain.EventOnlineUsers:         on(Inbound.OnlineUsers),
	domain.EventUserStatus:          on(Inbound.UserStatus),
	domain.EventNewMessage:          on(Inbound.NewMessage),
	domain.EventConversationUpdated: on(Inbound.ConversationUpdated),
	domain.EventTyping:              on(Inbound.Typing),
	domain.EventStopTyping:          on(Inbound.StopTyping),
	domain.EventMessageRead:         on(Inbound.MessageRead),
}

// ConnectionBridge 一個登入 session 對應一條 realtime 連線
type ConnectionBridge struct {
	wsURL        string
	token        string
	selfID       string
	inbound      Inbound
	writeTimeout time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// New create a bridge for serverURL (http or ws scheme), authenticated by token
func New(serverURL, token, selfID string, inbound Inbound) *ConnectionBridge {
	return &ConnectionBridge{
		wsURL:        websocketURL(serverURL),
		token:        token,
		selfID:       selfID,
		inbound:      inbound,
		writeTimeout: DefaultWriteTimeout,
	}
}

func websocketURL(serverURL string) string {
	u := strings.TrimRight(serverURL, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + Path
}

// Connect dial the server, identity is handed over as the userId handshake parameter
func (b *ConnectionBridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.conn != nil {
		b.mu.Unlock()
		return ErrAlreadyConnected
	}
	b.mu.Unlock()

	q := url.Values{}
	q.Set("auth", b.token)
	q.Set("userId", b.selfID)

	conn, _, err := websocket.Dial(ctx, b.wsURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(readLimit)

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	b.mu.Lock()
	b.conn = conn
	b.cancel = cancel
	b.done = done
	b.mu.Unlock()

	logger.Log.Info("realtime connected", zap.String("url", b.wsURL), zap.String("user_id", b.selfID))

	go b.readLoop(loopCtx, conn, done)
	return nil
}

// Done closed once the current connection is gone, nil before Connect
func (b *ConnectionBridge) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Connected there is a live connection
func (b *ConnectionBridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Close tear the connection down, used on logout and exit
func (b *ConnectionBridge) Close() error {
	b.mu.Lock()
	conn, cancel := b.conn, b.cancel
	b.conn, b.cancel = nil, nil
	b.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close(websocket.StatusNormalClosure, "client disconnect")
	cancel()
	return err
}

func (b *ConnectionBridge) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	defer func() {
		b.mu.Lock()
		if b.conn == conn {
			b.conn = nil
			if b.cancel != nil {
				b.cancel()
				b.cancel = nil
			}
		}
		b.mu.Unlock()
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				logger.Log.Info("realtime closed")
			} else {
				logger.Log.Warn("realtime read", zap.Int("close_status", int(status)), zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		b.dispatch(data)
	}
}

// dispatch decode one frame and run its handler; unknown events and bad payloads are logged and dropped
func (b *ConnectionBridge) dispatch(frame []byte) {
	env, err := domain.DecodeEnvelope(frame)
	if err != nil {
		logger.Log.Warn("invalid realtime frame", zap.Error(err))
		return
	}
	handler, ok := inboundHandlers[env.Event]
	if !ok {
		logger.Log.Debug("unknown realtime event", zap.String("event", string(env.Event)))
		return
	}
	if err := handler(b.inbound, env.Data); err != nil {
		logger.Log.Warn("invalid realtime payload", zap.String("event", string(env.Event)), zap.Error(err))
	}
}

// SendMessage relay a message that was already stored through the REST api
func (b *ConnectionBridge) SendMessage(ctx context.Context, msg *domain.Message, receiverID string) error {
	return b.emit(ctx, domain.Event{
		Name: domain.EventNewMessage,
		Data: domain.NewMessagePayload{Message: msg, ReceiverID: receiverID},
	})
}

// Typing tell receiverID we are typing in conversationID
func (b *ConnectionBridge) Typing(ctx context.Context, conversationID, receiverID string) error {
	return b.emit(ctx, domain.Event{
		Name: domain.EventTyping,
		Data: domain.TypingPayload{ConversationID: conversationID, ReceiverID: receiverID},
	})
}

// StopTyping tell receiverID we stopped typing
func (b *ConnectionBridge) StopTyping(ctx context.Context, conversationID, receiverID string) error {
	return b.emit(ctx, domain.Event{
		Name: domain.EventStopTyping,
		Data: domain.TypingPayload{ConversationID: conversationID, ReceiverID: receiverID},
	})
}

// MarkRead report that messageID is visible
func (b *ConnectionBridge) MarkRead(ctx context.Context, messageID, conversationID string) error {
	return b.emit(ctx, domain.Event{
		Name: domain.EventMessageRead,
		Data: domain.MessageReadPayload{MessageID: messageID, ConversationID: conversationID},
	})
}

// emit 沒有連線就直接丟掉, 不排隊
func (b *ConnectionBridge) emit(ctx context.Context, event domain.Event) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()

	if conn == nil {
		logger.Log.Debug("drop outbound event, not connected", zap.String("event", string(event.Name)))
		return ErrNotConnected
	}

	frame, err := event.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("write %s: %w", event.Name, err)
	}
	return nil
}
