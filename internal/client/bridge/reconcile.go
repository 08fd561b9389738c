package bridge

import (
	"context"
	"errors"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/client/store"
	"direct_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// ReadEmitter sends read receipts back to the server
type ReadEmitter interface {
	MarkRead(ctx context.Context, messageID, conversationID string) error
}

// Reconciler applies inbound events to the ConversationStore
type Reconciler struct {
	store   *store.ConversationStore
	selfID  string
	emitter ReadEmitter
}

var _ Inbound = (*Reconciler)(nil)

// NewReconciler create a Reconciler for selfID, call Attach before read receipts can be sent
func NewReconciler(st *store.ConversationStore, selfID string) *Reconciler {
	return &Reconciler{store: st, selfID: selfID}
}

// Attach set where read receipts go, usually the ConnectionBridge that feeds this Reconciler
func (r *Reconciler) Attach(emitter ReadEmitter) {
	r.emitter = emitter
}

// OnlineUsers snapshot
func (r *Reconciler) OnlineUsers(identities []string) {
	r.store.SetOnlineUsers(identities)
}

// UserStatus delta
func (r *Reconciler) UserStatus(p domain.UserStatusPayload) {
	if p.UserID == "" {
		return
	}
	r.store.UpdateUserStatus(p.UserID, p.Status == domain.PresenceOnline)
}

// NewMessage echo of our own message or a message from the peer.
// A peer message landing in the active conversation is read right away.
func (r *Reconciler) NewMessage(p domain.NewMessagePayload) {
	if p.Message == nil {
		return
	}
	msg := *p.Message
	r.store.AddMessage(msg)

	if msg.SenderID == r.selfID || msg.Status == domain.StatusRead {
		return
	}
	if msg.ConversationID != r.store.ActiveID() {
		return
	}
	r.markRead(msg)
}

func (r *Reconciler) markRead(msg domain.Message) {
	if r.emitter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultWriteTimeout)
	defer cancel()
	if err := r.emitter.MarkRead(ctx, msg.ID, msg.ConversationID); err != nil && !errors.Is(err, ErrNotConnected) {
		logger.Log.Warn("send message_read", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

// ConversationUpdated summary change
func (r *Reconciler) ConversationUpdated(p domain.ConversationUpdatedPayload) {
	r.store.UpdateConversation(p.ConversationID, p.LastMessage)
}

// Typing the peer started typing
func (r *Reconciler) Typing(p domain.TypingPayload) {
	if p.SenderID == "" {
		return
	}
	r.store.SetTyping(p.SenderID, true)
}

// StopTyping the peer stopped typing
func (r *Reconciler) StopTyping(p domain.TypingPayload) {
	if p.SenderID == "" {
		return
	}
	r.store.SetTyping(p.SenderID, false)
}

// MessageRead receipt for one of our messages
func (r *Reconciler) MessageRead(p domain.MessageReadPayload) {
	r.store.UpdateMessageStatus(p.ConversationID, p.MessageID, domain.StatusRead)
}
