package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"
	"direct_chat_service/pkg/config"
	"direct_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// DeliveryCoordinator 負責訊息狀態 sent -> delivered -> read 與事件派送
//
// Every failure is logged and the event dropped, the REST history stays authoritative.
// Lifecycle events are queued and published by one background loop, in transition order,
// so a slow broker never holds up a connection's read loop.
type DeliveryCoordinator struct {
	msgRepo   repository.MessageRepository
	convRepo  repository.ConversationRepository
	presence  PresenceRegistry
	publisher repository.LifecyclePublisher
	policy    config.DeliveryConfig

	lifecycle chan domain.LifecycleEvent
	qmu       sync.Mutex
	closed    bool
	done      chan struct{}
}

// NewDeliveryCoordinator create DeliveryCoordinator
func NewDeliveryCoordinator(
	msgRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
	presence PresenceRegistry,
	publisher repository.LifecyclePublisher,
	policy config.DeliveryConfig,
) *DeliveryCoordinator {
	if policy.PublishTimeout <= 0 {
		policy.PublishTimeout = 5 * time.Second
	}
	if policy.PublishBuffer <= 0 {
		policy.PublishBuffer = 256
	}
	d := &DeliveryCoordinator{
		msgRepo:   msgRepo,
		convRepo:  convRepo,
		presence:  presence,
		publisher: publisher,
		policy:    policy,
		lifecycle: make(chan domain.LifecycleEvent, policy.PublishBuffer),
		done:      make(chan struct{}),
	}
	go d.publishLoop()
	return d
}

// Close stop accepting lifecycle events and wait until the queued ones are published
func (d *DeliveryCoordinator) Close() {
	d.qmu.Lock()
	if !d.closed {
		d.closed = true
		close(d.lifecycle)
	}
	d.qmu.Unlock()
	<-d.done
}

func (d *DeliveryCoordinator) publishLoop() {
	defer close(d.done)
	for event := range d.lifecycle {
		ctx, cancel := context.WithTimeout(context.Background(), d.policy.PublishTimeout)
		if err := d.publisher.Publish(ctx, event); err != nil {
			logger.Log.Error("publish lifecycle", zap.String("message_id", event.MessageID), zap.String("status", string(event.To)), zap.Error(err))
		}
		cancel()
	}
}

// enqueue never blocks, a full queue drops the event
func (d *DeliveryCoordinator) enqueue(event domain.LifecycleEvent) {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	if d.closed {
		logger.Log.Warn("lifecycle event after close", zap.String("message_id", event.MessageID))
		return
	}
	select {
	case d.lifecycle <- event:
	default:
		logger.Log.Warn("lifecycle queue full, event dropped", zap.String("message_id", event.MessageID), zap.String("status", string(event.To)))
	}
}

// Send relay a message the sender already stored through the REST api
func (d *DeliveryCoordinator) Send(ctx context.Context, sender string, req domain.NewMessagePayload) {
	if req.Message == nil || req.Message.ID == "" {
		logger.Log.Warn("new_message without message id", zap.String("sender", sender))
		return
	}

	stored, err := d.msgRepo.FindByID(ctx, req.Message.ID)
	if err != nil {
		d.logLookupError("new_message", req.Message.ID, err)
		return
	}
	if stored.SenderID != sender {
		logger.Log.Warn("new_message sender mismatch",
			zap.String("identity", sender),
			zap.String("sender", stored.SenderID),
			zap.String("message_id", stored.ID),
		)
		return
	}

	conv, err := d.convRepo.FindByID(ctx, stored.ConversationID)
	if err != nil {
		logger.Log.Error("new_message conversation lookup", zap.String("conversation_id", stored.ConversationID), zap.Error(err))
		return
	}
	// 收件者以 conversation 為準, 不信任 client 帶的 receiverId
	receiver := conv.Peer(sender)
	if receiver == "" {
		logger.Log.Warn("new_message sender is not a participant", zap.String("sender", sender), zap.String("conversation_id", conv.ID))
		return
	}
	if req.ReceiverID != "" && req.ReceiverID != receiver {
		logger.Log.Debug("new_message receiverId ignored", zap.String("receiver_id", req.ReceiverID), zap.String("peer", receiver))
	}

	receiverConn, online := d.presence.Lookup(receiver)

	target := domain.StatusDelivered
	if d.policy.RequireOnlineReceiver && !online {
		target = domain.StatusSent
	}

	msg, err := d.advance(ctx, stored, target)
	if err != nil {
		logger.Log.Error("mark delivered", zap.String("message_id", stored.ID), zap.Error(err))
		return
	}

	event := domain.Event{Name: domain.EventNewMessage, Data: domain.NewMessagePayload{Message: msg}}
	if senderConn, ok := d.presence.Lookup(sender); ok {
		emit(senderConn, event)
	}
	if online {
		emit(receiverConn, event)
	}

	d.conversationUpdated(conv, msg)
}

// Read the reader has the message on screen
func (d *DeliveryCoordinator) Read(ctx context.Context, reader string, req domain.MessageReadPayload) {
	if req.MessageID == "" {
		logger.Log.Warn("message_read without message id", zap.String("reader", reader))
		return
	}

	stored, err := d.msgRepo.FindByID(ctx, req.MessageID)
	if err != nil {
		d.logLookupError("message_read", req.MessageID, err)
		return
	}
	if stored.SenderID == reader {
		return
	}

	conv, err := d.convRepo.FindByID(ctx, stored.ConversationID)
	if err != nil {
		logger.Log.Error("message_read conversation lookup", zap.String("conversation_id", stored.ConversationID), zap.Error(err))
		return
	}
	if !conv.HasParticipant(reader) {
		logger.Log.Warn("message_read from non participant", zap.String("reader", reader), zap.String("message_id", stored.ID))
		return
	}

	// read 之前一定要先記錄 delivered
	msg := stored
	if msg.Status == domain.StatusSent {
		if msg, err = d.advance(ctx, msg, domain.StatusDelivered); err != nil {
			logger.Log.Error("mark delivered before read", zap.String("message_id", stored.ID), zap.Error(err))
			return
		}
	}
	if msg, err = d.advance(ctx, msg, domain.StatusRead); err != nil {
		logger.Log.Error("mark read", zap.String("message_id", stored.ID), zap.Error(err))
		return
	}

	if senderConn, ok := d.presence.Lookup(msg.SenderID); ok {
		emit(senderConn, domain.Event{
			Name: domain.EventMessageRead,
			Data: domain.MessageReadPayload{MessageID: msg.ID, ConversationID: msg.ConversationID},
		})
	}
}

// advance persist msg at status to when it is still below it
func (d *DeliveryCoordinator) advance(ctx context.Context, msg *domain.Message, to domain.MessageStatus) (*domain.Message, error) {
	if !msg.Status.Before(to) {
		return msg, nil
	}

	updated, err := d.msgRepo.AdvanceStatus(ctx, msg.ID, to)
	if err != nil {
		return nil, err
	}
	if updated.Status != to {
		// 別的連線已經推得更前面了
		return updated, nil
	}

	if err := d.convRepo.SyncLastMessage(ctx, updated.ConversationID, updated); err != nil {
		logger.Log.Error("sync last message", zap.String("conversation_id", updated.ConversationID), zap.Error(err))
	}

	d.enqueue(domain.LifecycleEvent{
		MessageID:      updated.ID,
		ConversationID: updated.ConversationID,
		SenderID:       updated.SenderID,
		From:           msg.Status,
		To:             to,
		At:             time.Now().UTC(),
	})
	return updated, nil
}

func (d *DeliveryCoordinator) conversationUpdated(conv *domain.Conversation, msg *domain.Message) {
	event := domain.Event{
		Name: domain.EventConversationUpdated,
		Data: domain.ConversationUpdatedPayload{ConversationID: conv.ID, LastMessage: msg},
	}

	if d.policy.BroadcastConversationUpdates {
		d.presence.Broadcast(event)
		return
	}
	for _, p := range conv.Participants {
		if c, ok := d.presence.Lookup(p); ok {
			emit(c, event)
		}
	}
}

func (d *DeliveryCoordinator) logLookupError(event, messageID string, err error) {
	if errors.Is(err, domain.ErrMessageNotFound) {
		logger.Log.Debug(event+" for unknown message", zap.String("message_id", messageID))
		return
	}
	logger.Log.Error(event+" message lookup", zap.String("message_id", messageID), zap.Error(err))
}
