package app

import (
	"context"
	"strings"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"
	errprocess "direct_chat_service/pkg/err"
	"direct_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageUseCase 負責處理聊天訊息的 REST 路徑
type MessageUseCase interface {
	// History every message of the conversation oldest first, then the peer's messages are marked read.
	// The returned slice shows the statuses before that update.
	History(ctx context.Context, memberID, conversationID string) ([]domain.Message, error)
	// Create store a new message with status sent
	Create(ctx context.Context, memberID, conversationID, content string) (*domain.Message, error)
}

type messageUseCase struct {
	convRepo  repository.ConversationRepository
	msgRepo   repository.MessageRepository
	publisher repository.LifecyclePublisher
}

// NewMessageUseCase init message use case
func NewMessageUseCase(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	publisher repository.LifecyclePublisher,
) MessageUseCase {
	return &messageUseCase{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		publisher: publisher,
	}
}

func (uc *messageUseCase) History(ctx context.Context, memberID, conversationID string) ([]domain.Message, error) {
	conv, err := uc.participantConversation(ctx, memberID, conversationID)
	if err != nil {
		return nil, err
	}

	msgs, err := uc.msgRepo.FindByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	n, err := uc.msgRepo.MarkConversationRead(ctx, conversationID, memberID)
	if err != nil {
		logger.Log.Error("mark conversation read", zap.String("conversation_id", conversationID), zap.Error(err))
		return msgs, nil
	}
	if n > 0 {
		logger.Log.Debug("history marked read", zap.String("conversation_id", conversationID), zap.Int64("count", n))
		uc.syncReadPreview(ctx, conv, memberID)
	}
	return msgs, nil
}

// syncReadPreview the bulk read also covers the conversation's lastMessage when the peer sent it
func (uc *messageUseCase) syncReadPreview(ctx context.Context, conv *domain.Conversation, readerID string) {
	last := conv.LastMessage
	if last == nil || last.SenderID == readerID || last.Status == domain.StatusRead {
		return
	}
	read := *last
	read.Status = domain.StatusRead
	read.UpdatedAt = time.Now().UTC()
	if err := uc.convRepo.SyncLastMessage(ctx, conv.ID, &read); err != nil {
		logger.Log.Error("sync last message", zap.String("conversation_id", conv.ID), zap.Error(err))
	}
}

func (uc *messageUseCase) Create(ctx context.Context, memberID, conversationID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	if _, err := uc.participantConversation(ctx, memberID, conversationID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       memberID,
		Content:        content,
		Status:         domain.StatusSent,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.msgRepo.Create(ctx, msg); err != nil {
		return nil, errprocess.Wrap("store message", err, zap.String("conversation_id", conversationID))
	}
	if err := uc.convRepo.SetLastMessage(ctx, conversationID, msg); err != nil {
		logger.Log.Error("set last message", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	if err := uc.publisher.Publish(ctx, domain.LifecycleEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		To:             domain.StatusSent,
		At:             now,
	}); err != nil {
		logger.Log.Error("publish lifecycle", zap.String("message_id", msg.ID), zap.Error(err))
	}
	return msg, nil
}

func (uc *messageUseCase) participantConversation(ctx context.Context, memberID, conversationID string) (*domain.Conversation, error) {
	conv, err := uc.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(memberID) {
		return nil, domain.ErrNotParticipant
	}
	return conv, nil
}
