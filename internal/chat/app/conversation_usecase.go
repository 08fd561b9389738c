package app

import (
	"context"
	"errors"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"
	"direct_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationUseCase list and open two party conversations
type ConversationUseCase interface {
	// List newest first, each with the caller's unread count
	List(ctx context.Context, memberID string) ([]domain.Conversation, error)
	// Open existing conversation with recipient, or a new one
	Open(ctx context.Context, memberID, recipientID string) (*domain.Conversation, error)
}

type conversationUseCase struct {
	convRepo   repository.ConversationRepository
	msgRepo    repository.MessageRepository
	memberRepo repository.MemberRepository
}

// NewConversationUseCase create ConversationUseCase
func NewConversationUseCase(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	memberRepo repository.MemberRepository,
) ConversationUseCase {
	return &conversationUseCase{
		convRepo:   convRepo,
		msgRepo:    msgRepo,
		memberRepo: memberRepo,
	}
}

func (uc *conversationUseCase) List(ctx context.Context, memberID string) ([]domain.Conversation, error) {
	convs, err := uc.convRepo.FindByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []domain.Conversation{}, nil
	}

	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	unread, err := uc.msgRepo.CountUnreadByConversation(ctx, memberID, ids)
	if err != nil {
		// 未讀數失敗不影響列表
		logger.Log.Error("count unread", zap.String("member_id", memberID), zap.Error(err))
		return convs, nil
	}

	counts := make(map[string]int, len(unread))
	for _, u := range unread {
		counts[u.ConversationID] = u.UnreadCount
	}
	for i := range convs {
		convs[i].UnreadCount = counts[convs[i].ID]
	}
	return convs, nil
}

func (uc *conversationUseCase) Open(ctx context.Context, memberID, recipientID string) (*domain.Conversation, error) {
	if recipientID == "" || recipientID == memberID {
		return nil, domain.ErrInvalidRecipient
	}
	if _, err := uc.memberRepo.FindByMember(ctx, &domain.MemberQuery{MemberID: &recipientID}); err != nil {
		if errors.Is(err, domain.ErrMemberNotFound) {
			return nil, domain.ErrInvalidRecipient
		}
		return nil, err
	}

	conv, err := uc.convRepo.FindByParticipants(ctx, memberID, recipientID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, domain.ErrConversationNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	conv = &domain.Conversation{
		ID:           uuid.New().String(),
		Participants: []string{memberID, recipientID},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.convRepo.Create(ctx, conv); err != nil {
		return nil, err
	}
	logger.Log.Info("conversation created", zap.String("conversation_id", conv.ID))
	return conv, nil
}
