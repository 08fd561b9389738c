package app

import (
	"context"
	"io"
	"time"

	"direct_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Create mock create message
func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// FindByID mock find message by id
func (m *MockMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByConversation mock history
func (m *MockMessageRepository) FindByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// AdvanceStatus mock status update
func (m *MockMessageRepository) AdvanceStatus(ctx context.Context, messageID string, status domain.MessageStatus) (*domain.Message, error) {
	args := m.Called(ctx, messageID, status)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkConversationRead mock bulk read
func (m *MockMessageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	args := m.Called(ctx, conversationID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

// CountUnreadByConversation mock unread counts
func (m *MockMessageRepository) CountUnreadByConversation(ctx context.Context, readerID string, conversationIDs []string) ([]domain.ConversationUnreadInfo, error) {
	args := m.Called(ctx, readerID, conversationIDs)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.ConversationUnreadInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockConversationRepository Mock ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

// Create mock create conversation
func (m *MockConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

// FindByID mock find conversation
func (m *MockConversationRepository) FindByID(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByParticipants mock find by pair
func (m *MockConversationRepository) FindByParticipants(ctx context.Context, memberA, memberB string) (*domain.Conversation, error) {
	args := m.Called(ctx, memberA, memberB)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByMember mock list
func (m *MockConversationRepository) FindByMember(ctx context.Context, memberID string) ([]domain.Conversation, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// SetLastMessage mock summary update
func (m *MockConversationRepository) SetLastMessage(ctx context.Context, conversationID string, msg *domain.Message) error {
	args := m.Called(ctx, conversationID, msg)
	return args.Error(0)
}

// SyncLastMessage mock summary status sync
func (m *MockConversationRepository) SyncLastMessage(ctx context.Context, conversationID string, msg *domain.Message) error {
	args := m.Called(ctx, conversationID, msg)
	return args.Error(0)
}

// MockMemberRepo Mock MemberRepository
type MockMemberRepo struct {
	mock.Mock
}

// CreateMember mock create
func (m *MockMemberRepo) CreateMember(ctx context.Context, member *domain.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

// UpdateMemberStatus mock status
func (m *MockMemberRepo) UpdateMemberStatus(ctx context.Context, member *domain.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

// UpdateAvatar mock avatar key
func (m *MockMemberRepo) UpdateAvatar(ctx context.Context, memberID, avatarKey string) error {
	args := m.Called(ctx, memberID, avatarKey)
	return args.Error(0)
}

// FindByMember mock query
func (m *MockMemberRepo) FindByMember(ctx context.Context, memberQuery *domain.MemberQuery) (*domain.Member, error) {
	args := m.Called(ctx, memberQuery)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Member), args.Error(1)
	}
	return nil, args.Error(1)
}

// Search mock search
func (m *MockMemberRepo) Search(ctx context.Context, keyword, excludeID string, limit int) ([]domain.Member, error) {
	args := m.Called(ctx, keyword, excludeID, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Member), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRedisRepo 針對 MemberSession 的 Mock
type MockRedisRepo struct {
	mock.Mock
}

// Set 模擬 Redis Set 操作
func (m *MockRedisRepo) Set(ctx context.Context, key string, value domain.MemberSession, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// Get 模擬 Redis Get 操作
func (m *MockRedisRepo) Get(ctx context.Context, key string) (domain.MemberSession, error) {
	args := m.Called(ctx, key)
	if args.Get(0) != nil {
		return args.Get(0).(domain.MemberSession), args.Error(1)
	}
	return domain.MemberSession{}, args.Error(1)
}

// Del 模擬 Redis Del 操作
func (m *MockRedisRepo) Del(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// GetTTL 模擬 Redis TTL 操作
func (m *MockRedisRepo) GetTTL(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

// ExtendTTL 模擬 Redis ExtendTTL 操作
func (m *MockRedisRepo) ExtendTTL(ctx context.Context, key string, ttl time.Duration) error {
	args := m.Called(ctx, key, ttl)
	return args.Error(0)
}

// MockAvatarStorage Mock AvatarStorage
type MockAvatarStorage struct {
	mock.Mock
}

// Upload mock upload
func (m *MockAvatarStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, key, r, size, contentType)
	return args.Error(0)
}

// URL mock presign
func (m *MockAvatarStorage) URL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// MockLifecyclePublisher Mock LifecyclePublisher
type MockLifecyclePublisher struct {
	mock.Mock
}

// Publish mock publish
func (m *MockLifecyclePublisher) Publish(ctx context.Context, event domain.LifecycleEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// Close mock close
func (m *MockLifecyclePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
