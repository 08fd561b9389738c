package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"
	"direct_chat_service/pkg/database"
	"direct_chat_service/pkg/encrypt"
	errprocess "direct_chat_service/pkg/err"
	"direct_chat_service/pkg/logger"
	token "direct_chat_service/pkg/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SearchLimit max members returned by Search
const SearchLimit = 10

// AuthResult token plus the caller's own profile
type AuthResult struct {
	Token  string               `json:"token"`
	Member domain.MemberProfile `json:"user"`
}

// MemberUseCase 這裡封裝了對外提供的應用服務
type MemberUseCase interface {
	Register(ctx context.Context, name, email, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Logout(ctx context.Context, memberID string) error
	Profile(ctx context.Context, memberID string) (*domain.MemberProfile, error)
	Search(ctx context.Context, memberID, keyword string) ([]domain.MemberProfile, error)
	UploadAvatar(ctx context.Context, memberID, filename string, r io.Reader, size int64, contentType string) (*domain.MemberProfile, error)
	// CheckSession the member still holds a login session, used by the session middleware
	CheckSession(ctx context.Context, memberID string) (bool, error)
}

type memberUseCase struct {
	memberRepo       repository.MemberRepository
	sessionTTL       time.Duration
	redisRepo        database.RedisRepository[domain.MemberSession]
	avatars          repository.AvatarStorage
	hashPasswordFunc func(string) (string, error)
}

// NewMemberUseCase 建立一個新的 MemberUseCase
func NewMemberUseCase(
	memberRepo repository.MemberRepository,
	sessionTTL time.Duration,
	redisRepo database.RedisRepository[domain.MemberSession],
	avatars repository.AvatarStorage,
	hashPasswordFunc func(string) (string, error),
) MemberUseCase {
	if hashPasswordFunc == nil {
		hashPasswordFunc = encrypt.HashPassword
	}
	return &memberUseCase{
		memberRepo:       memberRepo,
		sessionTTL:       sessionTTL,
		redisRepo:        redisRepo,
		avatars:          avatars,
		hashPasswordFunc: hashPasswordFunc,
	}
}

// Register create the member and log it in
func (m *memberUseCase) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, domain.ErrMissingProfileField
	}
	if err := encrypt.ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	// 檢查 email 是否已存在
	if _, err := m.memberRepo.FindByMember(ctx, &domain.MemberQuery{Email: &email}); err == nil {
		return nil, domain.ErrEmailExists
	} else if !errors.Is(err, domain.ErrMemberNotFound) {
		return nil, err
	}

	pw, err := m.hashPasswordFunc(password)
	if err != nil {
		return nil, errprocess.Wrap("hash password", err)
	}

	member := domain.Member{
		MemberID: uuid.New().String(),
		Name:     name,
		Email:    email,
		Password: pw,
	}
	if err := m.memberRepo.CreateMember(ctx, &member); err != nil {
		return nil, err
	}
	logger.Log.Info("member registered", zap.String("member_id", member.MemberID))

	return m.startSession(ctx, &member)
}

// Login check the password and open a session
func (m *memberUseCase) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	member, err := m.memberRepo.FindByMember(ctx, &domain.MemberQuery{Email: &email})
	if err != nil {
		if errors.Is(err, domain.ErrMemberNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err = member.IsPasswordMatch(password); err != nil {
		logger.Log.Debug("password can't match", zap.String("member_id", member.MemberID))
		return nil, domain.ErrInvalidCredentials
	}
	if member.Status == domain.MemberStatusBan {
		return nil, domain.ErrInvalidCredentials
	}

	return m.startSession(ctx, member)
}

func (m *memberUseCase) startSession(ctx context.Context, member *domain.Member) (*AuthResult, error) {
	t, err := token.GenerateJWTWrapper(member.MemberID, string(token.RoleMember))
	if err != nil {
		return nil, errprocess.Wrap("generate token", err, zap.String("member_id", member.MemberID))
	}

	now := time.Now()
	session := domain.MemberSession{
		Token:        t,
		MemberID:     member.MemberID,
		CreatedAt:    now,
		LastActivity: now,
		ExpiredAt:    now.Add(m.sessionTTL),
	}
	if err := m.redisRepo.Set(ctx, member.MemberID, session, m.sessionTTL); err != nil {
		return nil, errprocess.Wrap("store session", err, zap.String("member_id", member.MemberID))
	}

	member.Status = domain.MemberStatusOnLine
	if err := m.memberRepo.UpdateMemberStatus(ctx, member); err != nil {
		logger.Log.Error("update member status", zap.String("member_id", member.MemberID), zap.Error(err))
	}

	return &AuthResult{Token: t, Member: m.profile(ctx, member)}, nil
}

// Logout 刪除 session
func (m *memberUseCase) Logout(ctx context.Context, memberID string) error {
	if err := m.redisRepo.Del(ctx, memberID); err != nil {
		return err
	}
	return m.memberRepo.UpdateMemberStatus(ctx, &domain.Member{
		MemberID: memberID,
		Status:   domain.MemberStatusOffLine,
	})
}

// Profile the member's own profile
func (m *memberUseCase) Profile(ctx context.Context, memberID string) (*domain.MemberProfile, error) {
	member, err := m.memberRepo.FindByMember(ctx, &domain.MemberQuery{MemberID: &memberID})
	if err != nil {
		return nil, err
	}
	p := m.profile(ctx, member)
	return &p, nil
}

// Search name or email contains keyword, the caller is never returned
func (m *memberUseCase) Search(ctx context.Context, memberID, keyword string) ([]domain.MemberProfile, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []domain.MemberProfile{}, nil
	}

	members, err := m.memberRepo.Search(ctx, keyword, memberID, SearchLimit)
	if err != nil {
		return nil, err
	}
	profiles := make([]domain.MemberProfile, 0, len(members))
	for i := range members {
		profiles = append(profiles, m.profile(ctx, &members[i]))
	}
	return profiles, nil
}

// UploadAvatar store the object then point the member at it
func (m *memberUseCase) UploadAvatar(ctx context.Context, memberID, filename string, r io.Reader, size int64, contentType string) (*domain.MemberProfile, error) {
	key := fmt.Sprintf("%s/%s%s", memberID, uuid.New().String(), strings.ToLower(path.Ext(filename)))
	if err := m.avatars.Upload(ctx, key, r, size, contentType); err != nil {
		return nil, err
	}
	if err := m.memberRepo.UpdateAvatar(ctx, memberID, key); err != nil {
		return nil, err
	}
	return m.Profile(ctx, memberID)
}

// CheckSession 用 redis TTL 判斷 session 是否還在
func (m *memberUseCase) CheckSession(ctx context.Context, memberID string) (bool, error) {
	ttl, err := m.redisRepo.GetTTL(ctx, memberID)
	if err != nil {
		return false, err
	}
	return ttl > 0, nil
}

func (m *memberUseCase) profile(ctx context.Context, member *domain.Member) domain.MemberProfile {
	p := member.Profile()
	if member.AvatarKey == "" {
		return p
	}
	url, err := m.avatars.URL(ctx, member.AvatarKey)
	if err != nil {
		logger.Log.Warn("avatar url", zap.String("member_id", member.MemberID), zap.Error(err))
		return p
	}
	p.Avatar = url
	return p
}
