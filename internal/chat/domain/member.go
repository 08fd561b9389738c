package domain

import (
	"time"

	"direct_chat_service/pkg/encrypt"
)

// MemberStatus 用來表示使用者狀態
type MemberStatus int

// 状态: 0=offline, 1=online, 2=ban
const (
	// MemberStatusOffLine not logged in
	MemberStatusOffLine MemberStatus = iota
	// MemberStatusOnLine logged in
	MemberStatusOnLine
	// MemberStatusBan 用來表示使用者狀態為封鎖
	MemberStatusBan
)

// Member 用來表示使用者
type Member struct {
	ID        int64
	MemberID  string
	Name      string
	Email     string
	Password  string
	AvatarKey string
	Status    MemberStatus
	CreatedAt time.Time
}

// MemberProfile what other members may see
type MemberProfile struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// Profile public view of m, avatar is filled by the caller
func (m *Member) Profile() MemberProfile {
	return MemberProfile{
		ID:    m.MemberID,
		Name:  m.Name,
		Email: m.Email,
	}
}

// MemberSession 用來表示使用者的 Session
type MemberSession struct {
	Token        string    `json:"Token"`
	MemberID     string    `json:"MemberID"`
	CreatedAt    time.Time `json:"CreatedAt"`
	LastActivity time.Time `json:"LastActivity"`
	ExpiredAt    time.Time `json:"ExpiredAt"`
}

// IsPasswordMatch 密碼驗證
func (m *Member) IsPasswordMatch(inputPwd string) error {
	return encrypt.CheckPassword(m.Password, inputPwd)
}

// IsExpired 檢查 Session 是否已過期
func (s *MemberSession) IsExpired() bool {
	return time.Now().After(s.ExpiredAt)
}

// MemberQuery join conditions are used to query members
type MemberQuery struct {
	ID       *int64  `db:"id"`
	MemberID *string `db:"member_id"`
	Email    *string `db:"email"`
}
