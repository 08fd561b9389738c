package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"direct_chat_service/internal/chat/domain"
)

const memberSchema = `
CREATE TABLE IF NOT EXISTS member (
	id         BIGSERIAL PRIMARY KEY,
	member_id  VARCHAR(64)  NOT NULL UNIQUE,
	name       VARCHAR(128) NOT NULL,
	email      VARCHAR(255) NOT NULL UNIQUE,
	password   VARCHAR(255) NOT NULL,
	avatar_key VARCHAR(255) NOT NULL DEFAULT '',
	status     SMALLINT     NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
)`

// MemberRepository definition get Member info
type MemberRepository interface {
	CreateMember(ctx context.Context, member *domain.Member) error
	UpdateMemberStatus(ctx context.Context, member *domain.Member) error
	UpdateAvatar(ctx context.Context, memberID, avatarKey string) error
	FindByMember(ctx context.Context, memberQuery *domain.MemberQuery) (*domain.Member, error)
	// Search name or email contains keyword, case insensitive, excluding excludeID
	Search(ctx context.Context, keyword, excludeID string, limit int) ([]domain.Member, error)
}

type memberRepository struct {
	db *pgxpool.Pool
}

// NewMemberRepository create a MemberRepository
func NewMemberRepository(db *pgxpool.Pool) MemberRepository {
	return &memberRepository{db: db}
}

// EnsureMemberSchema create the member table when missing
func EnsureMemberSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, memberSchema)
	return err
}

func (r *memberRepository) CreateMember(ctx context.Context, member *domain.Member) error {
	return r.db.QueryRow(ctx,
		"INSERT INTO member(member_id, name, email, password) VALUES ($1, $2, $3, $4) RETURNING id, created_at",
		member.MemberID, member.Name, member.Email, member.Password,
	).Scan(&member.ID, &member.CreatedAt)
}

func (r *memberRepository) UpdateMemberStatus(ctx context.Context, member *domain.Member) error {
	_, err := r.db.Exec(ctx, "UPDATE member SET status = $1 WHERE member_id = $2", member.Status, member.MemberID)
	return err
}

func (r *memberRepository) UpdateAvatar(ctx context.Context, memberID, avatarKey string) error {
	tag, err := r.db.Exec(ctx, "UPDATE member SET avatar_key = $1 WHERE member_id = $2", avatarKey, memberID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (r *memberRepository) FindByMember(ctx context.Context, memberQuery *domain.MemberQuery) (*domain.Member, error) {
	queryStr, params := buildMemberQuery(memberQuery)

	row := r.db.QueryRow(ctx, queryStr, params...)
	var member domain.Member
	err := row.Scan(&member.ID, &member.MemberID, &member.Name, &member.Email, &member.Password, &member.AvatarKey, &member.Status, &member.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}

	return &member, nil
}

func (r *memberRepository) Search(ctx context.Context, keyword, excludeID string, limit int) ([]domain.Member, error) {
	pattern := "%" + escapeLike(keyword) + "%"
	rows, err := r.db.Query(ctx,
		`SELECT id, member_id, name, email, password, avatar_key, status, created_at FROM member
		WHERE member_id <> $1 AND (name ILIKE $2 OR email ILIKE $2)
		ORDER BY name LIMIT $3`,
		excludeID, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []domain.Member{}
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.MemberID, &m.Name, &m.Email, &m.Password, &m.AvatarKey, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// buildMemberQuery 依照有值的欄位組出查詢條件
func buildMemberQuery(memberQuery *domain.MemberQuery) (string, []interface{}) {
	queryStr := "SELECT id, member_id, name, email, password, avatar_key, status, created_at FROM member WHERE 1=1"
	params := []interface{}{}
	paramCount := 1

	if memberQuery.Email != nil {
		queryStr += fmt.Sprintf(" AND email = $%d", paramCount)
		params = append(params, *memberQuery.Email)
		paramCount++
	}
	if memberQuery.MemberID != nil {
		queryStr += fmt.Sprintf(" AND member_id = $%d", paramCount)
		params = append(params, *memberQuery.MemberID)
		paramCount++
	}
	if memberQuery.ID != nil {
		queryStr += fmt.Sprintf(" AND id = $%d", paramCount)
		params = append(params, *memberQuery.ID)
	}
	return queryStr, params
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
