package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseJWT(t *testing.T) {
	tok, err := GenerateJWT("member-1", string(RoleMember), "chat_service")
	require.NoError(t, err)

	claims, err := ParseJWT(tok)
	require.NoError(t, err)
	assert.Equal(t, "member-1", claims.MemberID)
	assert.Equal(t, "member", claims.Role)
	assert.Equal(t, "chat_service", claims.Issuer)
}

func TestParseJWT_Expired(t *testing.T) {
	claims := Claims{
		MemberID: "member-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(JWTSecret)
	require.NoError(t, err)

	_, err = ParseJWT(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseJWT_WrongSecret(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{MemberID: "x"}).SignedString([]byte("other"))
	require.NoError(t, err)

	_, err = ParseJWT(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseJWT_NoMember(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "member"}).SignedString(JWTSecret)
	require.NoError(t, err)

	_, err = ParseJWT(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateJWTWrapper_UsesFunc(t *testing.T) {
	orig := GenerateJWTFunc
	defer func() { GenerateJWTFunc = orig }()

	GenerateJWTFunc = func(memberID, role, issuer string) (string, error) {
		return "fake-" + memberID + "-" + role, nil
	}
	tok, err := GenerateJWTWrapper("m", "member")
	require.NoError(t, err)
	assert.Equal(t, "fake-m-member", tok)
}
