package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 1)
	tok, err := m.GenerateToken("ops", RoleAdmin)
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	tok, err := NewJWTManager("secret", 1).GenerateToken("ops", RoleAdmin)
	require.NoError(t, err)

	_, err = NewJWTManager("other", 1).VerifyToken(tok)
	assert.Error(t, err)
}

func TestVerifyToken_Expired(t *testing.T) {
	m := NewJWTManager("secret", 1)
	claims := CustomClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.VerifyToken(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifyToken_RejectsNoneAlgorithm(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, CustomClaims{Role: RoleAdmin}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTManager("secret", 1).VerifyToken(tok)
	assert.Error(t, err)
}

func TestGenerateRandomString(t *testing.T) {
	s := GenerateRandomString(8)
	assert.Len(t, s, 16)
	assert.NotEqual(t, s, GenerateRandomString(8))
}
