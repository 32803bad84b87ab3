package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "wrong-pass"))
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateAccessToken(7, "teacher@belta.app", RoleTeacher, "test-secret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "teacher@belta.app", claims.Email)
	assert.Equal(t, RoleTeacher, claims.Role)
	assert.Equal(t, "access", claims.TokenType)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateAccessToken(1, "student@belta.app", RoleStudent, "secret-a")
	require.NoError(t, err)

	_, err = ValidateToken(token, "secret-b")
	assert.Error(t, err)
}

func TestValidateToken_EmptySecret(t *testing.T) {
	_, err := GenerateAccessToken(1, "a@b.c", RoleStudent, "")
	assert.ErrorIs(t, err, ErrEmptyJWTSecret)

	_, err = ValidateToken("whatever", "")
	assert.ErrorIs(t, err, ErrEmptyJWTSecret)
}

func TestRefreshAccessToken(t *testing.T) {
	_, refreshToken, err := GenerateTokens(3, "u@belta.app", RoleStudent, "sec", "sec")
	require.NoError(t, err)

	newAccess, claims, err := RefreshAccessToken(refreshToken, "sec", "sec")
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.Equal(t, 3, claims.UserID)
}

func TestRefreshAccessToken_RejectsAccessToken(t *testing.T) {
	accessToken, err := GenerateAccessToken(3, "u@belta.app", RoleStudent, "sec")
	require.NoError(t, err)

	_, _, err = RefreshAccessToken(accessToken, "sec", "sec")
	assert.ErrorIs(t, err, ErrInvalidTokenType)
}
