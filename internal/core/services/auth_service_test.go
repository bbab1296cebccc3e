package services

import (
	"testing"
	"time"

	"codeshare/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_GenerateAndValidateToken(t *testing.T) {
	svc := NewAuthService("test-secret", 15*time.Minute, 24*time.Hour)

	token, err := svc.GenerateToken("user-1", "alice", "collaborator")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "collaborator", claims.Role)
}

func TestAuthService_RejectsGarbage(t *testing.T) {
	svc := NewAuthService("test-secret", 15*time.Minute, 24*time.Hour)

	_, err := svc.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_RejectsWrongSecret(t *testing.T) {
	issuer := NewAuthService("secret-a", 15*time.Minute, 24*time.Hour)
	verifier := NewAuthService("secret-b", 15*time.Minute, 24*time.Hour)

	token, err := issuer.GenerateToken("user-1", "alice", "")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_RejectsExpiredToken(t *testing.T) {
	svc := NewAuthService("test-secret", -time.Minute, 24*time.Hour)

	token, err := svc.GenerateToken("user-1", "alice", "")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthService_RefreshTokenRoundTrip(t *testing.T) {
	svc := NewAuthService("test-secret", 15*time.Minute, 24*time.Hour)

	refresh, err := svc.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), claims.UserID)
}
