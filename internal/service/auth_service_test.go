package service

import (
	"context"
	"testing"
	"time"

	"lms-assessment/internal/config"
	"lms-assessment/internal/dto"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "testsecretkeydontuseinproduction32bytes!"

func TestNewAuthService_RequiresSecret(t *testing.T) {
	_, err := NewAuthService(config.AuthConfig{})
	assert.Error(t, err)
}

func TestAuthService_RoundTrip(t *testing.T) {
	svc, err := NewAuthService(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)
	ctx := context.Background()

	token, err := svc.CreateJWT(ctx, 42, []string{dto.RoleReviewer}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateJWT(ctx, token)
	require.NoError(t, err)
	id, err := claims.LearnerID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.True(t, claims.HasRole(dto.RoleReviewer))
	assert.False(t, claims.HasRole("admin"))
}

func TestAuthService_Rejects(t *testing.T) {
	svc, err := NewAuthService(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)
	ctx := context.Background()

	sign := func(claims dto.AuthClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "expired", token: sign(dto.AuthClaims{TokenType: "access", RegisteredClaims: jwt.RegisteredClaims{
			Subject: "42", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}}, testSecret)},
		{name: "wrong secret", token: sign(dto.AuthClaims{TokenType: "access", RegisteredClaims: jwt.RegisteredClaims{
			Subject: "42", ExpiresAt: future}}, "another-secret")},
		{name: "refresh token", token: sign(dto.AuthClaims{TokenType: "refresh", RegisteredClaims: jwt.RegisteredClaims{
			Subject: "42", ExpiresAt: future}}, testSecret)},
		{name: "non numeric subject", token: sign(dto.AuthClaims{TokenType: "access", RegisteredClaims: jwt.RegisteredClaims{
			Subject: "alice", ExpiresAt: future}}, testSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateJWT(ctx, tt.token)
			assert.Error(t, err)
		})
	}
}
