package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"lms-assessment/internal/config"
	"lms-assessment/internal/dto"
	"lms-assessment/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	tokenTypeAccess = "access"
)

var (
	ErrInvalidJWTToken = errors.New("invalid jwt token")
	ErrInvalidSubject  = errors.New("token subject is not a learner id")
)

// AuthService verifies access tokens issued by the platform's auth service.
type AuthService interface {
	ValidateJWT(ctx context.Context, tokenString string) (*dto.AuthClaims, error)
	// CreateJWT signs an access token; used by tooling and tests.
	CreateJWT(ctx context.Context, learnerID int64, roles []string, ttl time.Duration) (string, error)
}

type authServiceImpl struct {
	secret []byte
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(cfg config.AuthConfig) (AuthService, error) {
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}
	return &authServiceImpl{secret: []byte(cfg.JWTSecret)}, nil
}

func (s *authServiceImpl) CreateJWT(_ context.Context, learnerID int64, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := dto.AuthClaims{
		Roles:     roles,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(learnerID, 10),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *authServiceImpl) ValidateJWT(_ context.Context, tokenString string) (*dto.AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &dto.AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			logger.Get().Debug("JWT token expired", zap.Error(err))
		} else {
			logger.Get().Warn("JWT validation failed", zap.Error(err))
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidJWTToken, err)
	}

	claims, ok := token.Claims.(*dto.AuthClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidJWTToken
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, fmt.Errorf("%w: expected access token, got %q", ErrInvalidJWTToken, claims.TokenType)
	}
	if id, err := claims.LearnerID(); err != nil || id <= 0 {
		return nil, ErrInvalidSubject
	}
	return claims, nil
}
