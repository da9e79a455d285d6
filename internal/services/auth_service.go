package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/s1d40/empathy-hub-backend/config"
	"github.com/s1d40/empathy-hub-backend/internal/domain/user"
	"github.com/s1d40/empathy-hub-backend/internal/repository"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"
	"github.com/s1d40/empathy-hub-backend/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthService resolves bearer tokens into active identities. Tokens are
// issued elsewhere; IssueAccessToken exists for seeding and tests.
type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	accessTTL time.Duration
}

func NewAuthService(userRepo repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(cfg.JWTSecret),
		accessTTL: time.Duration(cfg.JWTExpiryMin) * time.Minute,
	}
}

type AccessClaims struct {
	AnonymousID string `json:"anonymous_id"`
	jwt.RegisteredClaims
}

func (s *AuthService) IssueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)

	claims := AccessClaims{
		AnonymousID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, hub_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, hub_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, hub_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, hub_errors.ErrUnauthorized
	}

	return *claims, nil
}

// ResolveIdentity returns the active user a token belongs to.
func (s *AuthService) ResolveIdentity(ctx context.Context, tokenString string) (user.User, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return user.User{}, err
	}
	userID, err := uuid.Parse(claims.AnonymousID)
	if err != nil {
		return user.User{}, hub_errors.ErrUnauthorized
	}

	u, err := s.userRepo.GetUserByID(ctx, userID)
	if errors.Is(err, hub_errors.ErrNotFound) {
		return user.User{}, hub_errors.ErrInactiveUser
	}
	if err != nil {
		return user.User{}, fmt.Errorf("resolve identity: %w", err)
	}
	if !u.IsActive {
		return user.User{}, hub_errors.ErrInactiveUser
	}
	return u, nil
}

type ctxKey string

var userIDKey ctxKey = "user_id"

// WithUserContext stores the caller id for services and for log enrichment.
func WithUserContext(ctx context.Context, userID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, logger.UserIdKey, userID.String())
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(userIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}
