package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/models"
)

// TokenStore is the persistence surface the token manager needs.
// Satisfied by repository.TokenRepository.
type TokenStore interface {
	Store(ctx context.Context, token *models.AuthToken) error
	Get(ctx context.Context, token string) (*models.AuthToken, error)
	Revoke(ctx context.Context, token string) error
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

type TokenService struct {
	store  TokenStore
	users  UserGetter
	cfg    *config.TokenConfig
	logger *logrus.Logger
}

func NewTokenService(store TokenStore, users UserGetter, cfg *config.TokenConfig, logger *logrus.Logger) *TokenService {
	return &TokenService{
		store:  store,
		users:  users,
		cfg:    cfg,
		logger: logger,
	}
}

// Issue creates an opaque 256-bit session token for the user.
func (s *TokenService) Issue(ctx context.Context, userID, deviceInfo, ip string) (*models.AuthToken, error) {
	value, err := generateTokenValue()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	token := &models.AuthToken{
		Token:      value,
		UserID:     userID,
		IsValid:    true,
		DeviceInfo: deviceInfo,
		IP:         ip,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.Expiry),
		UpdatedAt:  now,
	}

	if err := s.store.Store(ctx, token); err != nil {
		s.logger.WithError(err).Error("Failed to store auth token")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.WithField("user_id", userID).Info("Auth token issued")
	return token, nil
}

// Validate resolves a token to its owning user. Revoked and unknown
// tokens report ErrTokenInvalid, past-expiry tokens ErrExpired.
func (s *TokenService) Validate(ctx context.Context, token string) (*models.User, error) {
	record, err := s.store.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if record == nil || !record.IsValid {
		return nil, ErrTokenInvalid
	}
	if !time.Now().Before(record.ExpiresAt) {
		return nil, ErrExpired
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if user == nil {
		return nil, ErrTokenInvalid
	}

	return user, nil
}

// Revoke invalidates a token. Idempotent: revoking a missing or
// already-revoked token succeeds.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	if err := s.store.Revoke(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SweepExpired deletes expired and revoked tokens.
func (s *TokenService) SweepExpired(ctx context.Context) (int, error) {
	deleted, err := s.store.SweepExpired(ctx, time.Now())
	if err != nil {
		return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return deleted, nil
}

func generateTokenValue() (string, error) {
	buf := make([]byte, 32) // 256 bits
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
