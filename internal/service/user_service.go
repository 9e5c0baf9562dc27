package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/models"
	"github.com/authcore/authcore/internal/repository"
)

// UserStore is the persistence surface the user service needs.
// Satisfied by repository.UserRepository.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	RecordFailedAttempt(ctx context.Context, userID string, threshold int) (int, bool, error)
	RecordSuccessfulLogin(ctx context.Context, userID string) (bool, error)
}

type UserService struct {
	store  UserStore
	cfg    *config.LockoutConfig
	logger *logrus.Logger
}

func NewUserService(store UserStore, cfg *config.LockoutConfig, logger *logrus.Logger) *UserService {
	return &UserService{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Register creates an ACTIVE account after boundary validation of the
// email and optional phone formats.
func (s *UserService) Register(ctx context.Context, email, phone, password string) (*models.User, error) {
	if !models.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: email format", ErrInvalidInput)
	}
	if phone != "" && !models.IsValidPhone(phone) {
		return nil, fmt.Errorf("%w: phone format", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
		Status:       models.UserStatusActive,
	}

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		s.logger.WithError(err).Error("Failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// Authenticate checks credentials for an email. The lockout check runs
// before the hash comparison, so a correct password never bypasses a
// locked account. A hash mismatch records a failed attempt.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	switch user.Status {
	case models.UserStatusLocked:
		return nil, ErrLocked
	case models.UserStatusDisabled:
		return nil, ErrDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if recErr := s.RecordFailedAttempt(ctx, user.ID); recErr != nil {
			s.logger.WithError(recErr).Warn("Failed to record failed login attempt")
		}
		return nil, ErrBadCredential
	}

	if err := s.RecordSuccessfulLogin(ctx, user.ID); err != nil {
		return nil, err
	}

	now := time.Now()
	user.FailedAttempts = 0
	user.LastLoginAt = &now

	return user, nil
}

// RecordFailedAttempt increments the counter atomically; crossing the
// lockout threshold transitions the account to LOCKED.
func (s *UserService) RecordFailedAttempt(ctx context.Context, userID string) error {
	attempts, locked, err := s.store.RecordFailedAttempt(ctx, userID, s.cfg.Threshold)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if locked {
		s.logger.WithFields(logrus.Fields{
			"user_id":  userID,
			"attempts": attempts,
		}).Warn("Account locked after repeated failed attempts")
	}

	return nil
}

// RecordSuccessfulLogin resets the counter and stamps the login time.
// No-op for accounts that are no longer ACTIVE.
func (s *UserService) RecordSuccessfulLogin(ctx context.Context, userID string) error {
	applied, err := s.store.RecordSuccessfulLogin(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !applied {
		// Status changed between the credential check and the reset.
		return ErrLocked
	}
	return nil
}
