package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/models"
)

// OTPStore is the persistence surface the OTP manager needs. Satisfied
// by repository.OTPRepository.
type OTPStore interface {
	Put(ctx context.Context, otp *models.OTPCode) error
	Get(ctx context.Context, userID string, otpType models.OTPType) (*models.OTPCode, error)
	MarkVerified(ctx context.Context, userID string, otpType models.OTPType) (bool, error)
	MarkExpired(ctx context.Context, userID string, otpType models.OTPType) (bool, error)
	IncrementAttempts(ctx context.Context, userID string, otpType models.OTPType) (int, error)
	ExpireStalePending(ctx context.Context, now time.Time) (int, error)
	SweepStale(ctx context.Context, cutoff time.Time) (int, error)
}

// UserGetter is the read-only user lookup the OTP manager needs.
type UserGetter interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

type OTPService struct {
	store  OTPStore
	users  UserGetter
	cfg    *config.OTPConfig
	logger *logrus.Logger
}

func NewOTPService(store OTPStore, users UserGetter, cfg *config.OTPConfig, logger *logrus.Logger) *OTPService {
	return &OTPService{
		store:  store,
		users:  users,
		cfg:    cfg,
		logger: logger,
	}
}

// IssuedOTP carries the plaintext code for the delivery channel above
// this core; only the bcrypt hash is persisted.
type IssuedOTP struct {
	Code   string
	Record *models.OTPCode
}

// Issue generates a fresh PENDING code for the user, replacing any
// previous code of the same type.
func (s *OTPService) Issue(ctx context.Context, userID string, otpType models.OTPType) (*IssuedOTP, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	code, err := s.generateRandomOTP(s.cfg.Length)
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP: %w", err)
	}

	hashedCode, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash OTP: %w", err)
	}

	now := time.Now()
	record := &models.OTPCode{
		UserID:    userID,
		Type:      otpType,
		CodeHash:  string(hashedCode),
		Status:    models.OTPStatusPending,
		Attempts:  0,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.Expiry),
		UpdatedAt: now,
	}

	if err := s.store.Put(ctx, record); err != nil {
		s.logger.WithError(err).Error("Failed to store OTP")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"type":    otpType,
	}).Info("OTP issued")

	return &IssuedOTP{Code: code, Record: record}, nil
}

// Verify consumes a pending code. Success is exactly-once: the
// PENDING -> VERIFIED transition is conditional at the store, so a
// concurrent verifier losing the race reports ErrAlreadyUsed.
func (s *OTPService) Verify(ctx context.Context, userID string, otpType models.OTPType, code string) error {
	otp, err := s.store.Get(ctx, userID, otpType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if otp == nil {
		return ErrNotFound
	}

	switch otp.Status {
	case models.OTPStatusVerified:
		return ErrAlreadyUsed
	case models.OTPStatusExpired:
		return ErrExpired
	}

	// Expiry wins over any code comparison: a correct code submitted
	// late must report expired, never mismatch.
	if !time.Now().Before(otp.ExpiresAt) {
		if _, err := s.store.MarkExpired(ctx, userID, otpType); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return ErrExpired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)); err != nil {
		return s.recordMismatch(ctx, userID, otpType)
	}

	applied, err := s.store.MarkVerified(ctx, userID, otpType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !applied {
		return s.terminalError(ctx, userID, otpType)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"type":    otpType,
	}).Info("OTP verified")

	return nil
}

func (s *OTPService) recordMismatch(ctx context.Context, userID string, otpType models.OTPType) error {
	attempts, err := s.store.IncrementAttempts(ctx, userID, otpType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if attempts == 0 {
		// The record left PENDING between our read and the increment.
		return s.terminalError(ctx, userID, otpType)
	}

	if attempts >= s.cfg.MaxAttempts {
		if _, err := s.store.MarkExpired(ctx, userID, otpType); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		s.logger.WithFields(logrus.Fields{
			"user_id":  userID,
			"type":     otpType,
			"attempts": attempts,
		}).Warn("OTP attempt cap reached, code expired")
	}

	return ErrMismatch
}

// terminalError re-reads a record that raced into a terminal state and
// reports the matching kind.
func (s *OTPService) terminalError(ctx context.Context, userID string, otpType models.OTPType) error {
	otp, err := s.store.Get(ctx, userID, otpType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if otp == nil {
		return ErrNotFound
	}
	if otp.Status == models.OTPStatusExpired {
		return ErrExpired
	}
	return ErrAlreadyUsed
}

func (s *OTPService) generateRandomOTP(length int) (string, error) {
	otp := ""
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		otp += num.String()
	}
	return otp, nil
}
