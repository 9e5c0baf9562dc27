package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/authcore/authcore/internal/config"
)

// CleanupService owns the periodic maintenance sweeps. Each sweep works
// item-by-item against the store, so it is safe to run concurrently
// with live traffic and with sweeps on other instances.
type CleanupService struct {
	otps   OTPStore
	tokens *TokenService
	cfg    *config.CleanupConfig
	logger *logrus.Logger
}

func NewCleanupService(otps OTPStore, tokens *TokenService, cfg *config.CleanupConfig, logger *logrus.Logger) *CleanupService {
	return &CleanupService{
		otps:   otps,
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
	}
}

// Run sweeps once immediately and then on every tick until the context
// is cancelled.
func (s *CleanupService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass of both sweeps.
func (s *CleanupService) RunOnce(ctx context.Context) {
	otps, err := s.SweepOTPs(ctx)
	if err != nil {
		s.logger.WithError(err).Error("OTP sweep failed")
	}

	tokens, err := s.SweepTokens(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Token sweep failed")
	}

	s.logger.WithFields(logrus.Fields{
		"otps_deleted":   otps,
		"tokens_deleted": tokens,
	}).Info("Cleanup sweep completed")
}

// SweepOTPs expires abandoned PENDING records past their deadline, then
// deletes records whose expiry is older than the retention window.
func (s *CleanupService) SweepOTPs(ctx context.Context) (int, error) {
	now := time.Now()

	expired, err := s.otps.ExpireStalePending(ctx, now)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to expire stale pending OTPs")
	} else if expired > 0 {
		s.logger.WithField("otps_expired", expired).Info("Expired stale pending OTPs")
	}

	return s.otps.SweepStale(ctx, now.Add(-s.cfg.OTPRetention))
}

// SweepTokens deletes expired and revoked auth tokens.
func (s *CleanupService) SweepTokens(ctx context.Context) (int, error) {
	return s.tokens.SweepExpired(ctx)
}
