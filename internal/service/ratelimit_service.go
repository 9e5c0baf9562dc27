package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/authcore/authcore/internal/config"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimitService enforces per-(identity, ip, endpoint) admission using
// fixed-window Redis counters. INCR is atomic, so concurrent handlers on
// any number of instances cannot over-admit past the threshold.
type RateLimitService struct {
	client redis.UniversalClient
	cfg    *config.RateLimitConfig
	logger *logrus.Logger
}

func NewRateLimitService(client redis.UniversalClient, cfg *config.RateLimitConfig, logger *logrus.Logger) *RateLimitService {
	return &RateLimitService{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Admit decides whether a request for the given key may proceed. An
// active block denies regardless of count; otherwise the window counter
// is incremented and a post-increment count above the threshold starts
// the cooldown block. Window rollover is the counter key expiring.
func (s *RateLimitService) Admit(ctx context.Context, identity, ip, endpoint string) (*Decision, error) {
	counterKey := counterKey(identity, ip, endpoint)
	blocked := blockKey(identity, ip, endpoint)

	ttl, err := s.client.TTL(ctx, blocked).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl > 0 {
		return &Decision{Allowed: false, RetryAfter: ttl}, nil
	}

	count, err := s.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := s.client.Expire(ctx, counterKey, s.cfg.Window).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if count > int64(s.cfg.Threshold) {
		if err := s.client.Set(ctx, blocked, "1", s.cfg.Cooldown).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		s.logger.WithFields(logrus.Fields{
			"identity": identity,
			"ip":       ip,
			"endpoint": endpoint,
		}).Warn("Rate limit exceeded, cooldown started")
		return &Decision{Allowed: false, RetryAfter: s.cfg.Cooldown}, nil
	}

	return &Decision{Allowed: true, Remaining: s.cfg.Threshold - int(count)}, nil
}

// Reset clears the counter and any active block for the key.
func (s *RateLimitService) Reset(ctx context.Context, identity, ip, endpoint string) error {
	err := s.client.Del(ctx, counterKey(identity, ip, endpoint), blockKey(identity, ip, endpoint)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func counterKey(identity, ip, endpoint string) string {
	return "ratelimit:" + normalizeIdentity(identity) + ":" + ip + ":" + endpoint
}

func blockKey(identity, ip, endpoint string) string {
	return "ratelimit:block:" + normalizeIdentity(identity) + ":" + ip + ":" + endpoint
}

func normalizeIdentity(identity string) string {
	if identity == "" {
		return "anon"
	}
	return identity
}
