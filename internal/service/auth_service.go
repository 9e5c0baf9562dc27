package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/authcore/authcore/internal/models"
)

// Endpoint names used as the rate-limit key segment.
const (
	EndpointLogin = "login"
	EndpointOTP   = "otp"
)

// AuthService composes the components into the caller-facing flows:
// admission check, then credential or OTP check, then token issuance.
// It is the entire surface a transport layer consumes.
type AuthService struct {
	users   *UserService
	getter  UserGetter
	otp     *OTPService
	tokens  *TokenService
	jwt     *JWTService
	limiter *RateLimitService
	logger  *logrus.Logger
}

func NewAuthService(
	users *UserService,
	getter UserGetter,
	otp *OTPService,
	tokens *TokenService,
	jwt *JWTService,
	limiter *RateLimitService,
	logger *logrus.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		getter:  getter,
		otp:     otp,
		tokens:  tokens,
		jwt:     jwt,
		limiter: limiter,
		logger:  logger,
	}
}

type LoginRequest struct {
	Email      string
	Password   string
	IP         string
	DeviceInfo string
}

type LoginResult struct {
	User   *models.User
	Tokens *models.TokenPair
}

// Login runs the password flow: rate-limit admission keyed by the
// submitted email, credential check, token issuance.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := s.admit(ctx, req.Email, req.IP, EndpointLogin); err != nil {
		return nil, err
	}

	user, err := s.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user, req.DeviceInfo, req.IP)
}

// RequestOTP issues a challenge code for the user after admission.
func (s *AuthService) RequestOTP(ctx context.Context, userID string, otpType models.OTPType, ip string) (*IssuedOTP, error) {
	if err := s.admit(ctx, userID, ip, EndpointOTP); err != nil {
		return nil, err
	}

	return s.otp.Issue(ctx, userID, otpType)
}

// LoginWithOTP runs the challenge flow: admission, code verification,
// login bookkeeping, token issuance.
func (s *AuthService) LoginWithOTP(ctx context.Context, userID, code, ip, deviceInfo string) (*LoginResult, error) {
	if err := s.admit(ctx, userID, ip, EndpointOTP); err != nil {
		return nil, err
	}

	if err := s.otp.Verify(ctx, userID, models.OTPTypeLogin, code); err != nil {
		return nil, err
	}

	user, err := s.getter.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := s.users.RecordSuccessfulLogin(ctx, userID); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user, deviceInfo, ip)
}

// ValidateToken resolves an opaque auth token to its user.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	return s.tokens.Validate(ctx, token)
}

// Logout revokes the auth token. Idempotent.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

func (s *AuthService) admit(ctx context.Context, identity, ip, endpoint string) error {
	decision, err := s.limiter.Admit(ctx, identity, ip, endpoint)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		s.logger.WithFields(logrus.Fields{
			"identity": identity,
			"endpoint": endpoint,
		}).Info("Request denied by rate limiter")
		return ErrRateLimited
	}
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User, deviceInfo, ip string) (*LoginResult, error) {
	authToken, err := s.tokens.Issue(ctx, user.ID, deviceInfo, ip)
	if err != nil {
		return nil, err
	}

	accessToken, expiresIn, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User: user,
		Tokens: &models.TokenPair{
			AccessToken: accessToken,
			AuthToken:   authToken.Token,
			TokenType:   "Bearer",
			ExpiresIn:   expiresIn,
		},
	}, nil
}
