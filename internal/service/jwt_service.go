package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/models"
)

type JWTService struct {
	secretKey    []byte
	accessExpiry time.Duration
	logger       *logrus.Logger
}

func NewJWTService(cfg *config.JWTConfig, logger *logrus.Logger) (*JWTService, error) {
	secretKey := []byte(cfg.SecretKey)
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}

	return &JWTService{
		secretKey:    secretKey,
		accessExpiry: cfg.AccessExpiry,
		logger:       logger,
	}, nil
}

type Claims struct {
	Email string `json:"email"`
	JTI   string `json:"jti"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a short-lived HS256 access token for the
// user. Session longevity comes from the opaque auth token, not from
// the JWT.
func (s *JWTService) GenerateAccessToken(user *models.User) (string, int64, error) {
	now := time.Now()
	jti := uuid.New().String()

	claims := &Claims{
		Email: user.Email,
		JTI:   jti,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign access token")
		return "", 0, fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, int64(s.accessExpiry.Seconds()), nil
}

func (s *JWTService) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
