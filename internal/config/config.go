package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DynamoDB  DynamoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	OTP       OTPConfig
	Token     TokenConfig
	RateLimit RateLimitConfig
	Lockout   LockoutConfig
	Cleanup   CleanupConfig
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

type RedisConfig struct {
	Endpoint string
	Password string
	DB       int
}

type JWTConfig struct {
	SecretKey    string
	AccessExpiry time.Duration
}

type OTPConfig struct {
	Length      int
	Expiry      time.Duration
	MaxAttempts int
}

type TokenConfig struct {
	Expiry time.Duration
}

type RateLimitConfig struct {
	Threshold int
	Window    time.Duration
	Cooldown  time.Duration
}

type LockoutConfig struct {
	Threshold int
}

type CleanupConfig struct {
	Interval     time.Duration
	OTPRetention time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "us-east-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", "AuthCoreTable"),
		},
		Redis: RedisConfig{
			Endpoint: getEnv("REDIS_ENDPOINT", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			SecretKey:    getEnv("JWT_SECRET_KEY", ""),
			AccessExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		},
		OTP: OTPConfig{
			Length:      getEnvAsInt("OTP_LENGTH", 6),
			Expiry:      getEnvAsDuration("OTP_EXPIRY", 10*time.Minute),
			MaxAttempts: getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
		},
		Token: TokenConfig{
			Expiry: getEnvAsDuration("AUTH_TOKEN_EXPIRY", 7*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Threshold: getEnvAsInt("RATE_LIMIT_THRESHOLD", 10),
			Window:    getEnvAsDuration("RATE_LIMIT_WINDOW", 60*time.Second),
			Cooldown:  getEnvAsDuration("RATE_LIMIT_COOLDOWN", 5*time.Minute),
		},
		Lockout: LockoutConfig{
			Threshold: getEnvAsInt("LOCKOUT_THRESHOLD", 5),
		},
		Cleanup: CleanupConfig{
			Interval:     getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			OTPRetention: getEnvAsDuration("CLEANUP_OTP_RETENTION", 7*24*time.Hour),
		},
	}

	// The JWT secret is validated where the JWT service is built;
	// processes that never sign tokens load config without one.
	if cfg.RateLimit.Threshold < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_THRESHOLD must be at least 1")
	}

	if cfg.Lockout.Threshold < 1 {
		return nil, fmt.Errorf("LOCKOUT_THRESHOLD must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
