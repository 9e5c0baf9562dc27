package models

import (
	"regexp"
	"time"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusLocked   UserStatus = "LOCKED"
	UserStatusDisabled UserStatus = "DISABLED"
)

type User struct {
	ID             string     `json:"id" dynamodbav:"ID"`
	Email          string     `json:"email" dynamodbav:"Email"`
	Phone          string     `json:"phone,omitempty" dynamodbav:"Phone,omitempty"`
	PasswordHash   string     `json:"-" dynamodbav:"PasswordHash"`
	Status         UserStatus `json:"status" dynamodbav:"Status"`
	FailedAttempts int        `json:"failed_attempts" dynamodbav:"FailedAttempts"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty" dynamodbav:"LastLoginAt,omitempty"`
	CreatedAt      time.Time  `json:"created_at" dynamodbav:"CreatedAt"`
	UpdatedAt      time.Time  `json:"updated_at" dynamodbav:"UpdatedAt"`
}

func (u *User) GetPK() string {
	return "USER#" + u.ID
}

func (u *User) GetSK() string {
	return "METADATA"
}

// EmailPK is the key of the uniqueness pointer item that maps an email
// address to its user ID. Creating it with a conditional put is what
// enforces email uniqueness across the table.
func EmailPK(email string) string {
	return "EMAIL#" + email
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
)

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidPhone accepts E.164 format: +[country code][number] (max 15 digits after +).
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
