package models

import "time"

// AuthToken is an opaque session token. It is usable only while
// IsValid is true and the expiry has not passed.
type AuthToken struct {
	Token      string    `json:"token" dynamodbav:"Token"`
	UserID     string    `json:"user_id" dynamodbav:"UserID"`
	IsValid    bool      `json:"is_valid" dynamodbav:"IsValid"`
	DeviceInfo string    `json:"device_info,omitempty" dynamodbav:"DeviceInfo,omitempty"`
	IP         string    `json:"ip,omitempty" dynamodbav:"IP,omitempty"`
	CreatedAt  time.Time `json:"created_at" dynamodbav:"CreatedAt"`
	ExpiresAt  time.Time `json:"expires_at" dynamodbav:"ExpiresAt"`
	UpdatedAt  time.Time `json:"updated_at" dynamodbav:"UpdatedAt"`
}

func (t *AuthToken) GetPK() string {
	return TokenPK(t.Token)
}

func (t *AuthToken) GetSK() string {
	return "METADATA"
}

func TokenPK(token string) string {
	return "TOKEN#" + token
}

// TokenPair couples the short-lived JWT access token with the opaque
// auth token handed to the transport layer above this core.
type TokenPair struct {
	AccessToken string `json:"access_token"`
	AuthToken   string `json:"auth_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
