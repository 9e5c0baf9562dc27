package models

import "time"

type OTPStatus string

const (
	OTPStatusPending  OTPStatus = "PENDING"
	OTPStatusVerified OTPStatus = "VERIFIED"
	OTPStatusExpired  OTPStatus = "EXPIRED"
)

type OTPType string

const (
	OTPTypeLogin OTPType = "LOGIN"
	OTPTypeReset OTPType = "RESET"
)

// OTPCode holds one challenge per (user, type). Issuing a new code
// replaces the previous record; VERIFIED and EXPIRED are terminal.
type OTPCode struct {
	UserID    string    `json:"user_id" dynamodbav:"UserID"`
	Type      OTPType   `json:"type" dynamodbav:"Type"`
	CodeHash  string    `json:"code_hash" dynamodbav:"CodeHash"`
	Status    OTPStatus `json:"status" dynamodbav:"Status"`
	Attempts  int       `json:"attempts" dynamodbav:"Attempts"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"CreatedAt"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"ExpiresAt"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"UpdatedAt"`
}

func (o *OTPCode) GetPK() string {
	return OTPPK(o.UserID, o.Type)
}

func (o *OTPCode) GetSK() string {
	return "METADATA"
}

func OTPPK(userID string, otpType OTPType) string {
	return "OTP#" + userID + "#" + string(otpType)
}
