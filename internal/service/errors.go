package service

import "errors"

// Business failures are distinct, inspectable kinds; only ErrUnavailable
// indicates a backend fault and is the one kind callers may retry.
var (
	// ErrNotFound indicates no pending challenge exists for the request.
	ErrNotFound = errors.New("not found")
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrExpired indicates the code or token is past its expiry.
	ErrExpired = errors.New("expired")
	// ErrMismatch indicates the submitted code does not match.
	ErrMismatch = errors.New("code mismatch")
	// ErrAlreadyUsed indicates the code was already consumed.
	ErrAlreadyUsed = errors.New("code already used")
	// ErrLocked indicates the account is locked.
	ErrLocked = errors.New("account locked")
	// ErrDisabled indicates the account is disabled.
	ErrDisabled = errors.New("account disabled")
	// ErrBadCredential indicates a password mismatch.
	ErrBadCredential = errors.New("bad credential")
	// ErrRateLimited indicates the rate limiter denied admission.
	ErrRateLimited = errors.New("rate limited")
	// ErrTokenInvalid indicates an unknown or revoked auth token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrInvalidInput indicates a malformed email, phone, or code.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable indicates a store connectivity failure.
	ErrUnavailable = errors.New("backend unavailable")
)
