package service

import (
	"context"
	"sync"
	"time"

	"github.com/authcore/authcore/internal/models"
	"github.com/authcore/authcore/internal/repository"
)

// In-memory stands-ins for the DynamoDB repositories. They mirror the
// conditional-update semantics of the real ones under a mutex.

type fakeUserStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	emails map[string]string
	err    error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:  make(map[string]*models.User),
		emails: make(map[string]string),
	}
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, exists := f.emails[user.Email]; exists {
		return repository.ErrDuplicate
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.emails[user.Email] = user.ID
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, userID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.users[userID], nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	id, ok := f.emails[email]
	if !ok {
		return nil, nil
	}
	return f.users[id], nil
}

func (f *fakeUserStore) RecordFailedAttempt(ctx context.Context, userID string, threshold int) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, false, f.err
	}
	user := f.users[userID]
	user.FailedAttempts++
	user.UpdatedAt = time.Now()
	if user.Status == models.UserStatusActive && user.FailedAttempts >= threshold {
		user.Status = models.UserStatusLocked
	}
	return user.FailedAttempts, user.Status == models.UserStatusLocked, nil
}

func (f *fakeUserStore) RecordSuccessfulLogin(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	user := f.users[userID]
	if user == nil || user.Status != models.UserStatusActive {
		return false, nil
	}
	now := time.Now()
	user.FailedAttempts = 0
	user.LastLoginAt = &now
	user.UpdatedAt = now
	return true, nil
}

type fakeOTPStore struct {
	mu      sync.Mutex
	records map[string]*models.OTPCode
	err     error
}

func newFakeOTPStore() *fakeOTPStore {
	return &fakeOTPStore{records: make(map[string]*models.OTPCode)}
}

func (f *fakeOTPStore) Put(ctx context.Context, otp *models.OTPCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records[otp.GetPK()] = otp
	return nil
}

func (f *fakeOTPStore) Get(ctx context.Context, userID string, otpType models.OTPType) (*models.OTPCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.records[models.OTPPK(userID, otpType)]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (f *fakeOTPStore) MarkVerified(ctx context.Context, userID string, otpType models.OTPType) (bool, error) {
	return f.transition(userID, otpType, models.OTPStatusVerified)
}

func (f *fakeOTPStore) MarkExpired(ctx context.Context, userID string, otpType models.OTPType) (bool, error) {
	return f.transition(userID, otpType, models.OTPStatusExpired)
}

func (f *fakeOTPStore) transition(userID string, otpType models.OTPType, to models.OTPStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	record, ok := f.records[models.OTPPK(userID, otpType)]
	if !ok || record.Status != models.OTPStatusPending {
		return false, nil
	}
	record.Status = to
	record.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeOTPStore) IncrementAttempts(ctx context.Context, userID string, otpType models.OTPType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	record, ok := f.records[models.OTPPK(userID, otpType)]
	if !ok || record.Status != models.OTPStatusPending {
		return 0, nil
	}
	record.Attempts++
	record.UpdatedAt = time.Now()
	return record.Attempts, nil
}

func (f *fakeOTPStore) ExpireStalePending(ctx context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	expired := 0
	for _, record := range f.records {
		if record.Status == models.OTPStatusPending && record.ExpiresAt.Before(now) {
			record.Status = models.OTPStatusExpired
			record.UpdatedAt = now
			expired++
		}
	}
	return expired, nil
}

func (f *fakeOTPStore) SweepStale(ctx context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	deleted := 0
	for key, record := range f.records {
		if record.ExpiresAt.Before(cutoff) {
			delete(f.records, key)
			deleted++
		}
	}
	return deleted, nil
}

// setExpiry rewrites a stored record's expiry, standing in for the
// passage of time.
func (f *fakeOTPStore) setExpiry(userID string, otpType models.OTPType, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[models.OTPPK(userID, otpType)].ExpiresAt = at
}

func (f *fakeOTPStore) status(userID string, otpType models.OTPType) models.OTPStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[models.OTPPK(userID, otpType)].Status
}

type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.AuthToken
	err    error
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]*models.AuthToken)}
}

func (f *fakeTokenStore) Store(ctx context.Context, token *models.AuthToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tokens[token.Token] = token
	return nil
}

func (f *fakeTokenStore) Get(ctx context.Context, token string) (*models.AuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.tokens[token]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (f *fakeTokenStore) Revoke(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if record, ok := f.tokens[token]; ok {
		record.IsValid = false
		record.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeTokenStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	deleted := 0
	for key, record := range f.tokens {
		if record.ExpiresAt.Before(now) || !record.IsValid {
			delete(f.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeTokenStore) setExpiry(token string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token].ExpiresAt = at
}
