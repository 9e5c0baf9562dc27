package service

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/models"
)

func newTestUserService(t *testing.T, threshold int) (*UserService, *fakeUserStore) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store := newFakeUserStore()
	cfg := &config.LockoutConfig{Threshold: threshold}
	return NewUserService(store, cfg, logger), store
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newTestUserService(t, 5)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice@example.com", "+14155550100", "hunter2!")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, models.UserStatusActive, user.Status)

	authed, err := svc.Authenticate(ctx, "alice@example.com", "hunter2!")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)
	assert.Equal(t, 0, authed.FailedAttempts)
	assert.NotNil(t, authed.LastLoginAt)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestUserService(t, 5)
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "", "pw")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, "bob@example.com", "555-0100", "pw")
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Phone is optional.
	_, err = svc.Register(ctx, "bob@example.com", "", "pw")
	assert.NoError(t, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestUserService(t, 5)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "", "pw")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice@example.com", "", "pw")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	svc, _ := newTestUserService(t, 5)

	_, err := svc.Authenticate(context.Background(), "ghost@example.com", "pw")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthenticateBadPasswordCountsAttempt(t *testing.T) {
	svc, store, ctx := registeredUser(t, 5)

	_, err := svc.Authenticate(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrBadCredential)

	user, _ := store.GetByEmail(ctx, "alice@example.com")
	assert.Equal(t, 1, user.FailedAttempts)
	assert.Equal(t, models.UserStatusActive, user.Status)
}

func TestLockoutAtThreshold(t *testing.T) {
	svc, store, ctx := registeredUser(t, 5)

	// Four failures leave the account one attempt short of lockout.
	for i := 0; i < 4; i++ {
		_, err := svc.Authenticate(ctx, "alice@example.com", "wrong")
		assert.ErrorIs(t, err, ErrBadCredential)
	}
	user, _ := store.GetByEmail(ctx, "alice@example.com")
	require.Equal(t, 4, user.FailedAttempts)
	require.Equal(t, models.UserStatusActive, user.Status)

	// The fifth crosses the threshold.
	_, err := svc.Authenticate(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrBadCredential)
	user, _ = store.GetByEmail(ctx, "alice@example.com")
	assert.Equal(t, models.UserStatusLocked, user.Status)

	// Locked beats a correct password.
	_, err = svc.Authenticate(ctx, "alice@example.com", "hunter2!")
	assert.ErrorIs(t, err, ErrLocked)
	user, _ = store.GetByEmail(ctx, "alice@example.com")
	assert.Equal(t, 5, user.FailedAttempts, "login must not reset counters on a locked account")
}

func TestSuccessfulLoginResetsCounter(t *testing.T) {
	svc, store, ctx := registeredUser(t, 5)

	for i := 0; i < 3; i++ {
		_, err := svc.Authenticate(ctx, "alice@example.com", "wrong")
		assert.ErrorIs(t, err, ErrBadCredential)
	}

	_, err := svc.Authenticate(ctx, "alice@example.com", "hunter2!")
	require.NoError(t, err)

	user, _ := store.GetByEmail(ctx, "alice@example.com")
	assert.Equal(t, 0, user.FailedAttempts)
	assert.NotNil(t, user.LastLoginAt)
}

func TestAuthenticateDisabledAccount(t *testing.T) {
	svc, store, ctx := registeredUser(t, 5)

	user, _ := store.GetByEmail(ctx, "alice@example.com")
	user.Status = models.UserStatusDisabled

	_, err := svc.Authenticate(ctx, "alice@example.com", "hunter2!")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestAuthenticateUnavailableBackend(t *testing.T) {
	svc, store, ctx := registeredUser(t, 5)

	store.err = context.DeadlineExceeded
	_, err := svc.Authenticate(ctx, "alice@example.com", "hunter2!")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func registeredUser(t *testing.T, threshold int) (*UserService, *fakeUserStore, context.Context) {
	t.Helper()
	svc, store := newTestUserService(t, threshold)
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice@example.com", "", "hunter2!")
	require.NoError(t, err)
	return svc, store, ctx
}
