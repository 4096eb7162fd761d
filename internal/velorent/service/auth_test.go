package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/25x8/velorent/internal/velorent/apperr"
	"github.com/25x8/velorent/internal/velorent/middleware"
	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/25x8/velorent/internal/velorent/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codeRe = regexp.MustCompile(`\b\d{6}\b`)

func (e *testEnv) register(t *testing.T, email, password string) int64 {
	t.Helper()
	profile, err := e.auth.Register(context.Background(), Credentials{Email: email, Password: password})
	require.NoError(t, err)
	return profile.ID
}

func (e *testEnv) lastCode(t *testing.T) string {
	t.Helper()
	e.mailer.mu.Lock()
	defer e.mailer.mu.Unlock()
	require.NotEmpty(t, e.mailer.sent)
	code := codeRe.FindString(e.mailer.sent[len(e.mailer.sent)-1].body)
	require.Len(t, code, 6)
	return code
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestAuthService_Register(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	profile, err := env.auth.Register(ctx, Credentials{Email: "ivan@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, profile.Role)
	assert.Equal(t, models.StatusDraft, profile.Status)
	assert.Nil(t, profile.FullName)

	_, err = env.auth.Register(ctx, Credentials{Email: "IVAN@example.com", Password: "other"})
	assertKind(t, err, apperr.KindConflict)

	_, err = env.auth.Register(ctx, Credentials{Email: "not-an-email", Password: "x"})
	assertKind(t, err, apperr.KindValidation)

	_, err = env.auth.Register(ctx, Credentials{Email: "petr@example.com"})
	assertKind(t, err, apperr.KindValidation)

	stored, err := env.repo.GetUserByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "secret", stored.PasswordHash)
}

func TestAuthService_EmailCaseIsFolded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	profile, err := env.auth.Register(ctx, Credentials{Email: " Ivan@Example.COM ", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "ivan@example.com", profile.Email)

	stored, err := env.repo.GetUserByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "ivan@example.com", stored.Email)

	_, err = env.auth.Login(ctx, Credentials{Email: "IVAN@example.com", Password: "secret"})
	require.NoError(t, err)

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "Ivan@EXAMPLE.com"))
	assert.Equal(t, 1, env.mailer.count())
	assert.Equal(t, "ivan@example.com", env.mailer.sent[0].to)
}

// afterEmailLookup runs hook once, right after the first email lookup returns
type afterEmailLookup struct {
	*repository.MemoryRepository
	hook func()
}

func (r *afterEmailLookup) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := r.MemoryRepository.GetUserByEmail(ctx, email)
	if r.hook != nil {
		hook := r.hook
		r.hook = nil
		hook()
	}
	return user, err
}

func TestAuthService_FailedLoginKeepsConcurrentReject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.approvedUser(t, "ivan@example.com")

	repo := &afterEmailLookup{
		MemoryRepository: env.repo,
		hook: func() {
			_, err := env.docs.Reject(ctx, id, "passport is unreadable")
			require.NoError(t, err)
		},
	}
	auth := *env.auth
	auth.repo = repo

	_, err := auth.Login(ctx, Credentials{Email: "ivan@example.com", Password: "wrong"})
	assertKind(t, err, apperr.KindUnauthorized)

	user, err := env.repo.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, user.Status)
	require.NotNil(t, user.RejectionReason)
	assert.Equal(t, "passport is unreadable", *user.RejectionReason)
	assert.Nil(t, user.FullName)
	assert.Nil(t, user.Passport)
	assert.Equal(t, 1, user.FailedLoginAttempts)
	assert.NotNil(t, user.LastFailedLoginAt)
}

func TestAuthService_LoginIssuesToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "ivan@example.com", "secret")

	token, err := env.auth.Login(ctx, Credentials{Email: "ivan@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", token.TokenType)

	claims, err := middleware.ParseToken(token.AccessToken, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)

	_, err = env.auth.Login(ctx, Credentials{Email: "nobody@example.com", Password: "secret"})
	assertKind(t, err, apperr.KindUnauthorized)

	me, err := env.auth.Me(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ivan@example.com", me.Email)
}

func TestAuthService_LoginLockout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "ivan@example.com", "secret")

	for i := 0; i < 3; i++ {
		_, err := env.auth.Login(ctx, Credentials{Email: "ivan@example.com", Password: "wrong"})
		assertKind(t, err, apperr.KindUnauthorized)
		env.advance(time.Second)
	}

	// locked even with the right password
	_, err := env.auth.Login(ctx, Credentials{Email: "ivan@example.com", Password: "secret"})
	assertKind(t, err, apperr.KindRateLimited)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, 19*time.Second, e.RetryAfter)

	env.advance(20 * time.Second)
	_, err = env.auth.Login(ctx, Credentials{Email: "ivan@example.com", Password: "secret"})
	require.NoError(t, err)

	user, err := env.repo.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, user.FailedLoginAttempts)
	assert.Nil(t, user.LastFailedLoginAt)
}

func TestAuthService_LapsedLockResetsCounter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "ivan@example.com", "secret")

	for i := 0; i < 3; i++ {
		_, err := env.auth.Login(ctx, Credentials{Email: "ivan@example.com", Password: "wrong"})
		assertKind(t, err, apperr.KindUnauthorized)
	}
	env.advance(21 * time.Second)

	// the first attempt after the window starts a fresh count
	_, err := env.auth.Login(ctx, Credentials{Email: "ivan@example.com", Password: "wrong"})
	assertKind(t, err, apperr.KindUnauthorized)

	user, err := env.repo.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, user.FailedLoginAttempts)
}

func TestAuthService_PasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ivan@example.com", "old-password")

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "ivan@example.com"))
	require.Equal(t, 1, env.mailer.count())
	first := env.lastCode(t)

	// a new request invalidates the first code
	require.NoError(t, env.auth.RequestPasswordReset(ctx, "ivan@example.com"))
	code := env.lastCode(t)

	if first != code {
		err := env.auth.ConfirmPasswordReset(ctx, PasswordResetConfirm{Email: "ivan@example.com", Code: first, NewPassword: "new"})
		assertKind(t, err, apperr.KindValidation)
	}

	err := env.auth.ConfirmPasswordReset(ctx, PasswordResetConfirm{Email: "ivan@example.com", Code: code, NewPassword: "new-password"})
	require.NoError(t, err)

	_, err = env.auth.Login(ctx, Credentials{Email: "ivan@example.com", Password: "old-password"})
	assertKind(t, err, apperr.KindUnauthorized)
	_, err = env.auth.Login(ctx, Credentials{Email: "ivan@example.com", Password: "new-password"})
	require.NoError(t, err)

	// codes are single use
	err = env.auth.ConfirmPasswordReset(ctx, PasswordResetConfirm{Email: "ivan@example.com", Code: code, NewPassword: "again"})
	assertKind(t, err, apperr.KindValidation)
}

func TestAuthService_PasswordResetLockout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ivan@example.com", "old-password")

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "ivan@example.com"))
	code := env.lastCode(t)
	bad := wrongCode(code)

	for i := 0; i < 2; i++ {
		err := env.auth.ConfirmPasswordReset(ctx, PasswordResetConfirm{Email: "ivan@example.com", Code: bad, NewPassword: "x"})
		assertKind(t, err, apperr.KindValidation)
	}
	err := env.auth.ConfirmPasswordReset(ctx, PasswordResetConfirm{Email: "ivan@example.com", Code: bad, NewPassword: "x"})
	assertKind(t, err, apperr.KindRateLimited)

	env.advance(5 * time.Second)
	err = env.auth.ConfirmPasswordReset(ctx, PasswordResetConfirm{Email: "ivan@example.com", Code: code, NewPassword: "x"})
	assertKind(t, err, apperr.KindRateLimited)
	assert.Contains(t, err.Error(), "15 seconds")

	env.advance(15 * time.Second)
	err = env.auth.ConfirmPasswordReset(ctx, PasswordResetConfirm{Email: "ivan@example.com", Code: code, NewPassword: "new-password"})
	require.NoError(t, err)
}

func TestAuthService_PasswordResetExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ivan@example.com", "old-password")

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "ivan@example.com"))
	code := env.lastCode(t)

	env.advance(16 * time.Minute)
	err := env.auth.ConfirmPasswordReset(ctx, PasswordResetConfirm{Email: "ivan@example.com", Code: code, NewPassword: "x"})
	assertKind(t, err, apperr.KindValidation)
	assert.Equal(t, "Code expired", err.Error())

	// the expired code was consumed
	err = env.auth.ConfirmPasswordReset(ctx, PasswordResetConfirm{Email: "ivan@example.com", Code: code, NewPassword: "x"})
	assertKind(t, err, apperr.KindValidation)
	assert.Equal(t, "Invalid or expired code", err.Error())
}

func TestAuthService_PasswordResetIsGeneric(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "nobody@example.com"))
	assert.Zero(t, env.mailer.count())

	env.register(t, "ivan@example.com", "secret")
	env.mailer.err = errors.New("smtp down")
	require.NoError(t, env.auth.RequestPasswordReset(ctx, "ivan@example.com"))

	err := env.auth.ConfirmPasswordReset(ctx, PasswordResetConfirm{Email: "nobody@example.com", Code: "123456", NewPassword: "x"})
	assertKind(t, err, apperr.KindValidation)
}

type blockingThrottle struct {
	calls int
}

func (b *blockingThrottle) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	b.calls++
	return b.calls == 1, time.Minute, nil
}

func TestAuthService_PasswordResetThrottled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ivan@example.com", "secret")

	throttle := &blockingThrottle{}
	env.auth.throttle = throttle

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "ivan@example.com"))
	require.NoError(t, env.auth.RequestPasswordReset(ctx, "ivan@example.com"))
	assert.Equal(t, 2, throttle.calls)
	assert.Equal(t, 1, env.mailer.count())
}

func TestGenerateResetCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateResetCode()
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}
