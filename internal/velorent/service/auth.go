package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/25x8/velorent/internal/velorent/apperr"
	"github.com/25x8/velorent/internal/velorent/config"
	"github.com/25x8/velorent/internal/velorent/metrics"
	"github.com/25x8/velorent/internal/velorent/middleware"
	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/25x8/velorent/internal/velorent/notify"
	"github.com/25x8/velorent/internal/velorent/repository"
	"github.com/25x8/velorent/internal/velorent/secure"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ResetRequestedMessage is returned for every reset request, known email or not
const ResetRequestedMessage = "If the email is registered, a reset code has been sent"

// Credentials is a register or login request
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Token is an issued access token
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// PasswordResetConfirm completes a reset with the mailed code
type PasswordResetConfirm struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// AuthService registers users, issues tokens and runs password resets
type AuthService struct {
	repo     repository.Repository
	cipher   *secure.Cipher
	mailer   notify.Mailer
	throttle notify.Throttle
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	jwtSecret        string
	tokenTTL         time.Duration
	maxFailedLogins  int
	loginLockout     time.Duration
	resetCodeTTL     time.Duration
	resetMaxAttempts int
	resetLockout     time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(repo repository.Repository, cipher *secure.Cipher, mailer notify.Mailer, throttle notify.Throttle,
	m *metrics.Metrics, cfg *config.Config, logger *zap.Logger) *AuthService {
	if throttle == nil {
		throttle = notify.NoThrottle{}
	}
	return &AuthService{
		repo:             repo,
		cipher:           cipher,
		mailer:           mailer,
		throttle:         throttle,
		metrics:          m,
		logger:           logger,
		now:              time.Now,
		jwtSecret:        cfg.JWTSecret,
		tokenTTL:         cfg.AccessTokenTTL,
		maxFailedLogins:  cfg.MaxFailedLogins,
		loginLockout:     cfg.LoginLockout,
		resetCodeTTL:     cfg.ResetCodeTTL,
		resetMaxAttempts: cfg.ResetMaxAttempts,
		resetLockout:     cfg.ResetLockout,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("Invalid email")
	}
	return strings.ToLower(email), nil
}

// lookupEmail folds an address the same way Register stored it
func lookupEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a regular user in draft status
func (s *AuthService) Register(ctx context.Context, in Credentials) (*Profile, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, apperr.Validation("Password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Status:       models.StatusDraft,
	}
	if _, err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("User already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return s.profile(user), nil
}

// Login checks credentials and issues an access token.
// A locked account is refused before the password is looked at.
func (s *AuthService) Login(ctx context.Context, in Credentials) (*Token, error) {
	user, err := s.repo.GetUserByEmail(ctx, lookupEmail(in.Email))
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if user != nil {
		if err := s.ensureNotLocked(ctx, user); err != nil {
			return nil, err
		}
	}

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		if user != nil {
			if err := s.registerFailedLogin(ctx, user); err != nil {
				return nil, err
			}
		}
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	if err := s.resetFailedLogins(ctx, user); err != nil {
		return nil, err
	}

	token, err := middleware.GenerateToken(user.ID, user.Role, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Token{AccessToken: token, TokenType: "bearer"}, nil
}

func (s *AuthService) ensureNotLocked(ctx context.Context, user *models.User) error {
	if user.FailedLoginAttempts < s.maxFailedLogins || user.LastFailedLoginAt == nil {
		return nil
	}

	elapsed := s.now().Sub(*user.LastFailedLoginAt)
	if elapsed < s.loginLockout {
		s.metrics.LoginLocked()
		s.logger.Warn("login locked", zap.Int64("user_id", user.ID))
		return apperr.RateLimited("Слишком много неуспешных попыток. Попробуйте позже.", s.loginLockout-elapsed)
	}

	return s.resetFailedLogins(ctx, user)
}

func (s *AuthService) registerFailedLogin(ctx context.Context, user *models.User) error {
	now := s.now()
	user.FailedLoginAttempts++
	user.LastFailedLoginAt = &now
	if err := s.repo.UpdateLoginState(ctx, user.ID, user.FailedLoginAttempts, user.LastFailedLoginAt); err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	return nil
}

func (s *AuthService) resetFailedLogins(ctx context.Context, user *models.User) error {
	if user.FailedLoginAttempts == 0 && user.LastFailedLoginAt == nil {
		return nil
	}
	user.FailedLoginAttempts = 0
	user.LastFailedLoginAt = nil
	if err := s.repo.UpdateLoginState(ctx, user.ID, 0, nil); err != nil {
		return fmt.Errorf("reset failed logins: %w", err)
	}
	return nil
}

// Me returns the profile of the current user
func (s *AuthService) Me(ctx context.Context, userID int64) (*Profile, error) {
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	return s.profile(user), nil
}

func (s *AuthService) profile(user *models.User) *Profile {
	return &Profile{
		ID:             user.ID,
		Email:          user.Email,
		Role:           user.Role,
		PersonalData:   decryptPersonal(s.cipher, user),
		Status:         user.Status,
		AutopayEnabled: user.AutopayEnabled,
	}
}

// generateResetCode returns a zero-padded 6 digit code
func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// RequestPasswordReset issues a new code and mails it. The outcome is never
// revealed to the caller.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, lookupEmail(email))
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		s.logger.Debug("password reset for unknown email")
		return nil
	}

	ok, wait, err := s.throttle.Allow(ctx, user.Email)
	if err != nil {
		s.logger.Warn("reset mail throttle unavailable", zap.Error(err))
	} else if !ok {
		s.logger.Info("password reset throttled", zap.Int64("user_id", user.ID), zap.Duration("wait", wait))
		return nil
	}

	code, err := generateResetCode()
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}

	now := s.now()
	err = s.repo.InTx(ctx, func(tx repository.Repository) error {
		if err := tx.InvalidateResetRequests(ctx, user.ID); err != nil {
			return fmt.Errorf("invalidate reset requests: %w", err)
		}
		_, err := tx.CreateResetRequest(ctx, &models.PasswordResetRequest{
			UserID:    user.ID,
			Code:      code,
			CreatedAt: now,
			ExpiresAt: now.Add(s.resetCodeTTL),
		})
		if err != nil {
			return fmt.Errorf("create reset request: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	subject, body := notify.PasswordResetMessage(code)
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.logger.Error("send reset mail", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil
	}

	s.logger.Info("password reset requested", zap.Int64("user_id", user.ID))
	return nil
}

// ConfirmPasswordReset checks the code and sets the new password.
// Attempt counters and locks are persisted even when the code is refused.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, in PasswordResetConfirm) error {
	if in.NewPassword == "" {
		return apperr.Validation("New password is required")
	}
	code := strings.TrimSpace(in.Code)

	user, err := s.repo.GetUserByEmail(ctx, lookupEmail(in.Email))
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return apperr.Validation("Invalid or expired code")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var outcome error
	err = s.repo.InTx(ctx, func(tx repository.Repository) error {
		req, err := tx.GetLatestResetRequest(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("load reset request: %w", err)
		}
		if req == nil {
			outcome = apperr.Validation("Invalid or expired code")
			return nil
		}

		now := s.now()
		if req.LockedUntil != nil {
			if now.Before(*req.LockedUntil) {
				remaining := req.LockedUntil.Sub(now)
				outcome = apperr.RateLimited(
					fmt.Sprintf("Too many attempts. Try again in %d seconds", ceilSeconds(remaining)), remaining)
				return nil
			}
			req.LockedUntil = nil
			req.Attempts = 0
		}

		if !now.Before(req.ExpiresAt) {
			req.IsUsed = true
			outcome = apperr.Validation("Code expired")
			return tx.UpdateResetRequest(ctx, req)
		}

		if subtle.ConstantTimeCompare([]byte(req.Code), []byte(code)) != 1 {
			req.Attempts++
			outcome = apperr.Validation("Invalid code")
			if req.Attempts >= s.resetMaxAttempts {
				until := now.Add(s.resetLockout)
				req.LockedUntil = &until
				req.Attempts = 0
				outcome = apperr.RateLimited(
					fmt.Sprintf("Too many attempts. Try again in %d seconds", ceilSeconds(s.resetLockout)), s.resetLockout)
			}
			return tx.UpdateResetRequest(ctx, req)
		}

		req.IsUsed = true
		req.Attempts = 0
		req.LockedUntil = nil
		if err := tx.UpdateResetRequest(ctx, req); err != nil {
			return fmt.Errorf("consume reset request: %w", err)
		}

		fresh, err := loadUser(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		fresh.PasswordHash = string(hash)
		fresh.FailedLoginAttempts = 0
		fresh.LastFailedLoginAt = nil
		if err := tx.UpdateUser(ctx, fresh); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if outcome != nil {
		return outcome
	}

	s.logger.Info("password reset completed", zap.Int64("user_id", user.ID))
	return nil
}

func ceilSeconds(d time.Duration) int64 {
	return int64((d + time.Second - 1) / time.Second)
}
