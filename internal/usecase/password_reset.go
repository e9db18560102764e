package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/serenbook/account-service/internal/core/domain"
	"github.com/serenbook/account-service/internal/core/port"
	"github.com/serenbook/account-service/internal/infra/config"
	"github.com/serenbook/account-service/internal/infra/logger"
	"github.com/serenbook/account-service/internal/infra/security"
	"github.com/serenbook/account-service/internal/infra/telemetry"
	"github.com/serenbook/account-service/internal/repository"
)

const (
	passwordMethodChange      = "change"
	passwordMethodResetOTP    = "reset_otp"
	passwordMethodResetLegacy = "reset_legacy"

	resetTokenBytes = 32
)

// PasswordResetService coordinates the two reset flows and authenticated
// password changes. The current flow pairs an emailed link token with an OTP
// challenge; the legacy flow keeps the older single hashed-token contract for
// clients that have not migrated.
type PasswordResetService struct {
	accounts  port.AccountRepository
	email     port.EmailGateway
	events    port.EventPublisher
	issuer    *security.TokenIssuer
	validator *security.PasswordValidator
	otpCfg    config.OTPSettings
	resetCfg  config.ResetSettings
	baseURL   string
	logger    *zap.Logger
	now       func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(accounts port.AccountRepository, email port.EmailGateway, events port.EventPublisher, issuer *security.TokenIssuer, validator *security.PasswordValidator, otpCfg config.OTPSettings, resetCfg config.ResetSettings, baseURL string, log *zap.Logger) *PasswordResetService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if otpCfg.CodeLength <= 0 {
		otpCfg.CodeLength = 6
	}
	if otpCfg.TTL <= 0 {
		otpCfg.TTL = 10 * time.Minute
	}
	if otpCfg.MaxAttempts <= 0 {
		otpCfg.MaxAttempts = 5
	}
	if otpCfg.Cooldown <= 0 {
		otpCfg.Cooldown = 15 * time.Minute
	}
	if resetCfg.TokenTTL <= 0 {
		resetCfg.TokenTTL = 15 * time.Minute
	}
	if resetCfg.LegacyTokenTTL <= 0 {
		resetCfg.LegacyTokenTTL = 10 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &PasswordResetService{
		accounts:  accounts,
		email:     email,
		events:    events,
		issuer:    issuer,
		validator: validator,
		otpCfg:    otpCfg,
		resetCfg:  resetCfg,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    log,
		now:       time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Forgot stages the combined recovery artifacts and emails them. The OTP hash
// and the plaintext link token land on the row in one update so a dispatch
// failure can roll both back and leave no orphaned reset state.
func (s *PasswordResetService) Forgot(ctx context.Context, accountType domain.AccountType, email string) error {
	account, err := s.lookup(ctx, accountType, email)
	if err != nil {
		return err
	}

	if !account.IsActive {
		return ErrAccountDeactivated
	}

	code, err := security.GenerateNumericCode(s.otpCfg.CodeLength)
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}

	token, err := security.GenerateSecureToken(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now().UTC()
	if err := s.accounts.StageRecovery(ctx, account.ID,
		security.HashToken(code), now.Add(s.otpCfg.TTL),
		token, false, now.Add(s.resetCfg.TokenTTL),
	); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("stage recovery: %w", err)
	}

	msg := port.PasswordResetEmail{
		To:   account.Email,
		Name: account.Name,
		Code: code,
		Link: s.resetLink(token),
	}
	if err := s.email.SendPasswordReset(ctx, msg); err != nil {
		s.logger.Error("reset email dispatch failed, rolling back recovery state",
			zap.String("account_id", account.ID),
			zap.String("email", logger.MaskEmail(account.Email)),
			zap.Error(err))
		if clearErr := s.accounts.ClearRecovery(ctx, account.ID); clearErr != nil {
			s.logger.Error("recovery rollback failed",
				zap.String("account_id", account.ID), zap.Error(clearErr))
		}
		return fmt.Errorf("%w: %v", ErrEmailDispatchFailed, err)
	}

	telemetry.OTPIssuedTotal.WithLabelValues("password_reset").Inc()
	s.publishResetRequested(ctx, *account, now, now.Add(s.resetCfg.TokenTTL))

	return nil
}

// IssueLegacyReset serves clients still on the single-token reset contract.
// Only the sha256 of the token is stored; the plaintext goes out by email.
func (s *PasswordResetService) IssueLegacyReset(ctx context.Context, accountType domain.AccountType, email string) error {
	account, err := s.lookup(ctx, accountType, email)
	if err != nil {
		return err
	}

	if !account.IsActive {
		return ErrAccountDeactivated
	}

	token, err := security.GenerateSecureToken(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.resetCfg.LegacyTokenTTL)
	if err := s.accounts.SetResetCredentials(ctx, account.ID, security.HashToken(token), true, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("store reset credentials: %w", err)
	}

	msg := port.PasswordResetEmail{
		To:   account.Email,
		Name: account.Name,
		Link: s.resetLink(token),
	}
	if err := s.email.SendPasswordReset(ctx, msg); err != nil {
		s.logger.Error("legacy reset email dispatch failed, rolling back",
			zap.String("account_id", account.ID), zap.Error(err))
		if clearErr := s.accounts.ClearRecovery(ctx, account.ID); clearErr != nil {
			s.logger.Error("recovery rollback failed",
				zap.String("account_id", account.ID), zap.Error(clearErr))
		}
		return fmt.Errorf("%w: %v", ErrEmailDispatchFailed, err)
	}

	s.publishResetRequested(ctx, *account, now, expiresAt)

	return nil
}

// ResetWithOTP completes the current flow: the link token locates the account
// and a still-pending OTP challenge on the same row authorizes the change. The
// code itself is never re-entered here, so the two credentials stand or fall on
// their coupled expiries. Both clear together and the email is marked verified.
// No tokens are issued; the client signs in with the new password.
func (s *PasswordResetService) ResetWithOTP(ctx context.Context, accountType domain.AccountType, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrResetTokenInvalid
	}

	account, err := s.accounts.GetByResetToken(ctx, accountType, token, false)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	now := s.now().UTC()
	if account.ResetExpiresAt == nil || !account.ResetExpiresAt.After(now) {
		return ErrResetTokenInvalid
	}

	if account.OTPLocked(now) {
		return ErrOTPLocked
	}
	if !account.HasLiveOTP(now) {
		return ErrOTPExpired
	}

	if err := s.validator.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.ConsumeResetForPassword(ctx, account.ID, token, hash, true, false, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("consume reset credential: %w", err)
	}

	s.publishPasswordChanged(ctx, *account, passwordMethodResetOTP, now)

	return nil
}

// ResetWithLegacyToken completes the legacy flow: a single hashed token both
// locates the account and authorizes the change. The login lockout counters
// clear with it and the client is signed in immediately.
func (s *PasswordResetService) ResetWithLegacyToken(ctx context.Context, accountType domain.AccountType, token, newPassword string) (*LoginResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrResetTokenInvalid
	}

	tokenHash := security.HashToken(token)
	account, err := s.accounts.GetByResetToken(ctx, accountType, tokenHash, true)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("lookup reset token: %w", err)
	}

	now := s.now().UTC()
	if account.ResetExpiresAt == nil || !account.ResetExpiresAt.After(now) {
		return nil, ErrResetTokenInvalid
	}

	if err := s.validator.Validate(newPassword); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.ConsumeResetForPassword(ctx, account.ID, tokenHash, hash, false, true, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("consume reset credential: %w", err)
	}

	s.publishPasswordChanged(ctx, *account, passwordMethodResetLegacy, now)

	tokens, err := s.issuer.Issue(account.ID, string(account.Type))
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	return &LoginResult{Account: account.Sanitized(), Tokens: tokens}, nil
}

// ChangePassword updates an authenticated account's credential after checking
// the current one.
func (s *PasswordResetService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	matches, err := security.VerifyPassword(currentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify current password: %w", err)
	}
	if !matches {
		return ErrCurrentPasswordInvalid
	}

	if err := s.validator.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.publishPasswordChanged(ctx, *account, passwordMethodChange, s.now().UTC())

	return nil
}

func (s *PasswordResetService) lookup(ctx context.Context, accountType domain.AccountType, email string) (*domain.Account, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, ErrAccountNotFound
	}

	account, err := s.accounts.GetByEmail(ctx, accountType, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	return account, nil
}

func (s *PasswordResetService) resetLink(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, url.QueryEscape(token))
}

func (s *PasswordResetService) publishResetRequested(ctx context.Context, account domain.Account, at, expiresAt time.Time) {
	if s.events == nil {
		return
	}

	event := domain.PasswordResetRequestedEvent{
		EventID:           uuid.NewString(),
		AccountID:         account.ID,
		AccountType:       account.Type,
		RequestedAt:       at,
		MaskedDestination: logger.MaskEmail(account.Email),
		ExpiresAt:         expiresAt,
	}
	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		s.logger.Warn("publish password reset requested event failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}
}

func (s *PasswordResetService) publishPasswordChanged(ctx context.Context, account domain.Account, method string, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.PasswordChangedEvent{
		EventID:     uuid.NewString(),
		AccountID:   account.ID,
		AccountType: account.Type,
		ChangedAt:   at,
		Method:      method,
	}
	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed event failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}
}
