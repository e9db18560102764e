package usecase

import (
	"context"
	"errors"
	"fmt"
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

// OTPService owns the email verification challenge lifecycle: issuing codes,
// dispatching them, and verifying submissions against the stored hash.
type OTPService struct {
	accounts port.AccountRepository
	email    port.EmailGateway
	events   port.EventPublisher
	cfg      config.OTPSettings
	logger   *zap.Logger
	now      func() time.Time
}

// NewOTPService constructs an OTPService.
func NewOTPService(accounts port.AccountRepository, email port.EmailGateway, events port.EventPublisher, cfg config.OTPSettings, log *zap.Logger) *OTPService {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &OTPService{
		accounts: accounts,
		email:    email,
		events:   events,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *OTPService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Issue stages a fresh challenge on the account, replacing any prior one, and
// returns the plaintext code for delivery. Only the hash is persisted.
func (s *OTPService) Issue(ctx context.Context, accountID string) (string, error) {
	code, err := security.GenerateNumericCode(s.cfg.CodeLength)
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}

	expiresAt := s.now().UTC().Add(s.cfg.TTL)
	if err := s.accounts.SetOTPChallenge(ctx, accountID, security.HashToken(code), expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrAccountNotFound
		}
		return "", fmt.Errorf("store otp challenge: %w", err)
	}

	telemetry.OTPIssuedTotal.WithLabelValues("email_verification").Inc()
	return code, nil
}

// DispatchVerification issues a challenge and emails the code. Callers decide
// whether a dispatch failure is fatal.
func (s *OTPService) DispatchVerification(ctx context.Context, account domain.Account) error {
	code, err := s.Issue(ctx, account.ID)
	if err != nil {
		return err
	}

	msg := port.OTPEmail{
		To:      account.Email,
		Name:    account.Name,
		Code:    code,
		Purpose: port.OTPPurposeVerification,
	}
	if err := s.email.SendOTP(ctx, msg); err != nil {
		s.logger.Warn("otp email dispatch failed",
			zap.String("account_id", account.ID),
			zap.String("email", logger.MaskEmail(account.Email)),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrEmailDispatchFailed, err)
	}

	return nil
}

// SendVerificationCode handles an explicit resend request for an unverified account.
func (s *OTPService) SendVerificationCode(ctx context.Context, accountType domain.AccountType, email string) error {
	account, err := s.lookup(ctx, accountType, email)
	if err != nil {
		return err
	}

	if account.IsEmailVerified {
		return ErrAlreadyVerified
	}

	if account.OTPLocked(s.now().UTC()) {
		return ErrOTPLocked
	}

	return s.DispatchVerification(ctx, *account)
}

// Verify checks the submitted code against the live challenge and, on match,
// consumes it and marks the email verified. Guard order matters: the cooldown
// gate comes first so a locked account leaks nothing about challenge state.
func (s *OTPService) Verify(ctx context.Context, accountType domain.AccountType, email, code string) error {
	account, err := s.lookup(ctx, accountType, email)
	if err != nil {
		return err
	}

	now := s.now().UTC()

	if account.OTPLocked(now) {
		return ErrOTPLocked
	}

	if account.OTPCodeHash == nil || *account.OTPCodeHash == "" {
		return ErrOTPInvalid
	}

	if account.OTPExpiresAt == nil || !account.OTPExpiresAt.After(now) {
		return ErrOTPExpired
	}

	if security.HashToken(strings.TrimSpace(code)) != *account.OTPCodeHash {
		attempts, locked, err := s.accounts.FailOTPAttempt(ctx, account.ID, s.cfg.MaxAttempts, now.Add(s.cfg.Cooldown))
		if err != nil {
			return fmt.Errorf("record otp failure: %w", err)
		}
		if locked {
			s.logger.Info("otp cooldown opened",
				zap.String("account_id", account.ID),
				zap.Int("attempts", attempts))
			return ErrOTPLocked
		}
		return ErrOTPInvalid
	}

	// Conditional consume: if a concurrent request already cleared the
	// challenge the update matches zero rows and the code is rejected.
	if err := s.accounts.ConsumeOTPChallenge(ctx, account.ID, *account.OTPCodeHash, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOTPInvalid
		}
		return fmt.Errorf("consume otp challenge: %w", err)
	}

	s.publishEmailVerified(ctx, *account, now)
	s.sendWelcome(ctx, *account)

	return nil
}

func (s *OTPService) lookup(ctx context.Context, accountType domain.AccountType, email string) (*domain.Account, error) {
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

func (s *OTPService) publishEmailVerified(ctx context.Context, account domain.Account, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.EmailVerifiedEvent{
		EventID:     uuid.NewString(),
		AccountID:   account.ID,
		AccountType: account.Type,
		Email:       account.Email,
		VerifiedAt:  at,
	}
	if err := s.events.PublishEmailVerified(ctx, event); err != nil {
		s.logger.Warn("publish email verified event failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}
}

func (s *OTPService) sendWelcome(ctx context.Context, account domain.Account) {
	if err := s.email.SendWelcome(ctx, account.Email, account.Name); err != nil {
		s.logger.Warn("welcome email dispatch failed",
			zap.String("account_id", account.ID),
			zap.String("email", logger.MaskEmail(account.Email)),
			zap.Error(err))
	}
}
