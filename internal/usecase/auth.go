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

// AuthService handles registration and login for both account types. Lockout
// state lives on the account row; the service only interprets it.
type AuthService struct {
	accounts  port.AccountRepository
	otp       *OTPService
	issuer    *security.TokenIssuer
	validator *security.PasswordValidator
	events    port.EventPublisher
	lockout   config.LockoutSettings
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(accounts port.AccountRepository, otp *OTPService, issuer *security.TokenIssuer, validator *security.PasswordValidator, events port.EventPublisher, lockout config.LockoutSettings, log *zap.Logger) *AuthService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if lockout.MaxAttempts <= 0 {
		lockout.MaxAttempts = 5
	}
	if lockout.LockDuration <= 0 {
		lockout.LockDuration = 15 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthService{
		accounts:  accounts,
		otp:       otp,
		issuer:    issuer,
		validator: validator,
		events:    events,
		lockout:   lockout,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RegisterInput carries a new account application.
type RegisterInput struct {
	Type     domain.AccountType
	Name     string
	Email    string
	Phone    string
	Password string
}

// RegisterResult returns the created account, a token pair, and whether the
// verification code reached the mail gateway.
type RegisterResult struct {
	Account domain.Account
	Tokens  security.TokenPair
	OTPSent bool
}

// LoginInput carries a credential check request.
type LoginInput struct {
	Type     domain.AccountType
	Email    string
	Password string
}

// LoginResult returns the authenticated account and a fresh token pair.
type LoginResult struct {
	Account domain.Account
	Tokens  security.TokenPair
}

// Register creates an account, stages an email verification challenge, and
// signs the account in. A failed code dispatch never fails the registration;
// the caller learns about it through OTPSent.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	phone := strings.TrimSpace(input.Phone)

	if name == "" || email == "" {
		return nil, fmt.Errorf("name and email are required")
	}

	if err := s.validator.Validate(input.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	if taken, err := s.accounts.EmailExists(ctx, email); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	} else if taken {
		return nil, ErrDuplicateEmail
	}

	if phone != "" {
		if taken, err := s.accounts.PhoneExists(ctx, phone); err != nil {
			return nil, fmt.Errorf("check phone: %w", err)
		} else if taken {
			return nil, ErrDuplicatePhone
		}
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:                 uuid.NewString(),
		Type:               input.Type,
		Name:               name,
		Email:              email,
		Phone:              phone,
		PasswordHash:       hash,
		IsActive:           true,
		VerificationStatus: domain.VerificationPending,
		CreatedAt:          now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		// The pre-checks race with concurrent registrations; the unique
		// constraints are the source of truth.
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrDuplicateEmail
		case errors.Is(err, repository.ErrDuplicatePhone):
			return nil, ErrDuplicatePhone
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	otpSent := true
	if err := s.otp.DispatchVerification(ctx, account); err != nil {
		otpSent = false
	}

	tokens, err := s.issuer.Issue(account.ID, string(account.Type))
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	telemetry.RegistrationsTotal.WithLabelValues(string(account.Type)).Inc()
	s.publishRegistered(ctx, account, otpSent, now)

	s.logger.Info("account registered",
		zap.String("account_id", account.ID),
		zap.String("account_type", string(account.Type)),
		zap.String("email", logger.MaskEmail(account.Email)),
		zap.Bool("otp_sent", otpSent))

	return &RegisterResult{Account: account.Sanitized(), Tokens: tokens, OTPSent: otpSent}, nil
}

// Login verifies credentials. The lockout gate runs before the password
// comparison so a locked account responds identically to right and wrong
// passwords.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByEmail(ctx, input.Type, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if !account.IsActive {
		return nil, ErrAccountDeactivated
	}

	now := s.now().UTC()
	if account.Locked(now) {
		telemetry.LoginsTotal.WithLabelValues(string(input.Type), telemetry.ResultLocked).Inc()
		return nil, ErrAccountLocked
	}

	matches, err := security.VerifyPassword(input.Password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !matches {
		return nil, s.recordFailure(ctx, *account, now)
	}

	if err := s.accounts.RecordLoginSuccess(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("record login success: %w", err)
	}

	tokens, err := s.issuer.Issue(account.ID, string(account.Type))
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	account.LoginAttempts = 0
	account.LockUntil = nil
	account.LastLogin = &now

	telemetry.LoginsTotal.WithLabelValues(string(input.Type), telemetry.ResultSuccess).Inc()

	return &LoginResult{Account: account.Sanitized(), Tokens: tokens}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, account domain.Account, now time.Time) error {
	lockUntil := now.Add(s.lockout.LockDuration)
	attempts, nowLocked, err := s.accounts.RecordLoginFailure(ctx, account.ID, s.lockout.MaxAttempts, lockUntil)
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}

	if nowLocked {
		s.logger.Warn("account locked after repeated login failures",
			zap.String("account_id", account.ID),
			zap.Int("attempts", attempts))
		telemetry.LockoutsTotal.WithLabelValues(string(account.Type)).Inc()
		s.publishLocked(ctx, account, attempts, now, lockUntil)
		return ErrAccountLocked
	}

	telemetry.LoginsTotal.WithLabelValues(string(account.Type), telemetry.ResultFailure).Inc()
	return ErrInvalidCredentials
}

func (s *AuthService) publishRegistered(ctx context.Context, account domain.Account, otpSent bool, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.AccountRegisteredEvent{
		EventID:      uuid.NewString(),
		AccountID:    account.ID,
		AccountType:  account.Type,
		Email:        account.Email,
		Phone:        account.Phone,
		RegisteredAt: at,
		OTPSent:      otpSent,
	}
	if err := s.events.PublishAccountRegistered(ctx, event); err != nil {
		s.logger.Warn("publish account registered event failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}
}

func (s *AuthService) publishLocked(ctx context.Context, account domain.Account, attempts int, at, until time.Time) {
	if s.events == nil {
		return
	}

	event := domain.AccountLockedEvent{
		EventID:     uuid.NewString(),
		AccountID:   account.ID,
		AccountType: account.Type,
		Attempts:    attempts,
		LockedAt:    at,
		LockedUntil: until,
	}
	if err := s.events.PublishAccountLocked(ctx, event); err != nil {
		s.logger.Warn("publish account locked event failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}
}
