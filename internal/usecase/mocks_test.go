package usecase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/serenbook/account-service/internal/core/domain"
	"github.com/serenbook/account-service/internal/core/port"
	"github.com/serenbook/account-service/internal/infra/security"
	"github.com/serenbook/account-service/internal/repository"
)

// memAccounts is an in-memory AccountRepository that mirrors the conditional
// update semantics of the PostgreSQL implementation.
type memAccounts struct {
	mu   sync.Mutex
	byID map[string]*domain.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: make(map[string]*domain.Account)}
}

func (m *memAccounts) put(account domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := account
	m.byID[account.ID] = &copied
}

func (m *memAccounts) get(id string) domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.byID[id]
}

func (m *memAccounts) Create(_ context.Context, account domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == account.Email {
			return repository.ErrDuplicateEmail
		}
		if account.Phone != "" && existing.Phone == account.Phone {
			return repository.ErrDuplicatePhone
		}
	}
	copied := account
	m.byID[account.ID] = &copied
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, accountType domain.AccountType, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.byID {
		if account.Type == accountType && account.Email == email {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAccounts) GetByResetToken(_ context.Context, accountType domain.AccountType, token string, hashed bool) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.byID {
		if account.Type != accountType || account.ResetToken == nil {
			continue
		}
		if *account.ResetToken == token && account.ResetTokenHashed == hashed {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAccounts) EmailExists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.byID {
		if account.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAccounts) PhoneExists(_ context.Context, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.byID {
		if account.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAccounts) SetOTPChallenge(_ context.Context, id, codeHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.OTPCodeHash = &codeHash
	account.OTPExpiresAt = &expiresAt
	account.OTPAttempts = 0
	account.OTPLockedUntil = nil
	return nil
}

func (m *memAccounts) FailOTPAttempt(_ context.Context, id string, maxAttempts int, lockUntil time.Time) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok {
		return 0, false, repository.ErrNotFound
	}
	account.OTPAttempts++
	if account.OTPAttempts >= maxAttempts {
		account.OTPLockedUntil = &lockUntil
		return account.OTPAttempts, true, nil
	}
	return account.OTPAttempts, false, nil
}

func (m *memAccounts) ConsumeOTPChallenge(_ context.Context, id, codeHash string, markVerified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok || account.OTPCodeHash == nil || *account.OTPCodeHash != codeHash {
		return repository.ErrNotFound
	}
	account.OTPCodeHash = nil
	account.OTPExpiresAt = nil
	account.OTPAttempts = 0
	account.OTPLockedUntil = nil
	if markVerified {
		account.IsEmailVerified = true
	}
	return nil
}

func (m *memAccounts) RecordLoginFailure(_ context.Context, id string, threshold int, lockUntil time.Time) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok {
		return 0, false, repository.ErrNotFound
	}
	if account.LoginAttempts < threshold {
		account.LoginAttempts++
	}
	if account.LoginAttempts >= threshold {
		account.LockUntil = &lockUntil
		return account.LoginAttempts, true, nil
	}
	return account.LoginAttempts, false, nil
}

func (m *memAccounts) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.LoginAttempts = 0
	account.LockUntil = nil
	account.LastLogin = &at
	return nil
}

func (m *memAccounts) StageRecovery(_ context.Context, id, otpCodeHash string, otpExpiresAt time.Time, resetToken string, resetHashed bool, resetExpiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.OTPCodeHash = &otpCodeHash
	account.OTPExpiresAt = &otpExpiresAt
	account.OTPAttempts = 0
	account.OTPLockedUntil = nil
	account.ResetToken = &resetToken
	account.ResetTokenHashed = resetHashed
	account.ResetExpiresAt = &resetExpiresAt
	return nil
}

func (m *memAccounts) ClearRecovery(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.OTPCodeHash = nil
	account.OTPExpiresAt = nil
	account.OTPAttempts = 0
	account.OTPLockedUntil = nil
	account.ResetToken = nil
	account.ResetTokenHashed = false
	account.ResetExpiresAt = nil
	return nil
}

func (m *memAccounts) SetResetCredentials(_ context.Context, id, token string, hashed bool, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.ResetToken = &token
	account.ResetTokenHashed = hashed
	account.ResetExpiresAt = &expiresAt
	return nil
}

func (m *memAccounts) ConsumeResetForPassword(_ context.Context, id, expectToken, newPasswordHash string, clearOTP, clearLockout, markVerified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok || account.ResetToken == nil || *account.ResetToken != expectToken {
		return repository.ErrNotFound
	}
	account.PasswordHash = newPasswordHash
	account.ResetToken = nil
	account.ResetTokenHashed = false
	account.ResetExpiresAt = nil
	if clearOTP {
		account.OTPCodeHash = nil
		account.OTPExpiresAt = nil
		account.OTPAttempts = 0
		account.OTPLockedUntil = nil
	}
	if clearLockout {
		account.LoginAttempts = 0
		account.LockUntil = nil
	}
	if markVerified {
		account.IsEmailVerified = true
	}
	return nil
}

func (m *memAccounts) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.PasswordHash = passwordHash
	return nil
}

func (m *memAccounts) SetVerificationStatus(_ context.Context, id string, status domain.VerificationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.VerificationStatus = status
	return nil
}

func (m *memAccounts) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.IsActive = false
	return nil
}

func (m *memAccounts) ListApprovedExperts(_ context.Context) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	experts := make([]domain.Account, 0)
	for _, account := range m.byID {
		if account.Type == domain.AccountTypeExpert && account.PubliclyListable() {
			experts = append(experts, *account)
		}
	}
	return experts, nil
}

var _ port.AccountRepository = (*memAccounts)(nil)

// stubEmail records outbound mail and can be told to fail.
type stubEmail struct {
	mu          sync.Mutex
	otps        []port.OTPEmail
	resets      []port.PasswordResetEmail
	welcomes    []string
	failOTP     bool
	failReset   bool
	failWelcome bool
}

func (s *stubEmail) SendOTP(_ context.Context, msg port.OTPEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOTP {
		return errors.New("smtp unavailable")
	}
	s.otps = append(s.otps, msg)
	return nil
}

func (s *stubEmail) SendPasswordReset(_ context.Context, msg port.PasswordResetEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReset {
		return errors.New("smtp unavailable")
	}
	s.resets = append(s.resets, msg)
	return nil
}

func (s *stubEmail) SendWelcome(_ context.Context, to, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWelcome {
		return errors.New("smtp unavailable")
	}
	s.welcomes = append(s.welcomes, to)
	return nil
}

var _ port.EmailGateway = (*stubEmail)(nil)

// stubEvents records published events.
type stubEvents struct {
	mu              sync.Mutex
	registered      []domain.AccountRegisteredEvent
	verified        []domain.EmailVerifiedEvent
	locked          []domain.AccountLockedEvent
	passwordChanged []domain.PasswordChangedEvent
	resetRequested  []domain.PasswordResetRequestedEvent
}

func (s *stubEvents) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = append(s.registered, event)
	return nil
}

func (s *stubEvents) PublishEmailVerified(_ context.Context, event domain.EmailVerifiedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified = append(s.verified, event)
	return nil
}

func (s *stubEvents) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = append(s.locked, event)
	return nil
}

func (s *stubEvents) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwordChanged = append(s.passwordChanged, event)
	return nil
}

func (s *stubEvents) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetRequested = append(s.resetRequested, event)
	return nil
}

var _ port.EventPublisher = (*stubEvents)(nil)

type staticKeys struct {
	key *rsa.PrivateKey
}

func (p *staticKeys) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.key, nil
}

func (p *staticKeys) GetVerificationKey(string) (*rsa.PublicKey, error) {
	return &p.key.PublicKey, nil
}

func newTestIssuer(t *testing.T) *security.TokenIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	issuer, err := security.NewTokenIssuer(&staticKeys{key: key}, "test", "account-service-test", 15*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}

	return issuer
}
