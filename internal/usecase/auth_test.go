package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/serenbook/account-service/internal/core/domain"
	"github.com/serenbook/account-service/internal/infra/config"
	"github.com/serenbook/account-service/internal/infra/security"
)

const strongPassword = "Corr3ct-Horse-Battery"

func newAuthFixture(t *testing.T) (*AuthService, *memAccounts, *stubEmail, *stubEvents) {
	t.Helper()

	accounts := newMemAccounts()
	email := &stubEmail{}
	events := &stubEvents{}
	log := zaptest.NewLogger(t)

	otp := NewOTPService(accounts, email, events, config.OTPSettings{}, log)
	auth := NewAuthService(accounts, otp, newTestIssuer(t), nil, events,
		config.LockoutSettings{MaxAttempts: 3, LockDuration: 15 * time.Minute}, log)

	return auth, accounts, email, events
}

func seedAccount(t *testing.T, accounts *memAccounts, accountType domain.AccountType, email, password string) domain.Account {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	account := domain.Account{
		ID:                 "acc-" + email,
		Type:               accountType,
		Name:               "Seed",
		Email:              email,
		PasswordHash:       hash,
		IsActive:           true,
		VerificationStatus: domain.VerificationPending,
		CreatedAt:          time.Now().UTC(),
	}
	accounts.put(account)
	return account
}

func TestRegisterCreatesAccountAndSendsOTP(t *testing.T) {
	auth, accounts, email, events := newAuthFixture(t)

	result, err := auth.Register(context.Background(), RegisterInput{
		Type:     domain.AccountTypeExpert,
		Name:     "Nadia",
		Email:    "Nadia@Example.com",
		Phone:    "+15550100",
		Password: strongPassword,
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if !result.OTPSent {
		t.Fatalf("expected otp to be sent")
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatalf("expected token pair to be issued")
	}
	if result.Account.Email != "nadia@example.com" {
		t.Fatalf("expected normalized email, got %q", result.Account.Email)
	}
	if result.Account.PasswordHash != "" {
		t.Fatalf("password hash leaked on result")
	}
	if result.Account.VerificationStatus != domain.VerificationPending {
		t.Fatalf("expected pending verification, got %s", result.Account.VerificationStatus)
	}

	stored := accounts.get(result.Account.ID)
	if stored.OTPCodeHash == nil {
		t.Fatalf("expected otp challenge staged on the account")
	}
	if len(email.otps) != 1 {
		t.Fatalf("expected 1 otp email, got %d", len(email.otps))
	}
	if len(events.registered) != 1 || !events.registered[0].OTPSent {
		t.Fatalf("expected registered event with otp_sent=true")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	auth, accounts, _, _ := newAuthFixture(t)
	seedAccount(t, accounts, domain.AccountTypeUser, "taken@example.com", strongPassword)

	_, err := auth.Register(context.Background(), RegisterInput{
		Type:     domain.AccountTypeExpert,
		Name:     "Other",
		Email:    "taken@example.com",
		Password: strongPassword,
	})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	auth, _, _, _ := newAuthFixture(t)

	_, err := auth.Register(context.Background(), RegisterInput{
		Type:     domain.AccountTypeUser,
		Name:     "Weak",
		Email:    "weak@example.com",
		Password: "password",
	})
	if !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation, got %v", err)
	}
}

func TestRegisterSurvivesOTPDispatchFailure(t *testing.T) {
	auth, _, email, events := newAuthFixture(t)
	email.failOTP = true

	result, err := auth.Register(context.Background(), RegisterInput{
		Type:     domain.AccountTypeUser,
		Name:     "Nadia",
		Email:    "nadia@example.com",
		Password: strongPassword,
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if result.OTPSent {
		t.Fatalf("expected otp_sent=false when dispatch fails")
	}
	if len(events.registered) != 1 || events.registered[0].OTPSent {
		t.Fatalf("expected registered event with otp_sent=false")
	}
}

func TestLoginSuccess(t *testing.T) {
	auth, accounts, _, _ := newAuthFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeExpert, "nadia@example.com", strongPassword)

	result, err := auth.Login(context.Background(), LoginInput{
		Type:     domain.AccountTypeExpert,
		Email:    "nadia@example.com",
		Password: strongPassword,
	})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.Account.ID != seeded.ID {
		t.Fatalf("unexpected account: %s", result.Account.ID)
	}
	if result.Tokens.AccessToken == "" {
		t.Fatalf("expected access token")
	}

	stored := accounts.get(seeded.ID)
	if stored.LastLogin == nil {
		t.Fatalf("expected last_login stamped")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	auth, accounts, _, _ := newAuthFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	_, err := auth.Login(context.Background(), LoginInput{
		Type:     domain.AccountTypeUser,
		Email:    "nadia@example.com",
		Password: "wrong-password-1",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if accounts.get(seeded.ID).LoginAttempts != 1 {
		t.Fatalf("expected 1 recorded attempt")
	}
}

func TestLoginUnknownEmailIndistinguishable(t *testing.T) {
	auth, _, _, _ := newAuthFixture(t)

	_, err := auth.Login(context.Background(), LoginInput{
		Type:     domain.AccountTypeUser,
		Email:    "ghost@example.com",
		Password: strongPassword,
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestLoginLockoutThreshold(t *testing.T) {
	auth, accounts, _, events := newAuthFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	input := LoginInput{Type: domain.AccountTypeUser, Email: "nadia@example.com", Password: "wrong-password-1"}

	for i := 0; i < 2; i++ {
		if _, err := auth.Login(context.Background(), input); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// Third failure crosses the configured threshold.
	if _, err := auth.Login(context.Background(), input); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked on threshold, got %v", err)
	}
	if len(events.locked) != 1 || events.locked[0].Attempts != 3 {
		t.Fatalf("expected locked event with 3 attempts, got %+v", events.locked)
	}

	// While the window is open even the correct password is rejected, before
	// any comparison happens.
	_, err := auth.Login(context.Background(), LoginInput{
		Type:     domain.AccountTypeUser,
		Email:    "nadia@example.com",
		Password: strongPassword,
	})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked during window, got %v", err)
	}

	if accounts.get(seeded.ID).LockUntil == nil {
		t.Fatalf("expected lock_until set")
	}
}

func TestLoginLockExpiryAllowsRetry(t *testing.T) {
	auth, accounts, _, _ := newAuthFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	past := time.Now().UTC().Add(-time.Minute)
	stored := accounts.get(seeded.ID)
	stored.LoginAttempts = 3
	stored.LockUntil = &past
	accounts.put(stored)

	result, err := auth.Login(context.Background(), LoginInput{
		Type:     domain.AccountTypeUser,
		Email:    "nadia@example.com",
		Password: strongPassword,
	})
	if err != nil {
		t.Fatalf("expected login after lock expiry, got %v", err)
	}

	after := accounts.get(result.Account.ID)
	if after.LoginAttempts != 0 || after.LockUntil != nil {
		t.Fatalf("expected counters cleared after success")
	}
}

func TestLoginFailureAfterLapseHoldsCounter(t *testing.T) {
	auth, accounts, _, _ := newAuthFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	past := time.Now().UTC().Add(-time.Minute)
	stored := accounts.get(seeded.ID)
	stored.LoginAttempts = 3
	stored.LockUntil = &past
	accounts.put(stored)

	// A wrong password after the window lapses relocks immediately; the
	// attempt counter holds at the threshold instead of drifting upward.
	_, err := auth.Login(context.Background(), LoginInput{
		Type:     domain.AccountTypeUser,
		Email:    "nadia@example.com",
		Password: "wrong-password-1",
	})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected relock after lapsed window, got %v", err)
	}

	after := accounts.get(seeded.ID)
	if after.LoginAttempts != 3 {
		t.Fatalf("expected counter held at 3, got %d", after.LoginAttempts)
	}
	if after.LockUntil == nil || !after.LockUntil.After(time.Now().UTC()) {
		t.Fatalf("expected fresh lock window")
	}
}

func TestLoginDeactivatedAccount(t *testing.T) {
	auth, accounts, _, _ := newAuthFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	stored := accounts.get(seeded.ID)
	stored.IsActive = false
	accounts.put(stored)

	_, err := auth.Login(context.Background(), LoginInput{
		Type:     domain.AccountTypeUser,
		Email:    "nadia@example.com",
		Password: strongPassword,
	})
	if !errors.Is(err, ErrAccountDeactivated) {
		t.Fatalf("expected ErrAccountDeactivated, got %v", err)
	}
}
