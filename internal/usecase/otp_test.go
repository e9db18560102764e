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

func newOTPFixture(t *testing.T) (*OTPService, *memAccounts, *stubEmail, *stubEvents) {
	t.Helper()

	accounts := newMemAccounts()
	email := &stubEmail{}
	events := &stubEvents{}

	svc := NewOTPService(accounts, email, events,
		config.OTPSettings{CodeLength: 6, TTL: 10 * time.Minute, MaxAttempts: 3, Cooldown: 15 * time.Minute},
		zaptest.NewLogger(t))

	return svc, accounts, email, events
}

func TestSendVerificationCode(t *testing.T) {
	svc, accounts, email, _ := newOTPFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	if err := svc.SendVerificationCode(context.Background(), domain.AccountTypeUser, "nadia@example.com"); err != nil {
		t.Fatalf("SendVerificationCode returned error: %v", err)
	}

	if len(email.otps) != 1 {
		t.Fatalf("expected 1 otp email, got %d", len(email.otps))
	}
	if len(email.otps[0].Code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", email.otps[0].Code)
	}

	stored := accounts.get(seeded.ID)
	if stored.OTPCodeHash == nil || *stored.OTPCodeHash != security.HashToken(email.otps[0].Code) {
		t.Fatalf("stored hash does not match emailed code")
	}
	if stored.OTPAttempts != 0 {
		t.Fatalf("expected attempt counter reset")
	}
}

func TestSendVerificationCodeAlreadyVerified(t *testing.T) {
	svc, accounts, _, _ := newOTPFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	stored := accounts.get(seeded.ID)
	stored.IsEmailVerified = true
	accounts.put(stored)

	err := svc.SendVerificationCode(context.Background(), domain.AccountTypeUser, "nadia@example.com")
	if !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestSendVerificationCodeUnknownAccount(t *testing.T) {
	svc, _, _, _ := newOTPFixture(t)

	err := svc.SendVerificationCode(context.Background(), domain.AccountTypeUser, "ghost@example.com")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestVerifyMarksEmailVerified(t *testing.T) {
	svc, accounts, email, events := newOTPFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	if err := svc.SendVerificationCode(context.Background(), domain.AccountTypeUser, "nadia@example.com"); err != nil {
		t.Fatalf("SendVerificationCode returned error: %v", err)
	}
	code := email.otps[0].Code

	if err := svc.Verify(context.Background(), domain.AccountTypeUser, "nadia@example.com", code); err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	stored := accounts.get(seeded.ID)
	if !stored.IsEmailVerified {
		t.Fatalf("expected email verified")
	}
	if stored.OTPCodeHash != nil {
		t.Fatalf("expected challenge consumed")
	}
	if len(events.verified) != 1 {
		t.Fatalf("expected email verified event")
	}
	if len(email.welcomes) != 1 || email.welcomes[0] != "nadia@example.com" {
		t.Fatalf("expected welcome email, got %v", email.welcomes)
	}
}

func TestVerifySingleUse(t *testing.T) {
	svc, accounts, email, _ := newOTPFixture(t)
	seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	if err := svc.SendVerificationCode(context.Background(), domain.AccountTypeUser, "nadia@example.com"); err != nil {
		t.Fatalf("SendVerificationCode returned error: %v", err)
	}
	code := email.otps[0].Code

	if err := svc.Verify(context.Background(), domain.AccountTypeUser, "nadia@example.com", code); err != nil {
		t.Fatalf("first Verify returned error: %v", err)
	}

	err := svc.Verify(context.Background(), domain.AccountTypeUser, "nadia@example.com", code)
	if !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid on replay, got %v", err)
	}
}

func TestVerifyWrongCodeCooldown(t *testing.T) {
	svc, accounts, email, _ := newOTPFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	if err := svc.SendVerificationCode(context.Background(), domain.AccountTypeUser, "nadia@example.com"); err != nil {
		t.Fatalf("SendVerificationCode returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		err := svc.Verify(context.Background(), domain.AccountTypeUser, "nadia@example.com", "000000")
		if !errors.Is(err, ErrOTPInvalid) {
			t.Fatalf("attempt %d: expected ErrOTPInvalid, got %v", i+1, err)
		}
	}

	// Third wrong attempt opens the cooldown.
	err := svc.Verify(context.Background(), domain.AccountTypeUser, "nadia@example.com", "000000")
	if !errors.Is(err, ErrOTPLocked) {
		t.Fatalf("expected ErrOTPLocked at limit, got %v", err)
	}

	// Even the right code is refused while the cooldown is open.
	code := email.otps[0].Code
	err = svc.Verify(context.Background(), domain.AccountTypeUser, "nadia@example.com", code)
	if !errors.Is(err, ErrOTPLocked) {
		t.Fatalf("expected ErrOTPLocked during cooldown, got %v", err)
	}

	stored := accounts.get(seeded.ID)
	if stored.OTPLockedUntil == nil {
		t.Fatalf("expected cooldown timestamp set")
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	svc, accounts, email, _ := newOTPFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	if err := svc.SendVerificationCode(context.Background(), domain.AccountTypeUser, "nadia@example.com"); err != nil {
		t.Fatalf("SendVerificationCode returned error: %v", err)
	}

	svc.WithClock(func() time.Time { return time.Now().Add(11 * time.Minute) })

	err := svc.Verify(context.Background(), domain.AccountTypeUser, "nadia@example.com", email.otps[0].Code)
	if !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}

	// Expiry alone never burns an attempt.
	if accounts.get(seeded.ID).OTPAttempts != 0 {
		t.Fatalf("expected no attempt recorded for expired code")
	}
}

func TestVerifyWithoutChallenge(t *testing.T) {
	svc, accounts, _, _ := newOTPFixture(t)
	seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	err := svc.Verify(context.Background(), domain.AccountTypeUser, "nadia@example.com", "123456")
	if !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid without challenge, got %v", err)
	}
}

func TestResendReplacesChallenge(t *testing.T) {
	svc, accounts, email, _ := newOTPFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	if err := svc.SendVerificationCode(context.Background(), domain.AccountTypeUser, "nadia@example.com"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := svc.SendVerificationCode(context.Background(), domain.AccountTypeUser, "nadia@example.com"); err != nil {
		t.Fatalf("second send: %v", err)
	}
	second := email.otps[1].Code

	stored := accounts.get(seeded.ID)
	if stored.OTPCodeHash == nil || *stored.OTPCodeHash != security.HashToken(second) {
		t.Fatalf("expected latest code to own the challenge")
	}

	if err := svc.Verify(context.Background(), domain.AccountTypeUser, "nadia@example.com", second); err != nil {
		t.Fatalf("expected latest code accepted, got %v", err)
	}
}
