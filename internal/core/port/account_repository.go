package port

import (
	"context"
	"time"

	"github.com/serenbook/account-service/internal/core/domain"
)

// AccountRepository abstracts the persisted account record. Every mutating
// operation must be applied as a single atomic update against the row so that
// concurrent requests for the same account cannot lose counter increments.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, accountType domain.AccountType, email string) (*domain.Account, error)
	GetByResetToken(ctx context.Context, accountType domain.AccountType, token string, hashed bool) (*domain.Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)

	// SetOTPChallenge stores a new OTP challenge, discarding any prior one:
	// the code hash and expiry are replaced, the attempt counter reset, and
	// the cooldown cleared in one statement.
	SetOTPChallenge(ctx context.Context, id, codeHash string, expiresAt time.Time) error

	// FailOTPAttempt increments the OTP attempt counter and, when the new
	// count reaches maxAttempts, opens the cooldown window ending at
	// lockUntil. Returns the post-increment count and whether the account is
	// now OTP-locked.
	FailOTPAttempt(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (attempts int, locked bool, err error)

	// ConsumeOTPChallenge clears the OTP fields, conditional on the stored
	// code hash still matching, enforcing single use under concurrency.
	// markVerified additionally flips is_email_verified in the same statement.
	// Returns repository.ErrNotFound when the challenge was already consumed.
	ConsumeOTPChallenge(ctx context.Context, id, codeHash string, markVerified bool) error

	// RecordLoginFailure increments the login attempt counter and opens the
	// lockout window once threshold is reached. Returns the post-increment
	// count and whether this failure crossed the threshold.
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (attempts int, nowLocked bool, err error)

	// RecordLoginSuccess clears the lockout counters unconditionally and
	// stamps last_login.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error

	// StageRecovery writes the combined forgot-password artifacts (OTP
	// challenge plus reset token) in one statement so a dispatch failure can
	// roll the pair back without leaving orphaned reset state.
	StageRecovery(ctx context.Context, id, otpCodeHash string, otpExpiresAt time.Time, resetToken string, resetHashed bool, resetExpiresAt time.Time) error

	// ClearRecovery removes both the OTP challenge and the reset credential.
	ClearRecovery(ctx context.Context, id string) error

	// SetResetCredentials stores only a reset credential, leaving OTP state
	// untouched. Retained for the legacy hashed-token issuance path.
	SetResetCredentials(ctx context.Context, id, token string, hashed bool, expiresAt time.Time) error

	// ConsumeResetForPassword applies a new password hash and clears the reset
	// credential in the same statement, conditional on the stored token still
	// matching expectToken. clearOTP and markVerified serve the link+OTP flow;
	// clearLockout serves the legacy flow. Returns repository.ErrNotFound when
	// the credential was already consumed.
	ConsumeResetForPassword(ctx context.Context, id, expectToken, newPasswordHash string, clearOTP, clearLockout, markVerified bool) error

	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetVerificationStatus(ctx context.Context, id string, status domain.VerificationStatus) error
	Deactivate(ctx context.Context, id string) error

	// ListApprovedExperts returns experts satisfying the full visibility
	// predicate: active, moderation-approved, and email-verified.
	ListApprovedExperts(ctx context.Context) ([]domain.Account, error)
}
