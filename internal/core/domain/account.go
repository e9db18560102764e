package domain

import "time"

// AccountType distinguishes the two marketplace roles sharing the accounts table.
type AccountType string

const (
	AccountTypeExpert AccountType = "expert"
	AccountTypeUser   AccountType = "user"
)

// VerificationStatus enumerates the moderation states gating marketplace visibility.
// It is orthogonal to email verification: an account can be email-verified and still
// pending review.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// Valid reports whether the status is one of the closed set of moderation states.
func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return true
	}
	return false
}

// Account mirrors the persisted representation in the accounts table. It owns the
// password hash and every piece of time-windowed security state: the OTP challenge,
// the reset credential, and the login lockout counters.
type Account struct {
	ID           string
	Type         AccountType
	Name         string
	Email        string
	Phone        string
	PasswordHash string

	IsEmailVerified    bool
	IsActive           bool
	VerificationStatus VerificationStatus

	// OTP challenge state. At most one live challenge exists per account;
	// issuing a new code overwrites these fields atomically.
	OTPCodeHash    *string
	OTPExpiresAt   *time.Time
	OTPAttempts    int
	OTPLockedUntil *time.Time

	// Reset credential state. ResetTokenHashed discriminates the legacy
	// hashed-token flow from the current plaintext link token; the two flows
	// never coexist on one record.
	ResetToken       *string
	ResetTokenHashed bool
	ResetExpiresAt   *time.Time

	// Login lockout counters, independent of the OTP attempt counter.
	LoginAttempts int
	LockUntil     *time.Time

	LastLogin *time.Time
	CreatedAt time.Time
}

// Locked reports whether the login lockout window is still open at the given instant.
func (a Account) Locked(now time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(now)
}

// OTPLocked reports whether the OTP cooldown window is still open at the given instant.
func (a Account) OTPLocked(now time.Time) bool {
	return a.OTPLockedUntil != nil && a.OTPLockedUntil.After(now)
}

// HasLiveOTP reports whether an unexpired OTP challenge is pending on the account.
func (a Account) HasLiveOTP(now time.Time) bool {
	return a.OTPCodeHash != nil && *a.OTPCodeHash != "" &&
		a.OTPExpiresAt != nil && a.OTPExpiresAt.After(now)
}

// PubliclyListable reports whether the account may appear in the public expert
// directory. All three gates must hold; none is ever inferred from another.
func (a Account) PubliclyListable() bool {
	return a.IsActive && a.VerificationStatus == VerificationApproved && a.IsEmailVerified
}

// Sanitized returns a copy safe for serialization outward.
func (a Account) Sanitized() Account {
	a.PasswordHash = ""
	a.OTPCodeHash = nil
	a.ResetToken = nil
	return a
}
