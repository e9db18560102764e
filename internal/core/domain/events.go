package domain

import "time"

// AccountRegisteredEvent represents the payload for accounts.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	AccountType  AccountType
	Email        string
	Phone        string
	RegisteredAt time.Time
	OTPSent      bool
	Metadata     map[string]any
}

// EmailVerifiedEvent represents the payload for accounts.email_verified messages.
type EmailVerifiedEvent struct {
	EventID     string
	AccountID   string
	AccountType AccountType
	Email       string
	VerifiedAt  time.Time
	Metadata    map[string]any
}

// AccountLockedEvent represents the payload for accounts.locked messages, emitted
// when consecutive login failures cross the lockout threshold.
type AccountLockedEvent struct {
	EventID     string
	AccountID   string
	AccountType AccountType
	Attempts    int
	LockedAt    time.Time
	LockedUntil time.Time
	Metadata    map[string]any
}

// PasswordChangedEvent represents the payload for accounts.password_changed messages.
type PasswordChangedEvent struct {
	EventID     string
	AccountID   string
	AccountType AccountType
	ChangedAt   time.Time
	// Method records which path mutated the credential: change, reset_otp, or reset_legacy.
	Method   string
	Metadata map[string]any
}

// PasswordResetRequestedEvent represents the payload for accounts.password_reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	AccountID         string
	AccountType       AccountType
	RequestedAt       time.Time
	MaskedDestination string
	ExpiresAt         time.Time
	Metadata          map[string]any
}
