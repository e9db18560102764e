package usecase

import "errors"

// Sentinel errors returned by the account services. The HTTP layer maps each
// to a status code and client-safe message exactly once; services below the
// boundary only wrap and compare.
var (
	// ErrDuplicateEmail indicates the email is already registered, on either account type.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicatePhone indicates the phone number is already registered.
	ErrDuplicatePhone = errors.New("phone already registered")
	// ErrInvalidCredentials indicates an unknown email or wrong password. The two
	// cases are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the login lockout window is open.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrAccountDeactivated indicates the account was soft-deleted.
	ErrAccountDeactivated = errors.New("account deactivated")
	// ErrAccountNotFound indicates no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")
	// ErrOTPInvalid indicates the submitted code does not match the live challenge,
	// or no challenge exists.
	ErrOTPInvalid = errors.New("invalid verification code")
	// ErrOTPExpired indicates the challenge exists but its validity window closed.
	ErrOTPExpired = errors.New("verification code expired")
	// ErrOTPLocked indicates the OTP attempt cooldown window is open.
	ErrOTPLocked = errors.New("too many verification attempts")
	// ErrAlreadyVerified indicates the email is verified and no code is needed.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrResetTokenInvalid indicates the reset credential is unknown, consumed, or expired.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
	// ErrCurrentPasswordInvalid indicates the current password check failed on change.
	ErrCurrentPasswordInvalid = errors.New("current password is incorrect")
	// ErrEmailDispatchFailed indicates a transactional email could not be delivered.
	ErrEmailDispatchFailed = errors.New("failed to send email")
	// ErrPasswordPolicyViolation wraps password validator findings.
	ErrPasswordPolicyViolation = errors.New("password does not meet requirements")
)
