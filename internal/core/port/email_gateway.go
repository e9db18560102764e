package port

import "context"

// OTPPurpose identifies why a one-time code is being delivered.
type OTPPurpose string

const (
	OTPPurposeVerification  OTPPurpose = "email_verification"
	OTPPurposePasswordReset OTPPurpose = "password_reset"
)

// OTPEmail carries the data needed to deliver a one-time code.
type OTPEmail struct {
	To      string
	Name    string
	Code    string
	Purpose OTPPurpose
	// Link optionally embeds a reset link alongside the code.
	Link string
}

// PasswordResetEmail carries the combined reset-link + OTP message of the
// current reset flow.
type PasswordResetEmail struct {
	To   string
	Name string
	Code string
	Link string
}

// EmailGateway delivers transactional mail. Implementations report delivery
// failure via the returned error; callers decide whether a failure is fatal to
// the surrounding operation.
type EmailGateway interface {
	SendOTP(ctx context.Context, msg OTPEmail) error
	SendPasswordReset(ctx context.Context, msg PasswordResetEmail) error
	SendWelcome(ctx context.Context, to, name string) error
}
