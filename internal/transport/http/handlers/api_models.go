package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/serenbook/account-service/internal/core/domain"
	"github.com/serenbook/account-service/internal/infra/security"
)

// ErrorResponse represents the failure envelope returned by every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, message string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Message: message,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple success payload.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AccountSummary describes the view of an account returned by the API.
// Credential and challenge state never appears here.
type AccountSummary struct {
	ID                 string                    `json:"id"`
	Type               domain.AccountType        `json:"type"`
	Name               string                    `json:"name"`
	Email              string                    `json:"email"`
	Phone              string                    `json:"phone,omitempty"`
	IsEmailVerified    bool                      `json:"is_email_verified"`
	IsActive           bool                      `json:"is_active"`
	VerificationStatus domain.VerificationStatus `json:"verification_status"`
	LastLogin          *time.Time                `json:"last_login,omitempty"`
	CreatedAt          time.Time                 `json:"created_at"`
}

func newAccountSummary(account domain.Account) AccountSummary {
	return AccountSummary{
		ID:                 account.ID,
		Type:               account.Type,
		Name:               account.Name,
		Email:              account.Email,
		Phone:              account.Phone,
		IsEmailVerified:    account.IsEmailVerified,
		IsActive:           account.IsActive,
		VerificationStatus: account.VerificationStatus,
		LastLogin:          account.LastLogin,
		CreatedAt:          account.CreatedAt,
	}
}

// TokenPayload carries a signed token pair in responses.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func newTokenPayload(pair security.TokenPair) TokenPayload {
	return TokenPayload{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
	}
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"omitempty"`
	Password string `json:"password" binding:"required,min=8"`
}

// RegisterResponse contains the created account and its first token pair.
type RegisterResponse struct {
	Success bool           `json:"success"`
	Account AccountSummary `json:"account"`
	Tokens  TokenPayload   `json:"tokens"`
	OTPSent bool           `json:"otp_sent"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	Success bool           `json:"success"`
	Account AccountSummary `json:"account"`
	Tokens  TokenPayload   `json:"tokens"`
}

// SendOTPRequest asks for a fresh email verification code.
type SendOTPRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyOTPRequest holds the verification payload.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// ForgotPasswordRequest starts a password reset. Legacy selects the
// hashed single-token contract retained for older clients.
type ForgotPasswordRequest struct {
	Email  string `json:"email" binding:"required"`
	Legacy bool   `json:"legacy"`
}

// ResetPasswordOTPRequest confirms a reset; the link token arrives in the
// query string and the pending OTP challenge on the account authorizes it.
type ResetPasswordOTPRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ResetPasswordRequest confirms a legacy reset with the emailed token.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ResetPasswordResponse returns the auto-login tokens issued by the legacy flow.
type ResetPasswordResponse struct {
	Success bool           `json:"success"`
	Account AccountSummary `json:"account"`
	Tokens  TokenPayload   `json:"tokens"`
}

// ChangePasswordRequest rotates the password of an authenticated account.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// VerificationStatusRequest flips the moderation state of an expert.
type VerificationStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// DirectoryResponse lists publicly visible experts.
type DirectoryResponse struct {
	Success bool             `json:"success"`
	Experts []AccountSummary `json:"experts"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the status of each dependency probe.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
