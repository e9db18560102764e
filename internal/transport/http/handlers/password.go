package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/serenbook/account-service/internal/core/domain"
	"github.com/serenbook/account-service/internal/transport/http/middleware"
	"github.com/serenbook/account-service/internal/usecase"
)

// PasswordHandler exposes the password reset and rotation endpoints for one account type.
type PasswordHandler struct {
	reset       *usecase.PasswordResetService
	accountType domain.AccountType
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(reset *usecase.PasswordResetService, accountType domain.AccountType) *PasswordHandler {
	return &PasswordHandler{reset: reset, accountType: accountType}
}

// ForgotPassword godoc
// @Summary Start a password reset
// @Description Stages reset credentials and emails them. A failed send rolls the staged state back.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Forgot password request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse "Account deactivated"
// @Failure 404 {object} ErrorResponse "Account not found"
// @Failure 429 {object} middleware.ProblemDetails "Rate limit exceeded"
// @Failure 500 {object} ErrorResponse "Email dispatch failed"
// @Router /api/v1/{accountType}/forgot-password [post]
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid forgot-password payload"))
		return
	}

	email := strings.TrimSpace(req.Email)

	var err error
	if req.Legacy {
		err = h.reset.IssueLegacyReset(c.Request.Context(), h.accountType, email)
	} else {
		err = h.reset.Forgot(c.Request.Context(), h.accountType, email)
	}
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
			{Err: usecase.ErrAccountDeactivated, Status: http.StatusBadRequest, Message: "account deactivated"},
			{Err: usecase.ErrEmailDispatchFailed, Status: http.StatusInternalServerError, Message: "failed to send reset email"},
		}, http.StatusInternalServerError, "failed to start password reset")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "reset instructions sent"})
}

// ResetPasswordOTP godoc
// @Summary Confirm a reset via the emailed link
// @Description Matches the link token from the query string against an account whose OTP challenge is still pending, then sets the new password. The code is not re-entered; its pending state authorizes the reset. No tokens are issued; the client logs in again.
// @Tags Password
// @Accept json
// @Produce json
// @Param token query string true "Reset link token"
// @Param request body ResetPasswordOTPRequest true "Reset confirmation"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse "Invalid or expired token, or no pending challenge"
// @Failure 429 {object} ErrorResponse "OTP cooldown active"
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/{accountType}/reset-password-otp [post]
func (h *PasswordHandler) ResetPasswordOTP(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "reset token is required"))
		return
	}

	var req ResetPasswordOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	err := h.reset.ResetWithOTP(c.Request.Context(), h.accountType, token, req.NewPassword)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrResetTokenInvalid, Status: http.StatusBadRequest, Message: "invalid or expired reset token"},
			{Err: usecase.ErrOTPExpired, Status: http.StatusBadRequest, Message: "verification challenge expired"},
			{Err: usecase.ErrOTPLocked, Status: http.StatusTooManyRequests, Message: "too many attempts, try again later"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "password updated, please log in"})
}

// ResetPassword godoc
// @Summary Confirm a legacy single-token reset
// @Description Matches the hashed token, sets the new password, clears any login lockout, and signs the caller in.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Legacy reset confirmation"
// @Success 200 {object} ResetPasswordResponse
// @Failure 400 {object} ErrorResponse "Invalid or expired token"
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/{accountType}/reset-password [post]
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	result, err := h.reset.ResetWithLegacyToken(c.Request.Context(), h.accountType, strings.TrimSpace(req.Token), req.NewPassword)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrResetTokenInvalid, Status: http.StatusBadRequest, Message: "invalid or expired reset token"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, ResetPasswordResponse{
		Success: true,
		Account: newAccountSummary(result.Account),
		Tokens:  newTokenPayload(result.Tokens),
	})
}

// ChangePassword godoc
// @Summary Change the password of the authenticated account
// @Description Verifies the current password before storing the new one.
// @Tags Password
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body ChangePasswordRequest true "Password change request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse "Wrong current password"
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/{accountType}/change-password [put]
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok || accountID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid change-password payload"))
		return
	}

	err := h.reset.ChangePassword(c.Request.Context(), accountID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
			{Err: usecase.ErrCurrentPasswordInvalid, Status: http.StatusBadRequest, Message: "current password is incorrect"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "password changed"})
}
