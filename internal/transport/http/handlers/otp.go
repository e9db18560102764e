package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/serenbook/account-service/internal/core/domain"
	"github.com/serenbook/account-service/internal/usecase"
)

// OTPHandler exposes the email verification challenge endpoints for one account type.
type OTPHandler struct {
	otp         *usecase.OTPService
	accountType domain.AccountType
}

// NewOTPHandler constructs OTPHandler.
func NewOTPHandler(otp *usecase.OTPService, accountType domain.AccountType) *OTPHandler {
	return &OTPHandler{otp: otp, accountType: accountType}
}

// RegisterRoutes binds the verification endpoints.
func (h *OTPHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/send-otp", h.SendOTP)
	r.POST("/verify-otp", h.VerifyOTP)
}

// SendOTP godoc
// @Summary Send a fresh email verification code
// @Description Issues a new code, replacing any live challenge for the account.
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body SendOTPRequest true "Send OTP request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse "Already verified"
// @Failure 404 {object} ErrorResponse "Account not found"
// @Failure 429 {object} ErrorResponse "OTP attempts exhausted, cooldown active"
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/{accountType}/send-otp [post]
func (h *OTPHandler) SendOTP(c *gin.Context) {
	var req SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid send-otp payload"))
		return
	}

	err := h.otp.SendVerificationCode(c.Request.Context(), h.accountType, strings.TrimSpace(req.Email))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
			{Err: usecase.ErrAlreadyVerified, Status: http.StatusBadRequest, Message: "email already verified"},
			{Err: usecase.ErrOTPLocked, Status: http.StatusTooManyRequests, Message: "too many attempts, try again later"},
			{Err: usecase.ErrEmailDispatchFailed, Status: http.StatusInternalServerError, Message: "failed to send verification code"},
		}, http.StatusInternalServerError, "failed to send verification code")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "verification code sent"})
}

// VerifyOTP godoc
// @Summary Verify the emailed code
// @Description Consumes the live challenge and marks the email verified.
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "Verify OTP request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse "Invalid or expired code"
// @Failure 404 {object} ErrorResponse "Account not found"
// @Failure 429 {object} ErrorResponse "OTP attempts exhausted, cooldown active"
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/{accountType}/verify-otp [post]
func (h *OTPHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verify-otp payload"))
		return
	}

	err := h.otp.Verify(c.Request.Context(), h.accountType, strings.TrimSpace(req.Email), strings.TrimSpace(req.Code))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
			{Err: usecase.ErrAlreadyVerified, Status: http.StatusBadRequest, Message: "email already verified"},
			{Err: usecase.ErrOTPExpired, Status: http.StatusBadRequest, Message: "verification code expired"},
			{Err: usecase.ErrOTPInvalid, Status: http.StatusBadRequest, Message: "invalid verification code"},
			{Err: usecase.ErrOTPLocked, Status: http.StatusTooManyRequests, Message: "too many attempts, try again later"},
		}, http.StatusInternalServerError, "failed to verify code")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "email verified"})
}
