package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/serenbook/account-service/internal/core/domain"
	"github.com/serenbook/account-service/internal/transport/http/middleware"
	"github.com/serenbook/account-service/internal/usecase"
)

// DirectoryHandler exposes the public expert listing, the moderation hook,
// and account deactivation.
type DirectoryHandler struct {
	verification *usecase.VerificationService
}

// NewDirectoryHandler constructs DirectoryHandler.
func NewDirectoryHandler(verification *usecase.VerificationService) *DirectoryHandler {
	return &DirectoryHandler{verification: verification}
}

// ListExperts godoc
// @Summary List publicly visible experts
// @Description Returns only active, approved experts with a verified email.
// @Tags Directory
// @Produce json
// @Success 200 {object} DirectoryResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/experts [get]
func (h *DirectoryHandler) ListExperts(c *gin.Context) {
	accounts, err := h.verification.ListApprovedExperts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list experts"))
		return
	}

	experts := make([]AccountSummary, 0, len(accounts))
	for _, account := range accounts {
		experts = append(experts, newAccountSummary(account))
	}

	c.JSON(http.StatusOK, DirectoryResponse{Success: true, Experts: experts})
}

// SetVerificationStatus godoc
// @Summary Update an expert's moderation state
// @Description Flips the verification status driven by the external review process.
// @Tags Directory
// @Accept json
// @Produce json
// @Param id path string true "Expert account ID"
// @Param request body VerificationStatusRequest true "New verification status"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse "Unknown status value"
// @Failure 404 {object} ErrorResponse "Account not found"
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/experts/{id}/verification [patch]
func (h *DirectoryHandler) SetVerificationStatus(c *gin.Context) {
	accountID := strings.TrimSpace(c.Param("id"))
	if accountID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "account id is required"))
		return
	}

	var req VerificationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	status := domain.VerificationStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	err := h.verification.SetStatus(c.Request.Context(), accountID, status)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidVerificationStatus, Status: http.StatusBadRequest, Message: "unknown verification status"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to update verification status")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "verification status updated"})
}

// Deactivate godoc
// @Summary Deactivate the authenticated account
// @Description Marks the account inactive. Records are never hard-deleted.
// @Tags Directory
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/{accountType}/deactivate [delete]
func (h *DirectoryHandler) Deactivate(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok || accountID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	err := h.verification.Deactivate(c.Request.Context(), accountID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to deactivate account")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "account deactivated"})
}
