package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elbaschool/admissions-api/internal/dto"
	"github.com/elbaschool/admissions-api/internal/models"
	appErrors "github.com/elbaschool/admissions-api/pkg/errors"
	"github.com/elbaschool/admissions-api/pkg/response"
)

type approvalService interface {
	Approve(ctx context.Context, registrationID, reviewerID string, req dto.ApproveRequest) (*models.Approval, error)
	Reject(ctx context.Context, registrationID, reviewerID string, req dto.RejectRequest) (*models.Approval, error)
	BulkApprove(ctx context.Context, reviewerID string, req dto.BulkApproveRequest) (*dto.BulkApproveResponse, error)
}

// ApprovalHandler exposes review decision endpoints.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(service approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

// Approve godoc
// @Summary Approve a pending registration
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.ApproveRequest false "Optional comments"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/{id}/approve [post]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ApproveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid approve payload"))
			return
		}
	}
	approval, err := h.service.Approve(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}

// Reject godoc
// @Summary Reject a pending registration
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.RejectRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/{id}/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.ErrMissingReason)
		return
	}
	approval, err := h.service.Reject(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}

// BulkApprove godoc
// @Summary Approve a batch of pending registrations
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.BulkApproveRequest true "Registration IDs"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/bulk-approve [post]
func (h *ApprovalHandler) BulkApprove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BulkApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid bulk approve payload"))
		return
	}
	result, err := h.service.BulkApprove(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
