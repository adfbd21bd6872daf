package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/elbaschool/admissions-api/internal/dto"
	"github.com/elbaschool/admissions-api/internal/models"
	appErrors "github.com/elbaschool/admissions-api/pkg/errors"
	"github.com/elbaschool/admissions-api/pkg/response"
	"github.com/elbaschool/admissions-api/pkg/storage"
)

type reportService interface {
	Stats(ctx context.Context, query dto.StatsQuery) (*models.ApprovalStats, error)
	Timeline(ctx context.Context, registrationID string) (*models.ApprovalTimeline, error)
	ApprovalReport(ctx context.Context, start, end time.Time) (*models.ApprovalReport, error)
	ExportReport(ctx context.Context, requestedBy string, req dto.ExportReportRequest) (*dto.ExportReportResponse, error)
	GetExport(ctx context.Context, id string) (*models.ReportExport, error)
	DownloadURL(ctx context.Context, id string) (*dto.ExportDownloadResponse, error)
	ResolveDownload(token string) (string, error)
}

// ReportHandler exposes statistics and report export endpoints.
type ReportHandler struct {
	service reportService
	files   *storage.LocalStorage
}

// NewReportHandler constructs the handler.
func NewReportHandler(service reportService, files *storage.LocalStorage) *ReportHandler {
	return &ReportHandler{service: service, files: files}
}

// Stats godoc
// @Summary Approval statistics
// @Tags Reports
// @Produce json
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/stats [get]
func (h *ReportHandler) Stats(c *gin.Context) {
	query := dto.StatsQuery{}
	if raw := c.Query("from"); raw != "" {
		ts, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
			return
		}
		query.From = &ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD"))
			return
		}
		end := ts.Add(24*time.Hour - time.Nanosecond)
		query.To = &end
	}

	stats, err := h.service.Stats(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Timeline godoc
// @Summary Review timeline for one registration
// @Tags Reports
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/{id}/timeline [get]
func (h *ReportHandler) Timeline(c *gin.Context) {
	timeline, err := h.service.Timeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timeline, nil)
}

// ApprovalReport godoc
// @Summary Approval report over a date range
// @Tags Reports
// @Produce json
// @Param startDate query string true "Start date (YYYY-MM-DD)"
// @Param endDate query string true "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/approvals [get]
func (h *ReportHandler) ApprovalReport(c *gin.Context) {
	start, err := time.Parse("2006-01-02", c.Query("startDate"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "startDate must be YYYY-MM-DD"))
		return
	}
	end, err := time.Parse("2006-01-02", c.Query("endDate"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "endDate must be YYYY-MM-DD"))
		return
	}
	end = end.Add(24*time.Hour - time.Nanosecond)

	report, err := h.service.ApprovalReport(c.Request.Context(), start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Queue an approval report export
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.ExportReportRequest true "Export parameters"
// @Success 202 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/approvals/export [post]
func (h *ReportHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ExportReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid export payload"))
		return
	}
	result, err := h.service.ExportReport(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, result, nil)
}

// ExportStatus godoc
// @Summary Export job status
// @Tags Reports
// @Produce json
// @Param id path string true "Export ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/exports/{id} [get]
func (h *ReportHandler) ExportStatus(c *gin.Context) {
	record, err := h.service.GetExport(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Download godoc
// @Summary Signed download link for a completed export
// @Tags Reports
// @Produce json
// @Param id path string true "Export ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/exports/{id}/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	result, err := h.service.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// File godoc
// @Summary Stream an exported report file
// @Tags Reports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200
// @Router /reports/files [get]
func (h *ReportHandler) File(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	relPath, err := h.service.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.files == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "report storage not configured"))
		return
	}
	c.FileAttachment(h.files.Path(relPath), relPath)
}
