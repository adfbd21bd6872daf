package handler

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elbaschool/admissions-api/internal/dto"
	"github.com/elbaschool/admissions-api/internal/models"
	"github.com/elbaschool/admissions-api/internal/service"
	appErrors "github.com/elbaschool/admissions-api/pkg/errors"
	"github.com/elbaschool/admissions-api/pkg/response"
)

type registrationService interface {
	Submit(ctx context.Context, req dto.SubmitRegistrationRequest, uploads []service.DocumentUpload) (*dto.SubmitRegistrationResponse, error)
	Get(ctx context.Context, id string) (*models.Registration, []models.Document, error)
	Lookup(ctx context.Context, admissionNumber string) (*models.Registration, []models.Document, error)
	List(ctx context.Context, query dto.RegistrationQuery) ([]models.Registration, error)
}

// documentSlots maps multipart field names to their document types.
var documentSlots = map[string]models.DocumentType{
	"photo":            models.DocumentTypePhoto,
	"birthCertificate": models.DocumentTypeBirthCertificate,
	"idProof":          models.DocumentTypeIDProof,
}

// RegistrationHandler exposes the applicant submission and admin listing endpoints.
type RegistrationHandler struct {
	service registrationService
	logger  *zap.Logger
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(svc registrationService, logger *zap.Logger) *RegistrationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationHandler{service: svc, logger: logger}
}

// Submit godoc
// @Summary Submit a student registration
// @Tags Registrations
// @Accept multipart/form-data
// @Produce json
// @Param email formData string true "Applicant email"
// @Param password formData string true "Portal password"
// @Param fullName formData string true "Full name"
// @Param gender formData string true "Gender"
// @Param dateOfBirth formData string true "Date of birth (YYYY-MM-DD)"
// @Param classCode formData string true "Class applying for"
// @Param photo formData file false "Passport photo"
// @Param birthCertificate formData file false "Birth certificate"
// @Param idProof formData file false "Identity document"
// @Success 201 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Submit(c *gin.Context) {
	var req dto.SubmitRegistrationRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid registration payload"))
		return
	}

	uploads, closers := h.collectUploads(c)
	defer func() {
		for _, closer := range closers {
			_ = closer.Close()
		}
	}()

	result, err := h.service.Submit(c.Request.Context(), req, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Get godoc
// @Summary Get a registration with its documents
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	reg, docs, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"registration": reg, "documents": docs}, nil)
}

// Lookup godoc
// @Summary Find a registration by admission number
// @Tags Registrations
// @Produce json
// @Param number query string true "Admission number"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/lookup [get]
func (h *RegistrationHandler) Lookup(c *gin.Context) {
	number := strings.TrimSpace(c.Query("number"))
	if number == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "number is required"))
		return
	}
	reg, docs, err := h.service.Lookup(c.Request.Context(), number)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"registration": reg, "documents": docs}, nil)
}

// List godoc
// @Summary List registrations
// @Tags Registrations
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param class query string false "Class code"
// @Param year query int false "Admission year"
// @Param search query string false "Name or email fragment"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	query := dto.RegistrationQuery{
		ClassCode: strings.TrimSpace(c.Query("class")),
		Search:    strings.TrimSpace(c.Query("search")),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.ApprovalStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.ApprovalStatus(part))
		}
		query.Status = statuses
	}
	if rawYear := c.Query("year"); rawYear != "" {
		if year, err := strconv.Atoi(rawYear); err == nil {
			query.Year = year
		}
	}
	if rawLimit := c.Query("limit"); rawLimit != "" {
		if limit, err := strconv.Atoi(rawLimit); err == nil {
			query.Limit = limit
		}
	}
	if rawOffset := c.Query("offset"); rawOffset != "" {
		if offset, err := strconv.Atoi(rawOffset); err == nil {
			query.Offset = offset
		}
	}

	regs, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}

func (h *RegistrationHandler) collectUploads(c *gin.Context) ([]service.DocumentUpload, []multipart.File) {
	uploads := make([]service.DocumentUpload, 0, len(documentSlots))
	closers := make([]multipart.File, 0, len(documentSlots))
	for field, docType := range documentSlots {
		header, err := c.FormFile(field)
		if err != nil {
			continue
		}
		file, err := header.Open()
		if err != nil {
			h.logger.Warn("failed to open uploaded file", zap.String("field", field), zap.Error(err))
			continue
		}
		closers = append(closers, file)
		uploads = append(uploads, service.DocumentUpload{
			Type:     docType,
			Filename: header.Filename,
			Size:     header.Size,
			MimeType: header.Header.Get("Content-Type"),
			Content:  file,
		})
	}
	return uploads, closers
}
