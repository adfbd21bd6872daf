package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/elbaschool/admissions-api/internal/dto"
	"github.com/elbaschool/admissions-api/internal/models"
	"github.com/elbaschool/admissions-api/internal/regnumber"
	"github.com/elbaschool/admissions-api/internal/repository"
	appErrors "github.com/elbaschool/admissions-api/pkg/errors"
)

type registrationStore interface {
	Create(ctx context.Context, schoolCode string, reg *models.Registration) (*models.Approval, error)
	GetByID(ctx context.Context, id string) (*models.Registration, error)
	GetByAdmissionNumber(ctx context.Context, number string) (*models.Registration, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error)
}

type identityStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	HardDelete(ctx context.Context, id string) error
}

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	ListByRegistration(ctx context.Context, registrationID string) ([]models.Document, error)
}

type documentStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// DocumentUpload carries one applicant file alongside its slot type.
type DocumentUpload struct {
	Type     models.DocumentType
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// RegistrationServiceConfig holds school identity and upload limits.
type RegistrationServiceConfig struct {
	SchoolCode       string
	AdmissionYear    int
	MaxFileSize      int64
	PhotoMIMEs       []string
	CertificateMIMEs []string
}

// RegistrationService orchestrates applicant submissions: identity creation,
// registration + pending approval persistence, and best-effort document uploads.
type RegistrationService struct {
	repo       registrationStore
	identities identityStore
	documents  documentStore
	storage    documentStorage
	audit      auditLogger
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        RegistrationServiceConfig
	photoSet   map[string]struct{}
	certSet    map[string]struct{}
	now        func() time.Time
}

// RegistrationOption customises the service.
type RegistrationOption func(*RegistrationService)

// WithSubmissionMetrics attaches submission counters.
func WithSubmissionMetrics(m *MetricsService) RegistrationOption {
	return func(s *RegistrationService) {
		s.metrics = m
	}
}

// NewRegistrationService constructs the service with defaults.
func NewRegistrationService(repo registrationStore, identities identityStore, documents documentStore, storage documentStorage, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg RegistrationServiceConfig, opts ...RegistrationOption) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.PhotoMIMEs) == 0 {
		cfg.PhotoMIMEs = []string{"image/jpeg", "image/png", "image/webp"}
	}
	if len(cfg.CertificateMIMEs) == 0 {
		cfg.CertificateMIMEs = append([]string{"application/pdf"}, cfg.PhotoMIMEs...)
	}
	svc := &RegistrationService{
		repo:       repo,
		identities: identities,
		documents:  documents,
		storage:    storage,
		audit:      audit,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		photoSet:   mimeSet(cfg.PhotoMIMEs),
		certSet:    mimeSet(cfg.CertificateMIMEs),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Submit validates the payload, creates the auth identity, persists the
// registration with its pending approval record, and uploads documents
// best-effort. Side effects follow a strict order so a failure leaves
// either nothing behind or a clearly recoverable state.
func (s *RegistrationService) Submit(ctx context.Context, req dto.SubmitRegistrationRequest, uploads []DocumentUpload) (*dto.SubmitRegistrationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dateOfBirth must be YYYY-MM-DD")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// Pre-emptive duplicate check; the unique constraints below still back
	// this up against racing submissions.
	if _, err := s.identities.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.ErrDuplicateEmail
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing email")
	}
	if exists, err := s.repo.EmailExists(ctx, email); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing registration")
	} else if exists {
		return nil, appErrors.ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         models.RoleApplicant,
		Active:       true,
	}
	if err := s.identities.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.ErrDuplicateEmail
		}
		return nil, appErrors.Wrap(err, appErrors.ErrAuthProvider.Code, appErrors.ErrAuthProvider.Status, "failed to create auth identity")
	}

	reg := &models.Registration{
		UserID:         user.ID,
		FullName:       user.FullName,
		Gender:         strings.ToUpper(strings.TrimSpace(req.Gender)),
		DateOfBirth:    dob,
		Email:          email,
		Phone:          strings.TrimSpace(req.Phone),
		Address:        strings.TrimSpace(req.Address),
		State:          strings.TrimSpace(req.State),
		GuardianName:   strings.TrimSpace(req.GuardianName),
		GuardianPhone:  strings.TrimSpace(req.GuardianPhone),
		GuardianEmail:  strings.ToLower(strings.TrimSpace(req.GuardianEmail)),
		GuardianRel:    strings.TrimSpace(req.GuardianRel),
		PreviousSchool: strings.TrimSpace(req.PreviousSchool),
		ClassCode:      strings.ToUpper(strings.TrimSpace(req.ClassCode)),
		Year:           s.cfg.AdmissionYear,
		SubmittedAt:    s.now().UTC(),
	}
	if _, err := s.repo.Create(ctx, s.cfg.SchoolCode, reg); err != nil {
		// Compensate: the identity must not outlive a failed registration.
		if rollbackErr := s.identities.HardDelete(ctx, user.ID); rollbackErr != nil {
			s.logger.Error("identity rollback failed after registration persistence error, manual cleanup required",
				zap.String("user_id", user.ID),
				zap.String("email", email),
				zap.NamedError("persistence_error", err),
				zap.Error(rollbackErr),
			)
		} else {
			s.emitAudit(ctx, &models.AuditLog{
				UserID:    &user.ID,
				Action:    models.AuditActionIdentityRollback,
				Resource:  "registration",
				NewValues: []byte(fmt.Sprintf(`{"email":%q}`, email)),
			})
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.ErrDuplicateEmail
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist registration")
	}

	s.metrics.RecordSubmission()
	skipped := s.uploadDocuments(ctx, reg.ID, uploads)

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionRegistrationSubmit,
		Resource:   "registration",
		ResourceID: &reg.ID,
		NewValues:  []byte(fmt.Sprintf(`{"admissionNumber":%q,"classCode":%q}`, reg.AdmissionNumber, reg.ClassCode)),
	})

	return &dto.SubmitRegistrationResponse{
		RegistrationID:  reg.ID,
		AdmissionNumber: reg.AdmissionNumber,
		Message:         fmt.Sprintf("Registration received. Your admission number is %s; your application is pending approval.", reg.AdmissionNumber),
		SkippedUploads:  skipped,
	}, nil
}

// Get returns a registration with its documents.
func (s *RegistrationService) Get(ctx context.Context, id string) (*models.Registration, []models.Document, error) {
	reg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	docs, err := s.documents.ListByRegistration(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	return reg, docs, nil
}

// Lookup resolves a registration by its admission number.
func (s *RegistrationService) Lookup(ctx context.Context, admissionNumber string) (*models.Registration, []models.Document, error) {
	number := strings.ToUpper(strings.TrimSpace(admissionNumber))
	if err := regnumber.Validate(number); err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "admission number is malformed")
	}
	reg, err := s.repo.GetByAdmissionNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	docs, err := s.documents.ListByRegistration(ctx, reg.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	return reg, docs, nil
}

// List returns registrations matching the query.
func (s *RegistrationService) List(ctx context.Context, query dto.RegistrationQuery) ([]models.Registration, error) {
	filter := models.RegistrationFilter{
		Status:    query.Status,
		ClassCode: strings.ToUpper(strings.TrimSpace(query.ClassCode)),
		Year:      query.Year,
		Search:    strings.TrimSpace(query.Search),
		Limit:     query.Limit,
		Offset:    query.Offset,
	}
	regs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	return regs, nil
}

// uploadDocuments stores files best-effort: a failed upload never fails the
// registration, it only leaves the slot empty and visible to reviewers.
func (s *RegistrationService) uploadDocuments(ctx context.Context, registrationID string, uploads []DocumentUpload) []string {
	skipped := make([]string, 0)
	for _, upload := range uploads {
		if err := s.saveDocument(ctx, registrationID, upload); err != nil {
			s.logger.Warn("document upload skipped",
				zap.String("registration_id", registrationID),
				zap.String("type", string(upload.Type)),
				zap.Error(err),
			)
			skipped = append(skipped, string(upload.Type))
		}
	}
	return skipped
}

func (s *RegistrationService) saveDocument(ctx context.Context, registrationID string, upload DocumentUpload) error {
	if upload.Content == nil || upload.Size <= 0 {
		return fmt.Errorf("empty file")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return fmt.Errorf("file exceeds %d bytes limit", s.cfg.MaxFileSize)
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return err
	}
	allowed := s.certSet
	if upload.Type == models.DocumentTypePhoto {
		allowed = s.photoSet
	}
	if _, ok := allowed[strings.ToLower(mimeType)]; !ok {
		return fmt.Errorf("mime type %s not allowed for %s", mimeType, upload.Type)
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("reset upload stream: %w", err)
	}
	filename := s.generateFilename(registrationID, upload.Type, upload.Filename)
	path, err := s.storage.SaveStream(filename, upload.Content)
	if err != nil {
		return fmt.Errorf("store file: %w", err)
	}
	doc := &models.Document{
		RegistrationID: registrationID,
		Type:           upload.Type,
		FilePath:       path,
		MimeType:       mimeType,
		SizeBytes:      upload.Size,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		_ = s.storage.Delete(path)
		return fmt.Errorf("store document metadata: %w", err)
	}
	return nil
}

func (s *RegistrationService) detectMime(upload DocumentUpload) (string, error) {
	if upload.MimeType != "" {
		return upload.MimeType, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("inspect file: %w", err)
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("reset upload stream: %w", err)
	}
	if n == 0 {
		return "", fmt.Errorf("empty file")
	}
	return http.DetectContentType(header[:n]), nil
}

func (s *RegistrationService) generateFilename(registrationID string, docType models.DocumentType, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%s_%s%s", registrationID, strings.ToLower(string(docType)), randomSuffix(), ext)
}

func (s *RegistrationService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "registration-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func mimeSet(mimes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(mimes))
	for _, mt := range mimes {
		set[strings.ToLower(strings.TrimSpace(mt))] = struct{}{}
	}
	return set
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
