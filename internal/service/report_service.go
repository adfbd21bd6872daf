package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elbaschool/admissions-api/internal/dto"
	"github.com/elbaschool/admissions-api/internal/models"
	appErrors "github.com/elbaschool/admissions-api/pkg/errors"
	"github.com/elbaschool/admissions-api/pkg/export"
	"github.com/elbaschool/admissions-api/pkg/jobs"
)

const exportJobType = "report_export"

type reportStore interface {
	Stats(ctx context.Context, from, to *time.Time) (*models.ApprovalStats, error)
	Timeline(ctx context.Context, registrationID string) (*models.ApprovalTimeline, error)
	ApprovalReport(ctx context.Context, start, end time.Time) (*models.ApprovalReport, error)
	CreateExport(ctx context.Context, export *models.ReportExport) error
	GetExport(ctx context.Context, id string) (*models.ReportExport, error)
	FinishExport(ctx context.Context, id string, status models.ReportExportStatus, filePath string, completedAt time.Time) error
}

type statsCache interface {
	GetStats(ctx context.Context, from, to *time.Time) (*models.ApprovalStats, error)
	SetStats(ctx context.Context, from, to *time.Time, stats *models.ApprovalStats)
}

type exportQueue interface {
	Enqueue(job jobs.Job) error
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
}

type downloadSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// ReportService serves approval statistics and renders downloadable reports.
// Exports run asynchronously on the job queue; clients poll the export id and
// fetch the artifact through a signed URL.
type ReportService struct {
	repo    reportStore
	cache   statsCache
	queue   exportQueue
	storage exportStorage
	signer  downloadSigner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	audit   auditLogger
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// ReportOption customises the service.
type ReportOption func(*ReportService)

// WithReportMetrics attaches export job counters.
func WithReportMetrics(m *MetricsService) ReportOption {
	return func(s *ReportService) {
		s.metrics = m
	}
}

// NewReportService constructs the service.
func NewReportService(repo reportStore, cache statsCache, queue exportQueue, storage exportStorage, signer downloadSigner, audit auditLogger, logger *zap.Logger, opts ...ReportOption) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ReportService{
		repo:    repo,
		cache:   cache,
		queue:   queue,
		storage: storage,
		signer:  signer,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		audit:   audit,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Stats returns approval counts, serving from cache when possible.
func (s *ReportService) Stats(ctx context.Context, query dto.StatsQuery) (*models.ApprovalStats, error) {
	if s.cache != nil {
		if stats, err := s.cache.GetStats(ctx, query.From, query.To); err == nil {
			return stats, nil
		}
	}
	stats, err := s.repo.Stats(ctx, query.From, query.To)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute statistics")
	}
	if s.cache != nil {
		s.cache.SetStats(ctx, query.From, query.To, stats)
	}
	return stats, nil
}

// Timeline returns the review history for one registration.
func (s *ReportService) Timeline(ctx context.Context, registrationID string) (*models.ApprovalTimeline, error) {
	timeline, err := s.repo.Timeline(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeline")
	}
	return timeline, nil
}

// ApprovalReport aggregates outcomes over a submission date range.
func (s *ReportService) ApprovalReport(ctx context.Context, start, end time.Time) (*models.ApprovalReport, error) {
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not precede startDate")
	}
	report, err := s.repo.ApprovalReport(ctx, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build approval report")
	}
	return report, nil
}

// ExportReport records an export job and queues it for rendering.
func (s *ReportService) ExportReport(ctx context.Context, requestedBy string, req dto.ExportReportRequest) (*dto.ExportReportResponse, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startDate must be YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must be YYYY-MM-DD")
	}
	end = end.Add(24*time.Hour - time.Nanosecond)
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not precede startDate")
	}

	record := &models.ReportExport{
		ID:          uuid.NewString(),
		Format:      format,
		StartDate:   start.UTC(),
		EndDate:     end.UTC(),
		Status:      models.ReportExportPending,
		RequestedBy: requestedBy,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateExport(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record export")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: record.ID, Type: exportJobType, Payload: record.ID}); err != nil {
		s.markFailed(ctx, record.ID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	s.emitAudit(ctx, requestedBy, record.ID, format)

	return &dto.ExportReportResponse{ExportID: record.ID, Status: string(record.Status)}, nil
}

// ProcessExportJob renders a queued export. Wired as the queue handler.
func (s *ReportService) ProcessExportJob(ctx context.Context, job jobs.Job) error {
	exportID, ok := job.Payload.(string)
	if !ok || exportID == "" {
		return fmt.Errorf("export job %s has no export id", job.ID)
	}
	record, err := s.repo.GetExport(ctx, exportID)
	if err != nil {
		return fmt.Errorf("load export %s: %w", exportID, err)
	}
	if record.Status != models.ReportExportPending {
		return nil
	}

	report, err := s.repo.ApprovalReport(ctx, record.StartDate, record.EndDate)
	if err != nil {
		s.markFailed(ctx, record.ID)
		return fmt.Errorf("aggregate export %s: %w", record.ID, err)
	}

	data, filename, err := s.render(record, report)
	if err != nil {
		s.markFailed(ctx, record.ID)
		return fmt.Errorf("render export %s: %w", record.ID, err)
	}

	path, err := s.storage.Save(filename, data)
	if err != nil {
		s.markFailed(ctx, record.ID)
		return fmt.Errorf("store export %s: %w", record.ID, err)
	}

	if err := s.repo.FinishExport(ctx, record.ID, models.ReportExportCompleted, path, s.now().UTC()); err != nil {
		return fmt.Errorf("finish export %s: %w", record.ID, err)
	}
	s.metrics.RecordExport(models.ReportExportCompleted)
	s.logger.Info("report export completed", zap.String("export_id", record.ID), zap.String("file", path))
	return nil
}

// GetExport returns the export job record.
func (s *ReportService) GetExport(ctx context.Context, id string) (*models.ReportExport, error) {
	record, err := s.repo.GetExport(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export")
	}
	return record, nil
}

// DownloadURL issues a signed token for a completed export.
func (s *ReportService) DownloadURL(ctx context.Context, id string) (*dto.ExportDownloadResponse, error) {
	record, err := s.GetExport(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.ReportExportCompleted || record.FilePath == "" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "export is not ready for download")
	}
	token, expiresAt, err := s.signer.Generate(record.ID, record.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return &dto.ExportDownloadResponse{URL: token, ExpiresAt: expiresAt}, nil
}

// ResolveDownload validates a signed token and returns the stored file path.
func (s *ReportService) ResolveDownload(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrForbidden, "download link is invalid or expired")
	}
	return relPath, nil
}

func (s *ReportService) render(record *models.ReportExport, report *models.ApprovalReport) ([]byte, string, error) {
	dataset := export.Dataset{
		Headers: []string{"Metric", "Value"},
		Rows: []map[string]string{
			{"Metric": "Start Date", "Value": report.StartDate.Format("2006-01-02")},
			{"Metric": "End Date", "Value": report.EndDate.Format("2006-01-02")},
			{"Metric": "Total Applications", "Value": fmt.Sprintf("%d", report.TotalApplications)},
			{"Metric": "Approved", "Value": fmt.Sprintf("%d", report.TotalApproved)},
			{"Metric": "Rejected", "Value": fmt.Sprintf("%d", report.TotalRejected)},
			{"Metric": "Pending", "Value": fmt.Sprintf("%d", report.TotalPending)},
			{"Metric": "Average Approval Time (hours)", "Value": fmt.Sprintf("%.2f", report.AverageApprovalTimeHrs)},
		},
	}
	switch record.Format {
	case "pdf":
		data, err := s.pdf.Render(dataset, "Approval Report")
		return data, fmt.Sprintf("%s.pdf", record.ID), err
	default:
		data, err := s.csv.Render(dataset)
		return data, fmt.Sprintf("%s.csv", record.ID), err
	}
}

func (s *ReportService) markFailed(ctx context.Context, id string) {
	s.metrics.RecordExport(models.ReportExportFailed)
	if err := s.repo.FinishExport(ctx, id, models.ReportExportFailed, "", s.now().UTC()); err != nil {
		s.logger.Error("failed to mark export failed", zap.String("export_id", id), zap.Error(err))
	}
}

func (s *ReportService) emitAudit(ctx context.Context, userID, exportID, format string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionReportExport,
		Resource:   "report_export",
		ResourceID: &exportID,
		NewValues:  []byte(fmt.Sprintf(`{"format":%q}`, format)),
		IPAddress:  "system",
		UserAgent:  "report-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
