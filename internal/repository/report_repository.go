package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/elbaschool/admissions-api/internal/models"
)

// ReportRepository answers read-only aggregation queries over approvals.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

type statsRow struct {
	Total    int `db:"total"`
	Approved int `db:"approved"`
	Pending  int `db:"pending"`
	Rejected int `db:"rejected"`
}

// Stats counts approval outcomes, optionally bounded by submission date.
func (r *ReportRepository) Stats(ctx context.Context, from, to *time.Time) (*models.ApprovalStats, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 2)
	builder.WriteString(`SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE a.status = 'APPROVED') AS approved,
		COUNT(*) FILTER (WHERE a.status = 'PENDING') AS pending,
		COUNT(*) FILTER (WHERE a.status = 'REJECTED') AS rejected
		FROM approvals a JOIN registrations r ON r.id = a.registration_id`)

	conditions := make([]string, 0, 2)
	if from != nil {
		args = append(args, from.UTC())
		conditions = append(conditions, fmt.Sprintf("r.submitted_at >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, to.UTC())
		conditions = append(conditions, fmt.Sprintf("r.submitted_at <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}

	var row statsRow
	if err := r.db.GetContext(ctx, &row, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("approval stats: %w", err)
	}

	stats := &models.ApprovalStats{
		Total:    row.Total,
		Approved: row.Approved,
		Pending:  row.Pending,
		Rejected: row.Rejected,
	}
	if row.Total > 0 {
		stats.ApprovalRate = float64(row.Approved) / float64(row.Total)
	}
	return stats, nil
}

// Timeline returns the review history for a single registration.
func (r *ReportRepository) Timeline(ctx context.Context, registrationID string) (*models.ApprovalTimeline, error) {
	const query = `SELECT r.id AS registration_id, r.submitted_at, a.reviewed_at, a.status
		FROM registrations r JOIN approvals a ON a.registration_id = r.id
		WHERE r.id = $1`
	var row struct {
		RegistrationID string                `db:"registration_id"`
		SubmittedAt    time.Time             `db:"submitted_at"`
		ReviewedAt     *time.Time            `db:"reviewed_at"`
		Status         models.ApprovalStatus `db:"status"`
	}
	if err := r.db.GetContext(ctx, &row, query, registrationID); err != nil {
		return nil, err
	}
	return &models.ApprovalTimeline{
		RegistrationID:  row.RegistrationID,
		ApplicationDate: row.SubmittedAt,
		ReviewedAt:      row.ReviewedAt,
		Status:          row.Status,
	}, nil
}

type reportRow struct {
	Total    int             `db:"total"`
	Approved int             `db:"approved"`
	Rejected int             `db:"rejected"`
	Pending  int             `db:"pending"`
	AvgHours sql.NullFloat64 `db:"avg_hours"`
}

// ApprovalReport aggregates review outcomes over a submission date range.
// The latency average only covers records approved within the range;
// never-reviewed rows are excluded rather than counted as zero.
func (r *ReportRepository) ApprovalReport(ctx context.Context, start, end time.Time) (*models.ApprovalReport, error) {
	const query = `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE a.status = 'APPROVED') AS approved,
		COUNT(*) FILTER (WHERE a.status = 'REJECTED') AS rejected,
		COUNT(*) FILTER (WHERE a.status = 'PENDING') AS pending,
		AVG(EXTRACT(EPOCH FROM (a.reviewed_at - r.submitted_at)) / 3600.0)
			FILTER (WHERE a.status = 'APPROVED' AND a.reviewed_at IS NOT NULL) AS avg_hours
		FROM approvals a JOIN registrations r ON r.id = a.registration_id
		WHERE r.submitted_at >= $1 AND r.submitted_at <= $2`
	var row reportRow
	if err := r.db.GetContext(ctx, &row, query, start.UTC(), end.UTC()); err != nil {
		return nil, fmt.Errorf("approval report: %w", err)
	}
	report := &models.ApprovalReport{
		StartDate:         start.UTC(),
		EndDate:           end.UTC(),
		TotalApplications: row.Total,
		TotalApproved:     row.Approved,
		TotalRejected:     row.Rejected,
		TotalPending:      row.Pending,
	}
	if row.AvgHours.Valid {
		report.AverageApprovalTimeHrs = row.AvgHours.Float64
	}
	return report, nil
}

// CreateExport records a pending export job.
func (r *ReportRepository) CreateExport(ctx context.Context, export *models.ReportExport) error {
	if export.ID == "" {
		export.ID = uuid.NewString()
	}
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now().UTC()
	}
	if export.Status == "" {
		export.Status = models.ReportExportPending
	}
	const query = `INSERT INTO report_exports (id, format, start_date, end_date, status, file_path, requested_by, created_at, completed_at)
		VALUES (:id, :format, :start_date, :end_date, :status, :file_path, :requested_by, :created_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, export); err != nil {
		return fmt.Errorf("create report export: %w", err)
	}
	return nil
}

// GetExport fetches an export job by identifier.
func (r *ReportRepository) GetExport(ctx context.Context, id string) (*models.ReportExport, error) {
	const query = `SELECT id, format, start_date, end_date, status, file_path, requested_by, created_at, completed_at
		FROM report_exports WHERE id = $1`
	var export models.ReportExport
	if err := r.db.GetContext(ctx, &export, query, id); err != nil {
		return nil, err
	}
	return &export, nil
}

// FinishExport marks an export job completed or failed.
func (r *ReportRepository) FinishExport(ctx context.Context, id string, status models.ReportExportStatus, filePath string, completedAt time.Time) error {
	const query = `UPDATE report_exports SET status = $2, file_path = $3, completed_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, filePath, completedAt); err != nil {
		return fmt.Errorf("finish report export: %w", err)
	}
	return nil
}
