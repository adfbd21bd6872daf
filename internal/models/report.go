package models

import "time"

// ApprovalStats summarises review outcomes for dashboards.
type ApprovalStats struct {
	Total        int     `json:"total"`
	Approved     int     `json:"approved"`
	Pending      int     `json:"pending"`
	Rejected     int     `json:"rejected"`
	ApprovalRate float64 `json:"approvalRate"`
}

// ApprovalTimeline describes the review history of a single registration.
type ApprovalTimeline struct {
	RegistrationID  string         `json:"registrationId"`
	ApplicationDate time.Time      `json:"applicationDate"`
	ReviewedAt      *time.Time     `json:"reviewedAt,omitempty"`
	Status          ApprovalStatus `json:"status"`
}

// ApprovalReport aggregates review outcomes over a date range.
type ApprovalReport struct {
	StartDate              time.Time `json:"startDate"`
	EndDate                time.Time `json:"endDate"`
	TotalApplications      int       `json:"totalApplications"`
	TotalApproved          int       `json:"totalApproved"`
	TotalRejected          int       `json:"totalRejected"`
	TotalPending           int       `json:"totalPending"`
	AverageApprovalTimeHrs float64   `json:"averageApprovalTimeHours"`
}

// ReportExportStatus tracks async export jobs.
type ReportExportStatus string

const (
	ReportExportPending   ReportExportStatus = "PENDING"
	ReportExportCompleted ReportExportStatus = "COMPLETED"
	ReportExportFailed    ReportExportStatus = "FAILED"
)

// ReportExport records a rendered approval report artifact.
type ReportExport struct {
	ID          string             `db:"id" json:"id"`
	Format      string             `db:"format" json:"format"`
	StartDate   time.Time          `db:"start_date" json:"startDate"`
	EndDate     time.Time          `db:"end_date" json:"endDate"`
	Status      ReportExportStatus `db:"status" json:"status"`
	FilePath    string             `db:"file_path" json:"-"`
	RequestedBy string             `db:"requested_by" json:"requestedBy"`
	CreatedAt   time.Time          `db:"created_at" json:"createdAt"`
	CompletedAt *time.Time         `db:"completed_at" json:"completedAt,omitempty"`
}
