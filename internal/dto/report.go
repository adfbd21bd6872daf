package dto

import "time"

// StatsQuery optionally bounds statistics by submission date.
type StatsQuery struct {
	From *time.Time
	To   *time.Time
}

// ExportReportRequest asks for an approval report rendered to a file.
type ExportReportRequest struct {
	Format    string `json:"format"` // csv or pdf
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// ExportReportResponse acknowledges an accepted export job.
type ExportReportResponse struct {
	ExportID string `json:"exportId"`
	Status   string `json:"status"`
}

// ExportDownloadResponse carries a signed download URL.
type ExportDownloadResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
