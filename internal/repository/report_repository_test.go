package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newReportRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestReportRepositoryStats(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	rows := sqlmock.NewRows([]string{"total", "approved", "pending", "rejected"}).
		AddRow(10, 4, 5, 1)
	mock.ExpectQuery(regexp.QuoteMeta("FROM approvals a JOIN registrations r")).
		WillReturnRows(rows)

	stats, err := repo.Stats(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 10, stats.Total)
	require.Equal(t, 0.4, stats.ApprovalRate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryStatsEmptyWindow(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"total", "approved", "pending", "rejected"}).
		AddRow(0, 0, 0, 0)
	mock.ExpectQuery(regexp.QuoteMeta("FROM approvals a JOIN registrations r")).
		WithArgs(from, to).
		WillReturnRows(rows)

	stats, err := repo.Stats(context.Background(), &from, &to)
	require.NoError(t, err)
	require.Zero(t, stats.Total)
	require.Zero(t, stats.ApprovalRate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryApprovalReportNullAverage(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"total", "approved", "rejected", "pending", "avg_hours"}).
		AddRow(3, 0, 1, 2, nil)
	mock.ExpectQuery(regexp.QuoteMeta("AVG(EXTRACT(EPOCH FROM (a.reviewed_at - r.submitted_at))")).
		WithArgs(start, end).
		WillReturnRows(rows)

	report, err := repo.ApprovalReport(context.Background(), start, end)
	require.NoError(t, err)
	require.Equal(t, 3, report.TotalApplications)
	require.Zero(t, report.AverageApprovalTimeHrs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryApprovalReportAverage(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"total", "approved", "rejected", "pending", "avg_hours"}).
		AddRow(5, 4, 1, 0, 26.5)
	mock.ExpectQuery(regexp.QuoteMeta("AVG(EXTRACT(EPOCH FROM (a.reviewed_at - r.submitted_at))")).
		WithArgs(start, end).
		WillReturnRows(rows)

	report, err := repo.ApprovalReport(context.Background(), start, end)
	require.NoError(t, err)
	require.Equal(t, 4, report.TotalApproved)
	require.Equal(t, 26.5, report.AverageApprovalTimeHrs)
	require.NoError(t, mock.ExpectationsWereMet())
}
