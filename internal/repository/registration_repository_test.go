package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/elbaschool/admissions-api/internal/models"
)

func newRegistrationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sampleRegistration() *models.Registration {
	return &models.Registration{
		UserID:        "user-1",
		FullName:      "Jane Doe",
		Gender:        "FEMALE",
		DateOfBirth:   time.Date(2010, 4, 12, 0, 0, 0, 0, time.UTC),
		Email:         "jane.doe@example.com",
		Phone:         "08012345678",
		Address:       "12 School Road",
		State:         "Lagos",
		GuardianName:  "John Doe",
		GuardianPhone: "08087654321",
		GuardianRel:   "Father",
		ClassCode:     "jss1",
		Year:          2026,
	}
}

func TestRegistrationRepositoryCreateAssignsNumber(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO admission_sequences")).
		WithArgs(2026, "JSS1").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(7))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approvals")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	reg := sampleRegistration()
	approval, err := repo.Create(context.Background(), "ELBA", reg)
	require.NoError(t, err)
	require.Equal(t, "ELBA/26/JSS1/007", reg.AdmissionNumber)
	require.Equal(t, 7, reg.Sequence)
	require.NotEmpty(t, reg.ID)
	require.Equal(t, models.ApprovalStatusPending, approval.Status)
	require.Equal(t, reg.ID, approval.RegistrationID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCreateDuplicateRollsBack(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO admission_sequences")).
		WithArgs(2026, "JSS1").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), "ELBA", sampleRegistration())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDuplicate))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryGetByAdmissionNumberValidatesFormat(t *testing.T) {
	db, _, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	_, err := repo.GetByAdmissionNumber(context.Background(), "not-a-number")
	require.Error(t, err)
}

func TestRegistrationRepositoryEmailExists(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("jane.doe@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.EmailExists(context.Background(), "jane.doe@example.com")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryListWithStatusFilter(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "admission_number", "user_id", "full_name", "gender", "date_of_birth", "email", "phone",
		"address", "state", "guardian_name", "guardian_phone", "guardian_email", "guardian_relationship",
		"previous_school", "class_code", "year", "sequence", "submitted_at",
	}).AddRow(
		"reg-1", "ELBA/26/JSS1/001", "user-1", "Jane Doe", "FEMALE", time.Now(), "jane.doe@example.com", "0801",
		"12 School Road", "Lagos", "John Doe", "0808", "", "Father",
		"", "JSS1", 2026, 1, time.Now(),
	)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN approvals a ON a.registration_id = r.id")).
		WithArgs("PENDING", "JSS1").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.RegistrationFilter{
		Status:    []models.ApprovalStatus{models.ApprovalStatusPending},
		ClassCode: "jss1",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "ELBA/26/JSS1/001", list[0].AdmissionNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}
