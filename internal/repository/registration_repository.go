package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/elbaschool/admissions-api/internal/models"
	"github.com/elbaschool/admissions-api/internal/regnumber"
)

// ErrDuplicate signals a unique-constraint violation on insert.
var ErrDuplicate = errors.New("duplicate row")

// RegistrationRepository persists registrations, their approval records,
// and the per-(year, class) admission sequence counters.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, admission_number, user_id, full_name, gender, date_of_birth, email, phone,
       address, state, guardian_name, guardian_phone, guardian_email, guardian_relationship,
       previous_school, class_code, year, sequence, submitted_at`

// Create inserts the registration together with its pending approval record
// in a single transaction. The admission sequence is obtained from an atomic
// upsert-increment on the (year, class_code) counter, so concurrent
// submissions to the same bucket can never observe the same value.
func (r *RegistrationRepository) Create(ctx context.Context, schoolCode string, reg *models.Registration) (*models.Approval, error) {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.SubmittedAt.IsZero() {
		reg.SubmittedAt = time.Now().UTC()
	}
	reg.ClassCode = strings.ToUpper(strings.TrimSpace(reg.ClassCode))

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin registration tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const seqQuery = `INSERT INTO admission_sequences (year, class_code, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (year, class_code) DO UPDATE SET value = admission_sequences.value + 1
		RETURNING value`
	if err := tx.GetContext(ctx, &reg.Sequence, seqQuery, reg.Year, reg.ClassCode); err != nil {
		return nil, fmt.Errorf("next admission sequence: %w", err)
	}

	number, err := regnumber.Next(schoolCode, reg.Year, reg.ClassCode, reg.Sequence)
	if err != nil {
		return nil, fmt.Errorf("format admission number: %w", err)
	}
	reg.AdmissionNumber = number

	const insertQuery = `INSERT INTO registrations
		(id, admission_number, user_id, full_name, gender, date_of_birth, email, phone,
		 address, state, guardian_name, guardian_phone, guardian_email, guardian_relationship,
		 previous_school, class_code, year, sequence, submitted_at)
		VALUES (:id, :admission_number, :user_id, :full_name, :gender, :date_of_birth, :email, :phone,
		 :address, :state, :guardian_name, :guardian_phone, :guardian_email, :guardian_relationship,
		 :previous_school, :class_code, :year, :sequence, :submitted_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, reg); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create registration: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}

	approval := &models.Approval{
		ID:             uuid.NewString(),
		RegistrationID: reg.ID,
		Status:         models.ApprovalStatusPending,
		CreatedAt:      reg.SubmittedAt,
	}
	const approvalQuery = `INSERT INTO approvals (id, registration_id, status, reviewed_by, reviewed_at, comments, created_at)
		VALUES (:id, :registration_id, :status, :reviewed_by, :reviewed_at, :comments, :created_at)`
	if _, err := tx.NamedExecContext(ctx, approvalQuery, approval); err != nil {
		return nil, fmt.Errorf("create approval record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit registration tx: %w", err)
	}
	return approval, nil
}

// GetByID fetches a registration by identifier.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE id = $1`, registrationColumns)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetByAdmissionNumber fetches a registration by its admission number,
// validating the number's format before touching the database.
func (r *RegistrationRepository) GetByAdmissionNumber(ctx context.Context, number string) (*models.Registration, error) {
	if err := regnumber.Validate(number); err != nil {
		return nil, fmt.Errorf("lookup admission number: %w", err)
	}
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE admission_number = $1`, registrationColumns)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, number); err != nil {
		return nil, err
	}
	return &reg, nil
}

// EmailExists reports whether a registration already uses the given email.
func (r *RegistrationRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM registrations WHERE LOWER(email) = LOWER($1))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check registration email: %w", err)
	}
	return exists, nil
}

// List returns registrations joined with their approval status (newest first).
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM registrations r`, prefixColumns("r", registrationColumns)))

	conditions := make([]string, 0, 4)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		builder.WriteString(" JOIN approvals a ON a.registration_id = r.id")
		conditions = append(conditions, fmt.Sprintf("a.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ClassCode != "" {
		args = append(args, strings.ToUpper(filter.ClassCode))
		conditions = append(conditions, fmt.Sprintf("r.class_code = $%d", len(args)))
	}
	if filter.Year > 0 {
		args = append(args, filter.Year)
		conditions = append(conditions, fmt.Sprintf("r.year = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(r.full_name) LIKE $%d OR LOWER(r.email) LIKE $%d)", len(args), len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY r.submitted_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
