package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/elbaschool/admissions-api/internal/models"
)

// ApprovalRepository persists review state for registrations.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// GetByRegistrationID fetches the approval record for a registration.
func (r *ApprovalRepository) GetByRegistrationID(ctx context.Context, registrationID string) (*models.Approval, error) {
	const query = `SELECT id, registration_id, status, reviewed_by, reviewed_at, comments, created_at
		FROM approvals WHERE registration_id = $1 LIMIT 1`
	var approval models.Approval
	if err := r.db.GetContext(ctx, &approval, query, registrationID); err != nil {
		return nil, err
	}
	return &approval, nil
}

// ReviewParams groups the mutable columns for a review decision.
type ReviewParams struct {
	RegistrationID string
	Status         models.ApprovalStatus
	ReviewedBy     string
	ReviewedAt     time.Time
	Comments       string
}

// Review transitions a pending approval to its terminal state. The status
// check and mutation happen in one conditional UPDATE so concurrent
// reviewers cannot both succeed; when no row is pending the caller receives
// sql.ErrNoRows and decides between not-found and invalid-transition.
func (r *ApprovalRepository) Review(ctx context.Context, params ReviewParams) error {
	query := fmt.Sprintf(`UPDATE approvals
		SET status = :status, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, comments = :comments
		WHERE registration_id = :registration_id AND status = '%s'`, models.ApprovalStatusPending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"registration_id": params.RegistrationID,
		"status":          params.Status,
		"reviewed_by":     params.ReviewedBy,
		"reviewed_at":     params.ReviewedAt,
		"comments":        params.Comments,
	})
	if err != nil {
		return fmt.Errorf("review approval: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
