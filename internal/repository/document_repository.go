package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/elbaschool/admissions-api/internal/models"
)

// DocumentRepository persists applicant document metadata.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO documents (id, registration_id, type, file_path, mime_type, size_bytes, uploaded_at)
		VALUES (:id, :registration_id, :type, :file_path, :mime_type, :size_bytes, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// ListByRegistration returns documents attached to a registration.
func (r *DocumentRepository) ListByRegistration(ctx context.Context, registrationID string) ([]models.Document, error) {
	const query = `SELECT id, registration_id, type, file_path, mime_type, size_bytes, uploaded_at
		FROM documents WHERE registration_id = $1 ORDER BY uploaded_at`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, registrationID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}
