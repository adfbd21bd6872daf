package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elbaschool/admissions-api/internal/dto"
	"github.com/elbaschool/admissions-api/internal/models"
	"github.com/elbaschool/admissions-api/internal/repository"
	appErrors "github.com/elbaschool/admissions-api/pkg/errors"
)

// reviewStore is the narrow repository surface the service depends on.
type reviewStore interface {
	GetByRegistrationID(ctx context.Context, registrationID string) (*models.Approval, error)
	Review(ctx context.Context, params repository.ReviewParams) error
}

type statsInvalidator interface {
	InvalidateStats(ctx context.Context)
}

// ApprovalService applies reviewer decisions to pending registrations.
// A registration can be decided exactly once; the repository enforces
// the pending precondition so concurrent reviewers cannot both win.
type ApprovalService struct {
	approvals reviewStore
	audit     auditLogger
	cache     statsInvalidator
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// ApprovalOption customises the service.
type ApprovalOption func(*ApprovalService)

// WithApprovalMetrics attaches decision counters.
func WithApprovalMetrics(m *MetricsService) ApprovalOption {
	return func(s *ApprovalService) {
		s.metrics = m
	}
}

// NewApprovalService constructs the service.
func NewApprovalService(approvals reviewStore, audit auditLogger, cache statsInvalidator, logger *zap.Logger, opts ...ApprovalOption) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ApprovalService{
		approvals: approvals,
		audit:     audit,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Approve marks a pending registration approved.
func (s *ApprovalService) Approve(ctx context.Context, registrationID, reviewerID string, req dto.ApproveRequest) (*models.Approval, error) {
	return s.review(ctx, registrationID, reviewerID, models.ApprovalStatusApproved, strings.TrimSpace(req.Comments))
}

// Reject marks a pending registration rejected. A reason is mandatory so
// applicants always learn why their application was declined. The
// registration row itself is untouched; rejection is a status change only.
func (s *ApprovalService) Reject(ctx context.Context, registrationID, reviewerID string, req dto.RejectRequest) (*models.Approval, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.ErrMissingReason
	}
	return s.review(ctx, registrationID, reviewerID, models.ApprovalStatusRejected, reason)
}

// BulkApprove approves a batch of registrations independently. Failures are
// collected per registration rather than aborting the whole batch.
func (s *ApprovalService) BulkApprove(ctx context.Context, reviewerID string, req dto.BulkApproveRequest) (*dto.BulkApproveResponse, error) {
	if len(req.RegistrationIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "registrationIds must not be empty")
	}
	resp := &dto.BulkApproveResponse{
		Succeeded: make([]string, 0, len(req.RegistrationIDs)),
		Failed:    make([]dto.BulkApproveFailure, 0),
		Total:     len(req.RegistrationIDs),
	}
	for _, id := range req.RegistrationIDs {
		if _, err := s.review(ctx, id, reviewerID, models.ApprovalStatusApproved, ""); err != nil {
			resp.Failed = append(resp.Failed, dto.BulkApproveFailure{
				RegistrationID: id,
				Error:          appErrors.FromError(err).Message,
			})
			continue
		}
		resp.Succeeded = append(resp.Succeeded, id)
	}
	return resp, nil
}

func (s *ApprovalService) review(ctx context.Context, registrationID, reviewerID string, status models.ApprovalStatus, comments string) (*models.Approval, error) {
	if reviewerID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	err := s.approvals.Review(ctx, repository.ReviewParams{
		RegistrationID: registrationID,
		Status:         status,
		ReviewedBy:     reviewerID,
		ReviewedAt:     s.now().UTC(),
		Comments:       comments,
	})
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
		}
		// Zero rows updated: the registration is missing or already decided.
		if _, lookupErr := s.approvals.GetByRegistrationID(ctx, registrationID); lookupErr != nil {
			if errors.Is(lookupErr, sql.ErrNoRows) {
				return nil, appErrors.ErrNotFound
			}
			return nil, appErrors.Wrap(lookupErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval")
		}
		return nil, appErrors.ErrInvalidTransition
	}

	approval, err := s.approvals.GetByRegistrationID(ctx, registrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load decided approval")
	}

	if s.cache != nil {
		s.cache.InvalidateStats(ctx)
	}
	s.metrics.RecordDecision(status)

	action := models.AuditActionRegistrationApprove
	if status == models.ApprovalStatusRejected {
		action = models.AuditActionRegistrationReject
	}
	s.emitAudit(ctx, reviewerID, registrationID, action, status, comments)

	return approval, nil
}

func (s *ApprovalService) emitAudit(ctx context.Context, reviewerID, registrationID, action string, status models.ApprovalStatus, comments string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &reviewerID,
		Action:     action,
		Resource:   "approval",
		ResourceID: &registrationID,
		OldValues:  []byte(fmt.Sprintf(`{"status":%q}`, models.ApprovalStatusPending)),
		NewValues:  []byte(fmt.Sprintf(`{"status":%q,"comments":%q}`, status, comments)),
		IPAddress:  "system",
		UserAgent:  "approval-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
