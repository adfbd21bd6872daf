package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/elbaschool/admissions-api/internal/dto"
	"github.com/elbaschool/admissions-api/internal/models"
	"github.com/elbaschool/admissions-api/internal/repository"
	appErrors "github.com/elbaschool/admissions-api/pkg/errors"
)

type approvalRepoStub struct {
	approvals map[string]*models.Approval
}

func newApprovalRepoStub() *approvalRepoStub {
	return &approvalRepoStub{approvals: make(map[string]*models.Approval)}
}

func (a *approvalRepoStub) GetByRegistrationID(ctx context.Context, registrationID string) (*models.Approval, error) {
	if approval, ok := a.approvals[registrationID]; ok {
		copy := *approval
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (a *approvalRepoStub) Review(ctx context.Context, params repository.ReviewParams) error {
	approval, ok := a.approvals[params.RegistrationID]
	if !ok || approval.Status != models.ApprovalStatusPending {
		return sql.ErrNoRows
	}
	approval.Status = params.Status
	approval.ReviewedBy = &params.ReviewedBy
	approval.ReviewedAt = &params.ReviewedAt
	approval.Comments = params.Comments
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type invalidatorStub struct {
	calls int
}

func (i *invalidatorStub) InvalidateStats(ctx context.Context) {
	i.calls++
}

func pendingApproval(registrationID string) *models.Approval {
	return &models.Approval{
		ID:             "appr-" + registrationID,
		RegistrationID: registrationID,
		Status:         models.ApprovalStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestApprovalServiceApprove(t *testing.T) {
	repo := newApprovalRepoStub()
	repo.approvals["reg-1"] = pendingApproval("reg-1")
	audit := &auditStub{}
	cache := &invalidatorStub{}
	svc := NewApprovalService(repo, audit, cache, nil)

	approval, err := svc.Approve(context.Background(), "reg-1", "admin-1", dto.ApproveRequest{Comments: "all documents verified"})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusApproved, approval.Status)
	require.NotNil(t, approval.ReviewedBy)
	require.Equal(t, "admin-1", *approval.ReviewedBy)
	require.NotNil(t, approval.ReviewedAt)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionRegistrationApprove, audit.logs[0].Action)
	require.Equal(t, 1, cache.calls)
}

func TestApprovalServiceRejectRequiresReason(t *testing.T) {
	repo := newApprovalRepoStub()
	repo.approvals["reg-1"] = pendingApproval("reg-1")
	svc := NewApprovalService(repo, &auditStub{}, nil, nil)

	_, err := svc.Reject(context.Background(), "reg-1", "admin-1", dto.RejectRequest{Reason: "   "})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrMissingReason.Code, appErrors.FromError(err).Code)
	require.Equal(t, models.ApprovalStatusPending, repo.approvals["reg-1"].Status)
}

func TestApprovalServiceRejectKeepsRegistration(t *testing.T) {
	repo := newApprovalRepoStub()
	repo.approvals["reg-1"] = pendingApproval("reg-1")
	audit := &auditStub{}
	svc := NewApprovalService(repo, audit, nil, nil)

	approval, err := svc.Reject(context.Background(), "reg-1", "admin-1", dto.RejectRequest{Reason: "missing birth certificate"})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusRejected, approval.Status)
	require.Equal(t, "missing birth certificate", approval.Comments)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionRegistrationReject, audit.logs[0].Action)
}

func TestApprovalServiceAlreadyDecided(t *testing.T) {
	repo := newApprovalRepoStub()
	decided := pendingApproval("reg-1")
	decided.Status = models.ApprovalStatusApproved
	repo.approvals["reg-1"] = decided
	svc := NewApprovalService(repo, &auditStub{}, nil, nil)

	_, err := svc.Approve(context.Background(), "reg-1", "admin-2", dto.ApproveRequest{})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceUnknownRegistration(t *testing.T) {
	svc := NewApprovalService(newApprovalRepoStub(), &auditStub{}, nil, nil)

	_, err := svc.Approve(context.Background(), "missing", "admin-1", dto.ApproveRequest{})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceBulkApprovePartialFailure(t *testing.T) {
	repo := newApprovalRepoStub()
	repo.approvals["reg-1"] = pendingApproval("reg-1")
	decided := pendingApproval("reg-2")
	decided.Status = models.ApprovalStatusRejected
	repo.approvals["reg-2"] = decided
	svc := NewApprovalService(repo, &auditStub{}, nil, nil)

	resp, err := svc.BulkApprove(context.Background(), "admin-1", dto.BulkApproveRequest{
		RegistrationIDs: []string{"reg-1", "reg-2", "reg-3"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, resp.Total)
	require.Equal(t, []string{"reg-1"}, resp.Succeeded)
	require.Len(t, resp.Failed, 2)
	require.Equal(t, models.ApprovalStatusApproved, repo.approvals["reg-1"].Status)
}
