package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/elbaschool/admissions-api/internal/dto"
	"github.com/elbaschool/admissions-api/internal/middleware"
	"github.com/elbaschool/admissions-api/internal/models"
	appErrors "github.com/elbaschool/admissions-api/pkg/errors"
)

type fakeApprovalSrv struct {
	approveErr error
	rejectErr  error
	last       struct {
		registrationID string
		reviewerID     string
		reason         string
	}
}

func (f *fakeApprovalSrv) Approve(_ context.Context, registrationID, reviewerID string, req dto.ApproveRequest) (*models.Approval, error) {
	f.last.registrationID = registrationID
	f.last.reviewerID = reviewerID
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	return &models.Approval{RegistrationID: registrationID, Status: models.ApprovalStatusApproved}, nil
}

func (f *fakeApprovalSrv) Reject(_ context.Context, registrationID, reviewerID string, req dto.RejectRequest) (*models.Approval, error) {
	f.last.registrationID = registrationID
	f.last.reviewerID = reviewerID
	f.last.reason = req.Reason
	if f.rejectErr != nil {
		return nil, f.rejectErr
	}
	return &models.Approval{RegistrationID: registrationID, Status: models.ApprovalStatusRejected, Comments: req.Reason}, nil
}

func (f *fakeApprovalSrv) BulkApprove(_ context.Context, reviewerID string, req dto.BulkApproveRequest) (*dto.BulkApproveResponse, error) {
	return &dto.BulkApproveResponse{Succeeded: req.RegistrationIDs, Total: len(req.RegistrationIDs)}, nil
}

func newApprovalTestContext(t *testing.T, method, path, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, rec
}

func TestApprovalHandlerApprove(t *testing.T) {
	service := &fakeApprovalSrv{}
	handler := NewApprovalHandler(service)

	c, rec := newApprovalTestContext(t, http.MethodPost, "/registrations/reg-1/approve", `{"comments":"ok"}`)
	c.Params = gin.Params{{Key: "id", Value: "reg-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Approve(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reg-1", service.last.registrationID)
	assert.Equal(t, "admin-1", service.last.reviewerID)
}

func TestApprovalHandlerApproveRequiresClaims(t *testing.T) {
	handler := NewApprovalHandler(&fakeApprovalSrv{})

	c, rec := newApprovalTestContext(t, http.MethodPost, "/registrations/reg-1/approve", "")
	c.Params = gin.Params{{Key: "id", Value: "reg-1"}}

	handler.Approve(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApprovalHandlerApproveConflict(t *testing.T) {
	service := &fakeApprovalSrv{approveErr: appErrors.ErrInvalidTransition}
	handler := NewApprovalHandler(service)

	c, rec := newApprovalTestContext(t, http.MethodPost, "/registrations/reg-1/approve", "")
	c.Params = gin.Params{{Key: "id", Value: "reg-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Approve(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestApprovalHandlerReject(t *testing.T) {
	service := &fakeApprovalSrv{}
	handler := NewApprovalHandler(service)

	c, rec := newApprovalTestContext(t, http.MethodPost, "/registrations/reg-1/reject", `{"reason":"incomplete documents"}`)
	c.Params = gin.Params{{Key: "id", Value: "reg-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Reject(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "incomplete documents", service.last.reason)
}

func TestApprovalHandlerRejectMissingReason(t *testing.T) {
	service := &fakeApprovalSrv{rejectErr: appErrors.ErrMissingReason}
	handler := NewApprovalHandler(service)

	c, rec := newApprovalTestContext(t, http.MethodPost, "/registrations/reg-1/reject", `{"reason":""}`)
	c.Params = gin.Params{{Key: "id", Value: "reg-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Reject(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApprovalHandlerBulkApprove(t *testing.T) {
	handler := NewApprovalHandler(&fakeApprovalSrv{})

	c, rec := newApprovalTestContext(t, http.MethodPost, "/registrations/bulk-approve", `{"registrationIds":["reg-1","reg-2"]}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleSuperAdmin})

	handler.BulkApprove(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}
