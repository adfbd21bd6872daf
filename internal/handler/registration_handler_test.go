package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elbaschool/admissions-api/internal/dto"
	"github.com/elbaschool/admissions-api/internal/models"
	"github.com/elbaschool/admissions-api/internal/service"
	appErrors "github.com/elbaschool/admissions-api/pkg/errors"
)

type fakeRegistrationSrv struct {
	submitErr   error
	lastReq     dto.SubmitRegistrationRequest
	lastUploads []service.DocumentUpload
	lastQuery   dto.RegistrationQuery
}

func (f *fakeRegistrationSrv) Submit(_ context.Context, req dto.SubmitRegistrationRequest, uploads []service.DocumentUpload) (*dto.SubmitRegistrationResponse, error) {
	f.lastReq = req
	f.lastUploads = uploads
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &dto.SubmitRegistrationResponse{
		RegistrationID:  "reg-1",
		AdmissionNumber: "ELBA/26/JSS1/001",
		Message:         "Registration received. Your admission number is ELBA/26/JSS1/001; your application is pending approval.",
	}, nil
}

func (f *fakeRegistrationSrv) Get(_ context.Context, id string) (*models.Registration, []models.Document, error) {
	if id != "reg-1" {
		return nil, nil, appErrors.ErrNotFound
	}
	return &models.Registration{ID: "reg-1", AdmissionNumber: "ELBA/26/JSS1/001"}, nil, nil
}

func (f *fakeRegistrationSrv) Lookup(_ context.Context, number string) (*models.Registration, []models.Document, error) {
	if number != "ELBA/26/JSS1/001" {
		return nil, nil, appErrors.ErrNotFound
	}
	return &models.Registration{ID: "reg-1", AdmissionNumber: number}, nil, nil
}

func (f *fakeRegistrationSrv) List(_ context.Context, query dto.RegistrationQuery) ([]models.Registration, error) {
	f.lastQuery = query
	return []models.Registration{{ID: "reg-1"}}, nil
}

func submissionForm(t *testing.T, withPhoto bool) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	fields := map[string]string{
		"email":                "jane.doe@example.com",
		"password":             "s3cret-pass",
		"fullName":             "Jane Doe",
		"gender":               "FEMALE",
		"dateOfBirth":          "2010-04-12",
		"phone":                "08012345678",
		"address":              "12 School Road",
		"state":                "Lagos",
		"guardianName":         "John Doe",
		"guardianPhone":        "08087654321",
		"guardianRelationship": "Father",
		"classCode":            "JSS1",
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if withPhoto {
		part, err := writer.CreateFormFile("photo", "photo.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestRegistrationHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeRegistrationSrv{}
	handler := NewRegistrationHandler(srv, nil)

	body, contentType := submissionForm(t, true)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/registrations", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req

	handler.Submit(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "jane.doe@example.com", srv.lastReq.Email)
	assert.Len(t, srv.lastUploads, 1)
	assert.Equal(t, models.DocumentTypePhoto, srv.lastUploads[0].Type)

	var envelope struct {
		Data dto.SubmitRegistrationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "ELBA/26/JSS1/001", envelope.Data.AdmissionNumber)
}

func TestRegistrationHandlerSubmitWithoutFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeRegistrationSrv{}
	handler := NewRegistrationHandler(srv, nil)

	body, contentType := submissionForm(t, false)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/registrations", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req

	handler.Submit(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, srv.lastUploads)
}

func TestRegistrationHandlerSubmitDuplicateEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeRegistrationSrv{submitErr: appErrors.ErrDuplicateEmail}
	handler := NewRegistrationHandler(srv, nil)

	body, contentType := submissionForm(t, false)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/registrations", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req

	handler.Submit(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegistrationHandlerListParsesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeRegistrationSrv{}
	handler := NewRegistrationHandler(srv, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/registrations?status=pending,APPROVED&class=JSS1&year=2026&limit=10", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.ApprovalStatus{models.ApprovalStatusPending, models.ApprovalStatusApproved}, srv.lastQuery.Status)
	assert.Equal(t, "JSS1", srv.lastQuery.ClassCode)
	assert.Equal(t, 2026, srv.lastQuery.Year)
	assert.Equal(t, 10, srv.lastQuery.Limit)
}

func TestRegistrationHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRegistrationHandler(&fakeRegistrationSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/registrations/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
