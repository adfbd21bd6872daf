package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elbaschool/admissions-api/internal/dto"
	"github.com/elbaschool/admissions-api/internal/models"
	"github.com/elbaschool/admissions-api/internal/repository"
	appErrors "github.com/elbaschool/admissions-api/pkg/errors"
)

type regRepoStub struct {
	registrations map[string]*models.Registration
	emails        map[string]bool
	failCreate    error
	seq           int
}

func newRegRepoStub() *regRepoStub {
	return &regRepoStub{
		registrations: make(map[string]*models.Registration),
		emails:        make(map[string]bool),
	}
}

func (r *regRepoStub) Create(ctx context.Context, schoolCode string, reg *models.Registration) (*models.Approval, error) {
	if r.failCreate != nil {
		return nil, r.failCreate
	}
	r.seq++
	reg.ID = fmt.Sprintf("reg-%d", r.seq)
	reg.Sequence = r.seq
	reg.AdmissionNumber = fmt.Sprintf("%s/%02d/%s/%03d", schoolCode, reg.Year%100, reg.ClassCode, r.seq)
	r.registrations[reg.ID] = reg
	r.emails[reg.Email] = true
	return &models.Approval{RegistrationID: reg.ID, Status: models.ApprovalStatusPending}, nil
}

func (r *regRepoStub) GetByID(ctx context.Context, id string) (*models.Registration, error) {
	if reg, ok := r.registrations[id]; ok {
		copy := *reg
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *regRepoStub) GetByAdmissionNumber(ctx context.Context, number string) (*models.Registration, error) {
	for _, reg := range r.registrations {
		if reg.AdmissionNumber == number {
			copy := *reg
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *regRepoStub) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.emails[email], nil
}

func (r *regRepoStub) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error) {
	result := make([]models.Registration, 0, len(r.registrations))
	for _, reg := range r.registrations {
		result = append(result, *reg)
	}
	return result, nil
}

type identityRepoStub struct {
	users      map[string]*models.User
	deleted    []string
	failCreate error
}

func newIdentityRepoStub() *identityRepoStub {
	return &identityRepoStub{users: make(map[string]*models.User)}
}

func (r *identityRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := r.users[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (r *identityRepoStub) Create(ctx context.Context, user *models.User) error {
	if r.failCreate != nil {
		return r.failCreate
	}
	user.ID = "user-" + user.Email
	r.users[user.Email] = user
	return nil
}

func (r *identityRepoStub) HardDelete(ctx context.Context, id string) error {
	for email, user := range r.users {
		if user.ID == id {
			delete(r.users, email)
		}
	}
	r.deleted = append(r.deleted, id)
	return nil
}

type docRepoStub struct {
	docs       []*models.Document
	failCreate error
}

func (r *docRepoStub) Create(ctx context.Context, doc *models.Document) error {
	if r.failCreate != nil {
		return r.failCreate
	}
	r.docs = append(r.docs, doc)
	return nil
}

func (r *docRepoStub) ListByRegistration(ctx context.Context, registrationID string) ([]models.Document, error) {
	result := make([]models.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		if doc.RegistrationID == registrationID {
			result = append(result, *doc)
		}
	}
	return result, nil
}

type storageStub struct {
	saved   map[string][]byte
	deleted []string
}

func newStorageStub() *storageStub {
	return &storageStub{saved: make(map[string][]byte)}
}

func (s *storageStub) SaveStream(filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.saved[filename] = data
	return filename, nil
}

func (s *storageStub) Delete(filename string) error {
	delete(s.saved, filename)
	s.deleted = append(s.deleted, filename)
	return nil
}

func validSubmission() dto.SubmitRegistrationRequest {
	return dto.SubmitRegistrationRequest{
		Email:         "jane.doe@example.com",
		Password:      "s3cret-pass",
		FullName:      "Jane Doe",
		Gender:        "FEMALE",
		DateOfBirth:   "2010-04-12",
		Phone:         "08012345678",
		Address:       "12 School Road",
		State:         "Lagos",
		GuardianName:  "John Doe",
		GuardianPhone: "08087654321",
		GuardianRel:   "Father",
		ClassCode:     "JSS1",
	}
}

func newTestRegistrationService(repo *regRepoStub, identities *identityRepoStub, docs *docRepoStub, store *storageStub, audit *auditStub) *RegistrationService {
	return NewRegistrationService(repo, identities, docs, store, audit, nil, nil, RegistrationServiceConfig{
		SchoolCode:    "ELBA",
		AdmissionYear: 2026,
	})
}

func TestSubmitCreatesPendingRegistration(t *testing.T) {
	repo := newRegRepoStub()
	identities := newIdentityRepoStub()
	audit := &auditStub{}
	svc := newTestRegistrationService(repo, identities, &docRepoStub{}, newStorageStub(), audit)

	resp, err := svc.Submit(context.Background(), validSubmission(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, resp.RegistrationID)
	require.Equal(t, "ELBA/26/JSS1/001", resp.AdmissionNumber)
	require.Contains(t, resp.Message, "pending approval")
	require.Empty(t, resp.SkippedUploads)

	reg := repo.registrations[resp.RegistrationID]
	require.NotNil(t, reg)
	require.Equal(t, "jane.doe@example.com", reg.Email)
	require.Len(t, identities.users, 1)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionRegistrationSubmit, audit.logs[0].Action)
}

func TestSubmitRejectsInvalidPayload(t *testing.T) {
	svc := newTestRegistrationService(newRegRepoStub(), newIdentityRepoStub(), &docRepoStub{}, newStorageStub(), &auditStub{})

	req := validSubmission()
	req.Email = "not-an-email"
	_, err := svc.Submit(context.Background(), req, nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitRejectsDuplicateEmail(t *testing.T) {
	identities := newIdentityRepoStub()
	identities.users["jane.doe@example.com"] = &models.User{ID: "user-1", Email: "jane.doe@example.com"}
	svc := newTestRegistrationService(newRegRepoStub(), identities, &docRepoStub{}, newStorageStub(), &auditStub{})

	_, err := svc.Submit(context.Background(), validSubmission(), nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrDuplicateEmail.Code, appErrors.FromError(err).Code)
}

func TestSubmitRollsBackIdentityOnPersistenceFailure(t *testing.T) {
	repo := newRegRepoStub()
	repo.failCreate = errors.New("insert failed")
	identities := newIdentityRepoStub()
	svc := newTestRegistrationService(repo, identities, &docRepoStub{}, newStorageStub(), &auditStub{})

	_, err := svc.Submit(context.Background(), validSubmission(), nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrPersistence.Code, appErrors.FromError(err).Code)
	require.Len(t, identities.deleted, 1)
	require.Empty(t, identities.users)
}

func TestSubmitMapsDuplicateRowToDuplicateEmail(t *testing.T) {
	repo := newRegRepoStub()
	repo.failCreate = fmt.Errorf("insert registration: %w", repository.ErrDuplicate)
	identities := newIdentityRepoStub()
	svc := newTestRegistrationService(repo, identities, &docRepoStub{}, newStorageStub(), &auditStub{})

	_, err := svc.Submit(context.Background(), validSubmission(), nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrDuplicateEmail.Code, appErrors.FromError(err).Code)
	require.Len(t, identities.deleted, 1)
}

func TestSubmitSkipsInvalidUploads(t *testing.T) {
	repo := newRegRepoStub()
	docs := &docRepoStub{}
	store := newStorageStub()
	svc := newTestRegistrationService(repo, newIdentityRepoStub(), docs, store, &auditStub{})

	uploads := []DocumentUpload{
		{
			Type:     models.DocumentTypePhoto,
			Filename: "photo.png",
			Size:     128,
			MimeType: "image/png",
			Content:  bytes.NewReader([]byte("png-bytes")),
		},
		{
			Type:     models.DocumentTypeBirthCertificate,
			Filename: "cert.exe",
			Size:     64,
			MimeType: "application/x-msdownload",
			Content:  bytes.NewReader([]byte("nope")),
		},
		{
			Type:     models.DocumentTypeIDProof,
			Filename: "huge.pdf",
			Size:     50 * 1024 * 1024,
			MimeType: "application/pdf",
			Content:  bytes.NewReader([]byte("too big")),
		},
	}

	resp, err := svc.Submit(context.Background(), validSubmission(), uploads)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		string(models.DocumentTypeBirthCertificate),
		string(models.DocumentTypeIDProof),
	}, resp.SkippedUploads)
	require.Len(t, docs.docs, 1)
	require.Equal(t, models.DocumentTypePhoto, docs.docs[0].Type)
	require.Len(t, store.saved, 1)
}

func TestSubmitRemovesFileWhenMetadataFails(t *testing.T) {
	repo := newRegRepoStub()
	docs := &docRepoStub{failCreate: errors.New("insert failed")}
	store := newStorageStub()
	svc := newTestRegistrationService(repo, newIdentityRepoStub(), docs, store, &auditStub{})

	uploads := []DocumentUpload{{
		Type:     models.DocumentTypePhoto,
		Filename: "photo.jpg",
		Size:     128,
		MimeType: "image/jpeg",
		Content:  bytes.NewReader([]byte("jpeg-bytes")),
	}}

	resp, err := svc.Submit(context.Background(), validSubmission(), uploads)
	require.NoError(t, err)
	require.Equal(t, []string{string(models.DocumentTypePhoto)}, resp.SkippedUploads)
	require.Empty(t, store.saved)
	require.Len(t, store.deleted, 1)
}

func TestLookupByAdmissionNumber(t *testing.T) {
	repo := newRegRepoStub()
	svc := newTestRegistrationService(repo, newIdentityRepoStub(), &docRepoStub{}, newStorageStub(), &auditStub{})

	resp, err := svc.Submit(context.Background(), validSubmission(), nil)
	require.NoError(t, err)

	reg, _, err := svc.Lookup(context.Background(), " elba/26/jss1/001 ")
	require.NoError(t, err)
	require.Equal(t, resp.RegistrationID, reg.ID)

	_, _, err = svc.Lookup(context.Background(), "ELBA/26/JSS1/999")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Lookup(context.Background(), "garbage")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitNormalisesEmail(t *testing.T) {
	repo := newRegRepoStub()
	svc := newTestRegistrationService(repo, newIdentityRepoStub(), &docRepoStub{}, newStorageStub(), &auditStub{})

	req := validSubmission()
	req.Email = "Jane.Doe@Example.COM"
	resp, err := svc.Submit(context.Background(), req, nil)
	require.NoError(t, err)
	require.Equal(t, "jane.doe@example.com", repo.registrations[resp.RegistrationID].Email)
	require.Equal(t, "JSS1", repo.registrations[resp.RegistrationID].ClassCode)
	require.True(t, strings.HasPrefix(resp.AdmissionNumber, "ELBA/26/JSS1/"))
}
