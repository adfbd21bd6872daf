package dto

import (
	"github.com/elbaschool/admissions-api/internal/models"
)

// SubmitRegistrationRequest is the applicant-facing submission payload.
// File parts (photo, birth certificate, ID proof) travel alongside the form
// fields in the multipart body and are handled separately.
type SubmitRegistrationRequest struct {
	Email          string `form:"email" json:"email" validate:"required,email"`
	Password       string `form:"password" json:"password" validate:"required,min=8"`
	FullName       string `form:"fullName" json:"fullName" validate:"required"`
	Gender         string `form:"gender" json:"gender" validate:"required,oneof=MALE FEMALE male female"`
	DateOfBirth    string `form:"dateOfBirth" json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Phone          string `form:"phone" json:"phone" validate:"required"`
	Address        string `form:"address" json:"address" validate:"required"`
	State          string `form:"state" json:"state" validate:"required"`
	GuardianName   string `form:"guardianName" json:"guardianName" validate:"required"`
	GuardianPhone  string `form:"guardianPhone" json:"guardianPhone" validate:"required"`
	GuardianEmail  string `form:"guardianEmail" json:"guardianEmail" validate:"omitempty,email"`
	GuardianRel    string `form:"guardianRelationship" json:"guardianRelationship" validate:"required"`
	PreviousSchool string `form:"previousSchool" json:"previousSchool"`
	ClassCode      string `form:"classCode" json:"classCode" validate:"required,alphanum,min=2,max=5"`
}

// SubmitRegistrationResponse confirms a pending submission.
type SubmitRegistrationResponse struct {
	RegistrationID  string   `json:"registrationId"`
	AdmissionNumber string   `json:"admissionNumber"`
	Message         string   `json:"message"`
	SkippedUploads  []string `json:"skippedUploads,omitempty"`
}

// RegistrationQuery mirrors supported listing filters.
type RegistrationQuery struct {
	Status    []models.ApprovalStatus
	ClassCode string
	Year      int
	Search    string
	Limit     int
	Offset    int
}
