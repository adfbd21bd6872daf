package models

import "time"

// ApprovalStatus captures workflow states for a registration review.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// DocumentType tags uploaded applicant documents by slot.
type DocumentType string

const (
	DocumentTypePhoto            DocumentType = "PHOTO"
	DocumentTypeBirthCertificate DocumentType = "BIRTH_CERTIFICATE"
	DocumentTypeIDProof          DocumentType = "ID_PROOF"
)

// Registration is a prospective student record awaiting an admission decision.
type Registration struct {
	ID              string    `db:"id" json:"id"`
	AdmissionNumber string    `db:"admission_number" json:"admissionNumber"`
	UserID          string    `db:"user_id" json:"userId"`
	FullName        string    `db:"full_name" json:"fullName"`
	Gender          string    `db:"gender" json:"gender"`
	DateOfBirth     time.Time `db:"date_of_birth" json:"dateOfBirth"`
	Email           string    `db:"email" json:"email"`
	Phone           string    `db:"phone" json:"phone"`
	Address         string    `db:"address" json:"address"`
	State           string    `db:"state" json:"state"`
	GuardianName    string    `db:"guardian_name" json:"guardianName"`
	GuardianPhone   string    `db:"guardian_phone" json:"guardianPhone"`
	GuardianEmail   string    `db:"guardian_email" json:"guardianEmail,omitempty"`
	GuardianRel     string    `db:"guardian_relationship" json:"guardianRelationship"`
	PreviousSchool  string    `db:"previous_school" json:"previousSchool,omitempty"`
	ClassCode       string    `db:"class_code" json:"classCode"`
	Year            int       `db:"year" json:"year"`
	Sequence        int       `db:"sequence" json:"sequence"`
	SubmittedAt     time.Time `db:"submitted_at" json:"submittedAt"`
}

// Approval tracks the review outcome for exactly one registration.
type Approval struct {
	ID             string         `db:"id" json:"id"`
	RegistrationID string         `db:"registration_id" json:"registrationId"`
	Status         ApprovalStatus `db:"status" json:"status"`
	ReviewedBy     *string        `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time     `db:"reviewed_at" json:"reviewedAt,omitempty"`
	Comments       string         `db:"comments" json:"comments,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// Document stores metadata for an uploaded applicant file.
type Document struct {
	ID             string       `db:"id" json:"id"`
	RegistrationID string       `db:"registration_id" json:"registrationId"`
	Type           DocumentType `db:"type" json:"type"`
	FilePath       string       `db:"file_path" json:"filePath"`
	MimeType       string       `db:"mime_type" json:"mimeType"`
	SizeBytes      int64        `db:"size_bytes" json:"sizeBytes"`
	UploadedAt     time.Time    `db:"uploaded_at" json:"uploadedAt"`
}

// RegistrationDetail bundles a registration with its approval and documents.
type RegistrationDetail struct {
	Registration Registration `json:"registration"`
	Approval     Approval     `json:"approval"`
	Documents    []Document   `json:"documents"`
}

// RegistrationFilter constrains listing queries.
type RegistrationFilter struct {
	Status    []ApprovalStatus
	ClassCode string
	Year      int
	Search    string
	Limit     int
	Offset    int
}
