package dto

// ApproveRequest carries the reviewer decision for a single registration.
type ApproveRequest struct {
	Comments string `json:"comments"`
}

// RejectRequest requires a non-empty reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// BulkApproveRequest applies approval to several registrations at once.
type BulkApproveRequest struct {
	RegistrationIDs []string `json:"registrationIds"`
}

// BulkApproveFailure reports a per-registration failure inside a bulk run.
type BulkApproveFailure struct {
	RegistrationID string `json:"registrationId"`
	Error          string `json:"error"`
}

// BulkApproveResponse summarises the outcome of a bulk approval.
type BulkApproveResponse struct {
	Succeeded []string             `json:"succeeded"`
	Failed    []BulkApproveFailure `json:"failed"`
	Total     int                  `json:"total"`
}
