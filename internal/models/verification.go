package models

import "time"

// VerificationStatus is the review state of a verification request.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return true
	}
	return false
}

// IsReviewOutcome reports whether s is a status a reviewer may set.
func (s VerificationStatus) IsReviewOutcome() bool {
	return s == VerificationApproved || s == VerificationRejected
}

// VerificationRequest asserts a user's enrollment at an educational institution.
// Email, FullName, College and CreatedAt never change after creation.
type VerificationRequest struct {
	ID         int64              `json:"id" bson:"_id"`
	UserID     *int64             `json:"userId" bson:"user_id,omitempty"`
	Email      string             `json:"email" bson:"email"`
	FullName   string             `json:"fullName" bson:"full_name"`
	College    string             `json:"college" bson:"college"`
	Status     VerificationStatus `json:"status" bson:"status"`
	ReviewedBy *string            `json:"reviewedBy" bson:"reviewed_by,omitempty"`
	ReviewedAt *time.Time         `json:"reviewedAt" bson:"reviewed_at,omitempty"`
	Notes      *string            `json:"notes" bson:"notes,omitempty"`
	CreatedAt  time.Time          `json:"createdAt" bson:"created_at"`
	Version    int64              `json:"version" bson:"version"`
}

// VerificationPatch is a merge-patch: nil fields are left untouched.
type VerificationPatch struct {
	Status     *VerificationStatus
	ReviewedBy *string
	ReviewedAt *time.Time
	Notes      *string

	// ExpectedVersion, when set, makes the update conditional on the stored version.
	ExpectedVersion *int64
}

// SubmitVerificationRequest is the body of POST /api/verify-student.
// Any status sent by the client is ignored; new requests always start pending.
type SubmitVerificationRequest struct {
	UserID   *int64 `json:"userId"`
	Email    string `json:"email" validate:"required,edu_email"`
	FullName string `json:"fullName" validate:"required,max=200"`
	College  string `json:"college" validate:"required,max=200"`
	Notes    string `json:"notes" validate:"max=2000"`
}

// ReviewVerificationRequest is the body of PUT /api/verifications/{id}.
type ReviewVerificationRequest struct {
	Status  VerificationStatus `json:"status"`
	Notes   *string            `json:"notes"`
	Version *int64             `json:"version"`
}

// BulkReviewRequest is the body of POST /api/verifications/bulk-action.
type BulkReviewRequest struct {
	IDs    []int64 `json:"ids"`
	Action string  `json:"action"`
	Notes  *string `json:"notes"`
}
