package services

import (
	"errors"

	"github.com/campusbuzz/backend/internal/models"
)

var (
	ErrInvalidStatus   = errors.New("Invalid status. Must be 'approved' or 'rejected'")
	ErrInvalidAction   = errors.New("Invalid action. Must be 'approve' or 'reject'")
	ErrUserIDRequired  = errors.New("User ID is required")
	ErrEmptyStatsPatch = errors.New("At least one stats field is required")
)

// ValidationError reports the first violated field of a request. Fields holds
// every violation for the response body.
type ValidationError struct {
	Field   string
	Message string
	Fields  []models.FieldError
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func newValidationError(fields []models.FieldError) *ValidationError {
	return &ValidationError{
		Field:   fields[0].Field,
		Message: fields[0].Message,
		Fields:  fields,
	}
}
