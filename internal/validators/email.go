// Package validators contains the input rules shared by the HTTP layer and
// the lifecycle service.
package validators

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	ErrEmailEmpty          = errors.New("Email is required")
	ErrEmailInvalid        = errors.New("Invalid email")
	ErrEmailNotEducational = errors.New("Email must be from a recognized educational institution")
)

// educationalDomains is matched both as a suffix and as a substring of the
// address. The substring match lets "x@iitm.ac.in.example.com" through; that
// is the accepted behavior until the product decides otherwise.
var educationalDomains = []string{
	".edu",
	"@stanford.edu",
	"@mit.edu",
	"@harvard.edu",
	"@iitm.ac.in",
	"@iitd.ac.in",
	"@iitb.ac.in",
	"@berkeley.edu",
	"@ucla.edu",
}

// EducationalDomains returns a copy of the recognized domain list.
func EducationalDomains() []string {
	out := make([]string, len(educationalDomains))
	copy(out, educationalDomains)
	return out
}

// IsEducationalEmail reports whether email is a well-formed address that
// belongs to a recognized educational domain.
func IsEducationalEmail(email string) bool {
	return ValidateEmailDomain(email) == nil
}

// ValidateEmailDomain is IsEducationalEmail with the reason for rejection.
func ValidateEmailDomain(email string) error {
	if email == "" {
		return ErrEmailEmpty
	}
	if !isWellFormed(email) {
		return ErrEmailInvalid
	}
	for _, d := range educationalDomains {
		if strings.HasSuffix(email, d) || strings.Contains(email, d) {
			return nil
		}
	}
	return ErrEmailNotEducational
}

// isWellFormed accepts bare addresses only; display-name forms such as
// "Jane <jane@mit.edu>" are rejected.
func isWellFormed(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && addr.Name == ""
}
