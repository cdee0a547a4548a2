package auth

import (
	"regexp"
	"strings"

	apperrors "github.com/chatvibe/console/internal/errors"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateCredentials checks a login or registration form before anything
// is sent. It returns nil when both fields are acceptable.
func ValidateCredentials(email, password string) error {
	fieldErrs := apperrors.FieldErrors{}

	email = strings.TrimSpace(email)
	switch {
	case email == "":
		fieldErrs["email"] = "Email is required"
	case !emailPattern.MatchString(email):
		fieldErrs["email"] = "Invalid email"
	}

	if password == "" {
		fieldErrs["password"] = "Password is required"
	}

	if len(fieldErrs) > 0 {
		return fieldErrs
	}
	return nil
}
