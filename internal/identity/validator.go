package identity

import (
	"regexp"
	"strings"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"
)

// https://html.spec.whatwg.org/#valid-e-mail-address
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_\x60{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	return email != "" && emailRegex.MatchString(email)
}

// ValidateRegistration runs the register form checks that need no provider call.
func ValidateRegistration(email, password, confirm, displayName string, minLength int) error {
	if strings.TrimSpace(email) == "" || password == "" || strings.TrimSpace(displayName) == "" {
		return models.NewValidationError("", "Please fill in all fields.")
	}
	if password != confirm {
		return models.ErrPasswordMismatch
	}
	if len(password) < minLength {
		return models.PasswordTooShort(minLength)
	}
	return nil
}

// ValidateSignIn runs the sign-in form checks.
func ValidateSignIn(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return models.NewValidationError("", "Please enter your email and password.")
	}
	return nil
}
