package models

import (
	"errors"
	"fmt"
)

// Identity provider error codes.
const (
	CodeInvalidEmail      = "invalid-email"
	CodeWeakPassword      = "weak-password"
	CodeEmailAlreadyInUse = "email-already-in-use"
	CodeUserNotFound      = "user-not-found"
	CodeWrongPassword     = "wrong-password"
	CodeInvalidCredential = "invalid-credential"
	CodeTooManyRequests   = "too-many-requests"
	CodePopupClosedByUser = "popup-closed-by-user"
	CodeProviderError     = "provider-error"
	CodeInvalidToken      = "invalid-token"
	CodeIdentityInternal  = "internal-error"
)

// IdentityError is returned by every failed identity provider call.
type IdentityError struct {
	Code string
	Err  error
}

func NewIdentityError(code string, err error) *IdentityError {
	return &IdentityError{Code: code, Err: err}
}

func (e *IdentityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity: %s: %v", e.Code, e.Err)
	}
	return "identity: " + e.Code
}

func (e *IdentityError) Unwrap() error {
	return e.Err
}

// IdentityCode returns the provider code carried by err, or "" when err is not an IdentityError.
func IdentityCode(err error) string {
	var ierr *IdentityError
	if errors.As(err, &ierr) {
		return ierr.Code
	}
	return ""
}

// IsDismissed reports whether the user closed the external sign-in flow.
func IsDismissed(err error) bool {
	return IdentityCode(err) == CodePopupClosedByUser
}

// ValidationError is a form check that failed before any provider call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PersistenceError wraps a failed document store call.
type PersistenceError struct {
	Op  string
	UID string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.UID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

var (
	ErrPasswordMismatch = NewValidationError("confirmPassword", "Passwords do not match.")
	ErrUnknownModule    = NewValidationError("module", "Unknown learning module.")
	ErrInvalidOption    = NewValidationError("option", "Answer option is out of range.")
)

// PasswordTooShort is the register form error for a password under minLength characters.
func PasswordTooShort(minLength int) *ValidationError {
	return NewValidationError("password", fmt.Sprintf("Password must be at least %d characters.", minLength))
}

// UserMessage maps an error to the short message shown on the sign-in and register forms.
// Provider detail is never included.
func UserMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	switch IdentityCode(err) {
	case CodeUserNotFound:
		return "No account found with this email."
	case CodeWrongPassword, CodeInvalidCredential:
		return "Incorrect email or password."
	case CodeTooManyRequests:
		return "Too many attempts. Please try again later."
	case CodeEmailAlreadyInUse:
		return "An account with this email already exists."
	case CodeInvalidEmail:
		return "Please enter a valid email address."
	case CodeWeakPassword:
		return "Password is too weak. Please choose a longer password."
	case CodePopupClosedByUser:
		return ""
	case CodeProviderError:
		return "Failed to sign in with Google."
	case CodeInvalidToken:
		return "Your session has expired. Please sign in again."
	}
	return "Something went wrong. Please try again."
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)
