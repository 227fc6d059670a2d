package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized            = errors.New("unauthorized")
	ErrAlreadyAuthenticated    = errors.New("already_authenticated")
	ErrNotFound                = errors.New("not_found")
	ErrUserNotRegistered       = errors.New("user_not_registered")
	ErrEmailTaken              = errors.New("email_taken")
	ErrContactTaken            = errors.New("contact_taken")
	ErrInvalidCredentials      = errors.New("invalid_credentials")
	ErrInvalidPassword         = errors.New("invalid_password")
	ErrInvalidOTP              = errors.New("invalid_otp")
	ErrExternalAccountExists   = errors.New("external_account_exists")
	ErrVerificationLinkInvalid = errors.New("verification_link_invalid")
	ErrResetLinkInvalid        = errors.New("reset_link_invalid")
	ErrAlreadyVerified         = errors.New("already_verified")
	ErrNoPassword              = errors.New("no_password")
	ErrPasswordAlreadySet      = errors.New("password_already_set")
	ErrRateLimited             = errors.New("rate_limited")
	ErrValidation              = errors.New("validation")
	ErrHashing                 = errors.New("hashing_failed")
	ErrDependency              = errors.New("dependency_failed")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// AuthErrorReason tells an expired session token apart from a forged or
// malformed one. Callers only branch on validity; the reason is for logs.
type AuthErrorReason string

const (
	AuthExpired AuthErrorReason = "expired"
	AuthInvalid AuthErrorReason = "invalid"
)

type AuthError struct {
	Reason AuthErrorReason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session token %s: %v", e.Reason, e.Err)
	}
	return "session token " + string(e.Reason)
}

func (e *AuthError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUnauthorized, e.Err}
	}
	return []error{ErrUnauthorized}
}

func IsExpired(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Reason == AuthExpired
}

// DependencyError wraps a failure of a collaborator: storage, mail, image
// store or the hasher. Its detail is logged, never shown to the client.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *DependencyError) Unwrap() []error { return []error{ErrDependency, e.Err} }

func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DependencyError
	if errors.As(err, &de) {
		return err
	}
	return &DependencyError{Op: op, Err: err}
}
