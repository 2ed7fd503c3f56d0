package service

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a terminal, user-visible failure with a stable machine code.
// All failures in the auth/licensing/RBAC core are local and never retried
// server-side; the code lets clients branch (e.g. show the setup screen on
// SETUP_PENDING or the owner-key prompt on OWNER_KEY_REQUIRED).
type APIError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Message }

var (
	// Returned uniformly for bad password and unknown identity to avoid
	// user enumeration.
	ErrInvalidCredentials = &APIError{Code: "INVALID_CREDENTIALS", Status: http.StatusUnauthorized, Message: "invalid credentials"}

	ErrInvalidOwnerKey = &APIError{Code: "INVALID_OWNER_KEY", Status: http.StatusUnauthorized, Message: "invalid owner key"}

	// Licensing not configured; blocks every non-owner login.
	ErrSetupPending = &APIError{Code: "SETUP_PENDING", Status: http.StatusLocked, Message: "system setup is pending"}

	// Licensing configured but the candidate's role is not covered by the
	// licensed modules.
	ErrRoleNotLicensed = &APIError{Code: "ROLE_NOT_LICENSED", Status: http.StatusLocked, Message: "role is not licensed on this installation"}

	ErrAdminWithoutCampus = &APIError{Code: "ADMIN_WITHOUT_CAMPUS", Status: http.StatusForbidden, Message: "admin account has no campus assigned"}

	ErrTokenInvalid = &APIError{Code: "TOKEN_INVALID", Status: http.StatusUnauthorized, Message: "invalid token"}
	ErrTokenExpired = &APIError{Code: "TOKEN_EXPIRED", Status: http.StatusUnauthorized, Message: "token expired"}
)

// OwnerKeyRequired signals first-time owner key initialization, carrying the
// configured minimum length as a hint for the setup UI.
func OwnerKeyRequired(minLength int) *APIError {
	return &APIError{
		Code:    "OWNER_KEY_REQUIRED",
		Status:  http.StatusPreconditionRequired,
		Message: fmt.Sprintf("owner key required to complete setup (minimum %d characters)", minLength),
	}
}

// Forbidden covers the self-lockout prevention rules (own role, own
// account, the owner account) and campus scoping violations.
func Forbidden(msg string) *APIError {
	return &APIError{Code: "FORBIDDEN", Status: http.StatusForbidden, Message: msg}
}

// BadRequest is used for malformed input that survives binding validation.
func BadRequest(msg string) *APIError {
	return &APIError{Code: "BAD_REQUEST", Status: http.StatusBadRequest, Message: msg}
}

// NotFound is used for missing users/roles/settings keys.
func NotFound(msg string) *APIError {
	return &APIError{Code: "NOT_FOUND", Status: http.StatusNotFound, Message: msg}
}

// AsAPIError unwraps err into an *APIError if possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
