// Package errors provides structured error handling for the identity service.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Identity errors
	CodeIdentityNotFound   Code = "IDENTITY_NOT_FOUND"
	CodeIdentityLockedOut  Code = "IDENTITY_LOCKED_OUT"
	CodeSignInNotAllowed   Code = "SIGN_IN_NOT_ALLOWED"
	CodeUserEmptyEmail     Code = "USER_EMPTY_EMAIL"
	CodeUserInvalidEmail   Code = "USER_INVALID_EMAIL"
	CodeUserDuplicateEmail Code = "USER_DUPLICATE_EMAIL"
	CodeSessionExpired     Code = "SESSION_EXPIRED"

	// Role and permission errors
	CodeRoleNotFound          Code = "ROLE_NOT_FOUND"
	CodeRoleDuplicateName     Code = "ROLE_DUPLICATE_NAME"
	CodePermissionInvalidName Code = "PERMISSION_INVALID_NAME"
	CodePermissionDenied      Code = "PERMISSION_DENIED"
	CodePolicyNotFound        Code = "POLICY_NOT_FOUND"

	// Authorization flow errors
	CodeApplicationNotFound  Code = "APPLICATION_NOT_FOUND"
	CodeConsentRequired      Code = "CONSENT_REQUIRED"
	CodeInvalidGrant         Code = "INVALID_GRANT"
	CodeUnsupportedGrantType Code = "UNSUPPORTED_GRANT_TYPE"
	CodeValidationFailed     Code = "VALIDATION_FAILED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeStorage  Code = "STORAGE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeIdentityNotFound, CodeRoleNotFound, CodeApplicationNotFound, CodeNotFound, CodePolicyNotFound:
		return http.StatusNotFound
	case CodeValidationFailed, CodeInvalidGrant, CodeUnsupportedGrantType, CodeConsentRequired,
		CodeUserEmptyEmail, CodeUserInvalidEmail, CodePermissionInvalidName:
		return http.StatusBadRequest
	case CodeUserDuplicateEmail, CodeRoleDuplicateName:
		return http.StatusConflict
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeSessionExpired, CodeSignInNotAllowed, CodeIdentityLockedOut:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
