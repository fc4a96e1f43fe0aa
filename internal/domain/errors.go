package domain

import (
	"errors"
	"net/http"
)

// ErrorCode identifies one branch of the authentication error taxonomy.
type ErrorCode string

const (
	CodeValidation            ErrorCode = "VALIDATION_ERROR"
	CodeDuplicateField        ErrorCode = "DUPLICATE_FIELD"
	CodeInvalidCredentials    ErrorCode = "INVALID_CREDENTIALS"
	CodeAccountLocked         ErrorCode = "ACCOUNT_LOCKED"
	CodeEmailNotVerified      ErrorCode = "EMAIL_NOT_VERIFIED"
	CodeMFARequired           ErrorCode = "MFA_REQUIRED"
	CodeMagicLinkRequired     ErrorCode = "MAGIC_LINK_REQUIRED"
	CodeUnauthorized          ErrorCode = "UNAUTHORIZED"
	CodeReuseDetected         ErrorCode = "REUSE_DETECTED"
	CodeNotFound              ErrorCode = "NOT_FOUND"
	CodeInvalidOrExpiredToken ErrorCode = "INVALID_OR_EXPIRED_TOKEN"
	CodeRateLimited           ErrorCode = "RATE_LIMITED"
)

// AuthError is the tagged error type every operation failure is translated
// into before it crosses the usecase boundary. The delivery layer maps it
// exhaustively onto HTTP statuses; anything else becomes a generic 500.
type AuthError struct {
	Code       ErrorCode
	Message    string
	Status     int
	RetryAfter int // seconds, set only for CodeAccountLocked / CodeRateLimited
}

func (e *AuthError) Error() string {
	return e.Message
}

// Is makes two AuthErrors with the same code match under errors.Is, so tests
// and callers can compare against the constructors below.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// CodeOf extracts the taxonomy code from an error chain, or "" for untagged
// errors (which the boundary treats as internal).
func CodeOf(err error) ErrorCode {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func NewValidationError(message string) *AuthError {
	return &AuthError{Code: CodeValidation, Message: message, Status: http.StatusBadRequest}
}

func NewDuplicateFieldError(field string) *AuthError {
	return &AuthError{Code: CodeDuplicateField, Message: field + " is already in use", Status: http.StatusBadRequest}
}

// NewInvalidCredentialsError deliberately uses one message for "no such user"
// and "wrong password" to avoid account enumeration.
func NewInvalidCredentialsError() *AuthError {
	return &AuthError{Code: CodeInvalidCredentials, Message: "invalid credentials", Status: http.StatusUnauthorized}
}

func NewAccountLockedError(retryAfter int) *AuthError {
	return &AuthError{
		Code:       CodeAccountLocked,
		Message:    "account temporarily locked due to too many failed login attempts",
		Status:     http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	}
}

func NewEmailNotVerifiedError() *AuthError {
	return &AuthError{Code: CodeEmailNotVerified, Message: "email not verified; a new verification link has been sent", Status: http.StatusForbidden}
}

func NewMFARequiredError() *AuthError {
	return &AuthError{Code: CodeMFARequired, Message: "multi-factor code required", Status: http.StatusForbidden}
}

func NewMagicLinkRequiredError() *AuthError {
	return &AuthError{Code: CodeMagicLinkRequired, Message: "unrecognized device; a magic login link has been sent to your email", Status: http.StatusUnauthorized}
}

func NewUnauthorizedError(message string) *AuthError {
	if message == "" {
		message = "not authorized"
	}
	return &AuthError{Code: CodeUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

// NewReuseDetectedError marks replay of an already-rotated refresh token.
// The caller wipes the whole session list before returning it.
func NewReuseDetectedError() *AuthError {
	return &AuthError{Code: CodeReuseDetected, Message: "refresh token reuse detected; all sessions revoked", Status: http.StatusForbidden}
}

func NewNotFoundError(message string) *AuthError {
	if message == "" {
		message = "not found"
	}
	return &AuthError{Code: CodeNotFound, Message: message, Status: http.StatusNotFound}
}

// NewInvalidOrExpiredTokenError is used uniformly for reset, verification and
// magic-link tokens: a consumed token and an expired one fail identically.
func NewInvalidOrExpiredTokenError() *AuthError {
	return &AuthError{Code: CodeInvalidOrExpiredToken, Message: "invalid or expired token", Status: http.StatusBadRequest}
}

func NewRateLimitedError(retryAfter int) *AuthError {
	return &AuthError{
		Code:       CodeRateLimited,
		Message:    "too many requests; please try again later",
		Status:     http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	}
}
