package shl

// errors.go defines the error codes used by the link-sharing API

import "fmt"

// SHLError represents a structured error from the shl package.
type SHLError struct {
	// code classifies the error for response mapping
	code ErrorCode

	// op optionally names the storage operation that failed
	op string

	// reason qualifies ErrCodeGone (expired vs exhausted)
	reason GoneReason

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error

	// remainingAttempts is the number of passcode attempts left before
	// lockout (nil when no failure ceiling is configured)
	remainingAttempts *int
}

func (e *SHLError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *SHLError) Code() ErrorCode    { return e.code }
func (e *SHLError) Op() string         { return e.op }
func (e *SHLError) Reason() GoneReason { return e.reason }
func (e *SHLError) Unwrap() error      { return e.wrapped }

// RemainingAttempts reports how many passcode attempts are left before the
// link locks. The second return is false when no failure ceiling applies.
func (e *SHLError) RemainingAttempts() (int, bool) {
	if e.remainingAttempts == nil {
		return 0, false
	}
	return *e.remainingAttempts, true
}

// ErrorCode is used in errors returned by the link-sharing API.
//
// Codes are stable strings: they appear verbatim in the "error" field of
// JSON error responses, so clients can switch on them.
type ErrorCode string

// Error codes used by this implementation
const (

	// ErrCodeValidation is used when request input fails validation
	// (missing required fields, bad format, unparseable JSON, etc.)
	ErrCodeValidation ErrorCode = "validation"

	// ErrCodeEncryption is used when payload encryption or key generation fails
	ErrCodeEncryption ErrorCode = "encryption"

	// ErrCodeStorage is used when a storage backend operation fails
	ErrCodeStorage ErrorCode = "storage"

	// ErrCodeUnauthorized is used when a required passcode is missing or wrong,
	// or when the link is locked after too many failed passcode attempts
	ErrCodeUnauthorized ErrorCode = "unauthorized"

	// ErrCodeNotFound is used when the link id is unknown.
	// Revoked links also report not_found - a revoked link is
	// indistinguishable from one that never existed.
	ErrCodeNotFound ErrorCode = "not_found"

	// ErrCodeGone is used when the link existed but can no longer be served:
	// the reason field distinguishes expiry from an exhausted access budget
	ErrCodeGone ErrorCode = "gone"

	// ErrCodeRateLimitExceeded is used when the rate limit is exceeded
	// - this is only used in the middleware
	ErrCodeRateLimitExceeded ErrorCode = "rate_limited"

	// ErrCodeRequestTooLarge is used when the request body is too large
	// - this is only used in the middleware
	ErrCodeRequestTooLarge ErrorCode = "request_too_large"

	// ErrCodeInternal is used when an internal server error occurs
	ErrCodeInternal ErrorCode = "internal"
)

// GoneReason qualifies ErrCodeGone responses.
type GoneReason string

const (
	// GoneReasonExpired: the link's expiry time has passed
	GoneReasonExpired GoneReason = "expired"

	// GoneReasonExhausted: the link's access budget is used up
	GoneReasonExhausted GoneReason = "exhausted"
)

// NewValidationError creates a validation error for invalid input.
// Use this for errors related to missing required fields, bad format,
// or invalid JSON in requests to the link-sharing API.
//
// The returned error will have code ErrCodeValidation.
func NewValidationError(msg string) error {
	return &SHLError{code: ErrCodeValidation, message: msg}
}

// WrapValidationError wraps an existing error as a validation error.
// Use this for errors related to missing required fields, bad format,
// or invalid JSON in requests to the link-sharing API.
//
// The returned error will have code ErrCodeValidation.
func WrapValidationError(err error, msg string) error {
	return &SHLError{code: ErrCodeValidation, message: msg, wrapped: err}
}

// NewEncryptionError creates an encryption error.
// Use this for failures in key generation, envelope encryption or
// canonicalization during link creation.
//
// The returned error will have code ErrCodeEncryption.
func NewEncryptionError(msg string) error {
	return &SHLError{code: ErrCodeEncryption, message: msg}
}

// WrapEncryptionError wraps an existing error as an encryption error.
// Use this for failures in key generation, envelope encryption or
// canonicalization during link creation.
//
// The returned error will have code ErrCodeEncryption.
func WrapEncryptionError(err error, msg string) error {
	return &SHLError{code: ErrCodeEncryption, message: msg, wrapped: err}
}

// WrapStorageError wraps an existing error as a storage error.
// op names the failing storage operation (store, retrieve, delete, swap)
// so logs can pinpoint the failure without exposing backend detail to
// clients.
//
// The returned error will have code ErrCodeStorage.
func WrapStorageError(err error, op string, msg string) error {
	return &SHLError{code: ErrCodeStorage, op: op, message: msg, wrapped: err}
}

// NewUnauthorizedError creates an unauthorized error.
// Use this when a required passcode is missing or does not match.
//
// The returned error will have code ErrCodeUnauthorized.
func NewUnauthorizedError(msg string) error {
	return &SHLError{code: ErrCodeUnauthorized, message: msg}
}

// NewUnauthorizedErrorWithAttempts creates an unauthorized error that
// carries the number of passcode attempts left before the link locks.
// The hint is surfaced to clients in the error response body.
//
// The returned error will have code ErrCodeUnauthorized.
func NewUnauthorizedErrorWithAttempts(msg string, remaining int) error {
	if remaining < 0 {
		remaining = 0
	}
	return &SHLError{code: ErrCodeUnauthorized, message: msg, remainingAttempts: &remaining}
}

// NewNotFoundError creates a not found error.
// Use this when the link id is unknown or has been revoked.
//
// The returned error will have code ErrCodeNotFound.
func NewNotFoundError(msg string) error {
	return &SHLError{code: ErrCodeNotFound, message: msg}
}

// NewGoneError creates a gone error with the given reason.
// Use this when a link exists but can no longer be served because it
// expired or its access budget is exhausted.
//
// The returned error will have code ErrCodeGone.
func NewGoneError(reason GoneReason, msg string) error {
	return &SHLError{code: ErrCodeGone, reason: reason, message: msg}
}

// NewRateLimitError creates a rate limit exceeded error.
// Use this when the client has exceeded the rate limit.
//
// The returned error will have code ErrCodeRateLimitExceeded.
func NewRateLimitError(msg string) error {
	return &SHLError{code: ErrCodeRateLimitExceeded, message: msg}
}

// NewRequestTooLargeError creates a request too large error.
// Use this when the request body exceeds the maximum allowed size.
//
// The returned error will have code ErrCodeRequestTooLarge.
func NewRequestTooLargeError(msg string) error {
	return &SHLError{code: ErrCodeRequestTooLarge, message: msg}
}

// NewInternalError creates an internal error for unexpected failures.
// Use this for errors related to unexpected nil values, system errors,
// or other failures that should not normally occur.
//
// The returned error will have code ErrCodeInternal.
func NewInternalError(msg string) error {
	return &SHLError{code: ErrCodeInternal, message: msg}
}

// WrapInternalError wraps an existing error as an internal error.
// Use this for errors related to unexpected nil values, system errors,
// or other failures that should not normally occur.
//
// The returned error will have code ErrCodeInternal.
func WrapInternalError(err error, msg string) error {
	return &SHLError{code: ErrCodeInternal, message: msg, wrapped: err}
}
