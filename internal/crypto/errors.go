package crypto

import "fmt"

// Error represents a structured error from the crypto package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	ErrCodeValidation ErrorCode = "validation"
	ErrCodeKey        ErrorCode = "key"
	ErrCodeEntropy    ErrorCode = "entropy"
	ErrCodeEncryption ErrorCode = "encryption"
	ErrCodeDecryption ErrorCode = "decryption"
	ErrCodeFormat     ErrorCode = "format"
	ErrCodeInternal   ErrorCode = "internal"
)

// CryptoError represents a structured error from the crypto package
type CryptoError struct {

	// code is the crypto error code
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *CryptoError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *CryptoError) Code() ErrorCode { return e.code }
func (e *CryptoError) Unwrap() error   { return e.wrapped }

// NewValidationError creates a validation error for invalid input.
// Use this for errors related to missing required fields, bad format,
// invalid JSON, or bad encoding.
//
// The returned error will have code ErrCodeValidation.
func NewValidationError(msg string) error {
	return &CryptoError{code: ErrCodeValidation, message: msg}
}

// WrapValidationError wraps an existing error as a validation error.
// Use this for errors related to missing required fields, bad format,
// invalid JSON, or bad encoding.
//
// The returned error will have code ErrCodeValidation.
func WrapValidationError(err error, msg string) error {
	return &CryptoError{code: ErrCodeValidation, message: msg, wrapped: err}
}

// NewKeyError creates an error for problems with an encryption key.
// Use this for errors related to wrong key length or malformed key encoding.
//
// The returned error will have code ErrCodeKey.
func NewKeyError(msg string) error {
	return &CryptoError{code: ErrCodeKey, message: msg}
}

// WrapKeyError wraps an existing error as a key error.
// Use this for errors related to wrong key length or malformed key encoding.
//
// The returned error will have code ErrCodeKey.
func WrapKeyError(err error, msg string) error {
	return &CryptoError{code: ErrCodeKey, message: msg, wrapped: err}
}

// WrapEntropyError wraps a failure of the system entropy source.
// Key and identifier generation must never fall back to weaker randomness,
// so callers are expected to abort when they see this code.
//
// The returned error will have code ErrCodeEntropy.
func WrapEntropyError(err error, msg string) error {
	return &CryptoError{code: ErrCodeEntropy, message: msg, wrapped: err}
}

// NewEncryptionError creates an error for envelope encryption failures.
//
// The returned error will have code ErrCodeEncryption.
func NewEncryptionError(msg string) error {
	return &CryptoError{code: ErrCodeEncryption, message: msg}
}

// WrapEncryptionError wraps an existing error as an encryption error.
//
// The returned error will have code ErrCodeEncryption.
func WrapEncryptionError(err error, msg string) error {
	return &CryptoError{code: ErrCodeEncryption, message: msg, wrapped: err}
}

// NewDecryptionError creates an error for envelope decryption failures.
// Use this when authentication fails (tampered ciphertext, wrong key).
//
// The returned error will have code ErrCodeDecryption.
func NewDecryptionError(msg string) error {
	return &CryptoError{code: ErrCodeDecryption, message: msg}
}

// WrapDecryptionError wraps an existing error as a decryption error.
// Use this when authentication fails (tampered ciphertext, wrong key).
//
// The returned error will have code ErrCodeDecryption.
func WrapDecryptionError(err error, msg string) error {
	return &CryptoError{code: ErrCodeDecryption, message: msg, wrapped: err}
}

// NewFormatError creates an error for structurally invalid envelopes.
// Use this when the compact serialization does not have the expected shape
// (wrong segment count, bad base64url, unexpected header parameters).
//
// The returned error will have code ErrCodeFormat.
func NewFormatError(msg string) error {
	return &CryptoError{code: ErrCodeFormat, message: msg}
}

// WrapFormatError wraps an existing error as a format error.
// Use this when the compact serialization does not have the expected shape
// (wrong segment count, bad base64url, unexpected header parameters).
//
// The returned error will have code ErrCodeFormat.
func WrapFormatError(err error, msg string) error {
	return &CryptoError{code: ErrCodeFormat, message: msg, wrapped: err}
}

// WrapInternalError wraps an unexpected internal failure.
//
// The returned error will have code ErrCodeInternal.
func WrapInternalError(err error, msg string) error {
	return &CryptoError{code: ErrCodeInternal, message: msg, wrapped: err}
}
