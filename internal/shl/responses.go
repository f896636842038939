package shl

// responses.go maps domain errors to the transport-neutral Response triple
// returned to clients. Internal failure detail is kept out of response
// bodies - callers log the original error server-side.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/information-sharing-networks/shl-demo/internal/crypto"
	"github.com/information-sharing-networks/shl-demo/internal/storage"
)

// Response is a transport-neutral result: an HTTP-shaped status, headers
// and body that any transport can copy onto the wire.
type Response struct {
	StatusCode int
	Header     map[string]string
	Body       []byte
}

// NewResponse builds a Response with a single Content-Type header.
func NewResponse(statusCode int, contentType string, body []byte) *Response {
	return &Response{
		StatusCode: statusCode,
		Header:     map[string]string{"Content-Type": contentType},
		Body:       body,
	}
}

// ErrorBody is the JSON error format returned to clients.
type ErrorBody struct {
	// Error is the stable error code clients can switch on
	Error ErrorCode `json:"error"`

	// Message is a safe human-readable description
	Message string `json:"message"`

	// Reason qualifies gone errors: "expired" or "exhausted"
	Reason GoneReason `json:"reason,omitempty"`

	// RemainingAttempts hints how many passcode attempts are left before
	// the link locks (only present when a failure ceiling is configured)
	RemainingAttempts *int `json:"remainingAttempts,omitempty"`
}

// genericInternalMessage is returned for all server-side failures so
// backend detail never leaks to clients.
const genericInternalMessage = "An internal error occurred"

// MapErrorToResponse maps shl.SHLError, crypto.CryptoError, or storage
// errors to the error Response returned to the client.
//
// Client-caused errors (validation, unauthorized, not found, gone) keep
// their message; server-side failures are collapsed to a generic body.
// The caller is expected to log the original error before discarding it.
func MapErrorToResponse(err error) *Response {
	// Try to extract the most specific error type first (shl.SHLError)
	var shlErr *SHLError
	if errors.As(err, &shlErr) {
		return errorResponseFromSHL(shlErr)
	}

	// Then crypto.CryptoError
	var cryptoErr *crypto.CryptoError
	if errors.As(err, &cryptoErr) {
		return errorResponseFromCrypto(cryptoErr)
	}

	// Then the storage not-found sentinel: a handler normally converts
	// this before it gets here, but map it safely if one leaks through
	if errors.Is(err, storage.ErrNotFound) {
		return newErrorResponse(http.StatusNotFound, ErrorBody{
			Error:   ErrCodeNotFound,
			Message: "not found",
		})
	}

	// Any other storage error is a backend failure
	var storageErr *storage.Error
	if errors.As(err, &storageErr) {
		return newErrorResponse(http.StatusInternalServerError, ErrorBody{
			Error:   ErrCodeStorage,
			Message: genericInternalMessage,
		})
	}

	// fallback - an unmapped error type is a bug; respond as internal
	return newErrorResponse(http.StatusInternalServerError, ErrorBody{
		Error:   ErrCodeInternal,
		Message: genericInternalMessage,
	})
}

// errorResponseFromSHL maps an SHLError to the client-facing response.
func errorResponseFromSHL(err *SHLError) *Response {
	body := ErrorBody{Error: err.Code(), Message: err.Error()}
	var statusCode int

	// Map error code to HTTP status
	switch err.Code() {
	case ErrCodeValidation:
		statusCode = http.StatusBadRequest
	case ErrCodeUnauthorized:
		statusCode = http.StatusUnauthorized
		if remaining, ok := err.RemainingAttempts(); ok {
			body.RemainingAttempts = &remaining
		}
	case ErrCodeNotFound:
		statusCode = http.StatusNotFound
	case ErrCodeGone:
		statusCode = http.StatusGone
		body.Reason = err.Reason()
	case ErrCodeRateLimitExceeded:
		statusCode = http.StatusTooManyRequests
	case ErrCodeRequestTooLarge:
		statusCode = http.StatusRequestEntityTooLarge
	default:
		// encryption, storage and internal failures are server-side:
		// return the generic body, never the underlying detail
		statusCode = http.StatusInternalServerError
		body.Message = genericInternalMessage
		if err.Code() != ErrCodeEncryption && err.Code() != ErrCodeStorage {
			body.Error = ErrCodeInternal
		}
	}

	return newErrorResponse(statusCode, body)
}

// errorResponseFromCrypto maps a crypto.CryptoError to the client-facing
// response. Format and validation failures are client errors (malformed
// keys or envelopes in a request); everything else is internal.
func errorResponseFromCrypto(err *crypto.CryptoError) *Response {
	switch err.Code() {
	case crypto.ErrCodeValidation, crypto.ErrCodeFormat:
		return newErrorResponse(http.StatusBadRequest, ErrorBody{
			Error:   ErrCodeValidation,
			Message: err.Error(),
		})
	default:
		return newErrorResponse(http.StatusInternalServerError, ErrorBody{
			Error:   ErrCodeEncryption,
			Message: genericInternalMessage,
		})
	}
}

func newErrorResponse(statusCode int, body ErrorBody) *Response {
	data, err := json.Marshal(body)
	if err != nil {
		// ErrorBody has no unmarshalable fields so this cannot happen;
		// fall back to a fixed body rather than panic
		data = []byte(`{"error":"internal","message":"An internal error occurred"}`)
	}
	return NewResponse(statusCode, "application/json", data)
}
