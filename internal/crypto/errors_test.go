package crypto

import (
	"errors"
	"fmt"
	"testing"
)

// check to ensure error code handling has not been broken
func TestCryptoError_Code(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{"validation", NewValidationError("test"), ErrCodeValidation},
		{"key", NewKeyError("test"), ErrCodeKey},
		{"entropy", WrapEntropyError(errors.New("rng"), "test"), ErrCodeEntropy},
		{"encryption", NewEncryptionError("test"), ErrCodeEncryption},
		{"decryption", NewDecryptionError("test"), ErrCodeDecryption},
		{"format", NewFormatError("test"), ErrCodeFormat},
		{"internal", WrapInternalError(errors.New("boom"), "test"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cryptoErr *CryptoError
			if !errors.As(tt.err, &cryptoErr) {
				t.Fatal("error is not a CryptoError")
			}
			if cryptoErr.Code() != tt.wantCode {
				t.Errorf("Code() = %q, want %q", cryptoErr.Code(), tt.wantCode)
			}
		})
	}
}

func TestCryptoError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying failure")
	err := WrapDecryptionError(underlying, "failed to decrypt envelope")

	if !errors.Is(err, underlying) {
		t.Errorf("errors.Is() did not find the wrapped error")
	}
	if want := fmt.Sprintf("failed to decrypt envelope: %v", underlying); err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
