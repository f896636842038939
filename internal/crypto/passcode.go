// passcodes protect links with a second factor beyond possession of the URL
//
// only the bcrypt hash of a passcode is ever stored - the raw passcode is
// supplied by the viewer on each manifest request and compared server-side.

package crypto

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt truncates input beyond 72 bytes, so longer passcodes are rejected
// rather than silently weakened
const maxPasscodeLength = 72

// HashPasscode returns the bcrypt hash of a passcode.
func HashPasscode(passcode string) (string, error) {
	if passcode == "" {
		return "", NewValidationError("passcode is empty")
	}
	if len(passcode) > maxPasscodeLength {
		return "", NewValidationError(fmt.Sprintf("passcode must be at most %d bytes, got %d", maxPasscodeLength, len(passcode)))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", WrapInternalError(err, "failed to hash passcode")
	}
	return string(hash), nil
}

// VerifyPasscode reports whether passcode matches the stored bcrypt hash.
// A malformed hash is treated as a mismatch.
func VerifyPasscode(hash, passcode string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)) == nil
}
