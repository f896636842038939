// this file provides the SHA-256 digest helpers used across the service.
//
// Digests are calculated for:
//   1. Canonical JSON payloads (recorded with the creation result so senders
//      can later prove what was shared)
//   2. Attachment content

package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Hash calculates a SHA-256 digest and returns it as a hex string.
//
// Use this for:
// - Canonical JSON
// - Any data already in memory
func Hash(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("data is empty")
	}
	hasher := sha256.New()

	if _, err := io.Copy(hasher, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to hash data: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifyHash verifies that data matches the expected SHA-256 digest.
func VerifyHash(data []byte, expectedDigest string) bool {
	digest, _ := Hash(data)
	return digest == expectedDigest
}
