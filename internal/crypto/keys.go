// this file contains functions to generate the symmetric keys and link
// identifiers used by shareable links
//
// both are 256-bit values read from crypto/rand and transported as unpadded
// base64url (43 characters). The identifier has no cryptographic role beyond
// being unguessable; the key is the A256GCM content encryption key and is
// never stored server-side.

package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	// KeySize is the length in bytes of a content encryption key (A256GCM)
	KeySize = 32

	// LinkIDSize is the length in bytes of a link identifier before encoding
	LinkIDSize = 32

	// EncodedKeyLength is the length of a base64url encoded key
	EncodedKeyLength = 43

	// LinkIDLength is the length of an encoded link identifier
	LinkIDLength = 43
)

// GenerateKey generates a random 256-bit content encryption key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, WrapEntropyError(err, "failed to generate encryption key")
	}
	return key, nil
}

// GenerateLinkID generates a random link identifier: 32 bytes of entropy
// encoded as 43 characters of unpadded base64url.
func GenerateLinkID() (string, error) {
	id := make([]byte, LinkIDSize)
	if _, err := rand.Read(id); err != nil {
		return "", WrapEntropyError(err, "failed to generate link identifier")
	}
	return base64.RawURLEncoding.EncodeToString(id), nil
}

// EncodeKey converts a raw key to its base64url transport form.
func EncodeKey(key []byte) (string, error) {
	if len(key) != KeySize {
		return "", NewKeyError(fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key)))
	}
	return base64.RawURLEncoding.EncodeToString(key), nil
}

// DecodeKey converts a base64url encoded key back to raw bytes.
// The decoded key must be exactly KeySize bytes.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, WrapKeyError(err, "key is not valid base64url")
	}
	if len(key) != KeySize {
		return nil, NewKeyError(fmt.Sprintf("decoded key must be %d bytes, got %d", KeySize, len(key)))
	}
	return key, nil
}
