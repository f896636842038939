// envelope.go implements the encrypted envelope that protects shared documents.
//
// Envelopes are JWE compact serializations (RFC 7516) using direct symmetric
// encryption: the 256-bit key carried in the link is used as the A256GCM
// content encryption key, so the second segment (encrypted key) is always
// empty. The protected header carries the original content type in "cty" and,
// for compressed content, "zip":"DEF".
//
// Encryption and decryption use github.com/go-jose/go-jose/v4. Decryption is
// only ever performed by clients holding a link - the server stores and serves
// envelopes without the key.
package crypto

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	jose "github.com/go-jose/go-jose/v4"
)

const (
	// EnvelopeKeyAlgorithm is the JWE "alg" header value (direct symmetric encryption)
	EnvelopeKeyAlgorithm = "dir"

	// EnvelopeEncryption is the JWE "enc" header value
	EnvelopeEncryption = "A256GCM"

	// EnvelopeCompression is the JWE "zip" header value for compressed content
	EnvelopeCompression = "DEF"

	// envelopeSegments is the number of dot-separated segments in a JWE
	// compact serialization: header.encryptedKey.iv.ciphertext.tag
	envelopeSegments = 5
)

// EnvelopeHeader represents the protected header of an envelope
type EnvelopeHeader struct {
	Algorithm   string `json:"alg"`
	Encryption  string `json:"enc"`
	ContentType string `json:"cty,omitempty"`
	Compression string `json:"zip,omitempty"`
}

// Encrypt produces a JWE compact serialization of plaintext under a 256-bit
// key. contentType is recorded in the protected header so clients know how to
// interpret the decrypted bytes. When compress is set the plaintext is
// DEFLATE-compressed before encryption and the header carries "zip":"DEF".
func Encrypt(plaintext []byte, key []byte, contentType string, compress bool) (string, error) {
	if len(plaintext) == 0 {
		return "", NewValidationError("plaintext is empty")
	}
	if len(key) != KeySize {
		return "", NewKeyError(fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key)))
	}

	opts := &jose.EncrypterOptions{}
	if contentType != "" {
		opts.WithContentType(jose.ContentType(contentType))
	}
	if compress {
		opts.Compression = jose.DEFLATE
	}

	encrypter, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: key},
		opts,
	)
	if err != nil {
		return "", WrapEncryptionError(err, "failed to create encrypter")
	}

	obj, err := encrypter.Encrypt(plaintext)
	if err != nil {
		return "", WrapEncryptionError(err, "failed to encrypt content")
	}

	envelope, err := obj.CompactSerialize()
	if err != nil {
		return "", WrapEncryptionError(err, "failed to serialize envelope")
	}

	return envelope, nil
}

// Decrypt opens a JWE compact serialization with the given key and returns
// the plaintext and the content type recorded in the protected header.
//
// The envelope structure and header are validated before any cryptographic
// work: a malformed serialization returns a format error, while a tampered
// envelope or wrong key returns a decryption error. Compressed content is
// inflated transparently.
func Decrypt(envelope string, key []byte) ([]byte, string, error) {
	header, err := ParseEnvelopeHeader(envelope)
	if err != nil {
		return nil, "", err
	}

	if header.Algorithm != EnvelopeKeyAlgorithm {
		return nil, "", NewFormatError(fmt.Sprintf("unsupported key algorithm %q, expected %q", header.Algorithm, EnvelopeKeyAlgorithm))
	}
	if header.Encryption != EnvelopeEncryption {
		return nil, "", NewFormatError(fmt.Sprintf("unsupported content encryption %q, expected %q", header.Encryption, EnvelopeEncryption))
	}
	if len(key) != KeySize {
		return nil, "", NewKeyError(fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key)))
	}

	obj, err := jose.ParseEncrypted(envelope,
		[]jose.KeyAlgorithm{jose.DIRECT},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if err != nil {
		return nil, "", WrapFormatError(err, "failed to parse envelope")
	}

	plaintext, err := obj.Decrypt(key)
	if err != nil {
		return nil, "", WrapDecryptionError(err, "failed to decrypt envelope")
	}

	return plaintext, header.ContentType, nil
}

// ParseEnvelopeHeader extracts the protected header from an envelope without
// decrypting it. The function returns an error if the serialization does not
// have the expected number of segments or the header contains something other
// than the fields in EnvelopeHeader.
func ParseEnvelopeHeader(envelope string) (EnvelopeHeader, error) {

	// the structure of the envelope is
	// Base64URL(Header).EncryptedKey.Base64URL(IV).Base64URL(Ciphertext).Base64URL(Tag)
	parts := strings.Split(strings.TrimSpace(envelope), ".")
	if len(parts) != envelopeSegments {
		return EnvelopeHeader{}, NewFormatError(fmt.Sprintf("invalid envelope: expected %d segments, got %d", envelopeSegments, len(parts)))
	}

	// direct encryption carries no encrypted key
	if parts[1] != "" {
		return EnvelopeHeader{}, NewFormatError("invalid envelope: encrypted key segment must be empty for direct encryption")
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return EnvelopeHeader{}, WrapFormatError(err, "error decoding the header")
	}

	var header EnvelopeHeader

	decoder := json.NewDecoder(bytes.NewReader(headerBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&header); err != nil {
		return EnvelopeHeader{}, WrapFormatError(err, "could not unmarshal header")
	}

	// Validate required fields are present
	if header.Algorithm == "" {
		return EnvelopeHeader{}, NewFormatError("missing required field: alg")
	}
	if header.Encryption == "" {
		return EnvelopeHeader{}, NewFormatError("missing required field: enc")
	}

	return header, nil
}
