package shl

// link.go implements the shareable link wire format:
//
//	shlink:/<base64url(JSON payload)>
//
// optionally prefixed with a viewer URL and "#" so the link opens in a
// web viewer while remaining machine-resolvable.

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/information-sharing-networks/shl-demo/internal/crypto"
)

// LinkScheme is the URI scheme prefix of the encoded link string.
const LinkScheme = "shlink:/"

// Link payload flags. The flag field of a payload is the sorted,
// deduplicated concatenation of single-character flags.
const (
	// FlagLongTerm marks a link that is resolved via a manifest request
	// rather than a direct file fetch. Every link this system mints is
	// served through a manifest, so the flag is always present.
	FlagLongTerm = "L"

	// FlagPasscode marks a link that requires a passcode to retrieve the
	// manifest.
	FlagPasscode = "P"
)

// LinkVersion is the payload format version this implementation produces.
const LinkVersion = 1

// maxLabelLength caps the short description carried in the link payload.
// Longer labels are truncated at creation time, and rejected on decode.
const maxLabelLength = 80

// LinkPayload is the JSON document embedded in the link string.
//
// The payload is the complete capability: url locates the manifest and key
// decrypts the files it lists. Anyone holding the link string holds both.
type LinkPayload struct {
	// URL is the absolute manifest URL for the link
	URL string `json:"url"`

	// Key is the base64url-encoded 256-bit decryption key
	Key string `json:"key"`

	// Flag is the sorted, deduplicated flag set (e.g. "L" or "LP")
	Flag string `json:"flag"`

	// Version is the payload format version
	Version int `json:"v"`

	// Exp is the optional expiry as unix epoch seconds
	Exp int64 `json:"exp,omitempty"`

	// Label is an optional short description (80 chars max)
	Label string `json:"label,omitempty"`
}

// CanonicalFlags returns the flag set for a link in canonical form.
func CanonicalFlags(hasPasscode bool) string {
	if hasPasscode {
		return FlagLongTerm + FlagPasscode
	}
	return FlagLongTerm
}

// EncodeLink encodes a link payload into its wire form:
// LinkScheme followed by the unpadded base64url encoding of the payload
// JSON.
func EncodeLink(p LinkPayload) (string, error) {
	if err := validatePayload(p); err != nil {
		return "", err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return "", WrapInternalError(err, "failed to marshal link payload")
	}

	return LinkScheme + base64.RawURLEncoding.EncodeToString(data), nil
}

// EncodeLinkForViewer encodes a link payload and prefixes it with a viewer
// URL and "#", producing a string that opens in a browser-based viewer:
//
//	https://viewer.example.org/#shlink:/eyJ1cmwiOi4uLg
//
// The fragment is never sent to the viewer's server, so the key does not
// leak into viewer access logs.
func EncodeLinkForViewer(p LinkPayload, viewerURL string) (string, error) {
	link, err := EncodeLink(p)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(viewerURL, "#") + "#" + link, nil
}

// DecodeLink parses a link string back into its payload.
//
// Both the bare form (shlink:/...) and the viewer-prefixed form
// (https://viewer/#shlink:/...) are accepted. Unknown payload fields are
// rejected so incompatible future versions fail loudly instead of being
// half-understood.
func DecodeLink(s string) (*LinkPayload, error) {
	// Step 1: strip a viewer prefix if present
	if i := strings.LastIndex(s, "#"); i >= 0 {
		s = s[i+1:]
	}

	// Step 2: check and strip the scheme
	if !strings.HasPrefix(s, LinkScheme) {
		return nil, NewValidationError(fmt.Sprintf("link does not start with %q", LinkScheme))
	}
	encoded := strings.TrimPrefix(s, LinkScheme)
	if encoded == "" {
		return nil, NewValidationError("link payload is empty")
	}

	// Step 3: base64url-decode the payload
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, WrapValidationError(err, "link payload is not valid base64url")
	}

	// Step 4: strict-decode the JSON
	var p LinkPayload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, WrapValidationError(err, "link payload is not valid JSON")
	}

	// Step 5: validate the decoded payload
	if err := validatePayload(p); err != nil {
		return nil, err
	}

	return &p, nil
}

// validatePayload checks the invariants shared by encode and decode.
func validatePayload(p LinkPayload) error {
	if p.URL == "" {
		return NewValidationError("link payload is missing the manifest url")
	}
	if p.Key == "" {
		return NewValidationError("link payload is missing the key")
	}
	if _, err := crypto.DecodeKey(p.Key); err != nil {
		return WrapValidationError(err, "link payload key is invalid")
	}
	if err := validateFlags(p.Flag); err != nil {
		return err
	}
	if p.Version != LinkVersion {
		return NewValidationError(fmt.Sprintf("unsupported link payload version %d", p.Version))
	}
	if utf8.RuneCountInString(p.Label) > maxLabelLength {
		return NewValidationError(fmt.Sprintf("link label exceeds %d characters", maxLabelLength))
	}
	return nil
}

// validateFlags checks that the flag set is canonical: known flags only,
// sorted, deduplicated, with the long-term flag present.
func validateFlags(flag string) error {
	if !strings.Contains(flag, FlagLongTerm) {
		return NewValidationError("link flags must include " + FlagLongTerm)
	}
	prev := rune(0)
	for _, r := range flag {
		f := string(r)
		if f != FlagLongTerm && f != FlagPasscode {
			return NewValidationError(fmt.Sprintf("unknown link flag %q", f))
		}
		if r <= prev {
			return NewValidationError(fmt.Sprintf("link flags %q are not in canonical order", flag))
		}
		prev = r
	}
	return nil
}
