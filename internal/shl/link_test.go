package shl

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/information-sharing-networks/shl-demo/internal/crypto"
)

// testKey returns a freshly generated, encoded key for link payloads.
func testKey(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	encoded, err := crypto.EncodeKey(key)
	if err != nil {
		t.Fatalf("EncodeKey() error = %v", err)
	}
	return encoded
}

func TestEncodeDecodeLink(t *testing.T) {
	payload := LinkPayload{
		URL:     "https://share.example.org/manifests/abc123",
		Key:     testKey(t),
		Flag:    "LP",
		Version: LinkVersion,
		Exp:     1767225600,
		Label:   "Discharge summary",
	}

	link, err := EncodeLink(payload)
	if err != nil {
		t.Fatalf("EncodeLink() error = %v", err)
	}
	if !strings.HasPrefix(link, LinkScheme) {
		t.Errorf("EncodeLink() = %q, want prefix %q", link, LinkScheme)
	}

	// the encoded part must be unpadded base64url
	encoded := strings.TrimPrefix(link, LinkScheme)
	if strings.ContainsAny(encoded, "=+/") {
		t.Errorf("encoded payload contains non-base64url characters: %q", encoded)
	}

	decoded, err := DecodeLink(link)
	if err != nil {
		t.Fatalf("DecodeLink() error = %v", err)
	}
	if *decoded != payload {
		t.Errorf("DecodeLink() = %+v, want %+v", *decoded, payload)
	}
}

func TestEncodeLinkOmitsEmptyOptionalFields(t *testing.T) {
	payload := LinkPayload{
		URL:     "https://share.example.org/manifests/abc123",
		Key:     testKey(t),
		Flag:    "L",
		Version: LinkVersion,
	}

	link, err := EncodeLink(payload)
	if err != nil {
		t.Fatalf("EncodeLink() error = %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(link, LinkScheme))
	if err != nil {
		t.Fatalf("failed to decode link payload: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("failed to unmarshal link payload: %v", err)
	}
	if _, ok := fields["exp"]; ok {
		t.Error("payload without expiry should omit the exp field")
	}
	if _, ok := fields["label"]; ok {
		t.Error("payload without label should omit the label field")
	}
	for _, required := range []string{"url", "key", "flag", "v"} {
		if _, ok := fields[required]; !ok {
			t.Errorf("payload is missing required field %q", required)
		}
	}
}

func TestEncodeLinkForViewer(t *testing.T) {
	payload := LinkPayload{
		URL:     "https://share.example.org/manifests/abc123",
		Key:     testKey(t),
		Flag:    "L",
		Version: LinkVersion,
	}

	link, err := EncodeLinkForViewer(payload, "https://viewer.example.org/")
	if err != nil {
		t.Fatalf("EncodeLinkForViewer() error = %v", err)
	}
	if !strings.HasPrefix(link, "https://viewer.example.org/#"+LinkScheme) {
		t.Errorf("EncodeLinkForViewer() = %q, want viewer prefix followed by #%s", link, LinkScheme)
	}

	// the viewer-prefixed form must decode like the bare form
	decoded, err := DecodeLink(link)
	if err != nil {
		t.Fatalf("DecodeLink() error = %v", err)
	}
	if decoded.URL != payload.URL {
		t.Errorf("DecodeLink() url = %q, want %q", decoded.URL, payload.URL)
	}
}

func TestDecodeLinkRejectsMalformedLinks(t *testing.T) {
	validKey := testKey(t)

	encode := func(t *testing.T, p LinkPayload) string {
		t.Helper()
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		return LinkScheme + base64.RawURLEncoding.EncodeToString(data)
	}

	tests := []struct {
		name string
		link func(t *testing.T) string
	}{
		{
			name: "wrong scheme",
			link: func(t *testing.T) string { return "https://example.org/nope" },
		},
		{
			name: "empty payload",
			link: func(t *testing.T) string { return LinkScheme },
		},
		{
			name: "payload is not base64url",
			link: func(t *testing.T) string { return LinkScheme + "not/valid/base64!" },
		},
		{
			name: "payload is not JSON",
			link: func(t *testing.T) string {
				return LinkScheme + base64.RawURLEncoding.EncodeToString([]byte("plain text"))
			},
		},
		{
			name: "unknown payload field",
			link: func(t *testing.T) string {
				return LinkScheme + base64.RawURLEncoding.EncodeToString(
					[]byte(`{"url":"https://x.org/m/1","key":"`+validKey+`","flag":"L","v":1,"extra":true}`))
			},
		},
		{
			name: "missing url",
			link: func(t *testing.T) string {
				return encode(t, LinkPayload{Key: validKey, Flag: "L", Version: 1})
			},
		},
		{
			name: "missing key",
			link: func(t *testing.T) string {
				return encode(t, LinkPayload{URL: "https://x.org/m/1", Flag: "L", Version: 1})
			},
		},
		{
			name: "key is not 32 bytes",
			link: func(t *testing.T) string {
				return encode(t, LinkPayload{URL: "https://x.org/m/1", Key: "c2hvcnQ", Flag: "L", Version: 1})
			},
		},
		{
			name: "missing long-term flag",
			link: func(t *testing.T) string {
				return encode(t, LinkPayload{URL: "https://x.org/m/1", Key: validKey, Flag: "P", Version: 1})
			},
		},
		{
			name: "unknown flag",
			link: func(t *testing.T) string {
				return encode(t, LinkPayload{URL: "https://x.org/m/1", Key: validKey, Flag: "LX", Version: 1})
			},
		},
		{
			name: "flags out of canonical order",
			link: func(t *testing.T) string {
				return encode(t, LinkPayload{URL: "https://x.org/m/1", Key: validKey, Flag: "PL", Version: 1})
			},
		},
		{
			name: "duplicated flag",
			link: func(t *testing.T) string {
				return encode(t, LinkPayload{URL: "https://x.org/m/1", Key: validKey, Flag: "LL", Version: 1})
			},
		},
		{
			name: "unsupported version",
			link: func(t *testing.T) string {
				return encode(t, LinkPayload{URL: "https://x.org/m/1", Key: validKey, Flag: "L", Version: 2})
			},
		},
		{
			name: "label too long",
			link: func(t *testing.T) string {
				return encode(t, LinkPayload{URL: "https://x.org/m/1", Key: validKey, Flag: "L", Version: 1, Label: strings.Repeat("x", maxLabelLength+1)})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLink(tt.link(t))
			if err == nil {
				t.Fatal("DecodeLink() expected error, got nil")
			}

			var shlErr *SHLError
			if !errors.As(err, &shlErr) {
				t.Fatalf("DecodeLink() error type = %T, want *SHLError", err)
			}
			if shlErr.Code() != ErrCodeValidation {
				t.Errorf("DecodeLink() error code = %v, want %v", shlErr.Code(), ErrCodeValidation)
			}
		})
	}
}

func TestCanonicalFlags(t *testing.T) {
	if got := CanonicalFlags(false); got != "L" {
		t.Errorf("CanonicalFlags(false) = %q, want %q", got, "L")
	}
	if got := CanonicalFlags(true); got != "LP" {
		t.Errorf("CanonicalFlags(true) = %q, want %q", got, "LP")
	}
}
