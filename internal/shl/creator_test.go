package shl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/information-sharing-networks/shl-demo/internal/crypto"
	"github.com/information-sharing-networks/shl-demo/internal/storage"
)

const testBaseURL = "https://share.example.org"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newTestCreator(store storage.Store) *Creator {
	return NewCreator(store, nil, CreatorConfig{Environment: "test"}, testLogger())
}

// stubRenderer stands in for the QR renderer.
type stubRenderer struct {
	data []byte
	err  error
}

func (s *stubRenderer) Render(link string) ([]byte, error) {
	return s.data, s.err
}

// failingStore wraps a Store and fails writes to keys containing a marker,
// for exercising failure-tolerance paths.
type failingStore struct {
	inner       storage.Store
	failPattern string
	stored      []string
}

func (f *failingStore) BaseURL() string { return f.inner.BaseURL() }

func (f *failingStore) Store(ctx context.Context, key string, data []byte) error {
	if strings.Contains(key, f.failPattern) {
		return storage.NewError(storage.OpStore, key, "injected write failure")
	}
	f.stored = append(f.stored, key)
	return f.inner.Store(ctx, key, data)
}

func (f *failingStore) Retrieve(ctx context.Context, key string) ([]byte, error) {
	return f.inner.Retrieve(ctx, key)
}

func (f *failingStore) Delete(ctx context.Context, linkID string) error {
	return f.inner.Delete(ctx, linkID)
}

func TestCreateLink(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(testBaseURL)
	creator := newTestCreator(store)

	payload := []byte(`{"resourceType": "Bundle", "type": "collection"}`)
	result, err := creator.CreateLink(ctx, CreateRequest{
		Payload:     payload,
		ContentType: "application/fhir+json",
		Label:       "Lab results",
		Attachments: []Attachment{
			{ContentType: "application/pdf", Data: []byte("%PDF-1.7 fake")},
		},
	})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}

	if len(result.ID) != crypto.LinkIDLength {
		t.Errorf("ID length = %d, want %d", len(result.ID), crypto.LinkIDLength)
	}
	if result.Barcode != nil {
		t.Errorf("Barcode = %d bytes, want nil without a renderer", len(result.Barcode))
	}
	if result.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", result.ExpiresAt)
	}
	if result.Passcode != "" {
		t.Errorf("Passcode = %q, want empty", result.Passcode)
	}

	// the link must decode back to a payload pointing at the manifest
	decoded, err := DecodeLink(result.Link)
	if err != nil {
		t.Fatalf("DecodeLink() error = %v", err)
	}
	if want := testBaseURL + "/manifests/" + result.ID; decoded.URL != want {
		t.Errorf("link url = %q, want %q", decoded.URL, want)
	}
	if decoded.Flag != "L" {
		t.Errorf("link flag = %q, want %q", decoded.Flag, "L")
	}
	if decoded.Label != "Lab results" {
		t.Errorf("link label = %q, want %q", decoded.Label, "Lab results")
	}
	if decoded.Key != result.Key {
		t.Errorf("link key = %q, want %q", decoded.Key, result.Key)
	}

	// the stored ciphertext must decrypt, with the link key, back to the
	// canonicalized payload
	key, err := crypto.DecodeKey(result.Key)
	if err != nil {
		t.Fatalf("DecodeKey() error = %v", err)
	}
	envelope, err := store.Retrieve(ctx, storage.Key(result.ID, ContentArtifact))
	if err != nil {
		t.Fatalf("Retrieve(content) error = %v", err)
	}
	plaintext, contentType, err := crypto.Decrypt(string(envelope), key)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	canonical, err := crypto.CanonicalizeJSON(payload)
	if err != nil {
		t.Fatalf("CanonicalizeJSON() error = %v", err)
	}
	if !bytes.Equal(plaintext, canonical) {
		t.Errorf("decrypted payload = %s, want %s", plaintext, canonical)
	}
	if contentType != "application/fhir+json" {
		t.Errorf("decrypted content type = %q, want %q", contentType, "application/fhir+json")
	}
	if !crypto.VerifyHash(canonical, result.PayloadDigest) {
		t.Errorf("PayloadDigest %q does not match the canonical payload", result.PayloadDigest)
	}

	// the attachment must decrypt with the same key
	attachmentEnvelope, err := store.Retrieve(ctx, storage.Key(result.ID, AttachmentArtifact(0)))
	if err != nil {
		t.Fatalf("Retrieve(attachment) error = %v", err)
	}
	attachment, attachmentType, err := crypto.Decrypt(string(attachmentEnvelope), key)
	if err != nil {
		t.Fatalf("Decrypt(attachment) error = %v", err)
	}
	if !bytes.Equal(attachment, []byte("%PDF-1.7 fake")) {
		t.Errorf("decrypted attachment = %q", attachment)
	}
	if attachmentType != "application/pdf" {
		t.Errorf("attachment content type = %q, want %q", attachmentType, "application/pdf")
	}

	// manifest: payload first, then the attachment
	manifestJSON, err := store.Retrieve(ctx, storage.Key(result.ID, ManifestArtifact))
	if err != nil {
		t.Fatalf("Retrieve(manifest) error = %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		t.Fatalf("failed to unmarshal manifest: %v", err)
	}
	if manifest.Status != ManifestStatusFinalized {
		t.Errorf("manifest status = %q, want %q", manifest.Status, ManifestStatusFinalized)
	}
	if len(manifest.Files) != 2 {
		t.Fatalf("manifest files = %d, want 2", len(manifest.Files))
	}
	if manifest.Files[0].ContentType != "application/fhir+json" || manifest.Files[1].ContentType != "application/pdf" {
		t.Errorf("manifest file order = %q, %q", manifest.Files[0].ContentType, manifest.Files[1].ContentType)
	}

	// metadata: counters start at zero, no policy knobs set
	metadataJSON, err := store.Retrieve(ctx, storage.Key(result.ID, MetadataArtifact))
	if err != nil {
		t.Fatalf("Retrieve(metadata) error = %v", err)
	}
	var metadata AccessMetadata
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		t.Fatalf("failed to unmarshal metadata: %v", err)
	}
	if metadata.AccessCount != 0 || metadata.PasscodeHash != "" || metadata.ExpiresAt != nil {
		t.Errorf("unexpected metadata for a policy-free link: %+v", metadata)
	}

	// no plaintext echo was requested
	if _, err := store.Retrieve(ctx, storage.Key(result.ID, PlaintextArtifact)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Retrieve(plaintext echo) error = %v, want ErrNotFound", err)
	}
}

func TestCreateLinkWithPasscodeAndExpiry(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(testBaseURL)
	creator := newTestCreator(store)

	result, err := creator.CreateLink(ctx, CreateRequest{
		Payload: []byte(`{"resourceType": "Patient"}`),
		Policy: AccessPolicy{
			Passcode:  "open sesame",
			ExpiresIn: time.Hour,
		},
	})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}

	if result.Passcode != "open sesame" {
		t.Errorf("Passcode = %q, want it echoed back", result.Passcode)
	}
	if result.ExpiresAt == nil {
		t.Fatal("ExpiresAt = nil, want the resolved expiry")
	}

	decoded, err := DecodeLink(result.Link)
	if err != nil {
		t.Fatalf("DecodeLink() error = %v", err)
	}
	if decoded.Flag != "LP" {
		t.Errorf("link flag = %q, want %q", decoded.Flag, "LP")
	}
	if decoded.Exp != result.ExpiresAt.Unix() {
		t.Errorf("link exp = %d, want %d", decoded.Exp, result.ExpiresAt.Unix())
	}
}

func TestCreateLinkViewerPrefix(t *testing.T) {
	store := storage.NewMemoryStore(testBaseURL)
	creator := NewCreator(store, nil, CreatorConfig{
		Environment: "test",
		ViewerURL:   "https://viewer.example.org/",
	}, testLogger())

	result, err := creator.CreateLink(context.Background(), CreateRequest{
		Payload: []byte(`{"a": 1}`),
	})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if !strings.HasPrefix(result.Link, "https://viewer.example.org/#"+LinkScheme) {
		t.Errorf("Link = %q, want viewer-prefixed form", result.Link)
	}
}

func TestCreateLinkPlaintextEcho(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(testBaseURL)
	creator := newTestCreator(store)

	result, err := creator.CreateLink(ctx, CreateRequest{
		Payload:          []byte(`{"b": 2, "a": 1}`),
		IncludePlaintext: true,
	})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}

	echo, err := store.Retrieve(ctx, storage.Key(result.ID, PlaintextArtifact))
	if err != nil {
		t.Fatalf("Retrieve(plaintext echo) error = %v", err)
	}
	// the echo is the canonicalized payload, keys sorted
	if string(echo) != `{"a":1,"b":2}` {
		t.Errorf("plaintext echo = %s", echo)
	}
}

func TestCreateLinkRefusesPlaintextEchoInProduction(t *testing.T) {
	store := storage.NewMemoryStore(testBaseURL)
	creator := NewCreator(store, nil, CreatorConfig{Environment: "prod"}, testLogger())

	_, err := creator.CreateLink(context.Background(), CreateRequest{
		Payload:          []byte(`{"a": 1}`),
		IncludePlaintext: true,
	})
	if err == nil {
		t.Fatal("CreateLink() expected error, got nil")
	}
	var shlErr *SHLError
	if !errors.As(err, &shlErr) || shlErr.Code() != ErrCodeValidation {
		t.Errorf("CreateLink() error = %v, want a validation error", err)
	}
}

func TestCreateLinkDefaultContentType(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(testBaseURL)
	creator := newTestCreator(store)

	result, err := creator.CreateLink(ctx, CreateRequest{Payload: []byte(`{"a": 1}`)})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}

	manifestJSON, err := store.Retrieve(ctx, storage.Key(result.ID, ManifestArtifact))
	if err != nil {
		t.Fatalf("Retrieve(manifest) error = %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		t.Fatalf("failed to unmarshal manifest: %v", err)
	}
	if manifest.Files[0].ContentType != DefaultContentType {
		t.Errorf("content type = %q, want the default %q", manifest.Files[0].ContentType, DefaultContentType)
	}
}

func TestCreateLinkValidation(t *testing.T) {
	creator := newTestCreator(storage.NewMemoryStore(testBaseURL))

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{
			name: "empty payload",
			req:  CreateRequest{},
		},
		{
			name: "payload is not an object",
			req:  CreateRequest{Payload: []byte(`[1, 2, 3]`)},
		},
		{
			name: "payload is not valid JSON",
			req:  CreateRequest{Payload: []byte(`{"a": `)},
		},
		{
			name: "attachment without content type",
			req: CreateRequest{
				Payload:     []byte(`{"a": 1}`),
				Attachments: []Attachment{{Data: []byte("x")}},
			},
		},
		{
			name: "blank passcode",
			req: CreateRequest{
				Payload: []byte(`{"a": 1}`),
				Policy:  AccessPolicy{Passcode: "  "},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := creator.CreateLink(context.Background(), tt.req)
			if err == nil {
				t.Fatal("CreateLink() expected error, got nil")
			}
			var shlErr *SHLError
			if !errors.As(err, &shlErr) || shlErr.Code() != ErrCodeValidation {
				t.Errorf("CreateLink() error = %v, want a validation error", err)
			}
		})
	}
}

func TestCreateLinkTruncatesLabel(t *testing.T) {
	store := storage.NewMemoryStore(testBaseURL)
	creator := newTestCreator(store)

	result, err := creator.CreateLink(context.Background(), CreateRequest{
		Payload: []byte(`{"a": 1}`),
		Label:   strings.Repeat("x", 200),
	})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}

	decoded, err := DecodeLink(result.Link)
	if err != nil {
		t.Fatalf("DecodeLink() error = %v", err)
	}
	if len(decoded.Label) != maxLabelLength {
		t.Errorf("label length = %d, want %d", len(decoded.Label), maxLabelLength)
	}
}

func TestCreateLinkCleansUpOnFailure(t *testing.T) {
	ctx := context.Background()
	inner := storage.NewMemoryStore(testBaseURL)
	store := &failingStore{inner: inner, failPattern: MetadataArtifact}
	creator := newTestCreator(store)

	_, err := creator.CreateLink(ctx, CreateRequest{Payload: []byte(`{"a": 1}`)})
	if err == nil {
		t.Fatal("CreateLink() expected error, got nil")
	}
	var shlErr *SHLError
	if !errors.As(err, &shlErr) || shlErr.Code() != ErrCodeStorage {
		t.Errorf("CreateLink() error = %v, want a storage error", err)
	}

	// artifacts written before the failure must have been cleaned up
	if len(store.stored) == 0 {
		t.Fatal("no artifact was written before the injected failure")
	}
	for _, key := range store.stored {
		if _, err := inner.Retrieve(ctx, key); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Retrieve(%q) error = %v, want ErrNotFound after cleanup", key, err)
		}
	}
}

func TestCreateLinkRendersBarcode(t *testing.T) {
	store := storage.NewMemoryStore(testBaseURL)
	creator := NewCreator(store, &stubRenderer{data: []byte("png-bytes")}, CreatorConfig{Environment: "test"}, testLogger())

	result, err := creator.CreateLink(context.Background(), CreateRequest{Payload: []byte(`{"a": 1}`)})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if !bytes.Equal(result.Barcode, []byte("png-bytes")) {
		t.Errorf("Barcode = %q, want the rendered bytes", result.Barcode)
	}
}

func TestCreateLinkCanonicalizationIsOrderInsensitive(t *testing.T) {
	creator := newTestCreator(storage.NewMemoryStore(testBaseURL))

	first, err := creator.CreateLink(context.Background(), CreateRequest{
		Payload: []byte(`{"b": 2, "a": 1}`),
	})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	second, err := creator.CreateLink(context.Background(), CreateRequest{
		Payload: []byte(`{ "a": 1, "b": 2 }`),
	})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}

	if first.PayloadDigest != second.PayloadDigest {
		t.Errorf("digests differ for equivalent payloads: %q vs %q", first.PayloadDigest, second.PayloadDigest)
	}
}
