package shl

// creator.go orchestrates link creation: encrypt the payload, persist the
// artifacts, fix the access policy and mint the shareable link string.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/information-sharing-networks/shl-demo/internal/barcode"
	"github.com/information-sharing-networks/shl-demo/internal/crypto"
	"github.com/information-sharing-networks/shl-demo/internal/storage"
)

// DefaultContentType is assumed when a create request does not name the
// payload content type.
const DefaultContentType = "application/fhir+json"

// Creator mints shareable links. It owns the only code path where the
// symmetric key exists alongside plaintext: after CreateLink returns, the
// key lives solely inside the returned link string.
type Creator struct {
	store    storage.Store
	renderer barcode.Renderer
	cfg      CreatorConfig
	logger   *slog.Logger
}

// CreatorConfig carries the deployment-level creation settings.
type CreatorConfig struct {
	// Environment is the deployment environment (dev, test, staging, prod).
	// Production refuses the plaintext-echo debug option.
	Environment string

	// ViewerURL, when set, prefixes minted links so they open in a
	// browser-based viewer
	ViewerURL string

	// DefaultContentType overrides the payload content type assumed when a
	// request does not set one
	DefaultContentType string
}

// NewCreator wires a Creator. renderer may be nil, in which case no QR
// code is produced.
func NewCreator(store storage.Store, renderer barcode.Renderer, cfg CreatorConfig, logger *slog.Logger) *Creator {
	if cfg.DefaultContentType == "" {
		cfg.DefaultContentType = DefaultContentType
	}
	return &Creator{
		store:    store,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Attachment is an additional file shared alongside the primary payload.
type Attachment struct {
	// ContentType is the media type of the decrypted attachment (required)
	ContentType string

	// Data is the attachment content
	Data []byte
}

// CreateRequest describes the content and policy of a new link.
type CreateRequest struct {
	// Payload is the primary JSON document to share (must be a JSON object)
	Payload json.RawMessage

	// ContentType is the media type of the payload
	// (default application/fhir+json)
	ContentType string

	// Label is a short description embedded in the link
	// (truncated to 80 characters)
	Label string

	// Attachments are shared alongside the payload, each encrypted with the
	// same key
	Attachments []Attachment

	// Policy holds the access controls fixed at creation time
	Policy AccessPolicy

	// IncludePlaintext additionally stores an unencrypted copy of the
	// payload for debugging. Refused in production.
	IncludePlaintext bool
}

// CreateResult is returned on successful link creation.
type CreateResult struct {
	// ID is the public link id
	ID string

	// Link is the shareable link string (viewer-prefixed when a viewer URL
	// is configured)
	Link string

	// Barcode is a PNG QR code of the link (nil when no renderer is wired)
	Barcode []byte

	// Key is the base64url encryption key, as embedded in the link
	Key string

	// PayloadDigest is the SHA-256 hex digest of the canonicalized payload
	PayloadDigest string

	// ExpiresAt is the resolved expiry time (nil = no expiry)
	ExpiresAt *time.Time

	// Passcode echoes the configured passcode so callers can hand it to
	// recipients out of band (empty = none)
	Passcode string
}

// CreateLink validates the request, generates the key material and writes
// the link's artifacts. On failure after the first write, the partially
// created namespace is deleted best-effort so no orphaned ciphertext
// accumulates; the cleanup outcome never masks the original error.
func (c *Creator) CreateLink(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	// Step 1: validate the request before any artifact is written
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	// Step 2: generate the symmetric key and the public link id
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, WrapEncryptionError(err, "failed to generate encryption key")
	}
	linkID, err := crypto.GenerateLinkID()
	if err != nil {
		return nil, WrapEncryptionError(err, "failed to generate link id")
	}

	result, err := c.createArtifacts(ctx, linkID, key, req)
	if err != nil {
		if cleanupErr := c.store.Delete(ctx, linkID); cleanupErr != nil {
			c.logger.Warn("failed to clean up partially created link",
				slog.String("link_id", linkID),
				slog.String("error", cleanupErr.Error()),
			)
		}
		return nil, err
	}

	c.logger.Info("link created",
		slog.String("link_id", linkID),
		slog.Int("attachments", len(req.Attachments)),
		slog.Bool("passcode", req.Policy.Passcode != ""),
	)
	return result, nil
}

// validateRequest rejects requests that must not reach storage.
func (c *Creator) validateRequest(req CreateRequest) error {
	payload := bytes.TrimSpace(req.Payload)
	if len(payload) == 0 {
		return NewValidationError("payload is required")
	}
	if payload[0] != '{' {
		return NewValidationError("payload must be a JSON object")
	}
	if !json.Valid(payload) {
		return NewValidationError("payload is not valid JSON")
	}

	for n, a := range req.Attachments {
		if a.ContentType == "" {
			return NewValidationError(fmt.Sprintf("attachment %d is missing a content type", n))
		}
	}

	// writing protected data in the clear is a policy violation in
	// production, not merely discouraged
	if req.IncludePlaintext && c.cfg.Environment == "prod" {
		return NewValidationError("plaintext echo is not permitted in production")
	}

	return req.Policy.Validate()
}

// createArtifacts writes every artifact belonging to the new link and
// assembles the result. The caller removes the namespace if it fails.
func (c *Creator) createArtifacts(ctx context.Context, linkID string, key []byte, req CreateRequest) (*CreateResult, error) {
	now := time.Now()

	// Step 3: canonicalize the payload and fix its digest
	canonical, err := crypto.CanonicalizeJSON(req.Payload)
	if err != nil {
		return nil, WrapValidationError(err, "failed to canonicalize payload")
	}
	digest, err := crypto.Hash(canonical)
	if err != nil {
		return nil, WrapEncryptionError(err, "failed to hash payload")
	}

	// Step 4: encrypt and store the primary payload
	contentType := req.ContentType
	if contentType == "" {
		contentType = c.cfg.DefaultContentType
	}
	envelope, err := crypto.Encrypt(canonical, key, contentType, compressibleContentType(contentType))
	if err != nil {
		return nil, WrapEncryptionError(err, "failed to encrypt payload")
	}
	if err := c.store.Store(ctx, storage.Key(linkID, ContentArtifact), []byte(envelope)); err != nil {
		return nil, WrapStorageError(err, storage.OpStore, "failed to store encrypted payload")
	}

	// Step 5: encrypt and store each attachment
	attachmentTypes := make([]string, 0, len(req.Attachments))
	for n, a := range req.Attachments {
		attachmentEnvelope, err := crypto.Encrypt(a.Data, key, a.ContentType, compressibleContentType(a.ContentType))
		if err != nil {
			return nil, WrapEncryptionError(err, fmt.Sprintf("failed to encrypt attachment %d", n))
		}
		if err := c.store.Store(ctx, storage.Key(linkID, AttachmentArtifact(n)), []byte(attachmentEnvelope)); err != nil {
			return nil, WrapStorageError(err, storage.OpStore, fmt.Sprintf("failed to store attachment %d", n))
		}
		attachmentTypes = append(attachmentTypes, a.ContentType)
	}

	// Step 6: build and store the manifest
	manifest := BuildManifest(c.store.BaseURL(), linkID, contentType, attachmentTypes)
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return nil, WrapInternalError(err, "failed to marshal manifest")
	}
	if err := c.store.Store(ctx, storage.Key(linkID, ManifestArtifact), manifestJSON); err != nil {
		return nil, WrapStorageError(err, storage.OpStore, "failed to store manifest")
	}

	// Step 7: build and store the access metadata
	metadata, err := BuildAccessMetadata(req.Policy, now)
	if err != nil {
		return nil, err
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, WrapInternalError(err, "failed to marshal access metadata")
	}
	if err := c.store.Store(ctx, storage.Key(linkID, MetadataArtifact), metadataJSON); err != nil {
		return nil, WrapStorageError(err, storage.OpStore, "failed to store access metadata")
	}

	// Step 8: store the plaintext echo when requested (refused for
	// production in validateRequest)
	if req.IncludePlaintext {
		if err := c.store.Store(ctx, storage.Key(linkID, PlaintextArtifact), canonical); err != nil {
			return nil, WrapStorageError(err, storage.OpStore, "failed to store plaintext echo")
		}
	}

	// Step 9: assemble and encode the link payload
	encodedKey, err := crypto.EncodeKey(key)
	if err != nil {
		return nil, WrapEncryptionError(err, "failed to encode key")
	}
	payload := LinkPayload{
		URL:     ManifestURL(c.store.BaseURL(), linkID),
		Key:     encodedKey,
		Flag:    CanonicalFlags(req.Policy.Passcode != ""),
		Version: LinkVersion,
		Label:   truncateLabel(req.Label),
	}
	if metadata.ExpiresAt != nil {
		payload.Exp = metadata.ExpiresAt.Unix()
	}

	var link string
	if c.cfg.ViewerURL != "" {
		link, err = EncodeLinkForViewer(payload, c.cfg.ViewerURL)
	} else {
		link, err = EncodeLink(payload)
	}
	if err != nil {
		return nil, err
	}

	// Step 10: render the QR code when a renderer is wired in
	var qr []byte
	if c.renderer != nil {
		qr, err = c.renderer.Render(link)
		if err != nil {
			return nil, WrapInternalError(err, "failed to render QR code")
		}
	}

	return &CreateResult{
		ID:            linkID,
		Link:          link,
		Barcode:       qr,
		Key:           encodedKey,
		PayloadDigest: digest,
		ExpiresAt:     metadata.ExpiresAt,
		Passcode:      req.Policy.Passcode,
	}, nil
}

// truncateLabel caps the label at the link payload limit. Over-long labels
// are truncated, not rejected. Counted in runes so a multi-byte character
// is never cut in half.
func truncateLabel(label string) string {
	if utf8.RuneCountInString(label) <= maxLabelLength {
		return label
	}
	return string([]rune(label)[:maxLabelLength])
}

// compressibleContentType reports whether payloads of this media type are
// worth compressing before encryption. Ciphertext does not compress, so
// the decision is made here, once, against the plaintext type.
func compressibleContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "application/json", ct == "application/xml":
		return true
	case strings.HasPrefix(ct, "text/"):
		return true
	case strings.HasSuffix(ct, "+json") || strings.HasSuffix(ct, "+xml"):
		return true
	default:
		return false
	}
}
