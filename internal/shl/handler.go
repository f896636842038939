package shl

// handler.go serves the two retrieval operations of the link protocol:
// the policy-checked manifest request and the verbatim content request.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/information-sharing-networks/shl-demo/internal/storage"
)

// maxMetadataUpdateAttempts bounds the conditional-write retry loop. Under
// sane contention the loop settles in a round or two; hitting the bound
// means the backend is livelocked and the request fails as internal.
const maxMetadataUpdateAttempts = 20

// Handler serves manifest and content requests. It is stateless: every
// request re-reads the durable metadata, so any number of server processes
// can serve the same backend.
type Handler struct {
	store  storage.Store
	logger *slog.Logger
}

func NewHandler(store storage.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// ManifestRequest is the body of a manifest retrieval request.
type ManifestRequest struct {
	// Recipient names the party retrieving the manifest. Required - it is
	// recorded in the link's audit trail.
	Recipient string `json:"recipient"`

	// Passcode must be presented when the link is passcode-protected
	Passcode string `json:"passcode,omitempty"`
}

// RetrieveManifest runs the access policy for a link and, if the request
// is admitted, returns the stored manifest verbatim.
//
// Checks run in fixed order: unknown link, expiry, access ceiling,
// passcode, then admission. Expiry wins over everything later - a correct
// passcode and unused budget do not matter once the link has expired.
func (h *Handler) RetrieveManifest(ctx context.Context, linkID string, req ManifestRequest) *Response {
	// Step 1: validate the request
	if strings.TrimSpace(req.Recipient) == "" {
		return MapErrorToResponse(NewValidationError("recipient is required"))
	}

	// Step 2: load the access metadata. A revoked link has no metadata and
	// is indistinguishable from one that never existed.
	raw, err := h.store.Retrieve(ctx, storage.Key(linkID, MetadataArtifact))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return MapErrorToResponse(NewNotFoundError("link not found"))
		}
		h.logger.Error("failed to load access metadata",
			slog.String("link_id", linkID),
			slog.String("error", err.Error()),
		)
		return MapErrorToResponse(WrapStorageError(err, storage.OpRetrieve, "failed to load access metadata"))
	}

	var metadata AccessMetadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		h.logger.Error("corrupt access metadata",
			slog.String("link_id", linkID),
			slog.String("error", err.Error()),
		)
		return MapErrorToResponse(WrapInternalError(err, "corrupt access metadata"))
	}

	now := time.Now()

	// Step 3: expiry
	if metadata.Expired(now) {
		return MapErrorToResponse(NewGoneError(GoneReasonExpired, "link has expired"))
	}

	// Step 4: access ceiling
	if metadata.Exhausted() {
		return MapErrorToResponse(NewGoneError(GoneReasonExhausted, "link access limit reached"))
	}

	// Step 5: passcode
	if metadata.RequiresPasscode() {
		if resp := h.checkPasscode(ctx, linkID, raw, &metadata, req.Passcode); resp != nil {
			return resp
		}
	}

	// Step 6: admit - consume one unit of access budget with a conditional
	// write so concurrent requests cannot overrun the ceiling
	if err := h.admit(ctx, linkID, raw, now); err != nil {
		return MapErrorToResponse(err)
	}

	// Step 7: record the access event. Failure is logged and never affects
	// the response.
	if err := RecordAccessEvent(ctx, h.store, linkID, req.Recipient, now); err != nil {
		h.logger.Warn("failed to record access event",
			slog.String("link_id", linkID),
			slog.String("error", err.Error()),
		)
	}

	// Step 8: return the stored manifest verbatim
	manifest, err := h.store.Retrieve(ctx, storage.Key(linkID, ManifestArtifact))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return MapErrorToResponse(NewNotFoundError("link not found"))
		}
		h.logger.Error("failed to load manifest",
			slog.String("link_id", linkID),
			slog.String("error", err.Error()),
		)
		return MapErrorToResponse(WrapStorageError(err, storage.OpRetrieve, "failed to load manifest"))
	}

	return NewResponse(http.StatusOK, "application/json", manifest)
}

// RetrieveContent returns one of a link's encrypted artifacts verbatim.
//
// There is no policy re-check here: content URLs only circulate inside
// manifests, which are already policy-gated, and ciphertext without the
// link key is inert. The server never decrypts what it serves.
func (h *Handler) RetrieveContent(ctx context.Context, linkID, artifact string) *Response {
	// only the encrypted payload and attachments are servable; metadata,
	// audit events and the plaintext echo 404 without touching storage
	if !IsServableArtifact(artifact) {
		return MapErrorToResponse(NewNotFoundError("file not found"))
	}

	data, err := h.store.Retrieve(ctx, storage.Key(linkID, artifact))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return MapErrorToResponse(NewNotFoundError("file not found"))
		}
		h.logger.Error("failed to load content",
			slog.String("link_id", linkID),
			slog.String("artifact", artifact),
			slog.String("error", err.Error()),
		)
		return MapErrorToResponse(WrapStorageError(err, storage.OpRetrieve, "failed to load content"))
	}

	return NewResponse(http.StatusOK, "application/jose", data)
}

// checkPasscode enforces the passcode policy. It returns nil when the
// request may proceed, or the error response to send.
func (h *Handler) checkPasscode(ctx context.Context, linkID string, raw []byte, metadata *AccessMetadata, passcode string) *Response {
	// once locked, the link stays locked - a correct passcode no longer helps
	if metadata.PasscodeLocked() {
		return MapErrorToResponse(NewUnauthorizedErrorWithAttempts("link is locked after too many failed passcode attempts", 0))
	}

	if metadata.VerifyPasscode(passcode) {
		return nil
	}

	// record the failure so repeated guessing eventually locks the link
	updated, err := h.updateMetadata(ctx, linkID, raw, func(m *AccessMetadata) error {
		m.FailedPasscodeAttempts++
		if m.ChargeFailedPasscode {
			m.AccessCount++
		}
		return nil
	})
	if err != nil {
		// the failed attempt could not be persisted; respond 401 anyway,
		// with the hint computed from the record we did see
		h.logger.Warn("failed to record passcode failure",
			slog.String("link_id", linkID),
			slog.String("error", err.Error()),
		)
		local := *metadata
		local.FailedPasscodeAttempts++
		updated = &local
	}

	if remaining, ok := updated.RemainingPasscodeAttempts(); ok {
		return MapErrorToResponse(NewUnauthorizedErrorWithAttempts("passcode is missing or incorrect", int(remaining)))
	}
	return MapErrorToResponse(NewUnauthorizedError("passcode is missing or incorrect"))
}

// admit consumes one unit of access budget. The ceiling is re-checked
// against the freshest record on every retry: with N concurrent requests
// and one remaining unit, exactly one request is admitted.
func (h *Handler) admit(ctx context.Context, linkID string, raw []byte, now time.Time) error {
	_, err := h.updateMetadata(ctx, linkID, raw, func(m *AccessMetadata) error {
		if m.Expired(now) {
			return NewGoneError(GoneReasonExpired, "link has expired")
		}
		if m.Exhausted() {
			return NewGoneError(GoneReasonExhausted, "link access limit reached")
		}
		m.AccessCount++
		return nil
	})
	return err
}

// updateMetadata applies update to the stored metadata record using a
// conditional write, retrying on concurrent modification. Each round runs
// update against the freshest record; update returns a domain error to
// abort the whole operation.
//
// On backends without conditional writes the update degrades to a plain
// read-modify-write: ceilings are then best-effort under concurrency.
func (h *Handler) updateMetadata(ctx context.Context, linkID string, raw []byte, update func(*AccessMetadata) error) (*AccessMetadata, error) {
	key := storage.Key(linkID, MetadataArtifact)

	for range maxMetadataUpdateAttempts {
		var m AccessMetadata
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, WrapInternalError(err, "corrupt access metadata")
		}

		if err := update(&m); err != nil {
			return nil, err
		}

		replacement, err := json.Marshal(&m)
		if err != nil {
			return nil, WrapInternalError(err, "failed to marshal access metadata")
		}

		cas, ok := h.store.(storage.ConditionalStore)
		if !ok {
			if err := h.store.Store(ctx, key, replacement); err != nil {
				return nil, WrapStorageError(err, storage.OpStore, "failed to update access metadata")
			}
			return &m, nil
		}

		swapped, err := cas.CompareAndSwap(ctx, key, raw, replacement)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// revoked while the request was in flight
				return nil, NewNotFoundError("link not found")
			}
			return nil, WrapStorageError(err, storage.OpCompareAndSwap, "failed to update access metadata")
		}
		if swapped {
			return &m, nil
		}

		// lost the race - reload and run the update against the new record
		raw, err = h.store.Retrieve(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, NewNotFoundError("link not found")
			}
			return nil, WrapStorageError(err, storage.OpRetrieve, "failed to reload access metadata")
		}
	}

	return nil, NewInternalError("access metadata update did not settle")
}
