package handlers

// links_admin.go is for development and testing only - in production, link
// creation and revocation would sit behind the clinical system's own
// authenticated API rather than an open /admin surface.

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/information-sharing-networks/shl-demo/internal/shl"
)

// request and responses

type CreateLinkRequest struct {
	// Payload is the primary JSON document to share (required, must be a
	// JSON object)
	Payload json.RawMessage `json:"payload"`

	// ContentType of the payload (default application/fhir+json)
	ContentType string `json:"content_type,omitempty"`

	// Label is a short description embedded in the link
	Label string `json:"label,omitempty"`

	// Attachments are shared alongside the payload
	Attachments []AttachmentRequest `json:"attachments,omitempty"`

	// Passcode protects the link (optional)
	Passcode string `json:"passcode,omitempty"`

	// MaxAccesses caps successful manifest retrievals (0 = unlimited)
	MaxAccesses int64 `json:"max_accesses,omitempty"`

	// ExpiresIn is a Go duration string, e.g. "72h" (ignored when
	// expires_at is set)
	ExpiresIn string `json:"expires_in,omitempty"`

	// ExpiresAt is an absolute expiry time
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// PasscodeMaxFailures overrides the server default lockout threshold.
	// Explicit 0 disables the lockout.
	PasscodeMaxFailures *int64 `json:"passcode_max_failures,omitempty"`

	// ChargeFailedPasscode also burns one access per failed passcode attempt
	ChargeFailedPasscode bool `json:"charge_failed_passcode,omitempty"`

	// IncludePlaintext stores an unencrypted copy of the payload for
	// debugging (refused in prod)
	IncludePlaintext bool `json:"include_plaintext,omitempty"`
}

type AttachmentRequest struct {
	ContentType string `json:"content_type"`

	// Data is the attachment content, base64-encoded in JSON
	Data []byte `json:"data"`
}

type CreateLinkResponse struct {
	ID            string     `json:"id"`
	Link          string     `json:"link"`
	QRCode        []byte     `json:"qr_code,omitempty"`
	Key           string     `json:"key"`
	PayloadDigest string     `json:"payload_digest"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Passcode      string     `json:"passcode,omitempty"`
}

// HandleCreateLink godoc
//
//	@Summary		Create a shareable link
//	@Description	Encrypts the payload (and any attachments), stores the resulting artifacts and
//	@Description	returns the shareable link. The encryption key is embedded in the link and is
//	@Description	not retained by the server - a lost link cannot be regenerated.
//	@Description
//	@Description	The returned passcode field echoes the configured passcode so it can be handed
//	@Description	to the recipient out of band.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Param			link	body		CreateLinkRequest	true	"Link content and access policy"
//	@Success		201		{object}	CreateLinkResponse
//	@Failure		400		{object}	shl.ErrorBody	"Invalid request"
//	@Router			/admin/links [post]
func HandleCreateLink(creator *shl.Creator, defaultPasscodeMaxFailures int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondWithError(w, r, shl.NewValidationError("invalid request body"))
			return
		}

		policy := shl.AccessPolicy{
			Passcode:             req.Passcode,
			MaxAccesses:          req.MaxAccesses,
			ChargeFailedPasscode: req.ChargeFailedPasscode,
		}

		// The lockout threshold only applies to passcode-protected links.
		// An explicit passcode_max_failures wins over the server default.
		if req.Passcode != "" {
			policy.MaxPasscodeFailures = defaultPasscodeMaxFailures
		}
		if req.PasscodeMaxFailures != nil {
			policy.MaxPasscodeFailures = *req.PasscodeMaxFailures
		}

		if req.ExpiresIn != "" {
			d, err := time.ParseDuration(req.ExpiresIn)
			if err != nil {
				RespondWithError(w, r, shl.NewValidationError(fmt.Sprintf("invalid expires_in duration %q", req.ExpiresIn)))
				return
			}
			policy.ExpiresIn = d
		}
		if req.ExpiresAt != nil {
			policy.ExpiresAt = *req.ExpiresAt
		}

		attachments := make([]shl.Attachment, 0, len(req.Attachments))
		for _, a := range req.Attachments {
			attachments = append(attachments, shl.Attachment{
				ContentType: a.ContentType,
				Data:        a.Data,
			})
		}

		result, err := creator.CreateLink(r.Context(), shl.CreateRequest{
			Payload:          req.Payload,
			ContentType:      req.ContentType,
			Label:            req.Label,
			Attachments:      attachments,
			Policy:           policy,
			IncludePlaintext: req.IncludePlaintext,
		})
		if err != nil {
			RespondWithError(w, r, err)
			return
		}

		RespondWithJSONPayload(w, http.StatusCreated, CreateLinkResponse{
			ID:            result.ID,
			Link:          result.Link,
			QRCode:        result.Barcode,
			Key:           result.Key,
			PayloadDigest: result.PayloadDigest,
			ExpiresAt:     result.ExpiresAt,
			Passcode:      result.Passcode,
		})
	}
}

// HandleRevokeLink godoc
//
//	@Summary		Revoke a link
//	@Description	Deletes every artifact belonging to the link. Holders of the link get 404
//	@Description	from then on. Revoking an unknown or already-revoked link succeeds, so
//	@Description	retries are safe.
//	@Tags			Admin
//	@Param			linkID	path	string	true	"Link id"
//	@Success		204		"Link revoked"
//	@Failure		500		{object}	shl.ErrorBody	"Storage failure"
//	@Router			/admin/links/{linkID} [delete]
func HandleRevokeLink(revoker *shl.Revoker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		linkID := chi.URLParam(r, "linkID")

		if err := revoker.Revoke(r.Context(), linkID); err != nil {
			RespondWithError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
