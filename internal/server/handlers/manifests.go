package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/information-sharing-networks/shl-demo/internal/shl"
)

// HandleRetrieveManifest godoc
//
//	@Summary		Retrieve a link manifest
//	@Description	Resolves a link id to its file manifest after enforcing the link's access policy.
//	@Description
//	@Description	The recipient field identifies who is opening the link and is recorded in the
//	@Description	link's access log. Passcode-protected links additionally require the passcode
//	@Description	that was handed to the recipient out of band; wrong passcodes are counted and
//	@Description	the link locks once the failure allowance is used up.
//	@Description
//	@Description	The manifest lists one entry per shared file with the URL to fetch its
//	@Description	ciphertext from. Decryption happens client-side with the key carried in the link.
//	@Tags			Links
//	@Accept			json
//	@Produce		json
//	@Param			linkID	path		string				true	"Link id"
//	@Param			request	body		shl.ManifestRequest	true	"Recipient identification and optional passcode"
//	@Success		200		{object}	shl.Manifest		"File manifest"
//	@Failure		400		{object}	shl.ErrorBody		"Malformed body or missing recipient"
//	@Failure		401		{object}	shl.ErrorBody		"Passcode missing, wrong, or link locked"
//	@Failure		404		{object}	shl.ErrorBody		"Unknown link"
//	@Failure		410		{object}	shl.ErrorBody		"Link expired or access limit reached"
//	@Router			/manifests/{linkID} [post]
func HandleRetrieveManifest(h *shl.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		linkID := chi.URLParam(r, "linkID")

		var req shl.ManifestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondWithError(w, r, shl.NewValidationError("request body must be a JSON object with a recipient field"))
			return
		}

		WriteResponse(w, r, h.RetrieveManifest(r.Context(), linkID, req))
	}
}
