package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/information-sharing-networks/shl-demo/internal/shl"
)

// HandleRetrieveContent godoc
//
//	@Summary		Retrieve an encrypted artifact
//	@Description	Serves one encrypted file belonging to a link, located via the manifest.
//	@Description
//	@Description	The response body is the JWE compact serialization exactly as stored -
//	@Description	the server never decrypts what it serves. Clients decrypt with the key
//	@Description	carried in the link.
//	@Tags			Links
//	@Produce		plain
//	@Param			linkID		path		string	true	"Link id"
//	@Param			artifact	path		string	true	"Artifact name from the manifest (content.jwe or attachment-N.jwe)"
//	@Success		200			{string}	string	"JWE compact serialization"
//	@Failure		404			{object}	shl.ErrorBody	"Unknown link or artifact"
//	@Router			/content/{linkID}/{artifact} [get]
func HandleRetrieveContent(h *shl.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		linkID := chi.URLParam(r, "linkID")
		artifact := chi.URLParam(r, "artifact")

		WriteResponse(w, r, h.RetrieveContent(r.Context(), linkID, artifact))
	}
}
