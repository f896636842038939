package handlers

// responses.go moves domain responses and errors onto the wire.

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/information-sharing-networks/shl-demo/internal/logger"
	"github.com/information-sharing-networks/shl-demo/internal/shl"
)

// WriteResponse copies a domain response to the client verbatim.
//
// The domain layer decides status, headers and body (including sanitized
// error bodies); this helper only transfers them.
func WriteResponse(w http.ResponseWriter, r *http.Request, resp *shl.Response) {
	for key, value := range resp.Header {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)

	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			// headers are already sent, so there is nothing left to do but log
			reqLogger := logger.ContextRequestLogger(r.Context())
			reqLogger.Error("failed to write response body",
				slog.String("error", err.Error()),
			)
		}
	}
}

// RespondWithError sends the HTTP form of err.
//
// The full error is logged server-side; the client receives the sanitized
// body produced by shl.MapErrorToResponse.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	resp := shl.MapErrorToResponse(err)

	reqLogger := logger.ContextRequestLogger(r.Context())
	reqLogger.Warn("request failed",
		slog.String("error", err.Error()),
		slog.Int("status_code", resp.StatusCode),
	)

	WriteResponse(w, r, resp)
}

// RespondWithJSONPayload sends a JSON response with the given status code.
func RespondWithJSONPayload(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			// If encoding fails, log it but don't try to send another response
			// (headers are already written)
			slog.Error("failed to encode JSON response",
				slog.String("error", err.Error()),
			)
		}
	}
}
