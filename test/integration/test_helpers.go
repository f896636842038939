//go:build integration

// functions and request/response types that are useful in integration tests

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"
)

// createLinkRequest mirrors the admin API request body
type createLinkRequest struct {
	Payload              json.RawMessage     `json:"payload"`
	ContentType          string              `json:"content_type,omitempty"`
	Label                string              `json:"label,omitempty"`
	Attachments          []attachmentRequest `json:"attachments,omitempty"`
	Passcode             string              `json:"passcode,omitempty"`
	MaxAccesses          int64               `json:"max_accesses,omitempty"`
	ExpiresIn            string              `json:"expires_in,omitempty"`
	ExpiresAt            *time.Time          `json:"expires_at,omitempty"`
	PasscodeMaxFailures  *int64              `json:"passcode_max_failures,omitempty"`
	ChargeFailedPasscode bool                `json:"charge_failed_passcode,omitempty"`
}

type attachmentRequest struct {
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

type createLinkResponse struct {
	ID            string     `json:"id"`
	Link          string     `json:"link"`
	QRCode        []byte     `json:"qr_code"`
	Key           string     `json:"key"`
	PayloadDigest string     `json:"payload_digest"`
	ExpiresAt     *time.Time `json:"expires_at"`
	Passcode      string     `json:"passcode"`
}

type manifestFile struct {
	ContentType string `json:"contentType"`
	Location    string `json:"location"`
}

type manifestResponse struct {
	Files  []manifestFile `json:"files"`
	Status string         `json:"status"`
}

// errorBody mirrors the sanitized error responses sent to clients
type errorBody struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	Reason            string `json:"reason"`
	RemainingAttempts *int   `json:"remainingAttempts"`
}

// createLink creates a link via the admin API and fails the test on any error
func createLink(t *testing.T, baseURL string, req createLinkRequest) createLinkResponse {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal create request: %v", err)
	}

	resp, err := http.Post(baseURL+"/admin/links", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create link: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status 201, got %d. Response: %s", resp.StatusCode, string(body))
	}

	var created createLinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	return created
}

// fetchManifest posts a manifest request and returns the raw response so
// callers can assert on status codes. Callers must close the body.
func fetchManifest(t *testing.T, baseURL, linkID, recipient, passcode string) *http.Response {
	t.Helper()

	reqBody := map[string]string{"recipient": recipient}
	if passcode != "" {
		reqBody["passcode"] = passcode
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("failed to marshal manifest request: %v", err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/manifests/%s", baseURL, linkID), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to request manifest: %v", err)
	}
	return resp
}

// decodeManifest reads a 200 manifest response body
func decodeManifest(t *testing.T, resp *http.Response) manifestResponse {
	t.Helper()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status 200, got %d. Response: %s", resp.StatusCode, string(body))
	}

	var manifest manifestResponse
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		t.Fatalf("failed to decode manifest: %v", err)
	}
	return manifest
}

// decodeError reads an error response body
func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	defer resp.Body.Close()

	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// revokeLink calls the admin revoke endpoint and returns the status code
func revokeLink(t *testing.T, baseURL, linkID string) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/admin/links/%s", baseURL, linkID), nil)
	if err != nil {
		t.Fatalf("failed to build revoke request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to revoke link: %v", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode
}
