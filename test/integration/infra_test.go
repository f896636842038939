//go:build integration

package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
)

func TestInfra_HealthAndReadiness(t *testing.T) {
	testEnv := startInProcessServer(t)
	defer testEnv.shutdown()

	live, err := http.Get(testEnv.baseURL + "/health/live")
	if err != nil {
		t.Fatalf("failed to call liveness endpoint: %v", err)
	}
	body, _ := io.ReadAll(live.Body)
	live.Body.Close()

	if live.StatusCode != http.StatusOK {
		t.Errorf("liveness status = %d, want 200", live.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("liveness body = %q, want %q", string(body), "OK")
	}

	ready, err := http.Get(testEnv.baseURL + "/health/ready")
	if err != nil {
		t.Fatalf("failed to call readiness endpoint: %v", err)
	}
	ready.Body.Close()

	if ready.StatusCode != http.StatusOK {
		t.Errorf("readiness status = %d, want 200", ready.StatusCode)
	}
}

func TestInfra_Version(t *testing.T) {
	testEnv := startInProcessServer(t)
	defer testEnv.shutdown()

	resp, err := http.Get(testEnv.baseURL + "/version")
	if err != nil {
		t.Fatalf("failed to call version endpoint: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("version status = %d, want 200", resp.StatusCode)
	}

	var version struct {
		Version string `json:"version"`
		Service string `json:"service"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		t.Fatalf("failed to decode version response: %v", err)
	}

	if version.Service != "shl-server" {
		t.Errorf("service = %q, want %q", version.Service, "shl-server")
	}
	if version.Version == "" {
		t.Error("version is empty")
	}
}

func TestInfra_SecurityHeaders(t *testing.T) {
	testEnv := startInProcessServer(t)
	defer testEnv.shutdown()

	resp, err := http.Get(testEnv.baseURL + "/health/live")
	if err != nil {
		t.Fatalf("failed to call endpoint: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := resp.Header.Get("X-Max-Request-Size"); got == "" {
		t.Error("X-Max-Request-Size header not set")
	}
}
