//go:build integration

package integration

// Test environment setup and server lifecycle management.
//
// The integration tests start the shl-server HTTP server in-process with the
// memory storage backend and exercise it over HTTP on a free local port.
// PUBLIC_BASE_URL is pointed at the test server itself, so the manifest
// locations inside minted links resolve back to the server under test.
//
// By default the server logs are not included in the test output, you can enable them with:
//
//	ENABLE_SERVER_LOGS=true go test -tags=integration -v ./test/integration
//

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/information-sharing-networks/shl-demo/internal/config"
	"github.com/information-sharing-networks/shl-demo/internal/logger"
	"github.com/information-sharing-networks/shl-demo/internal/server"
	"github.com/information-sharing-networks/shl-demo/internal/storage"
)

// testEnv provides access to the running test server for integration tests
type testEnv struct {
	baseURL  string
	cfg      *config.ServerEnvironment
	shutdown func()
}

// startInProcessServer starts the shl-server in-process for testing - returns
// the base URL for the API and a shutdown function
func startInProcessServer(t *testing.T) *testEnv {
	t.Helper()

	testEnv := &testEnv{}

	t.Log("Starting in-process server...")

	var (
		ctx      = context.Background()
		host     = "localhost"
		port     = findFreePort(t)
		logLevel = "none"
	)

	if os.Getenv("ENABLE_SERVER_LOGS") == "true" {
		logLevel = "debug"
	}

	baseURL := fmt.Sprintf("http://%s:%d", host, port)

	// Set environment variables before calling NewServerConfig
	testEnvVars := map[string]string{
		"ENVIRONMENT":     "test",
		"HOST":            host,
		"PORT":            fmt.Sprintf("%d", port),
		"LOG_LEVEL":       logLevel,
		"RATE_LIMIT_RPS":  "0",
		"STORAGE_BACKEND": "memory",
		"PUBLIC_BASE_URL": baseURL,
	}

	// Save original env vars and set test values
	originalEnvVars := make(map[string]string)
	for key, value := range testEnvVars {
		originalEnvVars[key] = os.Getenv(key)
		os.Setenv(key, value)
	}

	// Restore original environment variables when test completes
	t.Cleanup(func() {
		for key, original := range originalEnvVars {
			if original != "" {
				os.Setenv(key, original)
			} else {
				os.Unsetenv(key)
			}
		}
	})

	cfg, err := config.NewServerConfig()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.InitLogger(logger.ParseLogLevel(logLevel), "test")

	store, err := storage.NewStore(ctx, cfg, appLogger)
	if err != nil {
		t.Fatalf("Failed to create artifact store: %v", err)
	}

	serverInstance := server.NewServer(store, cfg, appLogger)

	// Create a cancellable context for server shutdown
	serverCtx, serverCancel := context.WithCancel(ctx)

	// Start server
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := serverInstance.Start(serverCtx); err != nil {
			serverDone <- err
		}
	}()

	// Create shutdown function to be called by the test
	testEnv.shutdown = func() {
		t.Log("Stopping server...")

		// Cancel the server context to trigger graceful shutdown
		serverCancel()

		// Wait for server to shut down gracefully with timeout
		select {
		case err := <-serverDone:
			if err != nil {
				t.Logf("❌ Server shutdown with error: %v", err)
			} else {
				t.Log("✅ Server shut down gracefully")
			}
		case <-time.After(5 * time.Second):
			t.Log("⚠️ Server shutdown timeout")
		}

		serverInstance.StorageShutdown()
	}

	testEnv.baseURL = baseURL
	testEnv.cfg = cfg

	// Wait for server to be ready
	if !waitForServer(t, testEnv.baseURL+"/health/live", 30*time.Second) {
		t.Fatal("Server failed to start within timeout")
	}

	t.Log("✅ Server started")
	return testEnv
}

func findFreePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	return addr.Port
}

func waitForServer(t *testing.T, url string, timeout time.Duration) bool {
	t.Helper()

	client := &http.Client{Timeout: 1 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
