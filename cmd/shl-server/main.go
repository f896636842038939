package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/information-sharing-networks/shl-demo/internal/config"
	"github.com/information-sharing-networks/shl-demo/internal/logger"
	"github.com/information-sharing-networks/shl-demo/internal/server"
	"github.com/information-sharing-networks/shl-demo/internal/storage"
	"github.com/information-sharing-networks/shl-demo/internal/version"
	"github.com/spf13/cobra"
)

//	@title			shl-server
//	@description	shl-server issues and serves encrypted shareable links for clinical documents.
//	@description
//	@description	A link is a self-contained capability: it carries the manifest URL, the
//	@description	symmetric decryption key and the access flags. The server stores only
//	@description	ciphertext - it cannot read the documents it serves, and it never learns
//	@description	the key after the moment of creation.
//	@description
//	@description	## Common Error Responses
//	@description	All endpoints may return:
//	@description	- `413` Request body exceeds size limit
//	@description	- `429` Rate limit exceeded
//	@description	- `500` Internal server error
//	@description
//	@description	Individual endpoints document their specific business logic errors.
//	@description
//	@description	## Request Limits
//	@description	All endpoints are protected by:
//	@description	- **Rate limiting**: Configurable requests per second (see env vars) - default 100 rps (set to 0 to disable)
//	@description	- **Request size limits**: Configurable (see env vars) - default 5MB
//	@description
//	@description	Check the X-Max-Request-Size response header for the configured limit.
//	@description
//	@description	The rate limit is set globally and prevents abuse of the service.
//	@description	In production there may be additional protections in place such as per-IP rate limiting provided by the load balancer/reverse proxy.
//	@description
//	@description	## Authentication & Authorization
//	@description
//	@description	The link protocol endpoints do not require credentials: possession of a link
//	@description	id is the capability, and passcode-protected links additionally require the
//	@description	passcode handed to the recipient out of band.
//	@description
//	@description	The /admin endpoints are unprotected and for development and testing only -
//	@description	a production deployment would keep link creation behind the clinical
//	@description	system's own authenticated API.
//	@description
//	@license.name	MIT

//	@servers.url			https://links.example.org
//	@servers.description	Production server
//	@servers.url			http://localhost:8080
//	@servers.description	Development server

//	@accept		json
//	@produce	json

//	@tag.name			Links
//	@tag.description	Link protocol endpoints (manifest and content retrieval)

//	@tag.name			Common
//	@tag.description	Server API endpoints (health, readiness, version, etc.)

//	@tag.name			Admin
//	@tag.description	Create and revoke shareable links. These endpoints are unprotected and for use in development and testing only.

func main() {
	cmd := &cobra.Command{
		Use:   "shl-server",
		Short: "Shareable link server",
		Long:  `shl-server issues encrypted shareable links for clinical documents and serves their manifests and ciphertext`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	v := version.Get()
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewServerConfig()
	if err != nil {
		log.Printf("failed to load configuration: %v", err.Error())
		os.Exit(1)
	}

	appLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)

	appLogger.Info("Configuration loaded",
		slog.String("ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.String("STORAGE_BACKEND", cfg.StorageBackend),
		slog.String("PUBLIC_BASE_URL", cfg.PublicBaseURL),
		slog.String("VIEWER_URL", cfg.ViewerURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to create artifact store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appLogger.Info("Starting server", slog.String("version", version.Get().Version))

	server := server.NewServer(store, cfg, appLogger)

	defer server.StorageShutdown()

	if err := server.Start(ctx); err != nil {
		appLogger.Error("Server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("server shutdown complete")
	return nil
}
