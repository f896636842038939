package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/information-sharing-networks/shl-demo/internal/barcode"
	"github.com/information-sharing-networks/shl-demo/internal/config"
	"github.com/information-sharing-networks/shl-demo/internal/logger"
	"github.com/information-sharing-networks/shl-demo/internal/server/handlers"
	"github.com/information-sharing-networks/shl-demo/internal/server/middleware"
	"github.com/information-sharing-networks/shl-demo/internal/shl"
	"github.com/information-sharing-networks/shl-demo/internal/storage"
	"github.com/information-sharing-networks/shl-demo/internal/version"
)

type Server struct {
	store   storage.Store
	config  *config.ServerEnvironment
	logger  *slog.Logger
	router  *chi.Mux
	creator *shl.Creator
	handler *shl.Handler
	revoker *shl.Revoker
}

func NewServer(
	store storage.Store,
	cfg *config.ServerEnvironment,
	logger *slog.Logger,
) *Server {
	server := &Server{
		store:  store,
		config: cfg,
		logger: logger,
		router: chi.NewRouter(),
		creator: shl.NewCreator(store, barcode.NewQRRenderer(cfg.QRSize), shl.CreatorConfig{
			Environment:        cfg.Environment,
			ViewerURL:          cfg.ViewerURL,
			DefaultContentType: cfg.DefaultContentType,
		}, logger),
		handler: shl.NewHandler(store, logger),
		revoker: shl.NewRevoker(store, logger),
	}

	server.setupMiddleware()
	server.registerRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(logger.RequestLogging(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecurityHeaders(s.config.Environment))
	s.router.Use(middleware.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))
	s.router.Use(middleware.RequestSizeLimit(s.config.MaxRequestBodyBytes))
	s.router.Use(chimiddleware.Timeout(60 * time.Second))
}

func (s *Server) registerRoutes() {
	s.router.Get("/health/live", handlers.HandleHealth)
	s.router.Get("/health/ready", handlers.HandleReadiness(s.store))

	v := version.Get()
	s.router.Get("/version", handlers.HandleVersion(v.Version, v.BuildDate))

	// link protocol endpoints - the URLs embedded in minted links resolve here
	s.router.Post("/manifests/{linkID}", handlers.HandleRetrieveManifest(s.handler))
	s.router.Get("/content/{linkID}/{artifact}", handlers.HandleRetrieveContent(s.handler))

	// unauthenticated admin surface for development and testing
	s.router.Route("/admin", func(r chi.Router) {
		r.Post("/links", handlers.HandleCreateLink(s.creator, s.config.DefaultPasscodeMaxFailures))
		r.Delete("/links/{linkID}", handlers.HandleRevokeLink(s.revoker))
	})
}

func (s *Server) Start(ctx context.Context) error {
	serverAddr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("service listening",
			slog.String("environment", s.config.Environment),
			slog.String("address", serverAddr),
			slog.String("storage_backend", s.config.StorageBackend))

		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ServerShutdownTimeout)
	defer shutdownCancel()

	s.logger.Info("shutting down HTTP server")

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("HTTP server shutdown error",
			slog.String("error", err.Error()))
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// StorageShutdown closes the artifact store if the backend holds
// connections or file handles.
func (s *Server) StorageShutdown() {
	if closer, ok := s.store.(interface{ Close() }); ok {
		closer.Close()
		s.logger.Info("artifact store closed")
	}
}
