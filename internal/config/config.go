package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

// Environment variables with defaults
type ServerEnvironment struct {

	// http server settings
	Environment           string        `env:"ENVIRONMENT,default=dev"`
	Host                  string        `env:"HOST,default=0.0.0.0"`
	Port                  int           `env:"PORT,default=8080"`
	LogLevel              string        `env:"LOG_LEVEL,default=debug"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	RateLimitRPS          int32         `env:"RATE_LIMIT_RPS,default=100"`
	RateLimitBurst        int32         `env:"RATE_LIMIT_BURST,default=200"`
	MaxRequestBodyBytes   int64         `env:"MAX_REQUEST_BODY_BYTES,default=5242880"`

	// link settings
	//
	// PUBLIC_BASE_URL is the URL prefix under which the manifest and content
	// endpoints are reachable by viewers - it is embedded in every link
	// created by this server.
	//
	// VIEWER_URL is optional: when set, links are emitted as
	// <viewer>#shlink:/... so they open in a web viewer.
	PublicBaseURL              string `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
	ViewerURL                  string `env:"VIEWER_URL"`
	DefaultContentType         string `env:"DEFAULT_CONTENT_TYPE,default=application/fhir+json"`
	DefaultPasscodeMaxFailures int64  `env:"DEFAULT_PASSCODE_MAX_FAILURES,default=5"`
	QRSize                     int    `env:"QR_SIZE,default=512"`

	// artifact storage settings
	StorageBackend string `env:"STORAGE_BACKEND,default=fs"`
	StorageDir     string `env:"STORAGE_DIR,default=./data"`

	// database settings (postgres backend)
	DatabaseURL         string        `env:"DATABASE_URL"`
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS,default=4"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS,default=0"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME,default=60m"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME,default=30m"`
	DBConnectTimeout    time.Duration `env:"DB_CONNECT_TIMEOUT,default=5s"`
	DatabasePingTimeout time.Duration `env:"DATABASE_PING_TIMEOUT,default=10s"`

	// object storage settings (s3 backend)
	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION,default=us-east-1"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE,default=false"`
}

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"prod":    true,
	"staging": true,
}

var validStorageBackends = map[string]bool{
	"memory":   true,
	"fs":       true,
	"postgres": true,
	"s3":       true,
}

// NewServerConfig loads environment variables and returns a ServerEnvironment struct that contains the values
func NewServerConfig() (*ServerEnvironment, error) {
	var cfg ServerEnvironment

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil

}

// validateConfig checks for required env variables
func validateConfig(cfg *ServerEnvironment) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}
	if !validStorageBackends[cfg.StorageBackend] {
		return fmt.Errorf("invalid STORAGE_BACKEND: %s", cfg.StorageBackend)
	}

	u, err := url.Parse(cfg.PublicBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PUBLIC_BASE_URL must be an absolute URL, got %q", cfg.PublicBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("PUBLIC_BASE_URL scheme must be http or https, got %q", u.Scheme)
	}

	// links created by a production deployment leave the building - they must
	// not point at plaintext endpoints or at storage that vanishes on restart
	if cfg.Environment == "prod" {
		if u.Scheme != "https" {
			return fmt.Errorf("PUBLIC_BASE_URL must use https in prod")
		}
		if cfg.StorageBackend == "memory" {
			return fmt.Errorf("STORAGE_BACKEND memory is not supported in prod")
		}
	}

	switch cfg.StorageBackend {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND is postgres")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is s3")
		}
	case "fs":
		if cfg.StorageDir == "" {
			return fmt.Errorf("STORAGE_DIR is required when STORAGE_BACKEND is fs")
		}
	}

	// Validate database pool configuration
	if cfg.DBMaxConnections < 1 {
		return fmt.Errorf("DB_MAX_CONNECTIONS must be at least 1")
	}
	if cfg.DBMinConnections < 0 {
		return fmt.Errorf("DB_MIN_CONNECTIONS must be 0 or greater")
	}
	if cfg.DBMinConnections > cfg.DBMaxConnections {
		return fmt.Errorf("DB_MIN_CONNECTIONS (%d) cannot be greater than DB_MAX_CONNECTIONS (%d)",
			cfg.DBMinConnections, cfg.DBMaxConnections)
	}

	if cfg.QRSize < 64 || cfg.QRSize > 2048 {
		return fmt.Errorf("QR_SIZE must be between 64 and 2048, got %d", cfg.QRSize)
	}
	if cfg.DefaultPasscodeMaxFailures < 0 {
		return fmt.Errorf("DEFAULT_PASSCODE_MAX_FAILURES must be 0 or greater")
	}

	return nil
}
