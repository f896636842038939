package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/information-sharing-networks/shl-demo/internal/config"
)

// NewStore constructs the artifact store selected by STORAGE_BACKEND.
//
// The postgres backend creates and pings a pgx connection pool and applies
// the schema migrations; the s3 backend builds an AWS client (static
// credentials and a custom endpoint are supported for MinIO deployments).
// Stores holding connections expose a Close method - the server shuts them
// down on exit.
func NewStore(ctx context.Context, cfg *config.ServerEnvironment, logger *slog.Logger) (Store, error) {
	switch cfg.StorageBackend {
	case "memory":
		return NewMemoryStore(cfg.PublicBaseURL), nil
	case "fs":
		return NewFSStore(cfg.StorageDir, cfg.PublicBaseURL)
	case "postgres":
		return newPostgresStoreFromConfig(ctx, cfg, logger)
	case "s3":
		return newS3StoreFromConfig(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}

func newPostgresStoreFromConfig(ctx context.Context, cfg *config.ServerEnvironment, logger *slog.Logger) (*PostgresStore, error) {
	dbCtx, dbCancel := context.WithTimeout(ctx, cfg.DatabasePingTimeout)
	defer dbCancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.DBMaxConnections
	poolConfig.MinConns = cfg.DBMinConnections
	poolConfig.MaxConnLifetime = cfg.DBMaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.DBMaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.DBConnectTimeout

	pool, err := pgxpool.NewWithConfig(dbCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(dbCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database via pool: %w", err)
	}

	logger.Info("connected to PostgreSQL")

	store, err := NewPostgresStore(ctx, pool, cfg.PublicBaseURL)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func newS3StoreFromConfig(ctx context.Context, cfg *config.ServerEnvironment) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return NewS3Store(client, cfg.S3Bucket, cfg.PublicBaseURL)
}
