package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/information-sharing-networks/shl-demo/internal/storage/migrations"
)

// PostgresStore persists artifacts in a single table keyed by
// (link_id, artifact). CompareAndSwap is a conditional UPDATE, so access
// counting stays atomic across server instances sharing the database.
type PostgresStore struct {
	baseURL string
	pool    *pgxpool.Pool
}

// NewPostgresStore applies the schema migrations and returns a store backed
// by the pool. The store does not take ownership of the pool until Close is
// called.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, baseURL string) (*PostgresStore, error) {
	if err := runDatabaseMigrations(ctx, pool); err != nil {
		return nil, WrapError(err, OpStore, "", "failed to apply database migrations")
	}

	return &PostgresStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		pool:    pool,
	}, nil
}

// runDatabaseMigrations applies the embedded goose migrations.
// Goose expects a database/sql interface, so the pgx pool is adapted with
// stdlib.OpenDBFromPool (closing the adapter does not close the pool).
func runDatabaseMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (p *PostgresStore) BaseURL() string { return p.baseURL }

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

func (p *PostgresStore) Store(ctx context.Context, key string, data []byte) error {
	if err := validateKey(OpStore, key); err != nil {
		return err
	}
	linkID, artifact, _ := SplitKey(key)

	_, err := p.pool.Exec(ctx, `
		INSERT INTO shl_artifacts (link_id, artifact, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (link_id, artifact)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		linkID, artifact, data)
	if err != nil {
		return WrapError(err, OpStore, key, "failed to store artifact")
	}
	return nil
}

func (p *PostgresStore) Retrieve(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(OpRetrieve, key); err != nil {
		return nil, err
	}
	linkID, artifact, _ := SplitKey(key)

	var data []byte
	err := p.pool.QueryRow(ctx, `
		SELECT data FROM shl_artifacts
		WHERE link_id = $1 AND artifact = $2`,
		linkID, artifact).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFound(OpRetrieve, key)
		}
		return nil, WrapError(err, OpRetrieve, key, "failed to retrieve artifact")
	}
	return data, nil
}

func (p *PostgresStore) Delete(ctx context.Context, linkID string) error {
	if err := validateLinkID(OpDelete, linkID); err != nil {
		return err
	}

	_, err := p.pool.Exec(ctx, `
		DELETE FROM shl_artifacts WHERE link_id = $1`, linkID)
	if err != nil {
		return WrapError(err, OpDelete, linkID, "failed to delete artifacts")
	}
	return nil
}

func (p *PostgresStore) CompareAndSwap(ctx context.Context, key string, expected, replacement []byte) (bool, error) {
	if err := validateKey(OpCompareAndSwap, key); err != nil {
		return false, err
	}
	linkID, artifact, _ := SplitKey(key)

	tag, err := p.pool.Exec(ctx, `
		UPDATE shl_artifacts
		SET data = $3, updated_at = now()
		WHERE link_id = $1 AND artifact = $2 AND data = $4`,
		linkID, artifact, replacement, expected)
	if err != nil {
		return false, WrapError(err, OpCompareAndSwap, key, "failed to swap artifact")
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// no row updated: either the artifact is missing or the content changed
	var exists bool
	err = p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM shl_artifacts WHERE link_id = $1 AND artifact = $2
		)`, linkID, artifact).Scan(&exists)
	if err != nil {
		return false, WrapError(err, OpCompareAndSwap, key, "failed to check artifact")
	}
	if !exists {
		return false, NotFound(OpCompareAndSwap, key)
	}
	return false, nil
}
