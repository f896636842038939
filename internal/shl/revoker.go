package shl

// revoker.go implements link revocation.

import (
	"context"
	"log/slog"

	"github.com/information-sharing-networks/shl-demo/internal/storage"
)

// Revoker withdraws links. Revocation is the kill switch for a leaked
// link: the capability cannot be recalled from whoever holds it, but the
// server can refuse to honor it.
type Revoker struct {
	store  storage.Store
	logger *slog.Logger
}

func NewRevoker(store storage.Store, logger *slog.Logger) *Revoker {
	return &Revoker{store: store, logger: logger}
}

// Revoke deletes every artifact belonging to the link: ciphertext,
// manifest, metadata and audit events. Subsequent manifest requests
// return not found, indistinguishable from an id that never existed.
//
// Revoking an unknown or already-revoked id is a no-op success, so
// revocation can always be retried.
func (r *Revoker) Revoke(ctx context.Context, linkID string) error {
	if err := r.store.Delete(ctx, linkID); err != nil {
		return WrapStorageError(err, storage.OpDelete, "failed to revoke link")
	}

	r.logger.Info("link revoked", slog.String("link_id", linkID))
	return nil
}
