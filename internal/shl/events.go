package shl

// events.go records access audit events. Recording is an observability
// side-effect: callers log a failure and carry on, it never changes the
// outcome of the request that triggered it.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/information-sharing-networks/shl-demo/internal/storage"
)

// AccessEvent records one admitted manifest retrieval.
type AccessEvent struct {
	// ID is a unique event id
	ID string `json:"id"`

	// LinkID is the link that was accessed
	LinkID string `json:"linkId"`

	// Recipient is the self-reported name of the retrieving party
	Recipient string `json:"recipient"`

	// At is the time the access was admitted (UTC)
	At time.Time `json:"at"`
}

// RecordAccessEvent stores an access event under the link's audit
// namespace (<linkID>/access/<event id>.json).
func RecordAccessEvent(ctx context.Context, store storage.Store, linkID, recipient string, now time.Time) error {
	event := AccessEvent{
		ID:        uuid.NewString(),
		LinkID:    linkID,
		Recipient: recipient,
		At:        now.UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return WrapInternalError(err, "failed to marshal access event")
	}

	key := storage.Key(linkID, AccessEventPrefix+event.ID+".json")
	if err := store.Store(ctx, key, data); err != nil {
		return WrapStorageError(err, storage.OpStore, "failed to store access event")
	}
	return nil
}
