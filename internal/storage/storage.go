// Package storage provides the artifact store used to persist the encrypted
// artifacts belonging to shareable links.
//
// Artifacts are opaque byte blobs addressed by "<linkID>/<artifact>" keys.
// Backends never interpret artifact content - encryption and policy belong to
// the crypto and shl packages.
//
// Four backends are provided: memory (tests, ephemeral demos), fs (single
// server), postgres (shared database) and s3 (object storage). Backends that
// can replace an artifact atomically additionally implement ConditionalStore,
// which the access-counting code uses to enforce access ceilings under
// concurrent requests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store is the contract every artifact backend implements.
type Store interface {
	// BaseURL returns the public URL prefix under which stored artifacts are
	// served to viewers. It is embedded in manifests and link payloads.
	BaseURL() string

	// Store persists data under key, replacing any existing artifact.
	Store(ctx context.Context, key string, data []byte) error

	// Retrieve returns the artifact stored under key. A missing key yields an
	// error matching ErrNotFound; any other error is a backend failure.
	Retrieve(ctx context.Context, key string) ([]byte, error)

	// Delete removes every artifact stored under the link id.
	// Deleting an id with no artifacts is not an error.
	Delete(ctx context.Context, linkID string) error
}

// ConditionalStore is implemented by backends that can atomically replace an
// artifact only when its current content is known.
type ConditionalStore interface {
	Store

	// CompareAndSwap replaces the artifact at key with replacement if the
	// current content equals expected, reporting whether the swap happened.
	// A missing key yields an error matching ErrNotFound.
	CompareAndSwap(ctx context.Context, key string, expected, replacement []byte) (bool, error)
}

// ErrNotFound indicates the requested artifact does not exist. Backends wrap
// it in an *Error, so match with errors.Is.
var ErrNotFound = errors.New("artifact not found")

// storage operations, used to tag errors with the operation that failed
const (
	OpStore          = "store"
	OpRetrieve       = "retrieve"
	OpDelete         = "delete"
	OpCompareAndSwap = "compare-and-swap"
)

// Error represents a structured error from a storage backend
type Error struct {

	// op is the storage operation that failed (OpStore, OpRetrieve, ...)
	op string

	// key is the artifact key (or link id for delete) the operation targeted
	key string

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *Error) Error() string {
	switch {
	case e.message == "" && e.wrapped != nil:
		return fmt.Sprintf("storage %s %q: %v", e.op, e.key, e.wrapped)
	case e.wrapped != nil:
		return fmt.Sprintf("storage %s %q: %s: %v", e.op, e.key, e.message, e.wrapped)
	default:
		return fmt.Sprintf("storage %s %q: %s", e.op, e.key, e.message)
	}
}

func (e *Error) Op() string    { return e.op }
func (e *Error) Key() string   { return e.key }
func (e *Error) Unwrap() error { return e.wrapped }

// NewError creates a storage error tagged with the failing operation.
func NewError(op, key, msg string) error {
	return &Error{op: op, key: key, message: msg}
}

// WrapError wraps an underlying backend failure, tagged with the failing operation.
func WrapError(err error, op, key, msg string) error {
	return &Error{op: op, key: key, message: msg, wrapped: err}
}

// NotFound creates a storage error for a missing artifact. The returned
// error matches ErrNotFound.
func NotFound(op, key string) error {
	return &Error{op: op, key: key, wrapped: ErrNotFound}
}

// Key joins a link id and an artifact name into a storage key.
func Key(linkID, artifact string) string {
	return linkID + "/" + artifact
}

// SplitKey splits a storage key into its link id and artifact name.
func SplitKey(key string) (linkID, artifact string, ok bool) {
	linkID, artifact, ok = strings.Cut(key, "/")
	if !ok || linkID == "" || artifact == "" {
		return "", "", false
	}
	return linkID, artifact, true
}

// validateKey rejects keys that could escape the backend's namespace or that
// do not follow the <linkID>/<artifact> convention.
func validateKey(op, key string) error {
	if _, _, ok := SplitKey(key); !ok {
		return NewError(op, key, "key must have the form <linkID>/<artifact>")
	}
	if strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return NewError(op, key, "key must not start or end with a separator")
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return NewError(op, key, "key contains an invalid path element")
		}
	}
	if strings.ContainsAny(key, "\\\x00") {
		return NewError(op, key, "key contains an invalid character")
	}
	return nil
}

// validateLinkID rejects link ids that could act as path or prefix tricks in
// a backend namespace.
func validateLinkID(op, linkID string) error {
	if linkID == "" || strings.ContainsAny(linkID, "/\\\x00") || linkID == "." || linkID == ".." {
		return NewError(op, linkID, "invalid link id")
	}
	return nil
}
