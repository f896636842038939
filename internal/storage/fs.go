package storage

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FSStore persists artifacts on the local filesystem, one directory per link
// id under the base directory. File access is scoped with os.OpenRoot so a
// crafted key can never escape the base directory, and writes go through a
// temp file + rename so a crash never leaves a half-written artifact.
//
// CompareAndSwap is serialized by a process-local mutex: the guarantee holds
// within a single server process only. Deployments running multiple server
// processes against shared storage should use the postgres or s3 backend.
type FSStore struct {
	baseURL string
	root    *os.Root

	// serializes CompareAndSwap read-compare-write sequences
	mu sync.Mutex
}

func NewFSStore(baseDir, baseURL string) (*FSStore, error) {
	if baseDir == "" {
		return nil, NewError(OpStore, "", "storage directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, WrapError(err, OpStore, baseDir, "failed to create storage directory")
	}

	root, err := os.OpenRoot(baseDir)
	if err != nil {
		return nil, WrapError(err, OpStore, baseDir, "failed to open storage directory")
	}

	return &FSStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		root:    root,
	}, nil
}

func (f *FSStore) BaseURL() string { return f.baseURL }

// Close releases the handle on the storage directory.
func (f *FSStore) Close() {
	_ = f.root.Close()
}

func (f *FSStore) Store(ctx context.Context, key string, data []byte) error {
	if err := validateKey(OpStore, key); err != nil {
		return err
	}
	return f.write(OpStore, key, data)
}

func (f *FSStore) Retrieve(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(OpRetrieve, key); err != nil {
		return nil, err
	}

	data, err := f.root.ReadFile(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NotFound(OpRetrieve, key)
		}
		return nil, WrapError(err, OpRetrieve, key, "failed to read artifact")
	}
	return data, nil
}

func (f *FSStore) Delete(ctx context.Context, linkID string) error {
	if err := validateLinkID(OpDelete, linkID); err != nil {
		return err
	}

	if err := f.root.RemoveAll(linkID); err != nil {
		return WrapError(err, OpDelete, linkID, "failed to remove artifacts")
	}
	return nil
}

func (f *FSStore) CompareAndSwap(ctx context.Context, key string, expected, replacement []byte) (bool, error) {
	if err := validateKey(OpCompareAndSwap, key); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.root.ReadFile(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, NotFound(OpCompareAndSwap, key)
		}
		return false, WrapError(err, OpCompareAndSwap, key, "failed to read artifact")
	}
	if !bytes.Equal(current, expected) {
		return false, nil
	}

	if err := f.write(OpCompareAndSwap, key, replacement); err != nil {
		return false, err
	}
	return true, nil
}

// write stores data at key atomically: write to a unique temp file in the
// same directory, then rename over the destination.
func (f *FSStore) write(op, key string, data []byte) error {
	dir := path.Dir(key)
	if dir != "." {
		if err := f.root.MkdirAll(dir, 0o750); err != nil {
			return WrapError(err, op, key, "failed to create artifact directory")
		}
	}

	tmp := key + ".tmp-" + uuid.NewString()
	if err := f.root.WriteFile(tmp, data, 0o640); err != nil {
		return WrapError(err, op, key, "failed to write artifact")
	}

	if err := f.root.Rename(tmp, key); err != nil {
		_ = f.root.Remove(tmp)
		return WrapError(err, op, key, "failed to finalize artifact")
	}
	return nil
}
