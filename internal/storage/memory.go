package storage

import (
	"bytes"
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps artifacts in process memory. It is used by the test
// suites and by ephemeral demo deployments - everything is lost on restart.
//
// CompareAndSwap is atomic under the store mutex.
type MemoryStore struct {
	baseURL string

	mu        sync.RWMutex
	artifacts map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL:   strings.TrimRight(baseURL, "/"),
		artifacts: make(map[string][]byte),
	}
}

func (m *MemoryStore) BaseURL() string { return m.baseURL }

func (m *MemoryStore) Store(ctx context.Context, key string, data []byte) error {
	if err := validateKey(OpStore, key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[key] = bytes.Clone(data)
	return nil
}

func (m *MemoryStore) Retrieve(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(OpRetrieve, key); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.artifacts[key]
	if !ok {
		return nil, NotFound(OpRetrieve, key)
	}
	return bytes.Clone(data), nil
}

func (m *MemoryStore) Delete(ctx context.Context, linkID string) error {
	if err := validateLinkID(OpDelete, linkID); err != nil {
		return err
	}

	prefix := linkID + "/"

	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.artifacts {
		if strings.HasPrefix(key, prefix) {
			delete(m.artifacts, key)
		}
	}
	return nil
}

func (m *MemoryStore) CompareAndSwap(ctx context.Context, key string, expected, replacement []byte) (bool, error) {
	if err := validateKey(OpCompareAndSwap, key); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.artifacts[key]
	if !ok {
		return false, NotFound(OpCompareAndSwap, key)
	}
	if !bytes.Equal(current, expected) {
		return false, nil
	}
	m.artifacts[key] = bytes.Clone(replacement)
	return true, nil
}
