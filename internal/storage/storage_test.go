package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

const testBaseURL = "https://share.example.org"

// testStores returns a constructor per backend that the compliance tests can
// run against. The postgres and s3 backends need live services and are
// exercised by deployment testing instead.
func testStores() map[string]func(t *testing.T) ConditionalStore {
	return map[string]func(t *testing.T) ConditionalStore{
		"memory": func(t *testing.T) ConditionalStore {
			t.Helper()
			return NewMemoryStore(testBaseURL)
		},
		"fs": func(t *testing.T) ConditionalStore {
			t.Helper()
			store, err := NewFSStore(t.TempDir(), testBaseURL)
			if err != nil {
				t.Fatalf("NewFSStore() error = %v", err)
			}
			t.Cleanup(store.Close)
			return store
		},
	}
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	for name, newStore := range testStores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			key := Key("link1", "content.jwe")
			want := []byte("ciphertext")

			if err := store.Store(ctx, key, want); err != nil {
				t.Fatalf("Store() error = %v", err)
			}

			got, err := store.Retrieve(ctx, key)
			if err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("Retrieve() = %q, want %q", got, want)
			}

			// Store replaces existing artifacts
			replacement := []byte("replacement")
			if err := store.Store(ctx, key, replacement); err != nil {
				t.Fatalf("Store() overwrite error = %v", err)
			}
			got, err = store.Retrieve(ctx, key)
			if err != nil {
				t.Fatalf("Retrieve() after overwrite error = %v", err)
			}
			if !bytes.Equal(got, replacement) {
				t.Errorf("Retrieve() after overwrite = %q, want %q", got, replacement)
			}
		})
	}
}

func TestRetrieveMissingArtifact(t *testing.T) {
	for name, newStore := range testStores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)

			_, err := store.Retrieve(context.Background(), Key("nosuchlink", "content.jwe"))
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("Retrieve() error = %v, want ErrNotFound match", err)
			}

			var storageErr *Error
			if !errors.As(err, &storageErr) {
				t.Fatalf("Retrieve() error is %T, want *Error", err)
			}
			if storageErr.Op() != OpRetrieve {
				t.Errorf("Op() = %q, want %q", storageErr.Op(), OpRetrieve)
			}
		})
	}
}

func TestDeleteRemovesAllLinkArtifacts(t *testing.T) {
	for name, newStore := range testStores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			keep := Key("link2", "content.jwe")
			artifacts := []string{
				Key("link1", "content.jwe"),
				Key("link1", "manifest.json"),
				Key("link1", "access/evt-1.json"),
				keep,
			}
			for _, key := range artifacts {
				if err := store.Store(ctx, key, []byte("data")); err != nil {
					t.Fatalf("Store(%q) error = %v", key, err)
				}
			}

			if err := store.Delete(ctx, "link1"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}

			for _, key := range artifacts[:3] {
				if _, err := store.Retrieve(ctx, key); !errors.Is(err, ErrNotFound) {
					t.Errorf("Retrieve(%q) after delete error = %v, want ErrNotFound match", key, err)
				}
			}

			// Other links are untouched
			if _, err := store.Retrieve(ctx, keep); err != nil {
				t.Errorf("Retrieve(%q) error = %v, want artifact kept", keep, err)
			}

			// Deleting an id with no artifacts is not an error
			if err := store.Delete(ctx, "neverexisted"); err != nil {
				t.Errorf("Delete() of unknown id error = %v", err)
			}
		})
	}
}

func TestNestedArtifactKeys(t *testing.T) {
	for name, newStore := range testStores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			key := Key("link1", "access/0d9f6a44.json")
			if err := store.Store(ctx, key, []byte(`{"recipient":"x"}`)); err != nil {
				t.Fatalf("Store() error = %v", err)
			}
			if _, err := store.Retrieve(ctx, key); err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
		})
	}
}

func TestCompareAndSwap(t *testing.T) {
	for name, newStore := range testStores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			key := Key("link1", "metadata.json")
			if err := store.Store(ctx, key, []byte("v1")); err != nil {
				t.Fatalf("Store() error = %v", err)
			}

			// Matching expectation swaps
			swapped, err := store.CompareAndSwap(ctx, key, []byte("v1"), []byte("v2"))
			if err != nil {
				t.Fatalf("CompareAndSwap() error = %v", err)
			}
			if !swapped {
				t.Fatal("CompareAndSwap() = false, want swap")
			}

			got, err := store.Retrieve(ctx, key)
			if err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
			if string(got) != "v2" {
				t.Errorf("Retrieve() after swap = %q, want %q", got, "v2")
			}

			// Stale expectation does not swap and does not change the value
			swapped, err = store.CompareAndSwap(ctx, key, []byte("v1"), []byte("v3"))
			if err != nil {
				t.Fatalf("CompareAndSwap() with stale expectation error = %v", err)
			}
			if swapped {
				t.Fatal("CompareAndSwap() with stale expectation = true, want no swap")
			}

			got, err = store.Retrieve(ctx, key)
			if err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
			if string(got) != "v2" {
				t.Errorf("value after failed swap = %q, want %q", got, "v2")
			}

			// Missing keys report not found
			_, err = store.CompareAndSwap(ctx, Key("link1", "missing.json"), []byte("a"), []byte("b"))
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("CompareAndSwap() on missing key error = %v, want ErrNotFound match", err)
			}
		})
	}
}

// TestCompareAndSwapConcurrent increments a counter from many goroutines
// through the compare-and-swap loop the access-counting code uses and
// verifies no increment is lost.
func TestCompareAndSwapConcurrent(t *testing.T) {
	for name, newStore := range testStores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			key := Key("link1", "metadata.json")
			if err := store.Store(ctx, key, []byte("0")); err != nil {
				t.Fatalf("Store() error = %v", err)
			}

			const goroutines = 20

			var wg sync.WaitGroup
			for range goroutines {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						current, err := store.Retrieve(ctx, key)
						if err != nil {
							t.Errorf("Retrieve() error = %v", err)
							return
						}
						var n int
						fmt.Sscanf(string(current), "%d", &n)
						next := fmt.Appendf(nil, "%d", n+1)

						swapped, err := store.CompareAndSwap(ctx, key, current, next)
						if err != nil {
							t.Errorf("CompareAndSwap() error = %v", err)
							return
						}
						if swapped {
							return
						}
					}
				}()
			}
			wg.Wait()

			final, err := store.Retrieve(ctx, key)
			if err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
			if string(final) != fmt.Sprintf("%d", goroutines) {
				t.Errorf("final counter = %s, want %d", final, goroutines)
			}
		})
	}
}

func TestKeyValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"no separator", "linkonly"},
		{"empty link id", "/content.jwe"},
		{"empty artifact", "link1/"},
		{"dot element", "link1/./content.jwe"},
		{"parent traversal", "link1/../link2/content.jwe"},
		{"backslash", `link1\content.jwe`},
		{"nul byte", "link1/content\x00.jwe"},
	}

	for name, newStore := range testStores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					if err := store.Store(ctx, tt.key, []byte("x")); err == nil {
						t.Errorf("Store(%q) expected error, got nil", tt.key)
					}
					if _, err := store.Retrieve(ctx, tt.key); err == nil {
						t.Errorf("Retrieve(%q) expected error, got nil", tt.key)
					}
				})
			}
		})
	}
}

func TestLinkIDValidation(t *testing.T) {
	invalid := []string{"", "a/b", `a\b`, ".", "..", "a\x00b"}

	for name, newStore := range testStores() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)

			for _, linkID := range invalid {
				if err := store.Delete(context.Background(), linkID); err == nil {
					t.Errorf("Delete(%q) expected error, got nil", linkID)
				}
			}
		})
	}
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key          string
		wantLinkID   string
		wantArtifact string
		wantOK       bool
	}{
		{"link1/content.jwe", "link1", "content.jwe", true},
		{"link1/access/evt.json", "link1", "access/evt.json", true},
		{"nolink", "", "", false},
		{"/artifact", "", "", false},
		{"link1/", "", "", false},
	}

	for _, tt := range tests {
		linkID, artifact, ok := SplitKey(tt.key)
		if linkID != tt.wantLinkID || artifact != tt.wantArtifact || ok != tt.wantOK {
			t.Errorf("SplitKey(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.key, linkID, artifact, ok, tt.wantLinkID, tt.wantArtifact, tt.wantOK)
		}
	}
}

func TestBaseURLTrimsTrailingSlash(t *testing.T) {
	store := NewMemoryStore(testBaseURL + "/")
	if store.BaseURL() != testBaseURL {
		t.Errorf("BaseURL() = %q, want %q", store.BaseURL(), testBaseURL)
	}
}

// TestMemoryStoreIsolation verifies callers cannot mutate stored artifacts
// through retained or returned slices.
func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore(testBaseURL)
	ctx := context.Background()

	key := Key("link1", "content.jwe")
	data := []byte("original")
	if err := store.Store(ctx, key, data); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	// Mutating the slice passed in must not change the stored artifact
	data[0] = 'X'

	got, err := store.Retrieve(ctx, key)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("stored artifact mutated through caller slice: %q", got)
	}

	// Mutating the returned slice must not change the stored artifact either
	got[0] = 'Y'

	again, err := store.Retrieve(ctx, key)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if string(again) != "original" {
		t.Errorf("stored artifact mutated through returned slice: %q", again)
	}
}

// TestFSStoreSurvivesReopen verifies artifacts persist across store
// instances pointed at the same directory.
func TestFSStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFSStore(dir, testBaseURL)
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}

	key := Key("link1", "content.jwe")
	if err := first.Store(ctx, key, []byte("durable")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	first.Close()

	second, err := NewFSStore(dir, testBaseURL)
	if err != nil {
		t.Fatalf("NewFSStore() reopen error = %v", err)
	}
	defer second.Close()

	got, err := second.Retrieve(ctx, key)
	if err != nil {
		t.Fatalf("Retrieve() after reopen error = %v", err)
	}
	if string(got) != "durable" {
		t.Errorf("Retrieve() after reopen = %q, want %q", got, "durable")
	}
}
