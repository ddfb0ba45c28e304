package kvstore

import (
	"io"
	"log"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// setupTestStore creates a temporary store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(path, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// corruptKey writes raw non-JSON text under key, bypassing Set.
func corruptKey(t *testing.T, s *Store, key, raw string) {
	t.Helper()

	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.conn.Exec(query, key, raw, time.Now().UTC().Format(time.RFC3339)); err != nil {
		t.Fatalf("failed to corrupt key %q: %v", key, err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	store := setupTestStore(t)

	t.Run("string", func(t *testing.T) {
		if err := store.Set("myKey", "myValue"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if got := Get(store, "myKey", "fallback"); got != "myValue" {
			t.Errorf("got %q, want %q", got, "myValue")
		}
	})

	t.Run("number", func(t *testing.T) {
		if err := store.Set("myNumberKey", 123); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if got := Get(store, "myNumberKey", 0); got != 123 {
			t.Errorf("got %d, want 123", got)
		}
	})

	t.Run("boolean", func(t *testing.T) {
		if err := store.Set("myBooleanKey", true); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if got := Get(store, "myBooleanKey", false); !got {
			t.Error("got false, want true")
		}
	})

	t.Run("object", func(t *testing.T) {
		type record struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		}
		want := record{ID: 1, Name: "Test"}
		if err := store.Set("myObjectKey", want); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got := Get(store, "myObjectKey", record{})
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("array", func(t *testing.T) {
		want := []string{"a", "b", "c"}
		if err := store.Set("myArrayKey", want); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got := Get(store, "myArrayKey", []string(nil))
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestGetMissingKeyReturnsFallback(t *testing.T) {
	store := setupTestStore(t)

	if got := Get(store, "nonExistentKey", "fallbackValue"); got != "fallbackValue" {
		t.Errorf("got %q, want fallback", got)
	}
	if got := Get(store, "nonExistentNumber", 42); got != 42 {
		t.Errorf("got %d, want fallback 42", got)
	}
}

func TestGetCorruptValueReturnsFallback(t *testing.T) {
	store := setupTestStore(t)

	corruptKey(t, store, "broken", "{not json at all")
	if got := Get(store, "broken", "fallback"); got != "fallback" {
		t.Errorf("got %q, want fallback for corrupt value", got)
	}

	// Valid JSON of the wrong shape also falls back.
	corruptKey(t, store, "wrongShape", `"a string"`)
	type record struct {
		ID int `json:"id"`
	}
	if got := Get(store, "wrongShape", record{ID: -1}); got.ID != -1 {
		t.Errorf("got %+v, want fallback for mistyped value", got)
	}
}

func TestSetOverwrites(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Set("key", "first"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set("key", "second"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := Get(store, "key", ""); got != "second" {
		t.Errorf("got %q, want %q", got, "second")
	}
}

func TestDelete(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Set("key", "value"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Delete("key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := Get(store, "key", "gone"); got != "gone" {
		t.Errorf("got %q after delete, want fallback", got)
	}

	// Deleting an absent key is a no-op.
	if err := store.Delete("neverExisted"); err != nil {
		t.Errorf("Delete of absent key failed: %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	logger := log.New(io.Discard, "", 0)

	store, err := Open(path, logger)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.Set("durable", []int{1, 2, 3}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path, logger)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got := Get(reopened, "durable", []int(nil))
	if !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("got %v after reopen, want [1 2 3]", got)
	}
}
