package storage

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewMemoryStorageStartsEmpty(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()

	got, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty document, got %v", got)
	}

	// ensure mutation safety
	got["leak"] = true
	again, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := again["leak"]; ok {
		t.Fatalf("expected defensive copy, got %v", again)
	}
}

func TestMemoryStorageMergeOverwritesKeys(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	if _, err := store.Merge(map[string]any{"source_type": "postgresql", "host": "localhost"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Merge(map[string]any{"host": "db.internal", "port": 5432})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]any{"source_type": "postgresql", "host": "db.internal", "port": 5432}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("expected %s=%v, got %v", key, value, got[key])
		}
	}
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	store := NewMemoryStorage()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(2)

		go func(offset int) {
			defer wg.Done()
			if _, err := store.Merge(map[string]any{fmt.Sprintf("key_%d", offset): offset}); err != nil {
				t.Errorf("Merge failed: %v", err)
			}
		}(i)

		go func() {
			defer wg.Done()
			if _, err := store.Load(); err != nil {
				t.Errorf("Load failed: %v", err)
			}
		}()
	}

	wg.Wait()

	got, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 32 {
		t.Fatalf("expected 32 keys, got %d", len(got))
	}
}
