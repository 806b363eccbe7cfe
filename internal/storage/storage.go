package storage

import (
	"errors"
	"maps"
	"sync"
)

var (
	// ErrNotMapping indicates the stored configuration document is not a key-value mapping.
	ErrNotMapping = errors.New("collector config is not a mapping")
)

// Storage provides access to the collector configuration document.
type Storage interface {
	// Load returns the current document. A document that was never written is empty.
	Load() (map[string]any, error)
	// Merge shallow-merges data into the document and returns the merged result.
	Merge(data map[string]any) (map[string]any, error)
}

// MemoryStorage keeps the configuration document in-memory and guards access with a RWMutex.
// It backs handlers in tests where no file on disk is wanted.
type MemoryStorage struct {
	mu  sync.RWMutex
	doc map[string]any
}

// NewMemoryStorage initialises an empty in-memory document.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		doc: map[string]any{},
	}
}

// Load returns a shallow copy of the current document.
func (s *MemoryStorage) Load() (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.doc), nil
}

// Merge overwrites every top-level key of data in the document.
func (s *MemoryStorage) Merge(data map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maps.Copy(s.doc, data)
	return maps.Clone(s.doc), nil
}
