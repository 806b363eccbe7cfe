package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const defaultFileMode fs.FileMode = 0o644

// FileStorage persists the configuration document as a YAML mapping on disk.
// Read-merge-write cycles are serialized within the process and every write
// replaces the file atomically, so readers never observe a truncated document.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage returns a store backed by the YAML file at path. The file is
// created lazily on the first Merge.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the location of the backing file.
func (s *FileStorage) Path() string {
	return s.path
}

// Load reads the document from disk. A missing file yields an empty document.
func (s *FileStorage) Load() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	return doc, err
}

// Merge creates the file with an empty mapping when absent, then overwrites
// every top-level key of data and writes the result back. An empty data set
// leaves an existing file untouched.
func (s *FileStorage) Merge(data map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensure(); err != nil {
		return nil, err
	}

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return doc, nil
	}

	maps.Copy(doc, data)
	if err := s.write(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *FileStorage) ensure() error {
	_, err := os.Stat(s.path)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat collector config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create collector config directory: %w", err)
	}
	return s.write(map[string]any{})
}

func (s *FileStorage) read() (map[string]any, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read collector config: %w", err)
	}
	return decodeDocument(raw)
}

// decodeDocument accepts an empty file or a single YAML mapping.
func decodeDocument(raw []byte) (map[string]any, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("parse collector config: %w", err)
	}

	doc := map[string]any{}
	if node.Kind == 0 || len(node.Content) == 0 {
		return doc, nil
	}

	root := node.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse collector config: %w", ErrNotMapping)
	}
	if err := root.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse collector config: %w", err)
	}
	return doc, nil
}

func (s *FileStorage) write(doc map[string]any) error {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode collector config: %w", err)
	}

	mode := defaultFileMode
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write collector config: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write collector config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync collector config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write collector config: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("write collector config: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace collector config: %w", err)
	}
	return nil
}
