package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes parquet files to the local filesystem.
type LocalStore struct {
	baseDir string
	prefix  string
}

// NewLocalStore creates a new local filesystem store.
func NewLocalStore(baseDir, prefix string) (*LocalStore, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", baseDir, err)
	}

	return &LocalStore{
		baseDir: baseDir,
		prefix:  prefix,
	}, nil
}

// BaseDir returns the store's base directory.
func (s *LocalStore) BaseDir() string {
	return s.baseDir
}

// WriteParquet writes parquet bytes to the local filesystem.
func (s *LocalStore) WriteParquet(ctx context.Context, ref UnitRef, data []byte) error {
	return s.writeAtomic(filepath.Join(s.baseDir, ref.Path(s.prefix)), data)
}

// WriteManifest writes a manifest sidecar to the local filesystem.
func (s *LocalStore) WriteManifest(ctx context.Context, ref UnitRef, manifest *Manifest) error {
	data, err := manifest.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return s.writeAtomic(filepath.Join(s.baseDir, ref.ManifestPath(s.prefix)), data)
}

// writeAtomic writes data through a temp file + rename so readers never
// observe a partial file.
func (s *LocalStore) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		// Clean up temp file on rename failure
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, path, err)
	}
	return nil
}

// Exists checks if a unit's parquet file already exists.
func (s *LocalStore) Exists(ctx context.Context, ref UnitRef) (bool, error) {
	_, err := os.Stat(filepath.Join(s.baseDir, ref.Path(s.prefix)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// URI returns the canonical URI for the given key.
func (s *LocalStore) URI(key string) string {
	return "file://" + filepath.Join(s.baseDir, key)
}

// Close is a no-op for local storage.
func (s *LocalStore) Close() error {
	return nil
}
