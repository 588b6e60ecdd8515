// Package storage abstracts where converted parquet files land: local
// filesystem for the default crawl layout, S3 or GCS for lake-backed
// deployments.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opendata-br/govetl/internal/columnar"
)

// UnitRef identifies one processing unit's destination: an endpoint key
// within a group within an API namespace.
type UnitRef struct {
	API   string
	Group string
	Key   string
}

// Path returns the storage key for the unit's parquet file.
func (r UnitRef) Path(prefix string) string {
	return fmt.Sprintf("%s%s/%s/%s.parquet", prefix, r.API, r.Group, r.Key)
}

// ManifestPath returns the storage key for the unit's manifest sidecar.
func (r UnitRef) ManifestPath(prefix string) string {
	return fmt.Sprintf("%s%s/%s/%s.manifest.json", prefix, r.API, r.Group, r.Key)
}

// RawName returns the temp filename the raw JSON download uses before
// conversion.
func (r UnitRef) RawName() string {
	return r.Key + "_temp.json"
}

func (r UnitRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.API, r.Group, r.Key)
}

// Manifest describes one written unit: shape, checksum, compression,
// and the per-column statistics embedded at write time.
type Manifest struct {
	Unit        UnitInfo               `json:"unit"`
	Rows        int64                  `json:"rows"`
	Cols        int64                  `json:"cols"`
	ByteSize    int64                  `json:"byte_size"`
	Checksum    string                 `json:"checksum"`
	Compression string                 `json:"compression"`
	Columns     []columnar.ColumnStats `json:"columns,omitempty"`
	Producer    ProducerInfo           `json:"producer"`
	CreatedAt   time.Time              `json:"created_at"`
}

// UnitInfo identifies the unit inside the manifest document.
type UnitInfo struct {
	API   string `json:"api"`
	Group string `json:"group"`
	Key   string `json:"key"`
	URL   string `json:"url,omitempty"`
}

// ProducerInfo describes the software that produced the file.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha,omitempty"`
}

// MarshalJSON returns the manifest as indented JSON bytes.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type Alias Manifest
	return json.MarshalIndent((*Alias)(m), "", "  ")
}

// Store abstracts writing converted units to storage.
type Store interface {
	// WriteParquet writes parquet bytes to storage.
	WriteParquet(ctx context.Context, ref UnitRef, data []byte) error

	// WriteManifest writes a manifest sidecar to storage.
	WriteManifest(ctx context.Context, ref UnitRef, manifest *Manifest) error

	// Exists checks if a unit's parquet file already exists.
	Exists(ctx context.Context, ref UnitRef) (bool, error)

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// Config selects and configures the storage backend.
type Config struct {
	Backend    string `yaml:"backend"` // "local" | "s3" | "gcs"
	LocalDir   string `yaml:"local_dir"`
	Bucket     string `yaml:"bucket"`
	Prefix     string `yaml:"prefix"`
	S3Endpoint string `yaml:"s3_endpoint"`
	S3Region   string `yaml:"s3_region"`
}

// NewStore creates the configured storage backend.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		dir := cfg.LocalDir
		if dir == "" {
			dir = "data"
		}
		return NewLocalStore(dir, cfg.Prefix)
	case "s3":
		return NewS3Store(cfg.Bucket, cfg.Prefix, cfg.S3Endpoint, cfg.S3Region)
	case "gcs":
		return NewGCSStore(cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
