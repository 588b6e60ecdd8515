// Package convert sequences the normalization engine over one raw
// input file: infer, unnest, prune, repair, write. Each call is one
// independent unit of work; nothing is shared across invocations.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/opendata-br/govetl/internal/columnar"
	"github.com/opendata-br/govetl/internal/storage"
	"github.com/opendata-br/govetl/internal/table"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// Options configure one conversion.
type Options struct {
	// RootPath names the column holding the nested record payload.
	// Empty means the decoded array is already the final table.
	RootPath string

	// Compression selects the columnar codec (columnar.CompressionSnappy
	// by default).
	Compression string

	// Statistics embeds per-column min/max/null-count when true.
	Statistics bool

	// SampleSize bounds the schema-inference sample. Zero selects
	// table.DefaultSampleSize; negative reads the whole input.
	SampleSize int

	// SourceURL is recorded in the manifest when known.
	SourceURL string
}

// Result reports a completed conversion.
type Result struct {
	Shape    table.Shape
	Written  bool
	Checksum string
	Bytes    int64
}

// Converter converts raw JSON files into stored parquet units.
type Converter struct {
	store     storage.Store
	technical table.TechnicalColumns
	log       *slog.Logger
}

// New creates a Converter backed by the given store.
func New(store storage.Store) *Converter {
	return &Converter{
		store:     store,
		technical: table.DefaultTechnicalColumns(),
		log:       slog.With("component", "convert"),
	}
}

// Convert runs the full pipeline for one raw file and commits the
// result to the store.
//
// An input with no records short-circuits: the reported shape is
// (0, 0), nothing is written, and the raw file is left in place. On
// success the raw file is deleted; any earlier failure leaves it
// untouched for inspection and retry.
func (c *Converter) Convert(ctx context.Context, rawPath string, ref storage.UnitRef, opts Options) (*Result, error) {
	data, err := os.ReadFile(rawPath)
	if err != nil {
		return nil, fmt.Errorf("read raw file %s: %w", rawPath, err)
	}

	t, err := normalize(data, opts, c.technical)
	if err != nil {
		return nil, err
	}
	if t.Rows() == 0 {
		c.log.Info("no records, skipping write", "unit", ref.String())
		return &Result{Shape: table.Shape{}}, nil
	}

	out, err := columnar.Write(t, writeOptions(opts))
	if err != nil {
		return nil, err
	}

	if err := c.store.WriteParquet(ctx, ref, out.Data); err != nil {
		return nil, fmt.Errorf("write parquet: %w", err)
	}
	if err := c.store.WriteManifest(ctx, ref, buildManifest(ref, out, opts)); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := os.Remove(rawPath); err != nil {
		return nil, fmt.Errorf("remove raw file %s: %w", rawPath, err)
	}

	return &Result{
		Shape:    out.Shape,
		Written:  true,
		Checksum: out.Checksum,
		Bytes:    int64(len(out.Data)),
	}, nil
}

// File converts one raw file into one parquet file on the local
// filesystem, without a store. It is the single-unit entry point used
// by tests and one-off invocations; semantics match Convert except no
// manifest is produced.
func File(rawPath, destPath string, opts Options) (table.Shape, error) {
	data, err := os.ReadFile(rawPath)
	if err != nil {
		return table.Shape{}, fmt.Errorf("read raw file %s: %w", rawPath, err)
	}

	t, err := normalize(data, opts, table.DefaultTechnicalColumns())
	if err != nil {
		return table.Shape{}, err
	}
	if t.Rows() == 0 {
		return table.Shape{}, nil
	}

	shape, err := columnar.WriteFile(t, destPath, writeOptions(opts))
	if err != nil {
		return table.Shape{}, err
	}
	if err := os.Remove(rawPath); err != nil {
		return table.Shape{}, fmt.Errorf("remove raw file %s: %w", rawPath, err)
	}
	return shape, nil
}

// normalize runs the in-memory stages in their fixed order.
func normalize(data []byte, opts Options, technical table.TechnicalColumns) (*table.Table, error) {
	sample := opts.SampleSize
	if sample == 0 {
		sample = table.DefaultSampleSize
	}

	t, err := table.Infer(data, sample)
	if err != nil {
		return nil, err
	}
	if t.Rows() == 0 {
		return t, nil
	}

	if err := t.UnnestRoot(opts.RootPath); err != nil {
		return nil, err
	}
	t.Prune(technical)
	if err := t.RepairByteLists(); err != nil {
		return nil, err
	}
	return t, nil
}

func writeOptions(opts Options) columnar.Options {
	w := columnar.Options{Compression: opts.Compression}
	if opts.Statistics {
		stats := columnar.DefaultStatistics()
		w.Statistics = &stats
	}
	return w
}

func buildManifest(ref storage.UnitRef, out *columnar.Output, opts Options) *storage.Manifest {
	compression := opts.Compression
	if compression == "" {
		compression = columnar.CompressionSnappy
	}
	return &storage.Manifest{
		Unit: storage.UnitInfo{
			API:   ref.API,
			Group: ref.Group,
			Key:   ref.Key,
			URL:   opts.SourceURL,
		},
		Rows:        int64(out.Shape.Rows),
		Cols:        int64(out.Shape.Cols),
		ByteSize:    int64(len(out.Data)),
		Checksum:    out.Checksum,
		Compression: compression,
		Columns:     out.Columns,
		Producer: storage.ProducerInfo{
			Name:    "govetl",
			Version: Version,
			GitSHA:  GitSHA,
		},
		CreatedAt: time.Now().UTC(),
	}
}
