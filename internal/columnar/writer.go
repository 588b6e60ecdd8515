// Package columnar serializes normalized tables to parquet with a
// compression codec and optional per-column statistics.
package columnar

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/opendata-br/govetl/internal/table"
)

// ErrSerialization is returned when a column's type or value cannot be
// represented in the parquet output.
var ErrSerialization = errors.New("type not representable in parquet")

// Compression profile identifiers. Zstd is the high-ratio codec, snappy
// the high-speed one.
const (
	CompressionSnappy = "snappy"
	CompressionZstd   = "zstd"
)

// Statistics selects which per-column statistics to compute and embed.
// Distinct counts are never computed: they require per-column hashing
// of every value and the write cost is not worth it for crawl output.
type Statistics struct {
	MinValue  bool
	MaxValue  bool
	NullCount bool
}

// DefaultStatistics enables everything that is ever computed.
func DefaultStatistics() Statistics {
	return Statistics{MinValue: true, MaxValue: true, NullCount: true}
}

// Options configure a single write.
type Options struct {
	Compression string     // CompressionSnappy (default) or CompressionZstd
	Statistics  *Statistics // nil disables statistics
}

// ColumnStats carries the embedded statistics for one column. Min and
// Max are nil for nested columns and when disabled.
type ColumnStats struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Min       any    `json:"min,omitempty"`
	Max       any    `json:"max,omitempty"`
	NullCount *int64 `json:"null_count,omitempty"`
}

// Output is the serialized artifact plus its description.
type Output struct {
	Data     []byte
	Shape    table.Shape
	Checksum string
	Columns  []ColumnStats
}

// Write serializes t to parquet in memory. The parquet schema is built
// dynamically from the table's inferred column types; every column is
// optional since any JSON field may be absent.
func Write(t *table.Table, opts Options) (*Output, error) {
	codec, err := codecFor(opts.Compression)
	if err != nil {
		return nil, err
	}
	schema, err := schemaOf(t)
	if err != nil {
		return nil, err
	}

	writerOpts := []parquet.WriterOption{
		schema,
		parquet.Compression(codec),
	}
	if opts.Statistics != nil {
		writerOpts = append(writerOpts, parquet.DataPageStatistics(true))
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[map[string]any](&buf, writerOpts...)

	rows := rowsOf(t)
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	out := &Output{
		Data:     buf.Bytes(),
		Shape:    t.Shape(),
		Checksum: Checksum(buf.Bytes()),
	}
	if opts.Statistics != nil {
		out.Columns = computeStats(t, *opts.Statistics)
	}
	return out, nil
}

// WriteFile serializes t to a single file at path, overwriting existing
// content, and returns the written shape. The write goes through a
// temp file and rename so a failed write never leaves a partial file
// at the destination.
func WriteFile(t *table.Table, path string, opts Options) (table.Shape, error) {
	out, err := Write(t, opts)
	if err != nil {
		return table.Shape{}, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return table.Shape{}, fmt.Errorf("create directory %s: %w", filepath.Dir(path), err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, out.Data, 0644); err != nil {
		return table.Shape{}, fmt.Errorf("write temp file %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return table.Shape{}, fmt.Errorf("rename %s to %s: %w", tempPath, path, err)
	}
	return out.Shape, nil
}

func codecFor(name string) (compress.Codec, error) {
	switch name {
	case "", CompressionSnappy:
		return &parquet.Snappy, nil
	case CompressionZstd:
		return &parquet.Zstd, nil
	default:
		return nil, fmt.Errorf("unknown compression profile %q", name)
	}
}

// schemaOf maps the table's column types onto a parquet group schema.
func schemaOf(t *table.Table) (*parquet.Schema, error) {
	group := parquet.Group{}
	for _, col := range t.Columns {
		node, err := nodeOf(col.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		group[col.Name] = parquet.Optional(node)
	}
	return parquet.NewSchema("records", group), nil
}

func nodeOf(t table.Type) (parquet.Node, error) {
	switch t.Kind {
	case table.KindNull:
		// All-null column: carried as an optional string whose values
		// are all null.
		return parquet.String(), nil
	case table.KindBool:
		return parquet.Leaf(parquet.BooleanType), nil
	case table.KindInt64:
		return parquet.Int(64), nil
	case table.KindFloat64:
		return parquet.Leaf(parquet.DoubleType), nil
	case table.KindString:
		return parquet.String(), nil
	case table.KindBinary:
		return parquet.Leaf(parquet.ByteArrayType), nil
	case table.KindList:
		elem := table.Type{Kind: table.KindNull}
		if t.Elem != nil {
			elem = *t.Elem
		}
		node, err := nodeOf(elem)
		if err != nil {
			return nil, err
		}
		return parquet.List(parquet.Optional(node)), nil
	case table.KindStruct:
		group := parquet.Group{}
		for _, f := range t.Fields {
			node, err := nodeOf(f.Type)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			group[f.Name] = parquet.Optional(node)
		}
		return group, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrSerialization, t)
	}
}

// rowsOf converts the column-major table into the row maps consumed by
// the generic writer.
func rowsOf(t *table.Table) []map[string]any {
	n := t.Rows()
	rows := make([]map[string]any, n)
	for r := 0; r < n; r++ {
		row := make(map[string]any, len(t.Columns))
		for i := range t.Columns {
			row[t.Columns[i].Name] = plainValue(t.Columns[i].Values[r])
		}
		rows[r] = row
	}
	return rows
}

// plainValue strips the ordered-object wrapper so nested values are the
// maps and slices the parquet deconstructor understands.
func plainValue(v any) any {
	switch x := v.(type) {
	case *table.Object:
		if x == nil {
			return nil
		}
		m := make(map[string]any, len(x.Keys))
		for _, k := range x.Keys {
			m[k] = plainValue(x.Values[k])
		}
		return m
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plainValue(e)
		}
		return out
	default:
		return v
	}
}
