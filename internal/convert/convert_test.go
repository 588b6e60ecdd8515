package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/opendata-br/govetl/internal/columnar"
	"github.com/opendata-br/govetl/internal/storage"
	"github.com/opendata-br/govetl/internal/table"
)

func writeRaw(t *testing.T, dir, payload string) string {
	t.Helper()
	path := filepath.Join(dir, "dados_temp.json")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write raw file: %v", err)
	}
	return path
}

func newLocalConverter(t *testing.T) (*Converter, *storage.LocalStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	return New(store), store
}

func TestConvertEnvelopePayload(t *testing.T) {
	conv, store := newLocalConverter(t)
	rawDir := t.TempDir()

	// Typical paginated envelope: record list under "resultado",
	// pagination metadata alongside, one byte-list encoded name.
	raw := writeRaw(t, rawDir, `[{
		"resultado": [
			{"id": 1, "nome": [74, 111, 115, 195, 169]},
			{"id": 2, "nome": [65, 110, 97]}
		],
		"totalRegistros": 2,
		"totalPaginas": 1,
		"dataHoraConsulta": "2024-03-01T10:00:00"
	}]`)

	ref := storage.UnitRef{API: "compras", Group: "fornecedores", Key: "dados"}
	result, err := conv.Convert(context.Background(), raw, ref, Options{
		RootPath:   "resultado",
		Statistics: true,
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if !result.Written {
		t.Fatal("expected a written unit")
	}
	if result.Shape.Rows != 2 || result.Shape.Cols != 2 {
		t.Errorf("shape = %s, want (2, 2)", result.Shape)
	}

	// Raw file is gone after success.
	if _, err := os.Stat(raw); !os.IsNotExist(err) {
		t.Error("raw file should be removed after successful conversion")
	}

	// Parquet output is readable and has the repaired text.
	data, err := os.ReadFile(filepath.Join(store.BaseDir(), ref.Path("")))
	if err != nil {
		t.Fatalf("read parquet output: %v", err)
	}
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	if f.NumRows() != 2 {
		t.Errorf("NumRows = %d, want 2", f.NumRows())
	}

	// Manifest sidecar carries the checksum and column stats.
	mdata, err := os.ReadFile(filepath.Join(store.BaseDir(), ref.ManifestPath("")))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest storage.Manifest
	if err := json.Unmarshal(mdata, &manifest); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if manifest.Rows != 2 || manifest.Checksum != result.Checksum {
		t.Errorf("manifest rows/checksum = %d/%s, want 2/%s", manifest.Rows, manifest.Checksum, result.Checksum)
	}
	if err := columnar.VerifyChecksum(data, manifest.Checksum); err != nil {
		t.Errorf("stored parquet does not match manifest checksum: %v", err)
	}
	if len(manifest.Columns) != 2 {
		t.Errorf("manifest columns = %d, want 2", len(manifest.Columns))
	}
}

func TestConvertSingleObjectEnvelope(t *testing.T) {
	conv, _ := newLocalConverter(t)
	raw := writeRaw(t, t.TempDir(), `{"resultado": [{"id": 1, "nome": "Ana"}, {"id": 2, "nome": "Beto"}]}`)

	result, err := conv.Convert(context.Background(), raw,
		storage.UnitRef{API: "a", Group: "g", Key: "dados"},
		Options{RootPath: "resultado"})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.Shape.Rows != 2 || result.Shape.Cols != 2 {
		t.Errorf("shape = %s, want (2, 2)", result.Shape)
	}
}

func TestConvertEmptyRecordList(t *testing.T) {
	// An envelope with an empty record list is an empty payload: no
	// output, shape (0, 0), raw file kept.
	conv, store := newLocalConverter(t)
	raw := writeRaw(t, t.TempDir(), `{"resultado": []}`)
	ref := storage.UnitRef{API: "a", Group: "g", Key: "dados"}

	result, err := conv.Convert(context.Background(), raw, ref, Options{RootPath: "resultado"})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.Written {
		t.Error("empty record list should not produce output")
	}
	if result.Shape.Rows != 0 || result.Shape.Cols != 0 {
		t.Errorf("shape = %s, want (0, 0)", result.Shape)
	}
	if exists, _ := store.Exists(context.Background(), ref); exists {
		t.Error("no parquet file should have been written")
	}
	if _, err := os.Stat(raw); err != nil {
		t.Errorf("raw file should be kept: %v", err)
	}
}

func TestFileEmptyRecordListWritesNothing(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, `{"resultado": []}`)
	dest := filepath.Join(dir, "dados.parquet")

	shape, err := File(raw, dest, Options{RootPath: "resultado"})
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if shape.Rows != 0 || shape.Cols != 0 {
		t.Errorf("shape = %s, want (0, 0)", shape)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("no file should be written for an empty record list")
	}
}

func TestConvertEmptyPayload(t *testing.T) {
	conv, store := newLocalConverter(t)
	raw := writeRaw(t, t.TempDir(), `[]`)
	ref := storage.UnitRef{API: "a", Group: "g", Key: "dados"}

	result, err := conv.Convert(context.Background(), raw, ref, Options{})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.Written {
		t.Error("empty payload should not produce output")
	}
	if result.Shape.Rows != 0 || result.Shape.Cols != 0 {
		t.Errorf("shape = %s, want (0, 0)", result.Shape)
	}

	// Raw file kept for inspection, parquet absent.
	if _, err := os.Stat(raw); err != nil {
		t.Errorf("raw file should be kept: %v", err)
	}
	if exists, _ := store.Exists(context.Background(), ref); exists {
		t.Error("no parquet file should have been written")
	}
}

func TestConvertParseError(t *testing.T) {
	conv, _ := newLocalConverter(t)
	raw := writeRaw(t, t.TempDir(), `{"broken":`)

	_, err := conv.Convert(context.Background(), raw, storage.UnitRef{API: "a", Group: "g", Key: "dados"}, Options{})
	if !errors.Is(err, table.ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
	if _, statErr := os.Stat(raw); statErr != nil {
		t.Errorf("raw file should survive a failed conversion: %v", statErr)
	}
}

func TestConvertEncodingError(t *testing.T) {
	conv, _ := newLocalConverter(t)
	raw := writeRaw(t, t.TempDir(), `[{"nome": [255, 254]}]`)

	_, err := conv.Convert(context.Background(), raw, storage.UnitRef{API: "a", Group: "g", Key: "dados"}, Options{})
	if !errors.Is(err, table.ErrEncoding) {
		t.Errorf("err = %v, want ErrEncoding", err)
	}
	if _, statErr := os.Stat(raw); statErr != nil {
		t.Errorf("raw file should survive a failed conversion: %v", statErr)
	}
}

func TestConvertMissingRawFile(t *testing.T) {
	conv, _ := newLocalConverter(t)
	_, err := conv.Convert(context.Background(), filepath.Join(t.TempDir(), "nope.json"), storage.UnitRef{Key: "k"}, Options{})
	if err == nil {
		t.Error("missing raw file should fail")
	}
}

func TestFileConversion(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, `[{"id": 1}, {"id": 2}, {"id": 3}]`)
	dest := filepath.Join(dir, "out", "dados.parquet")

	shape, err := File(raw, dest, Options{})
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if shape.Rows != 3 || shape.Cols != 1 {
		t.Errorf("shape = %s, want (3, 1)", shape)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("destination missing: %v", err)
	}
	if _, err := os.Stat(raw); !os.IsNotExist(err) {
		t.Error("raw file should be removed after successful conversion")
	}
}

func TestFileEmptyPayloadWritesNothing(t *testing.T) {
	dir := t.TempDir()
	raw := writeRaw(t, dir, `[]`)
	dest := filepath.Join(dir, "dados.parquet")

	shape, err := File(raw, dest, Options{})
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if shape.Rows != 0 || shape.Cols != 0 {
		t.Errorf("shape = %s, want (0, 0)", shape)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("no file should be written for an empty payload")
	}
	if _, err := os.Stat(raw); err != nil {
		t.Errorf("raw file should be kept: %v", err)
	}
}
