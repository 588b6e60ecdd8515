package table

import (
	"errors"
	"testing"
)

func TestRepairByteListsIntColumn(t *testing.T) {
	// "Ana" as character codes.
	tbl := mustInfer(t, `[{"nome": [65, 110, 97]}, {"nome": [66, 111, 98]}]`)

	if err := tbl.RepairByteLists(); err != nil {
		t.Fatalf("RepairByteLists failed: %v", err)
	}

	col := tbl.Column("nome")
	if col.Type.Kind != KindString {
		t.Fatalf("type = %s, want string", col.Type)
	}
	if got := col.Values[0].(string); got != "Ana" {
		t.Errorf("nome[0] = %q, want Ana", got)
	}
	if got := col.Values[1].(string); got != "Bob" {
		t.Errorf("nome[1] = %q, want Bob", got)
	}
}

func TestRepairByteListsAccented(t *testing.T) {
	// "José": the é is the UTF-8 pair 195, 169.
	tbl := mustInfer(t, `[{"nome": [74, 111, 115, 195, 169]}]`)

	if err := tbl.RepairByteLists(); err != nil {
		t.Fatalf("RepairByteLists failed: %v", err)
	}
	if got := tbl.Column("nome").Values[0].(string); got != "José" {
		t.Errorf("nome[0] = %q, want José", got)
	}
}

func TestRepairByteListsFloatColumn(t *testing.T) {
	// A single fractional element widens the column to list(float64);
	// truncation still recovers the text.
	tbl := mustInfer(t, `[{"nome": [65.0, 110.9, 97]}]`)

	col := tbl.Column("nome")
	if col.Type.Elem == nil || col.Type.Elem.Kind != KindFloat64 {
		t.Fatalf("type = %s, want list(float64)", col.Type)
	}
	if err := tbl.RepairByteLists(); err != nil {
		t.Fatalf("RepairByteLists failed: %v", err)
	}
	if got := tbl.Column("nome").Values[0].(string); got != "Ana" {
		t.Errorf("nome[0] = %q, want Ana", got)
	}
}

func TestRepairByteListsNullStaysNull(t *testing.T) {
	tbl := mustInfer(t, `[{"nome": [65]}, {"nome": null}]`)

	if err := tbl.RepairByteLists(); err != nil {
		t.Fatalf("RepairByteLists failed: %v", err)
	}
	col := tbl.Column("nome")
	if col.Values[1] != nil {
		t.Errorf("nome[1] = %v, want nil", col.Values[1])
	}
}

func TestRepairByteListsInvalidUTF8(t *testing.T) {
	// 0xFF is never valid UTF-8.
	tbl := mustInfer(t, `[{"nome": [255, 254]}]`)

	err := tbl.RepairByteLists()
	if !errors.Is(err, ErrEncoding) {
		t.Errorf("err = %v, want ErrEncoding", err)
	}
}

func TestRepairByteListsLeavesOtherColumns(t *testing.T) {
	tbl := mustInfer(t, `[{"id": 1, "nome": "texto", "tags": [{"k": 1}]}]`)

	if err := tbl.RepairByteLists(); err != nil {
		t.Fatalf("RepairByteLists failed: %v", err)
	}
	if tbl.Column("id").Type.Kind != KindInt64 {
		t.Error("id should stay int64")
	}
	if tbl.Column("nome").Type.Kind != KindString {
		t.Error("nome should stay string")
	}
	if tbl.Column("tags").Type.Kind != KindList {
		t.Error("tags should stay a list")
	}
}
