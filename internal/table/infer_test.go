package table

import (
	"errors"
	"testing"
)

func TestInferArrayOfObjects(t *testing.T) {
	data := []byte(`[
		{"id": 1, "nome": "Alice", "ativo": true},
		{"id": 2, "nome": "Bob", "ativo": false},
		{"id": 3, "nome": "Carol", "ativo": true}
	]`)

	tbl, err := Infer(data, DefaultSampleSize)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}

	shape := tbl.Shape()
	if shape.Rows != 3 || shape.Cols != 3 {
		t.Fatalf("shape = %s, want (3, 3)", shape)
	}

	// Column order follows first appearance.
	wantNames := []string{"id", "nome", "ativo"}
	for i, name := range wantNames {
		if tbl.Columns[i].Name != name {
			t.Errorf("column %d = %q, want %q", i, tbl.Columns[i].Name, name)
		}
	}

	id := tbl.Column("id")
	if id.Type.Kind != KindInt64 {
		t.Errorf("id type = %s, want int64", id.Type)
	}
	if got := id.Values[1].(int64); got != 2 {
		t.Errorf("id[1] = %d, want 2", got)
	}
	if got := tbl.Column("nome").Values[0].(string); got != "Alice" {
		t.Errorf("nome[0] = %q, want Alice", got)
	}
	if got := tbl.Column("ativo").Values[2].(bool); got != true {
		t.Errorf("ativo[2] = %v, want true", got)
	}
}

func TestInferKeyUnion(t *testing.T) {
	data := []byte(`[
		{"a": 1},
		{"a": 2, "b": "x"},
		{"b": "y"}
	]`)

	tbl, err := Infer(data, DefaultSampleSize)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}

	if shape := tbl.Shape(); shape.Rows != 3 || shape.Cols != 2 {
		t.Fatalf("shape = %s, want (3, 2)", shape)
	}

	// Missing keys yield nulls.
	a := tbl.Column("a")
	if a.Values[2] != nil {
		t.Errorf("a[2] = %v, want nil", a.Values[2])
	}
	b := tbl.Column("b")
	if b.Values[0] != nil {
		t.Errorf("b[0] = %v, want nil", b.Values[0])
	}
	if got := b.Values[2].(string); got != "y" {
		t.Errorf("b[2] = %q, want y", got)
	}
}

func TestInferSingleObject(t *testing.T) {
	tbl, err := Infer([]byte(`{"dados": {"id": 7}}`), DefaultSampleSize)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if shape := tbl.Shape(); shape.Rows != 1 || shape.Cols != 1 {
		t.Fatalf("shape = %s, want (1, 1)", shape)
	}
	if tbl.Columns[0].Type.Kind != KindStruct {
		t.Errorf("dados type = %s, want struct", tbl.Columns[0].Type)
	}
}

func TestInferEmptyArray(t *testing.T) {
	tbl, err := Infer([]byte(`[]`), DefaultSampleSize)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if shape := tbl.Shape(); shape.Rows != 0 || shape.Cols != 0 {
		t.Errorf("shape = %s, want (0, 0)", shape)
	}
}

func TestInferInvalidJSON(t *testing.T) {
	_, err := Infer([]byte(`{"broken":`), DefaultSampleSize)
	if !errors.Is(err, ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}

func TestInferTrailingData(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"text after array", `[{"a": 1}] this is not JSON`},
		{"second document", `{"a": 1} {"b": 2}`},
		{"stray bytes", `[] xyz`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Infer([]byte(tc.data), DefaultSampleSize)
			if !errors.Is(err, ErrParse) {
				t.Errorf("err = %v, want ErrParse", err)
			}
		})
	}

	// Trailing whitespace is not garbage.
	if _, err := Infer([]byte("[{\"a\": 1}]  \n"), DefaultSampleSize); err != nil {
		t.Errorf("trailing whitespace should parse: %v", err)
	}
}

func TestInferSchemaViolations(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"scalar root", `42`},
		{"string root", `"hello"`},
		{"null root", `null`},
		{"array of scalars", `[1, 2, 3]`},
		{"mixed array", `[{"a": 1}, 2]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Infer([]byte(tc.data), DefaultSampleSize)
			if !errors.Is(err, ErrSchema) {
				t.Errorf("err = %v, want ErrSchema", err)
			}
		})
	}
}

func TestInferNumericWidening(t *testing.T) {
	data := []byte(`[{"valor": 10}, {"valor": 10.5}]`)
	tbl, err := Infer(data, DefaultSampleSize)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	col := tbl.Column("valor")
	if col.Type.Kind != KindFloat64 {
		t.Fatalf("valor type = %s, want float64", col.Type)
	}
	if got := col.Values[0].(float64); got != 10 {
		t.Errorf("valor[0] = %v, want 10", got)
	}
}

func TestInferScalarMismatchWidensToString(t *testing.T) {
	data := []byte(`[{"v": 1}, {"v": "dois"}, {"v": true}]`)
	tbl, err := Infer(data, DefaultSampleSize)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	col := tbl.Column("v")
	if col.Type.Kind != KindString {
		t.Fatalf("v type = %s, want string", col.Type)
	}
	want := []string{"1", "dois", "true"}
	for i, w := range want {
		if got := col.Values[i].(string); got != w {
			t.Errorf("v[%d] = %q, want %q", i, got, w)
		}
	}
}

func TestInferSampleLimit(t *testing.T) {
	// "extra" appears only after the sample window and is dropped.
	data := []byte(`[{"a": 1}, {"a": 2}, {"a": 3, "extra": "late"}]`)
	tbl, err := Infer(data, 2)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if tbl.ColumnIndex("extra") >= 0 {
		t.Error("column extra should not survive inference")
	}
	if shape := tbl.Shape(); shape.Rows != 3 || shape.Cols != 1 {
		t.Errorf("shape = %s, want (3, 1)", shape)
	}
}

func TestInferPostSampleMismatchDegradesToNull(t *testing.T) {
	// The sample fixes the column at int64; a fractional value seen
	// afterwards becomes null, never a truncated integer.
	data := []byte(`[{"v": 1}, {"v": 2}, {"v": 2.5}]`)
	tbl, err := Infer(data, 2)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	col := tbl.Column("v")
	if col.Type.Kind != KindInt64 {
		t.Fatalf("v type = %s, want int64", col.Type)
	}
	if got := col.Values[1].(int64); got != 2 {
		t.Errorf("v[1] = %d, want 2", got)
	}
	if col.Values[2] != nil {
		t.Errorf("v[2] = %v, want nil", col.Values[2])
	}
}

func TestInferNestedValues(t *testing.T) {
	data := []byte(`[{"tags": [1, 2], "org": {"sigla": "MF", "codigo": 10}}]`)
	tbl, err := Infer(data, DefaultSampleSize)
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}

	tags := tbl.Column("tags")
	if tags.Type.Kind != KindList || tags.Type.Elem.Kind != KindInt64 {
		t.Fatalf("tags type = %s, want list(int64)", tags.Type)
	}
	list := tags.Values[0].([]any)
	if len(list) != 2 || list[0].(int64) != 1 {
		t.Errorf("tags[0] = %v, want [1 2]", list)
	}

	org := tbl.Column("org")
	if org.Type.Kind != KindStruct || len(org.Type.Fields) != 2 {
		t.Fatalf("org type = %s, want struct with 2 fields", org.Type)
	}
	obj := org.Values[0].(*Object)
	if v, _ := obj.Get("sigla"); v.(string) != "MF" {
		t.Errorf("org.sigla = %v, want MF", v)
	}
}

func TestUnifyRules(t *testing.T) {
	null := Type{Kind: KindNull}
	i64 := Type{Kind: KindInt64}
	f64 := Type{Kind: KindFloat64}
	str := Type{Kind: KindString}
	boolean := Type{Kind: KindBool}
	listInt := Type{Kind: KindList, Elem: &i64}
	structA := Type{Kind: KindStruct, Fields: []Field{{Name: "a", Type: i64}}}

	cases := []struct {
		name    string
		a, b    Type
		want    Kind
		wantErr bool
	}{
		{"null with int", null, i64, KindInt64, false},
		{"int with null", i64, null, KindInt64, false},
		{"int with float", i64, f64, KindFloat64, false},
		{"bool with string", boolean, str, KindString, false},
		{"int with bool", i64, boolean, KindString, false},
		{"list with list", listInt, listInt, KindList, false},
		{"scalar with list", i64, listInt, 0, true},
		{"list with struct", listInt, structA, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Unify(tc.a, tc.b)
			if tc.wantErr {
				if !errors.Is(err, ErrSchema) {
					t.Errorf("err = %v, want ErrSchema", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unify failed: %v", err)
			}
			if got.Kind != tc.want {
				t.Errorf("Unify = %s, want kind %s", got, tc.want)
			}
		})
	}
}

func TestUnifyStructFieldUnion(t *testing.T) {
	a := Type{Kind: KindStruct, Fields: []Field{
		{Name: "x", Type: Type{Kind: KindInt64}},
	}}
	b := Type{Kind: KindStruct, Fields: []Field{
		{Name: "x", Type: Type{Kind: KindFloat64}},
		{Name: "y", Type: Type{Kind: KindString}},
	}}

	got, err := Unify(a, b)
	if err != nil {
		t.Fatalf("Unify failed: %v", err)
	}
	if len(got.Fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(got.Fields))
	}
	if got.Fields[0].Name != "x" || got.Fields[0].Type.Kind != KindFloat64 {
		t.Errorf("field x = %s, want float64", got.Fields[0].Type)
	}
	if got.Fields[1].Name != "y" || got.Fields[1].Type.Kind != KindString {
		t.Errorf("field y = %s, want string", got.Fields[1].Type)
	}
}
