// Package table implements the in-memory tabular model used by the
// normalization engine: a closed tagged-union type system with central
// widening rules, plus the transforms applied between JSON inference
// and columnar serialization (root unnesting, technical-column pruning,
// byte-list repair).
package table

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is returned when the input bytes are not valid JSON.
	ErrParse = errors.New("invalid JSON input")

	// ErrSchema is returned on structural violations: a scalar at the
	// document root, an array of non-objects, or a column-name clash
	// produced by unnesting.
	ErrSchema = errors.New("schema violation")

	// ErrEncoding is returned when a repaired byte-list column does not
	// decode to valid UTF-8.
	ErrEncoding = errors.New("invalid UTF-8 after byte-list repair")
)

// Kind enumerates the semantic column types.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindBinary
	KindList
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindList:
		return "list"
	case KindStruct:
		return "struct"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Type describes a column's semantic type. Elem is set for KindList,
// Fields for KindStruct; both are nil/empty otherwise.
type Type struct {
	Kind   Kind
	Elem   *Type
	Fields []Field
}

// Field is a named sub-column of a struct type. Field order is
// significant and preserved from the first record that carried it.
type Field struct {
	Name string
	Type Type
}

func (t Type) String() string {
	switch t.Kind {
	case KindList:
		if t.Elem == nil {
			return "list(null)"
		}
		return fmt.Sprintf("list(%s)", t.Elem)
	case KindStruct:
		return fmt.Sprintf("struct(%d fields)", len(t.Fields))
	default:
		return t.Kind.String()
	}
}

// IsNested reports whether the type has substructure.
func (t Type) IsNested() bool {
	return t.Kind == KindList || t.Kind == KindStruct
}

// Object is a decoded JSON object that preserves key order. Struct
// column values are *Object; inference relies on Keys for deterministic
// field ordering.
type Object struct {
	Keys   []string
	Values map[string]any
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{Values: make(map[string]any)}
}

// Set stores a key/value pair, appending the key on first sight.
func (o *Object) Set(key string, value any) {
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = value
}

// Get returns the value for key and whether it is present.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.Values[key]
	return v, ok
}

// Column is a named, uniformly typed sequence of values. Legal value
// representations per kind: nil (null), bool, int64, float64, string,
// []byte, []any (list), *Object (struct).
type Column struct {
	Name   string
	Type   Type
	Values []any
}

// Table is an ordered sequence of named columns with equal row counts
// and unique names.
type Table struct {
	Columns []Column
}

// Shape is the (rows, columns) pair reported to callers.
type Shape struct {
	Rows int
	Cols int
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d)", s.Rows, s.Cols)
}

// Rows returns the row count. An empty table has zero rows.
func (t *Table) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Shape returns the table's (rows, columns) shape.
func (t *Table) Shape() Shape {
	return Shape{Rows: t.Rows(), Cols: len(t.Columns)}
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column, or nil if absent.
func (t *Table) Column(name string) *Column {
	if i := t.ColumnIndex(name); i >= 0 {
		return &t.Columns[i]
	}
	return nil
}

// Drop removes the named column if present. Absence is a no-op.
func (t *Table) Drop(name string) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return
	}
	t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
}

// Unify returns the narrowest common type of a and b.
//
// Widening rules, defined once for the whole engine:
//   - null unifies with anything (nullability is implicit);
//   - int64 and float64 unify to float64;
//   - any other scalar mismatch widens to string;
//   - lists unify element-wise, structs unify as the ordered union of
//     their fields;
//   - a scalar against a nested type, or a list against a struct, is a
//     schema violation.
func Unify(a, b Type) (Type, error) {
	if a.Kind == KindNull {
		return b, nil
	}
	if b.Kind == KindNull {
		return a, nil
	}
	if a.Kind == b.Kind {
		switch a.Kind {
		case KindList:
			ae, be := Type{}, Type{}
			if a.Elem != nil {
				ae = *a.Elem
			}
			if b.Elem != nil {
				be = *b.Elem
			}
			elem, err := Unify(ae, be)
			if err != nil {
				return Type{}, err
			}
			return Type{Kind: KindList, Elem: &elem}, nil
		case KindStruct:
			return unifyStructs(a, b)
		default:
			return a, nil
		}
	}

	aNested, bNested := a.IsNested(), b.IsNested()
	switch {
	case aNested != bNested:
		return Type{}, fmt.Errorf("%w: cannot unify %s with %s", ErrSchema, a, b)
	case aNested && bNested:
		// list vs struct
		return Type{}, fmt.Errorf("%w: cannot unify %s with %s", ErrSchema, a, b)
	}

	if (a.Kind == KindInt64 && b.Kind == KindFloat64) || (a.Kind == KindFloat64 && b.Kind == KindInt64) {
		return Type{Kind: KindFloat64}, nil
	}
	return Type{Kind: KindString}, nil
}

func unifyStructs(a, b Type) (Type, error) {
	out := Type{Kind: KindStruct}
	index := make(map[string]int, len(a.Fields))
	for _, f := range a.Fields {
		index[f.Name] = len(out.Fields)
		out.Fields = append(out.Fields, f)
	}
	for _, f := range b.Fields {
		i, ok := index[f.Name]
		if !ok {
			index[f.Name] = len(out.Fields)
			out.Fields = append(out.Fields, f)
			continue
		}
		merged, err := Unify(out.Fields[i].Type, f.Type)
		if err != nil {
			return Type{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out.Fields[i].Type = merged
	}
	return out, nil
}
