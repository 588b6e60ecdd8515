package table

import (
	"encoding/json"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// DefaultSampleSize is the number of records used for schema inference
// when the caller does not configure one. Mirrors the upstream APIs'
// page size, which is the largest document shape variation window seen
// in practice.
const DefaultSampleSize = 1000

// Infer parses raw JSON bytes into a Table.
//
// Accepted document roots:
//   - an array of objects: one row per element;
//   - a single object: a one-row table (the envelope case, resolved
//     later by UnnestRoot);
//   - an empty array: the sentinel empty table with shape (0, 0).
//
// Column set is the union of keys observed across the inference sample
// (sampleSize records; <= 0 means the entire input). Missing keys yield
// nulls. Each column gets the narrowest common type of its sampled
// values per Unify; keys first seen after the sample are dropped, and
// sampled-type mismatches beyond the sample degrade to null rather
// than failing.
func Infer(data []byte, sampleSize int) (*Table, error) {
	iter := jsoniter.ParseBytes(jsoniter.ConfigDefault, data)

	root := readValue(iter)
	if iter.Error != nil && iter.Error != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrParse, iter.Error)
	}
	// The document must be a single value; anything after it is garbage.
	if head := iter.WhatIsNext(); head != jsoniter.InvalidValue || iter.Error != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON document", ErrParse)
	}

	var records []*Object
	switch v := root.(type) {
	case []any:
		if len(v) == 0 {
			return &Table{}, nil
		}
		records = make([]*Object, 0, len(v))
		for i, elem := range v {
			obj, ok := elem.(*Object)
			if !ok {
				return nil, fmt.Errorf("%w: array element %d is not an object (%T)", ErrSchema, i, elem)
			}
			records = append(records, obj)
		}
	case *Object:
		records = []*Object{v}
	case nil:
		return nil, fmt.Errorf("%w: document root is null", ErrSchema)
	default:
		return nil, fmt.Errorf("%w: document root is %T, expected an array of records", ErrSchema, root)
	}

	sample := records
	if sampleSize > 0 && sampleSize < len(sample) {
		sample = sample[:sampleSize]
	}

	names, types, err := inferSchema(sample)
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: make([]Column, len(names))}
	for i, name := range names {
		col := Column{Name: name, Type: types[i], Values: make([]any, len(records))}
		for r, rec := range records {
			v, ok := rec.Get(name)
			if !ok {
				continue
			}
			col.Values[r] = coerce(v, col.Type)
		}
		t.Columns[i] = col
	}
	return t, nil
}

// inferSchema accumulates the ordered key union and per-column types
// over the sample.
func inferSchema(sample []*Object) ([]string, []Type, error) {
	var names []string
	byName := make(map[string]int)
	var types []Type

	for _, rec := range sample {
		for _, key := range rec.Keys {
			v := rec.Values[key]
			vt, err := inferType(v)
			if err != nil {
				return nil, nil, fmt.Errorf("column %q: %w", key, err)
			}
			i, seen := byName[key]
			if !seen {
				byName[key] = len(names)
				names = append(names, key)
				types = append(types, vt)
				continue
			}
			merged, err := Unify(types[i], vt)
			if err != nil {
				return nil, nil, fmt.Errorf("column %q: %w", key, err)
			}
			types[i] = merged
		}
	}
	return names, types, nil
}

// inferType maps a decoded JSON value to its semantic type.
func inferType(v any) (Type, error) {
	switch x := v.(type) {
	case nil:
		return Type{Kind: KindNull}, nil
	case bool:
		return Type{Kind: KindBool}, nil
	case string:
		return Type{Kind: KindString}, nil
	case []byte:
		return Type{Kind: KindBinary}, nil
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return Type{Kind: KindInt64}, nil
		}
		return Type{Kind: KindFloat64}, nil
	case []any:
		elem := Type{Kind: KindNull}
		for _, e := range x {
			et, err := inferType(e)
			if err != nil {
				return Type{}, err
			}
			merged, err := Unify(elem, et)
			if err != nil {
				return Type{}, err
			}
			elem = merged
		}
		return Type{Kind: KindList, Elem: &elem}, nil
	case *Object:
		st := Type{Kind: KindStruct, Fields: make([]Field, 0, len(x.Keys))}
		for _, key := range x.Keys {
			ft, err := inferType(x.Values[key])
			if err != nil {
				return Type{}, fmt.Errorf("field %q: %w", key, err)
			}
			st.Fields = append(st.Fields, Field{Name: key, Type: ft})
		}
		return st, nil
	default:
		return Type{}, fmt.Errorf("%w: unsupported value %T", ErrSchema, v)
	}
}

// coerce converts a raw decoded value into the canonical representation
// for the target type. Values that cannot be represented become null.
func coerce(v any, t Type) any {
	if v == nil {
		return nil
	}
	switch t.Kind {
	case KindNull:
		return nil
	case KindBool:
		if b, ok := v.(bool); ok {
			return b
		}
		return nil
	case KindInt64:
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i
			}
		}
		return nil
	case KindFloat64:
		if n, ok := v.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				return f
			}
		}
		return nil
	case KindString:
		switch x := v.(type) {
		case string:
			return x
		case json.Number:
			return x.String()
		case bool:
			if x {
				return "true"
			}
			return "false"
		}
		return nil
	case KindBinary:
		if b, ok := v.([]byte); ok {
			return b
		}
		return nil
	case KindList:
		arr, ok := v.([]any)
		if !ok {
			return nil
		}
		elem := Type{Kind: KindNull}
		if t.Elem != nil {
			elem = *t.Elem
		}
		out := make([]any, len(arr))
		for i, e := range arr {
			out[i] = coerce(e, elem)
		}
		return out
	case KindStruct:
		obj, ok := v.(*Object)
		if !ok {
			return nil
		}
		out := NewObject()
		for _, f := range t.Fields {
			fv, present := obj.Get(f.Name)
			if !present {
				out.Set(f.Name, nil)
				continue
			}
			out.Set(f.Name, coerce(fv, f.Type))
		}
		return out
	default:
		return nil
	}
}

// readValue materializes the next JSON value from the iterator,
// preserving object key order via *Object.
func readValue(iter *jsoniter.Iterator) any {
	switch iter.WhatIsNext() {
	case jsoniter.NilValue:
		iter.ReadNil()
		return nil
	case jsoniter.BoolValue:
		return iter.ReadBool()
	case jsoniter.NumberValue:
		return iter.ReadNumber()
	case jsoniter.StringValue:
		return iter.ReadString()
	case jsoniter.ArrayValue:
		arr := []any{}
		for iter.ReadArray() {
			arr = append(arr, readValue(iter))
		}
		return arr
	case jsoniter.ObjectValue:
		obj := NewObject()
		iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
			obj.Set(field, readValue(it))
			return true
		})
		return obj
	default:
		iter.ReportError("readValue", "unexpected value type")
		return nil
	}
}
