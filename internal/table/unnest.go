package table

import "fmt"

// UnnestRoot resolves the envelope heterogeneity of upstream APIs: some
// nest the record list under a key ({"resultado": [...]}), some nest a
// single object ({"dados": {...}}), some expose the array at the
// document root.
//
// Dispatch on the root-path column's type:
//   - list of struct: explode to one row per element, replicating the
//     other columns, then promote the element fields to top-level
//     columns in place of the root column;
//   - struct: promote the fields in place, row count unchanged;
//   - null column, or list with no typed element (every value empty or
//     null, as in {"resultado": []}): there are no records, the table
//     collapses to the empty sentinel;
//   - anything else (including an absent column or an empty root path):
//     the table is returned unchanged. The fallback is a deliberate
//     policy, not a swallowed failure.
//
// A field name colliding with an existing column is a schema violation.
func (t *Table) UnnestRoot(rootPath string) error {
	if rootPath == "" {
		return nil
	}
	idx := t.ColumnIndex(rootPath)
	if idx < 0 {
		return nil
	}

	col := t.Columns[idx]
	switch {
	case col.Type.Kind == KindList && col.Type.Elem != nil && col.Type.Elem.Kind == KindStruct:
		return t.explodeStructList(idx)
	case col.Type.Kind == KindNull,
		col.Type.Kind == KindList && (col.Type.Elem == nil || col.Type.Elem.Kind == KindNull):
		// The record list never carried an element (empty or null in
		// every envelope): zero records, not one envelope row per page.
		t.Columns = nil
		return nil
	case col.Type.Kind == KindStruct:
		return t.unnestStruct(idx)
	default:
		// No substructure to promote; best-effort leaves the table as is.
		return nil
	}
}

// explodeStructList turns a list-of-struct column into one output row
// per list element. An empty or null list contributes a single row with
// null fields, so the surrounding columns are never silently dropped.
func (t *Table) explodeStructList(idx int) error {
	col := t.Columns[idx]
	elemType := *col.Type.Elem

	counts := make([]int, len(col.Values))
	total := 0
	for r, v := range col.Values {
		n := 1
		if list, ok := v.([]any); ok && len(list) > 0 {
			n = len(list)
		}
		counts[r] = n
		total += n
	}

	// Replicate every other column across the exploded rows.
	out := make([]Column, 0, len(t.Columns)-1+len(elemType.Fields))
	for i := range t.Columns {
		if i == idx {
			continue
		}
		src := t.Columns[i]
		repl := Column{Name: src.Name, Type: src.Type, Values: make([]any, 0, total)}
		for r, v := range src.Values {
			for k := 0; k < counts[r]; k++ {
				repl.Values = append(repl.Values, v)
			}
		}
		out = append(out, repl)
	}

	// Flatten the target column's elements, then split into field columns.
	elems := make([]any, 0, total)
	for r, v := range col.Values {
		list, ok := v.([]any)
		if !ok || len(list) == 0 {
			for k := 0; k < counts[r]; k++ {
				elems = append(elems, nil)
			}
			continue
		}
		elems = append(elems, list...)
	}

	fields, err := structFieldColumns(elems, elemType, t, col.Name)
	if err != nil {
		return err
	}

	// Field columns take the root column's position.
	pos := idx
	if pos > len(out) {
		pos = len(out)
	}
	t.Columns = append(out[:pos:pos], append(fields, out[pos:]...)...)
	return nil
}

// unnestStruct promotes a struct column's fields to sibling columns at
// the column's position. Row count is unchanged.
func (t *Table) unnestStruct(idx int) error {
	col := t.Columns[idx]
	fields, err := structFieldColumns(col.Values, col.Type, t, col.Name)
	if err != nil {
		return err
	}
	rest := append([]Column{}, t.Columns[:idx]...)
	rest = append(rest, fields...)
	rest = append(rest, t.Columns[idx+1:]...)
	t.Columns = rest
	return nil
}

// structFieldColumns extracts one column per struct field from values.
// A null struct yields nulls for every field.
func structFieldColumns(values []any, structType Type, t *Table, rootName string) ([]Column, error) {
	cols := make([]Column, len(structType.Fields))
	for i, f := range structType.Fields {
		if f.Name != rootName && t.ColumnIndex(f.Name) >= 0 {
			return nil, fmt.Errorf("%w: unnesting %q would duplicate column %q", ErrSchema, rootName, f.Name)
		}
		col := Column{Name: f.Name, Type: f.Type, Values: make([]any, len(values))}
		for r, v := range values {
			obj, ok := v.(*Object)
			if !ok {
				continue
			}
			fv, _ := obj.Get(f.Name)
			col.Values[r] = fv
		}
		cols[i] = col
	}
	return cols, nil
}
