package table

import (
	"fmt"
	"unicode/utf8"
)

// RepairByteLists reinterprets columns typed list(int64) or
// list(float64) as text. A subset of the source APIs serialize accented
// string fields as arrays of numeric character codes; this is the
// single point that recovers readable text from that anomaly.
//
// Each numeric element is truncated into the 0-255 byte range and the
// resulting sequence decoded as UTF-8. The column's type and values are
// replaced in place with plain text; null lists stay null. The first
// column that does not decode to valid UTF-8 aborts the conversion
// with ErrEncoding.
func (t *Table) RepairByteLists() error {
	for i := range t.Columns {
		col := &t.Columns[i]
		if !isByteListType(col.Type) {
			continue
		}
		for r, v := range col.Values {
			if v == nil {
				continue
			}
			list, ok := v.([]any)
			if !ok {
				col.Values[r] = nil
				continue
			}
			buf := make([]byte, 0, len(list))
			for _, e := range list {
				switch n := e.(type) {
				case int64:
					buf = append(buf, byte(n))
				case float64:
					buf = append(buf, byte(int64(n)))
				}
			}
			if !utf8.Valid(buf) {
				return fmt.Errorf("column %q: %w", col.Name, ErrEncoding)
			}
			col.Values[r] = string(buf)
		}
		col.Type = Type{Kind: KindString}
	}
	return nil
}

func isByteListType(t Type) bool {
	if t.Kind != KindList || t.Elem == nil {
		return false
	}
	return t.Elem.Kind == KindInt64 || t.Elem.Kind == KindFloat64
}
