package columnar

import (
	"bytes"

	"github.com/opendata-br/govetl/internal/table"
)

// computeStats walks each column once, collecting min, max, and null
// count as enabled. Min and max are only defined for scalar columns;
// nested ones report null counts alone.
func computeStats(t *table.Table, sel Statistics) []ColumnStats {
	stats := make([]ColumnStats, len(t.Columns))
	for i := range t.Columns {
		col := &t.Columns[i]
		cs := ColumnStats{Name: col.Name, Type: col.Type.String()}

		var nulls int64
		var min, max any
		for _, v := range col.Values {
			if v == nil {
				nulls++
				continue
			}
			if col.Type.IsNested() {
				continue
			}
			if min == nil || less(v, min) {
				min = v
			}
			if max == nil || less(max, v) {
				max = v
			}
		}

		if sel.NullCount {
			n := nulls
			cs.NullCount = &n
		}
		if sel.MinValue {
			cs.Min = min
		}
		if sel.MaxValue {
			cs.Max = max
		}
		stats[i] = cs
	}
	return stats
}

// less orders two scalar values of the same column type. false sorts
// before true for booleans.
func less(a, b any) bool {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		return ok && x < y
	case float64:
		y, ok := b.(float64)
		return ok && x < y
	case string:
		y, ok := b.(string)
		return ok && x < y
	case bool:
		y, ok := b.(bool)
		return ok && !x && y
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Compare(x, y) < 0
	default:
		return false
	}
}
