package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"crudadmin/internal/fieldtype"
)

// Match вычисляет предикат над записью в памяти.
func (w Where) Match(rec map[string]any) bool {
	if w.IsEmpty() {
		return true
	}
	for _, t := range w.Or {
		if t.match(rec[t.Field]) {
			return true
		}
	}
	return false
}

func (t Term) match(v any) bool {
	if v == nil {
		return false
	}
	switch t.Op {
	case OpEquals:
		want, err := fieldtype.ToFloat(t.Value)
		if err != nil {
			return false
		}
		got, err := fieldtype.ToFloat(v)
		return err == nil && got == want
	case OpContains:
		needle, _ := t.Value.(string)
		return strings.Contains(Stringify(v), needle)
	}
	return false
}

// Stringify: текстовое представление значения для поиска по вхождению.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Compare упорядочивает значения одного поля. Числа сравниваются численно, даты по
// времени, остальное (включая строки из цифр) как строки.
func Compare(a, b any) int {
	if isNumber(a) && isNumber(b) {
		fa, errA := fieldtype.ToFloat(a)
		fb, errB := fieldtype.ToFloat(b)
		if errA == nil && errB == nil {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(Stringify(a), Stringify(b))
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// Sort сортирует записи стабильно, null-значения всегда в конце.
func Sort(records []map[string]any, ob OrderBy) {
	sort.SliceStable(records, func(i, j int) bool {
		va, vb := records[i][ob.Field], records[j][ob.Field]
		if va == nil || vb == nil {
			return va != nil && vb == nil
		}
		c := Compare(va, vb)
		if ob.Desc {
			return c > 0
		}
		return c < 0
	})
}
