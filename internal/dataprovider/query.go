package dataprovider

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"backoffice/internal/core"
)

// SearchKey is the filter key matched as a case-insensitive substring against
// every field of a record.
const SearchKey = "q"

// Lookup returns the value at a dotted path of rec.
func Lookup(rec core.Record, path string) (any, bool) {
	var cur any = map[string]any(rec)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Matches reports whether rec satisfies every key of filter. Scalars compare
// by equality, slices by membership and nested maps recursively.
func Matches(rec core.Record, filter core.Filter) bool {
	for key, want := range filter {
		if key == SearchKey {
			if s, ok := want.(string); ok && !containsText(rec, strings.ToLower(s)) {
				return false
			}
			continue
		}
		got, _ := Lookup(rec, key)
		if !matchValue(got, want) {
			return false
		}
	}
	return true
}

func matchValue(got, want any) bool {
	if nested, ok := asMap(want); ok {
		gm, ok := asMap(got)
		if !ok {
			return false
		}
		return Matches(core.Record(gm), core.Filter(nested))
	}
	rv := reflect.ValueOf(want)
	if want != nil && rv.Kind() == reflect.Slice {
		for i := 0; i < rv.Len(); i++ {
			if equalValues(got, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}
	return equalValues(got, want)
}

// equalValues compares scalars by their normalized text so 7, 7.0 and "7"
// are the same value.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return core.IDOf(a) == core.IDOf(b)
}

func containsText(v any, needle string) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.Contains(strings.ToLower(t), needle)
	case core.Record:
		return containsText(map[string]any(t), needle)
	case map[string]any:
		for _, child := range t {
			if containsText(child, needle) {
				return true
			}
		}
		return false
	case []any:
		for _, child := range t {
			if containsText(child, needle) {
				return true
			}
		}
		return false
	default:
		return strings.Contains(strings.ToLower(fmt.Sprint(t)), needle)
	}
}

// SortRecords sorts recs in place by the field and order of s. Missing
// values sort first in ascending order.
func SortRecords(recs []core.Record, s core.Sort) {
	if s.Field == "" {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, _ := Lookup(recs[i], s.Field)
		b, _ := Lookup(recs[j], s.Field)
		c := compareValues(a, b)
		if s.Order == core.SortDesc {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Paginate returns the slice of recs on the requested page.
func Paginate(recs []core.Record, p core.Pagination) []core.Record {
	if p.PerPage <= 0 {
		return recs
	}
	start := p.Offset()
	if start >= len(recs) {
		return []core.Record{}
	}
	end := start + p.PerPage
	if end > len(recs) {
		end = len(recs)
	}
	return recs[start:end]
}

// ApplyList filters, sorts and paginates recs into a page with a known total.
func ApplyList(recs []core.Record, params GetListParams) core.Page {
	matched := make([]core.Record, 0, len(recs))
	for _, r := range recs {
		if Matches(r, params.Filter) {
			matched = append(matched, r)
		}
	}
	SortRecords(matched, params.Sort)
	return core.Page{
		Data:  Paginate(matched, params.Pagination),
		Total: core.IntPtr(len(matched)),
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case core.Record:
		return map[string]any(m), true
	case core.Filter:
		return map[string]any(m), true
	default:
		return nil, false
	}
}
