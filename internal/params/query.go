package params

import (
	"strings"

	"backoffice/internal/core"
)

// Query is the interactive state of a list: paging, sorting and filters.
type Query struct {
	Page             int             `json:"page"`
	PerPage          int             `json:"perPage"`
	Sort             string          `json:"sort"`
	Order            core.SortOrder  `json:"order"`
	Filter           core.Filter     `json:"filter"`
	DisplayedFilters map[string]bool `json:"displayedFilters"`
}

// FilterValues returns the interactive filter values.
func (q Query) FilterValues() core.Filter { return q.Filter }

// SortPayload returns the sort as a core.Sort.
func (q Query) SortPayload() core.Sort { return core.Sort{Field: q.Sort, Order: q.Order} }

// Pagination returns the page coordinates.
func (q Query) Pagination() core.Pagination {
	return core.Pagination{Page: q.Page, PerPage: q.PerPage}
}

// Clone deep-copies the maps of the query.
func (q Query) Clone() Query {
	q.Filter = q.Filter.Clone()
	displayed := make(map[string]bool, len(q.DisplayedFilters))
	for k, v := range q.DisplayedFilters {
		displayed[k] = v
	}
	q.DisplayedFilters = displayed
	return q
}

// ActionType names a query change.
type ActionType int

const (
	ActionSetPage ActionType = iota + 1
	ActionSetPerPage
	ActionSetSort
	ActionSetFilter
	ActionShowFilter
	ActionHideFilter
)

// Action is one change applied by Reduce.
type Action struct {
	Type             ActionType
	Page             int
	PerPage          int
	Sort             core.Sort
	Filter           core.Filter
	DisplayedFilters map[string]bool
	FilterName       string
	DefaultValue     any
}

// Reduce applies a to q and returns the new query. q is not modified.
func Reduce(q Query, a Action) Query {
	next := q.Clone()
	switch a.Type {
	case ActionSetPage:
		next.Page = a.Page
	case ActionSetPerPage:
		if a.PerPage > 0 {
			next.PerPage = a.PerPage
			next.Page = 1
		}
	case ActionSetSort:
		if a.Sort.Field == q.Sort && a.Sort.Order == "" {
			next.Order = q.Order.Opposite()
		} else {
			next.Sort = a.Sort.Field
			next.Order = a.Sort.Order
			if !next.Order.Valid() {
				next.Order = core.SortAsc
			}
		}
		next.Page = 1
	case ActionSetFilter:
		next.Filter = RemoveEmpty(a.Filter)
		next.DisplayedFilters = copyDisplayed(a.DisplayedFilters)
		next.Page = 1
	case ActionShowFilter:
		next.DisplayedFilters[a.FilterName] = true
		if a.DefaultValue != nil {
			setPath(next.Filter, a.FilterName, a.DefaultValue)
			next.Filter = RemoveEmpty(next.Filter)
		}
		if !filtersEqual(q.Filter, next.Filter) {
			next.Page = 1
		}
	case ActionHideFilter:
		delete(next.DisplayedFilters, a.FilterName)
		unsetPath(next.Filter, a.FilterName)
		next.Filter = RemoveEmpty(next.Filter)
		if !filtersEqual(q.Filter, next.Filter) {
			next.Page = 1
		}
	}
	return next
}

// RemoveEmpty drops nil values, empty strings and maps left empty after
// cleaning. Slices are kept as is.
func RemoveEmpty(f core.Filter) core.Filter {
	out := core.Filter{}
	for k, v := range f {
		if cleaned, keep := cleanValue(v); keep {
			out[k] = cleaned
		}
	}
	return out
}

func cleanValue(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		return t, t != ""
	case core.Filter:
		nested := RemoveEmpty(t)
		return map[string]any(nested), len(nested) > 0
	case map[string]any:
		nested := RemoveEmpty(core.Filter(t))
		return map[string]any(nested), len(nested) > 0
	default:
		return v, true
	}
}

func setPath(f core.Filter, path string, value any) {
	parts := strings.Split(path, ".")
	m := map[string]any(f)
	for _, p := range parts[:len(parts)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			if cf, isFilter := m[p].(core.Filter); isFilter {
				child = map[string]any(cf)
			} else {
				child = map[string]any{}
			}
			m[p] = child
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
}

func unsetPath(f core.Filter, path string) {
	parts := strings.Split(path, ".")
	m := map[string]any(f)
	for _, p := range parts[:len(parts)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			cf, isFilter := m[p].(core.Filter)
			if !isFilter {
				return
			}
			child = map[string]any(cf)
		}
		m = child
	}
	delete(m, parts[len(parts)-1])
}

func copyDisplayed(d map[string]bool) map[string]bool {
	out := make(map[string]bool, len(d))
	for k, v := range d {
		if v {
			out[k] = true
		}
	}
	return out
}

func filtersEqual(a, b core.Filter) bool {
	ea, _ := encodeJSON(a)
	eb, _ := encodeJSON(b)
	return ea == eb
}
