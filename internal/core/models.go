package core

import (
	"fmt"
	"math"
	"strconv"
)

// Identifier is the normalized form of a record id.
// Backends may hand out numeric or string ids; both compare as strings here.
type Identifier string

// IDOf normalizes an arbitrary id value into an Identifier.
// Integral floats (as produced by encoding/json) print without exponent.
func IDOf(v any) Identifier {
	switch id := v.(type) {
	case nil:
		return ""
	case Identifier:
		return id
	case string:
		return Identifier(id)
	case int:
		return Identifier(strconv.Itoa(id))
	case int32:
		return Identifier(strconv.FormatInt(int64(id), 10))
	case int64:
		return Identifier(strconv.FormatInt(id, 10))
	case uint64:
		return Identifier(strconv.FormatUint(id, 10))
	case float64:
		if id == math.Trunc(id) && !math.IsInf(id, 0) {
			return Identifier(strconv.FormatFloat(id, 'f', -1, 64))
		}
		return Identifier(strconv.FormatFloat(id, 'g', -1, 64))
	case fmt.Stringer:
		return Identifier(id.String())
	default:
		return Identifier(fmt.Sprint(id))
	}
}

// IDs normalizes a list of id values.
func IDs(values ...any) []Identifier {
	out := make([]Identifier, 0, len(values))
	for _, v := range values {
		out = append(out, IDOf(v))
	}
	return out
}

// Record is a single entity of a resource. The "id" field is required.
type Record map[string]any

// ID returns the record identifier, or "" for a nil record.
func (r Record) ID() Identifier {
	if r == nil {
		return ""
	}
	return IDOf(r["id"])
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SortOrder is ASC or DESC.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Opposite flips the order.
func (o SortOrder) Opposite() SortOrder {
	if o == SortDesc {
		return SortAsc
	}
	return SortDesc
}

// Valid reports whether the order is one of ASC or DESC.
func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

// Sort represents the sort field and direction of a list query.
type Sort struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order"`
}

// DefaultSort sorts by id ascending.
var DefaultSort = Sort{Field: "id", Order: SortAsc}

// Pagination represents 1-based page coordinates.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

// Offset returns the zero-based offset of the first record of the page.
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// Filter holds filter values keyed by field name.
type Filter map[string]any

// Clone returns a deep copy of nested filter maps.
func (f Filter) Clone() Filter {
	if f == nil {
		return Filter{}
	}
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge returns a new filter with the keys of each override applied in order.
// Later maps win on conflicting keys.
func (f Filter) Merge(overrides ...Filter) Filter {
	out := f.Clone()
	for _, o := range overrides {
		for k, v := range o {
			out[k] = cloneValue(v)
		}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Filter:
		return t.Clone()
	case map[string]any:
		return map[string]any(Filter(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// PageInfo carries backend hints for cursor-style pagination.
type PageInfo struct {
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// Page is one page of records. Total is nil when the backend cannot count.
type Page struct {
	Data     []Record  `json:"data"`
	Total    *int      `json:"total,omitempty"`
	PageInfo *PageInfo `json:"pageInfo,omitempty"`
}

// Contains reports whether a record with the given id is on the page.
func (p *Page) Contains(id Identifier) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Data {
		if r.ID() == id {
			return true
		}
	}
	return false
}

// FilterInput describes a filter UI element. It belongs in a list's Filters
// slot and is never a filter value.
type FilterInput struct {
	Source       string `json:"source" yaml:"source"`
	Label        string `json:"label,omitempty" yaml:"label,omitempty"`
	AlwaysOn     bool   `json:"alwaysOn,omitempty" yaml:"alwaysOn,omitempty"`
	DefaultValue any    `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

// IntPtr is a convenience for optional totals.
func IntPtr(n int) *int { return &n }

// BoolPtr is a convenience for tri-state flags.
func BoolPtr(b bool) *bool { return &b }
