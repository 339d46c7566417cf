// Package sqlfilter translates list filters and sorts into SQL over a table
// of JSON documents.
package sqlfilter

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
)

var fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidField reports whether name is a plain or dotted field name.
func ValidField(name string) bool { return fieldRe.MatchString(name) }

// Dialect renders the document expressions of one database.
type Dialect struct {
	Placeholder func(n int) string
	// Text renders the field at path as text.
	Text func(b *Builder, path []string) string
	// Value renders the field at path for ordering.
	Value func(b *Builder, path []string) string
	// Bool renders a comparison of the field at path with a boolean.
	Bool func(b *Builder, path []string, v bool) string
	// Search renders a case-insensitive substring match over the document.
	Search func(b *Builder, needle string) string
	// NullsFirst is appended to ascending order terms when set.
	NullsFirst string
	NullsLast  string
}

// Builder accumulates positional arguments.
type Builder struct {
	dialect Dialect
	args    []any
}

func New(d Dialect) *Builder { return &Builder{dialect: d} }

// Arg appends v and returns its placeholder.
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

func (b *Builder) Args() []any { return b.args }

// Where renders the conditions of filter joined with AND. Keys are visited
// in lexical order so the output is stable.
func (b *Builder) Where(filter core.Filter) ([]string, error) {
	return b.where(nil, filter)
}

func (b *Builder) where(prefix []string, filter map[string]any) ([]string, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []string
	for _, key := range keys {
		value := filter[key]
		if len(prefix) == 0 && key == dp.SearchKey {
			if s, ok := value.(string); ok {
				conds = append(conds, b.dialect.Search(b, strings.ToLower(s)))
			}
			continue
		}
		if !ValidField(key) {
			return nil, fmt.Errorf("invalid filter field %q", key)
		}
		path := append(append([]string{}, prefix...), strings.Split(key, ".")...)
		cond, err := b.condition(path, value)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond...)
	}
	return conds, nil
}

func (b *Builder) condition(path []string, value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return []string{b.dialect.Text(b, path) + " IS NULL"}, nil
	case bool:
		if b.dialect.Bool != nil {
			return []string{b.dialect.Bool(b, path, v)}, nil
		}
		return []string{b.dialect.Text(b, path) + " = " + b.Arg(strconv.FormatBool(v))}, nil
	case map[string]any:
		return b.where(path, v)
	case core.Filter:
		return b.where(path, v)
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice {
		if rv.Len() == 0 {
			return []string{"1 = 0"}, nil
		}
		holders := make([]string, rv.Len())
		field := b.dialect.Text(b, path)
		for i := 0; i < rv.Len(); i++ {
			holders[i] = b.Arg(string(core.IDOf(rv.Index(i).Interface())))
		}
		return []string{field + " IN (" + strings.Join(holders, ", ") + ")"}, nil
	}
	return []string{b.dialect.Text(b, path) + " = " + b.Arg(string(core.IDOf(value)))}, nil
}

// OrderBy renders the ORDER BY terms for s, with id as a tie breaker.
func (b *Builder) OrderBy(s core.Sort) (string, error) {
	if s.Field == "" {
		s = core.DefaultSort
	}
	if !ValidField(s.Field) {
		return "", fmt.Errorf("invalid sort field %q", s.Field)
	}
	dir := "ASC"
	nulls := b.dialect.NullsFirst
	if s.Order == core.SortDesc {
		dir = "DESC"
		nulls = b.dialect.NullsLast
	}
	term := b.dialect.Value(b, strings.Split(s.Field, ".")) + " " + dir
	if nulls != "" {
		term += " " + nulls
	}
	return term + ", id " + dir, nil
}
