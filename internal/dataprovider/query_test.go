package dataprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"backoffice/internal/core"
)

var posts = []core.Record{
	{"id": 1, "title": "Hello Go", "views": 10, "author": map[string]any{"name": "ann"}},
	{"id": 2, "title": "Channels", "views": 3, "author": map[string]any{"name": "bob"}},
	{"id": 3, "title": "Generics in go", "views": 7.0, "tags": []any{"lang"}},
	{"id": 4, "title": "Untitled"},
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter core.Filter
		want   []core.Identifier
	}{
		{"empty filter", core.Filter{}, core.IDs(1, 2, 3, 4)},
		{"scalar equality across number types", core.Filter{"views": 7}, core.IDs(3)},
		{"string id matches numeric id", core.Filter{"id": "2"}, core.IDs(2)},
		{"slice is membership", core.Filter{"id": []any{1, 3}}, core.IDs(1, 3)},
		{"q is case-insensitive substring", core.Filter{"q": "GO"}, core.IDs(1, 3)},
		{"nested map", core.Filter{"author": map[string]any{"name": "bob"}}, core.IDs(2)},
		{"dotted path", core.Filter{"author.name": "ann"}, core.IDs(1)},
		{"missing field never matches a value", core.Filter{"views": 99}, []core.Identifier{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []core.Identifier{}
			for _, r := range posts {
				if Matches(r, tt.filter) {
					got = append(got, r.ID())
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyList(t *testing.T) {
	recs := append([]core.Record(nil), posts...)
	page := ApplyList(recs, GetListParams{
		Pagination: core.Pagination{Page: 1, PerPage: 2},
		Sort:       core.Sort{Field: "views", Order: core.SortDesc},
	})
	assert.Equal(t, 4, *page.Total)
	assert.Equal(t, core.IDs(1, 3), []core.Identifier{page.Data[0].ID(), page.Data[1].ID()})

	page = ApplyList(recs, GetListParams{
		Pagination: core.Pagination{Page: 3, PerPage: 2},
		Sort:       core.DefaultSort,
	})
	assert.Empty(t, page.Data)
	assert.Equal(t, 4, *page.Total)
}

func TestSortRecords_MissingValuesFirst(t *testing.T) {
	recs := append([]core.Record(nil), posts...)
	SortRecords(recs, core.Sort{Field: "views", Order: core.SortAsc})
	assert.Equal(t, core.Identifier("4"), recs[0].ID())
	assert.Equal(t, core.Identifier("1"), recs[3].ID())
}
