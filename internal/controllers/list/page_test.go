package list

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"backoffice/internal/core"
)

func TestCorrectPage(t *testing.T) {
	tests := []struct {
		name     string
		page     int
		perPage  int
		count    int
		total    *int
		fetching bool
		want     int
		changed  bool
	}{
		{"non positive page", 0, 10, 0, nil, false, 1, true},
		{"negative page while fetching", -2, 10, 0, nil, true, 1, true},
		{"in range", 2, 10, 10, core.IntPtr(25), false, 2, false},
		{"clamps to last page", 5, 10, 0, core.IntPtr(25), false, 3, true},
		{"empty page without total resets", 4, 10, 0, nil, false, 1, true},
		{"empty first page stays", 1, 10, 0, core.IntPtr(0), false, 1, false},
		{"zero total clamps to first page", 3, 10, 0, core.IntPtr(0), false, 1, true},
		{"no change while fetching", 5, 10, 0, core.IntPtr(25), true, 5, false},
		{"unknown total with data", 7, 10, 3, nil, false, 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := CorrectPage(tt.page, tt.perPage, tt.count, tt.total, tt.fetching)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestCorrectPage_ClampProperty(t *testing.T) {
	for total := 0; total <= 60; total++ {
		for perPage := 1; perPage <= 12; perPage++ {
			last := (total + perPage - 1) / perPage
			if last < 1 {
				last = 1
			}
			for page := last + 1; page <= last+3; page++ {
				got, changed := CorrectPage(page, perPage, 0, core.IntPtr(total), false)
				if !assert.True(t, changed) || !assert.Equal(t, last, got, "total=%d perPage=%d page=%d", total, perPage, page) {
					return
				}
			}
		}
	}
}

func TestCorrectPage_ClampsAfterDeletes(t *testing.T) {
	// Last record of page 3 deleted: 24 left, page 3 still valid.
	page, changed := CorrectPage(3, 10, 4, core.IntPtr(24), false)
	assert.False(t, changed)
	assert.Equal(t, 3, page)

	// Page 3 emptied: 20 left, clamp to 2.
	page, changed = CorrectPage(3, 10, 0, core.IntPtr(20), false)
	assert.True(t, changed)
	assert.Equal(t, 2, page)
}

func TestPageFlags(t *testing.T) {
	next, prev := PageFlags(2, 10, core.IntPtr(25), nil)
	assert.Equal(t, core.BoolPtr(true), next)
	assert.Equal(t, core.BoolPtr(true), prev)

	next, prev = PageFlags(3, 10, core.IntPtr(25), nil)
	assert.Equal(t, core.BoolPtr(false), next)
	assert.Equal(t, core.BoolPtr(true), prev)

	next, prev = PageFlags(1, 10, nil, &core.PageInfo{HasNextPage: true})
	assert.Equal(t, core.BoolPtr(true), next)
	assert.Equal(t, core.BoolPtr(false), prev)

	next, prev = PageFlags(1, 10, core.IntPtr(100), &core.PageInfo{HasNextPage: false, HasPreviousPage: true})
	assert.Equal(t, core.BoolPtr(false), next, "page info wins over the total")
	assert.Equal(t, core.BoolPtr(true), prev)

	next, prev = PageFlags(4, 10, nil, nil)
	assert.Nil(t, next, "unknown, not false")
	assert.Nil(t, prev)
}
