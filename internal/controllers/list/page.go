package list

import "backoffice/internal/core"

// CorrectPage returns the page a list should show once a fetch settled, and
// whether it differs from page. Out of range pages clamp to the last page
// when the total is known; an empty page past the first resets to 1.
func CorrectPage(page, perPage, count int, total *int, fetching bool) (int, bool) {
	if page <= 0 {
		return 1, true
	}
	if fetching {
		return page, false
	}
	if total != nil && perPage > 0 {
		last := (*total + perPage - 1) / perPage
		if last < 1 {
			last = 1
		}
		if page > last {
			return last, true
		}
	}
	if page > 1 && count == 0 {
		return 1, true
	}
	return page, false
}

// PageFlags derives hasNextPage and hasPreviousPage. Page info from the
// backend wins; without it and without a total both are unknown.
func PageFlags(page, perPage int, total *int, info *core.PageInfo) (hasNext, hasPrevious *bool) {
	if info != nil {
		return core.BoolPtr(info.HasNextPage), core.BoolPtr(info.HasPreviousPage)
	}
	if total != nil {
		return core.BoolPtr(page*perPage < *total), core.BoolPtr(page > 1)
	}
	return nil, nil
}
