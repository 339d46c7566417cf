package reference

import "backoffice/internal/core"

// Choices are the records a reference input offers.
type Choices struct {
	All       []core.Record `json:"allChoices"`
	Available []core.Record `json:"availableChoices"`
	Selected  []core.Record `json:"selectedChoices"`
}

// Merge splices selected in front of candidates when it is not among them.
// The total grows by one in that case, and stays unknown when unknown.
func Merge(candidates []core.Record, total *int, selected core.Record) ([]core.Record, *int) {
	if candidates == nil {
		candidates = []core.Record{}
	}
	if selected == nil {
		return candidates, total
	}
	id := selected.ID()
	for _, r := range candidates {
		if r.ID() == id {
			return candidates, total
		}
	}
	all := make([]core.Record, 0, len(candidates)+1)
	all = append(all, selected)
	all = append(all, candidates...)
	if total == nil {
		return all, nil
	}
	return all, core.IntPtr(*total + 1)
}

// BuildChoices merges the candidate page and the selected record.
func BuildChoices(candidates []core.Record, selected core.Record) Choices {
	all, _ := Merge(candidates, nil, selected)
	c := Choices{All: all, Available: candidates, Selected: []core.Record{}}
	if c.Available == nil {
		c.Available = []core.Record{}
	}
	if selected != nil {
		c.Selected = []core.Record{selected}
	}
	return c
}
