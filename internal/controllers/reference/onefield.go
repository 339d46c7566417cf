package reference

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/notify"
	"backoffice/internal/resource"
)

// OneFieldOptions describe a one-to-one relation: the first Reference record
// whose Target field equals Record[Source].
type OneFieldOptions struct {
	Reference string
	Target    string
	// Source defaults to "id".
	Source string
	Record core.Record
	Filter core.Filter
	Sort   core.Sort
}

type OneFieldDeps struct {
	Data     dp.Provider
	Notifier notify.Notifier
}

type OneFieldResult struct {
	Record       core.Record `json:"referenceRecord"`
	Error        error       `json:"-"`
	ErrorMessage string      `json:"error,omitempty"`
	IsLoading    bool        `json:"isLoading"`
}

// OneField fetches the record on the other side of a one-to-one relation.
type OneField struct {
	opts   OneFieldOptions
	deps   OneFieldDeps
	record core.Record
}

func NewOneField(ctx context.Context, opts OneFieldOptions, deps OneFieldDeps) (*OneField, error) {
	if opts.Reference == "" {
		return nil, ErrMissingReference
	}
	if opts.Target == "" {
		return nil, fmt.Errorf("reference %s: target is required", opts.Reference)
	}
	if deps.Data == nil {
		return nil, fmt.Errorf("reference %s: data provider is required", opts.Reference)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Log{}
	}
	if opts.Source == "" {
		opts.Source = "id"
	}
	if opts.Sort.Field == "" {
		opts.Sort = core.DefaultSort
	}
	return &OneField{opts: opts, deps: deps, record: resource.ResolveRecord(ctx, opts.Record)}, nil
}

// Enabled reports whether there is a source value to look up.
func (f *OneField) Enabled() bool {
	return f.record != nil && hasValue(f.record[f.opts.Source])
}

// Load fetches the related record. Without a source record it returns an
// empty result without calling the provider.
func (f *OneField) Load(ctx context.Context) OneFieldResult {
	if !f.Enabled() {
		return OneFieldResult{}
	}
	page, err := f.deps.Data.GetManyReference(ctx, f.opts.Reference, dp.GetManyReferenceParams{
		Target:     f.opts.Target,
		ID:         core.IDOf(f.record[f.opts.Source]),
		Pagination: core.Pagination{Page: 1, PerPage: 1},
		Sort:       f.opts.Sort,
		Filter:     f.opts.Filter.Clone(),
	})
	if err != nil {
		log.Warn().Err(err).Str("reference", f.opts.Reference).Str("target", f.opts.Target).Msg("reference: fetching related record failed")
		f.deps.Notifier.Notify(notify.FromError(err))
		return OneFieldResult{Error: err, ErrorMessage: notify.ErrorMessage(err)}
	}
	var rec core.Record
	if len(page.Data) > 0 {
		rec = page.Data[0]
	}
	return OneFieldResult{Record: rec}
}
