package reference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/notify"
	"backoffice/internal/params"
	"backoffice/internal/resource"
)

// DefaultPerPage is the size of a candidate page.
const DefaultPerPage = 25

var ErrMissingReference = errors.New("reference: the referenced resource is required")

type InputOptions struct {
	// Reference is the resource the field points to.
	Reference string
	// Source is the field of the current record holding the reference.
	Source string
	// CurrentValue overrides Record[Source].
	CurrentValue any
	// Record overrides the record bound to the context.
	Record   core.Record
	Filter   core.Filter
	Sort     core.Sort
	PerPage  int
	Debounce time.Duration
	// EnableGetChoices gates the candidate fetch on the interactive filter.
	EnableGetChoices func(filterValues core.Filter) bool
}

type Deps struct {
	Data      dp.Provider
	AfterFunc params.AfterFunc
}

// InputResult is what a reference input renders.
type InputResult struct {
	Choices
	Total        *int        `json:"total"`
	Page         int         `json:"page"`
	PerPage      int         `json:"perPage"`
	Sort         core.Sort   `json:"sort"`
	FilterValues core.Filter `json:"filterValues"`
	CurrentValue any         `json:"currentValue"`
	Error        error       `json:"-"`
	ErrorMessage string      `json:"error,omitempty"`
	IsLoading    bool        `json:"isLoading"`
	IsFetching   bool        `json:"isFetching"`
}

// Input resolves the choices of one reference field.
type Input struct {
	reference string
	opts      InputOptions
	deps      Deps
	params    *params.Store

	candidates query[core.Page]
	selected   query[core.Record]

	mu          sync.Mutex
	current     any
	watchers    map[int]func(InputResult)
	nextWatch   int
	watchCtx    context.Context
	closed      bool
	unsubscribe func()
}

func NewInput(ctx context.Context, opts InputOptions, deps Deps) (*Input, error) {
	if opts.Reference == "" {
		return nil, ErrMissingReference
	}
	if deps.Data == nil {
		return nil, fmt.Errorf("reference %s: data provider is required", opts.Reference)
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.Sort.Field == "" {
		opts.Sort = core.DefaultSort
	}
	current := opts.CurrentValue
	if current == nil && opts.Source != "" {
		if rec := resource.ResolveRecord(ctx, opts.Record); rec != nil {
			current = rec[opts.Source]
		}
	}

	in := &Input{
		reference: opts.Reference,
		opts:      opts,
		deps:      deps,
		current:   current,
		watchers:  make(map[int]func(InputResult)),
	}
	in.params = params.NewStore(params.Options{
		Resource:                opts.Reference,
		Defaults:                params.Defaults{Sort: opts.Sort, PerPage: opts.PerPage, Page: 1},
		Debounce:                opts.Debounce,
		DisableSyncWithLocation: true,
		AfterFunc:               deps.AfterFunc,
	})
	in.unsubscribe = in.params.Subscribe(in.onParams)
	return in, nil
}

func (in *Input) Reference() string { return in.reference }

// Query returns the parameters of the candidate fetch.
func (in *Input) Query() params.Query { return in.params.Query() }

// CurrentValue returns the referenced id, or nil.
func (in *Input) CurrentValue() any {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.current
}

func hasValue(v any) bool {
	return v != nil && core.IDOf(v) != ""
}

// Refetch runs the candidate and selected fetches concurrently and returns
// once both settled.
func (in *Input) Refetch(ctx context.Context) InputResult {
	var wg conc.WaitGroup
	wg.Go(func() { in.fetchCandidates(ctx) })
	wg.Go(func() { in.fetchSelected(ctx) })
	wg.Wait()
	return in.Result()
}

func (in *Input) fetchCandidates(ctx context.Context) {
	q := in.params.Query()
	if in.opts.EnableGetChoices != nil && !in.opts.EnableGetChoices(q.FilterValues()) {
		in.candidates.disable()
		in.emit()
		return
	}
	gen := in.candidates.start()
	in.emit()
	page, err := in.deps.Data.GetList(ctx, in.reference, dp.GetListParams{
		Pagination: q.Pagination(),
		Sort:       q.SortPayload(),
		Filter:     q.Filter.Merge(in.opts.Filter),
	})
	if err != nil {
		log.Warn().Err(err).Str("reference", in.reference).Msg("reference: fetching choices failed")
	}
	if in.candidates.settle(gen, page, err) {
		in.emit()
	}
}

func (in *Input) fetchSelected(ctx context.Context) {
	current := in.CurrentValue()
	if !hasValue(current) {
		in.selected.disable()
		in.emit()
		return
	}
	gen := in.selected.start()
	in.emit()
	id := core.IDOf(current)
	var rec core.Record
	recs, err := in.deps.Data.GetMany(ctx, in.reference, dp.GetManyParams{IDs: []core.Identifier{id}})
	if err != nil {
		log.Warn().Err(err).Str("reference", in.reference).Str("id", string(id)).Msg("reference: fetching selected record failed")
	}
	for _, r := range recs {
		if r.ID() == id {
			rec = r
			break
		}
	}
	if in.selected.settle(gen, rec, err) {
		in.emit()
	}
}

// SetCurrentValue changes the referenced id. A watched input refetches the
// selected record.
func (in *Input) SetCurrentValue(v any) {
	in.mu.Lock()
	in.current = v
	watching := len(in.watchers) > 0 && !in.closed
	ctx := in.watchCtx
	in.mu.Unlock()
	if watching {
		go in.fetchSelected(ctx)
	}
}

// Choices merges the latest candidate page and selected record.
func (in *Input) Choices() Choices {
	return in.Result().Choices
}

// Result combines both fetch states. Either may still be in flight.
func (in *Input) Result() InputResult {
	cand := in.candidates.snapshot()
	sel := in.selected.snapshot()
	q := in.params.Query()

	_, total := Merge(cand.Data.Data, cand.Data.Total, sel.Data)
	err := sel.Err
	if err == nil {
		err = cand.Err
	}
	return InputResult{
		Choices:      BuildChoices(cand.Data.Data, sel.Data),
		Total:        total,
		Page:         q.Page,
		PerPage:      q.PerPage,
		Sort:         q.SortPayload(),
		FilterValues: q.FilterValues(),
		CurrentValue: in.CurrentValue(),
		Error:        err,
		ErrorMessage: notify.ErrorMessage(err),
		IsLoading:    (cand.Fetching && !cand.Loaded) || (sel.Fetching && !sel.Loaded),
		IsFetching:   cand.Fetching || sel.Fetching,
	}
}

// Watch delivers a result whenever either fetch changes state, then starts
// both fetches. Parameter changes refetch the candidates.
func (in *Input) Watch(ctx context.Context, fn func(InputResult)) (stop func()) {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return func() {}
	}
	id := in.nextWatch
	in.nextWatch++
	in.watchers[id] = fn
	in.watchCtx = ctx
	in.mu.Unlock()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			in.mu.Lock()
			delete(in.watchers, id)
			in.mu.Unlock()
		})
	}
	context.AfterFunc(ctx, stop)
	go in.Refetch(ctx)
	return stop
}

func (in *Input) onParams(params.Query) {
	in.mu.Lock()
	watching := len(in.watchers) > 0 && !in.closed
	ctx := in.watchCtx
	in.mu.Unlock()
	if watching {
		go in.fetchCandidates(ctx)
	}
}

func (in *Input) emit() {
	in.mu.Lock()
	if in.closed || len(in.watchers) == 0 {
		in.mu.Unlock()
		return
	}
	fns := make([]func(InputResult), 0, len(in.watchers))
	for _, fn := range in.watchers {
		fns = append(fns, fn)
	}
	in.mu.Unlock()
	res := in.Result()
	for _, fn := range fns {
		fn(res)
	}
}

// Close stops every delivery.
func (in *Input) Close() {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.closed = true
	in.watchers = map[int]func(InputResult){}
	in.mu.Unlock()
	in.unsubscribe()
	in.params.Close()
}

func (in *Input) SetPage(page int)       { in.params.SetPage(page) }
func (in *Input) SetPerPage(perPage int) { in.params.SetPerPage(perPage) }
func (in *Input) SetSort(sort core.Sort) { in.params.SetSort(sort) }

// SetFilters replaces the search filter, debounced unless debounce is false.
func (in *Input) SetFilters(filter core.Filter, debounce bool) {
	in.params.SetFilters(filter, nil, debounce)
}
