package list

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"backoffice/internal/auth"
	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/navigation"
	"backoffice/internal/notify"
	"backoffice/internal/params"
	"backoffice/internal/resource"
	"backoffice/internal/selection"
)

// ErrFilterElement is returned when a filter UI element is passed as a
// permanent filter value. Filter inputs belong in Options.Filters.
var ErrFilterElement = errors.New("list filter holds a filter input element: pass filter inputs in Filters and values in Filter")

const maxPageCorrections = 5

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type Options struct {
	// Resource overrides the resource bound to the context.
	Resource string
	// Filter is the permanent filter. It wins over interactive filter keys.
	Filter              core.Filter
	Filters             []core.FilterInput
	FilterDefaultValues core.Filter
	Sort                core.Sort
	PerPage             int
	Debounce            time.Duration
	// DisableSyncWithLocation keeps the list parameters out of the location.
	DisableSyncWithLocation bool
	DisableAuthentication   bool
}

// Deps are the collaborators of a controller. Nil fields get defaults.
type Deps struct {
	Data      dp.Provider
	Selection selection.Store
	Notifier  notify.Notifier
	Auth      auth.Checker
	Router    navigation.Router
	Memory    *params.Memory
	AfterFunc params.AfterFunc
}

// Result is everything a list view reads.
type Result struct {
	Resource         string             `json:"resource"`
	Status           Status             `json:"status"`
	Data             []core.Record      `json:"data"`
	Total            *int               `json:"total"`
	Page             int                `json:"page"`
	PerPage          int                `json:"perPage"`
	Sort             core.Sort          `json:"sort"`
	FilterValues     core.Filter        `json:"filterValues"`
	DisplayedFilters map[string]bool    `json:"displayedFilters"`
	PermanentFilter  core.Filter        `json:"filter,omitempty"`
	Filters          []core.FilterInput `json:"filters,omitempty"`
	SelectedIDs      []core.Identifier  `json:"selectedIds"`
	HasNextPage      *bool              `json:"hasNextPage"`
	HasPreviousPage  *bool              `json:"hasPreviousPage"`
	Error            error              `json:"-"`
	ErrorMessage     string             `json:"error,omitempty"`
	IsLoading        bool               `json:"isLoading"`
	IsFetching       bool               `json:"isFetching"`
}

// Controller drives one list view.
type Controller struct {
	resource string
	opts     Options
	deps     Deps
	params   *params.Store

	mu          sync.Mutex
	gen         uint64
	last        core.Page
	loaded      bool
	lastErr     error
	status      Status
	watchers    map[int]func(Result)
	nextWatch   int
	watchCtx    context.Context
	closed      bool
	unsubscribe func()
}

// New validates the options, checks authentication and builds the
// parameter store. It does not fetch.
func New(ctx context.Context, opts Options, deps Deps) (*Controller, error) {
	name, err := resource.ResolveName(ctx, opts.Resource)
	if err != nil {
		return nil, err
	}
	if err := validateFilter(opts.Filter); err != nil {
		return nil, err
	}
	if deps.Data == nil {
		return nil, fmt.Errorf("list %s: data provider is required", name)
	}
	if err := auth.Guard(ctx, deps.Auth, opts.DisableAuthentication); err != nil {
		return nil, err
	}
	if deps.Selection == nil {
		deps.Selection = selection.NewMemory()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Log{}
	}
	if opts.PerPage <= 0 {
		opts.PerPage = params.DefaultPerPage
	}
	if opts.Sort.Field == "" {
		opts.Sort = core.DefaultSort
	}

	c := &Controller{
		resource: name,
		opts:     opts,
		deps:     deps,
		status:   StatusIdle,
		watchers: make(map[int]func(Result)),
	}
	c.params = params.NewStore(params.Options{
		Resource: name,
		Defaults: params.Defaults{
			Sort:                opts.Sort,
			PerPage:             opts.PerPage,
			FilterDefaultValues: opts.FilterDefaultValues,
		},
		Debounce:                opts.Debounce,
		Router:                  deps.Router,
		DisableSyncWithLocation: opts.DisableSyncWithLocation,
		Memory:                  deps.Memory,
		AfterFunc:               deps.AfterFunc,
	})
	c.unsubscribe = c.params.Subscribe(c.onParams)
	return c, nil
}

func validateFilter(f core.Filter) error {
	for key, v := range f {
		switch v.(type) {
		case core.FilterInput, *core.FilterInput, []core.FilterInput, []*core.FilterInput:
			return fmt.Errorf("%w (key %q)", ErrFilterElement, key)
		}
	}
	return nil
}

func (c *Controller) Resource() string { return c.resource }

// Query returns the current list parameters.
func (c *Controller) Query() params.Query { return c.params.Query() }

// Load fetches the current page, correcting the page and fetching again
// while it is out of range.
func (c *Controller) Load(ctx context.Context) Result {
	var res Result
	for i := 0; ; i++ {
		gen := c.begin(ctx)
		q := c.params.Query()
		page, err := c.fetch(ctx, q)
		res = c.finish(ctx, gen, q, page, err)
		if err != nil {
			return res
		}
		next, changed := CorrectPage(q.Page, q.PerPage, len(page.Data), page.Total, false)
		if !changed {
			return res
		}
		if i == maxPageCorrections {
			log.Warn().Str("resource", c.resource).Int("page", q.Page).Msg("list: giving up page correction")
			return res
		}
		log.Debug().Str("resource", c.resource).Int("from", q.Page).Int("to", next).Msg("list: correcting page")
		c.params.SetPage(next)
	}
}

// Refetch fetches again with unchanged parameters.
func (c *Controller) Refetch(ctx context.Context) Result { return c.Load(ctx) }

// Watch delivers a Result on every state change: a loading result when a
// fetch starts and the settled result after. Changing the parameters
// triggers a new fetch. Results of superseded fetches are dropped.
func (c *Controller) Watch(ctx context.Context, fn func(Result)) (stop func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return func() {}
	}
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = fn
	c.watchCtx = ctx
	c.mu.Unlock()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
		})
	}
	context.AfterFunc(ctx, stop)
	go c.refresh(ctx)
	return stop
}

func (c *Controller) onParams(params.Query) {
	c.mu.Lock()
	watching := len(c.watchers) > 0 && !c.closed
	ctx := c.watchCtx
	c.mu.Unlock()
	if watching {
		go c.refresh(ctx)
	}
}

func (c *Controller) refresh(ctx context.Context) {
	gen := c.begin(ctx)
	q := c.params.Query()
	page, err := c.fetch(ctx, q)
	if !c.current(gen) {
		return
	}
	c.finish(ctx, gen, q, page, err)
	if err != nil {
		return
	}
	if next, changed := CorrectPage(q.Page, q.PerPage, len(page.Data), page.Total, false); changed {
		c.params.SetPage(next)
	}
}

// Close stops every delivery and cancels a pending debounced filter write.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.watchers = map[int]func(Result){}
	c.gen++
	c.mu.Unlock()
	c.unsubscribe()
	c.params.Close()
}

func (c *Controller) begin(ctx context.Context) uint64 {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.status = StatusLoading
	c.mu.Unlock()
	c.emit(gen, c.snapshot(ctx, c.params.Query(), true))
	return gen
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.gen == gen
}

func (c *Controller) fetch(ctx context.Context, q params.Query) (core.Page, error) {
	return c.deps.Data.GetList(ctx, c.resource, dp.GetListParams{
		Pagination: q.Pagination(),
		Sort:       q.SortPayload(),
		Filter:     q.Filter.Merge(c.opts.Filter),
	})
}

func (c *Controller) finish(ctx context.Context, gen uint64, q params.Query, page core.Page, err error) Result {
	c.mu.Lock()
	stale := c.closed || c.gen != gen
	status := StatusSuccess
	loaded := true
	if err != nil {
		status = StatusError
		page, loaded = c.last, c.loaded
	}
	if !stale {
		c.status, c.lastErr = status, err
		if err == nil {
			c.last, c.loaded = page, true
		}
	}
	c.mu.Unlock()

	if err != nil && !stale {
		log.Warn().Err(err).Str("resource", c.resource).Msg("list: fetch failed")
		c.deps.Notifier.Notify(notify.FromError(err))
	}
	res := c.build(ctx, q, page, loaded, status, err, false)
	c.emit(gen, res)
	return res
}

// Result returns the current state without fetching.
func (c *Controller) Result(ctx context.Context) Result {
	return c.snapshot(ctx, c.params.Query(), false)
}

func (c *Controller) snapshot(ctx context.Context, q params.Query, fetching bool) Result {
	c.mu.Lock()
	page, loaded, status, lastErr := c.last, c.loaded, c.status, c.lastErr
	c.mu.Unlock()
	return c.build(ctx, q, page, loaded, status, lastErr, fetching)
}

func (c *Controller) build(ctx context.Context, q params.Query, page core.Page, loaded bool, status Status, err error, fetching bool) Result {
	displayed := make(map[string]bool, len(q.DisplayedFilters)+len(c.opts.Filters))
	for k, v := range q.DisplayedFilters {
		if v {
			displayed[k] = true
		}
	}
	for _, in := range c.opts.Filters {
		if in.AlwaysOn {
			displayed[in.Source] = true
		}
	}

	data := page.Data
	if data == nil {
		data = []core.Record{}
	}
	res := Result{
		Resource:         c.resource,
		Status:           status,
		Data:             data,
		Total:            page.Total,
		Page:             q.Page,
		PerPage:          q.PerPage,
		Sort:             q.SortPayload(),
		FilterValues:     q.FilterValues(),
		DisplayedFilters: displayed,
		PermanentFilter:  c.opts.Filter,
		Filters:          c.opts.Filters,
		SelectedIDs:      c.selectedIDs(ctx),
		Error:            err,
		ErrorMessage:     notify.ErrorMessage(err),
		IsLoading:        fetching && !loaded,
		IsFetching:       fetching,
	}
	if loaded {
		res.HasNextPage, res.HasPreviousPage = PageFlags(q.Page, q.PerPage, page.Total, page.PageInfo)
	}
	return res
}

func (c *Controller) selectedIDs(ctx context.Context) []core.Identifier {
	ids, err := c.deps.Selection.Get(ctx, c.resource)
	if err != nil {
		log.Warn().Err(err).Str("resource", c.resource).Msg("list: reading selection failed")
		return []core.Identifier{}
	}
	return ids
}

func (c *Controller) emit(gen uint64, res Result) {
	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		return
	}
	fns := make([]func(Result), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(res)
	}
}

func (c *Controller) SetPage(page int)       { c.params.SetPage(page) }
func (c *Controller) SetPerPage(perPage int) { c.params.SetPerPage(perPage) }
func (c *Controller) SetSort(sort core.Sort) { c.params.SetSort(sort) }

// SetFilters replaces the interactive filter, debounced unless debounce is
// false.
func (c *Controller) SetFilters(filter core.Filter, displayed map[string]bool, debounce bool) {
	c.params.SetFilters(filter, displayed, debounce)
}

func (c *Controller) ShowFilter(name string, defaultValue any) {
	c.params.ShowFilter(name, defaultValue)
}
func (c *Controller) HideFilter(name string) { c.params.HideFilter(name) }

func (c *Controller) Select(ctx context.Context, ids []core.Identifier) error {
	return c.deps.Selection.Select(ctx, c.resource, ids)
}

func (c *Controller) Toggle(ctx context.Context, id core.Identifier) error {
	return c.deps.Selection.Toggle(ctx, c.resource, id)
}

func (c *Controller) ClearSelection(ctx context.Context) error {
	return c.deps.Selection.Clear(ctx, c.resource)
}

func (c *Controller) Unselect(ctx context.Context, ids []core.Identifier) error {
	return c.deps.Selection.Unselect(ctx, c.resource, ids)
}
