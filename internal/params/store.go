package params

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"backoffice/internal/core"
	"backoffice/internal/navigation"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultPerPage  = 10
)

// Timer is the handle of a scheduled function.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Defaults seed the query when neither the location nor memory has one.
type Defaults struct {
	Sort                core.Sort
	PerPage             int
	Page                int
	FilterDefaultValues core.Filter
}

type Options struct {
	Resource string
	Defaults Defaults
	// Debounce delays debounced filter writes. Zero means DefaultDebounce.
	Debounce                time.Duration
	Router                  navigation.Router
	DisableSyncWithLocation bool
	Memory                  *Memory
	AfterFunc               AfterFunc
}

// Store holds the query of one list and its modifiers.
type Store struct {
	mu sync.Mutex
	// persistMu orders memory and location writes.
	persistMu sync.Mutex
	opts      Options
	query     Query
	pending   Timer
	pendingID int
	subs      map[int]func(Query)
	nextSub   int
	closed    bool
}

// NewStore builds the initial query from the location, then memory, then
// defaults.
func NewStore(opts Options) *Store {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	s := &Store{opts: opts, subs: make(map[int]func(Query))}
	s.query = s.initialQuery()
	return s
}

func (s *Store) syncing() bool {
	return !s.opts.DisableSyncWithLocation && s.opts.Router != nil
}

func (s *Store) initialQuery() Query {
	d := s.opts.Defaults
	base := Query{
		Page:             d.Page,
		PerPage:          d.PerPage,
		Sort:             d.Sort.Field,
		Order:            d.Sort.Order,
		Filter:           core.Filter{},
		DisplayedFilters: map[string]bool{},
	}
	if base.Page < 1 {
		base.Page = 1
	}
	if base.PerPage < 1 {
		base.PerPage = DefaultPerPage
	}
	if base.Sort == "" {
		base.Sort = core.DefaultSort.Field
	}
	if !base.Order.Valid() {
		base.Order = core.DefaultSort.Order
	}

	q := base
	if s.syncing() {
		if v := s.opts.Router.Location().Query(); HasQuery(v) {
			q = Decode(v, base)
		} else if saved, ok := s.opts.Memory.Load(s.opts.Resource); ok {
			q = saved
		}
	}
	if len(q.Filter) == 0 && len(d.FilterDefaultValues) > 0 {
		q.Filter = RemoveEmpty(d.FilterDefaultValues)
	}
	return q
}

// Query returns a copy of the current query.
func (s *Store) Query() Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query.Clone()
}

// SetFilters replaces the filter and displayed filters. With debounce, the
// write waits for the debounce window and a later call replaces it.
func (s *Store) SetFilters(filter core.Filter, displayed map[string]bool, debounce bool) {
	a := Action{Type: ActionSetFilter, Filter: filter.Clone(), DisplayedFilters: copyDisplayed(displayed)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.cancelPendingLocked()
	if !debounce {
		s.mu.Unlock()
		s.dispatch(a)
		return
	}
	s.pendingID++
	id := s.pendingID
	s.pending = s.opts.AfterFunc(s.opts.Debounce, func() {
		s.mu.Lock()
		stale := s.closed || s.pendingID != id
		if !stale {
			s.pending = nil
		}
		s.mu.Unlock()
		if !stale {
			s.dispatch(a)
		}
	})
	s.mu.Unlock()
}

func (s *Store) SetPage(page int) {
	s.dispatch(Action{Type: ActionSetPage, Page: page})
}

func (s *Store) SetPerPage(perPage int) {
	s.dispatch(Action{Type: ActionSetPerPage, PerPage: perPage})
}

// SetSort sorts by sort.Field. An empty order on the current field toggles it.
func (s *Store) SetSort(sort core.Sort) {
	s.dispatch(Action{Type: ActionSetSort, Sort: sort})
}

func (s *Store) ShowFilter(name string, defaultValue any) {
	s.dispatch(Action{Type: ActionShowFilter, FilterName: name, DefaultValue: defaultValue})
}

func (s *Store) HideFilter(name string) {
	s.dispatch(Action{Type: ActionHideFilter, FilterName: name})
}

// Subscribe calls fn with the new query after every change.
func (s *Store) Subscribe(fn func(Query)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close cancels any pending write and stops notifications.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.cancelPendingLocked()
	s.subs = map[int]func(Query){}
	s.mu.Unlock()
}

func (s *Store) cancelPendingLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.pendingID++
}

func (s *Store) dispatch(a Action) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.query
	next := Reduce(prev, a)
	if queriesEqual(prev, next) {
		s.mu.Unlock()
		return
	}
	s.query = next
	subs := make([]func(Query), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if s.syncing() {
		s.persist()
	}
	for _, fn := range subs {
		fn(next.Clone())
	}
}

// persist writes the latest query, so concurrent dispatches cannot leave an
// older one in memory or the location.
func (s *Store) persist() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	q := s.query.Clone()
	s.mu.Unlock()

	s.opts.Memory.Save(s.opts.Resource, q)
	loc := s.opts.Router.Location()
	search := "?" + Encode(q).Encode()
	if loc.Search == search {
		return
	}
	log.Debug().
		Str("resource", s.opts.Resource).
		Str("search", search).
		Msg("syncing list parameters to location")
	s.opts.Router.Navigate(loc.Pathname+search, loc.State)
}

func queriesEqual(a, b Query) bool {
	ea, _ := encodeJSON(a)
	eb, _ := encodeJSON(b)
	return ea == eb
}
