package params

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core"
	"backoffice/internal/navigation"
)

type fakeTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
	delays []time.Duration
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{f: f}
	s.timers = append(s.timers, t)
	s.delays = append(s.delays, d)
	return t
}

// Fire runs every timer that was not stopped, as if the window elapsed.
func (s *fakeScheduler) Fire() {
	s.mu.Lock()
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func TestSetFilters_DebounceLastWriteWins(t *testing.T) {
	sched := &fakeScheduler{}
	s := NewStore(Options{Resource: "posts", AfterFunc: sched.AfterFunc})

	var applied []core.Filter
	s.Subscribe(func(q Query) { applied = append(applied, q.Filter) })

	s.SetFilters(core.Filter{"q": "A"}, nil, true)
	s.SetFilters(core.Filter{"q": "B"}, nil, true)
	assert.Empty(t, applied, "nothing is written before the window elapses")

	sched.Fire()

	require.Len(t, applied, 1)
	assert.Equal(t, core.Filter{"q": "B"}, applied[0])
	assert.Equal(t, []time.Duration{DefaultDebounce, DefaultDebounce}, sched.delays)
}

func TestSetFilters_ImmediateCancelsPending(t *testing.T) {
	sched := &fakeScheduler{}
	s := NewStore(Options{Resource: "posts", AfterFunc: sched.AfterFunc})

	s.SetFilters(core.Filter{"q": "A"}, nil, true)
	s.SetFilters(core.Filter{"q": "B"}, nil, false)
	sched.Fire()

	assert.Equal(t, core.Filter{"q": "B"}, s.Query().Filter)
}

func TestSetFilters_ResetsPage(t *testing.T) {
	s := NewStore(Options{Resource: "posts"})
	s.SetPage(4)
	s.SetFilters(core.Filter{"q": "x"}, nil, false)
	assert.Equal(t, 1, s.Query().Page)
}

func TestClose_DropsPendingWrite(t *testing.T) {
	sched := &fakeScheduler{}
	s := NewStore(Options{Resource: "posts", AfterFunc: sched.AfterFunc})
	calls := 0
	s.Subscribe(func(Query) { calls++ })

	s.SetFilters(core.Filter{"q": "A"}, nil, true)
	s.Close()
	sched.Fire()
	s.SetPage(2)

	assert.Zero(t, calls)
	assert.Empty(t, s.Query().Filter)
}

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore(Options{
		Resource: "posts",
		Defaults: Defaults{
			Sort:                core.Sort{Field: "published_at", Order: core.SortDesc},
			PerPage:             25,
			FilterDefaultValues: core.Filter{"status": "draft", "q": ""},
		},
	})
	q := s.Query()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 25, q.PerPage)
	assert.Equal(t, "published_at", q.Sort)
	assert.Equal(t, core.SortDesc, q.Order)
	assert.Equal(t, core.Filter{"status": "draft"}, q.Filter)
}

func TestLocationSync_ReadAndWrite(t *testing.T) {
	router := navigation.NewMemoryRouter(navigation.ParseLocation(
		`/posts?page=2&perPage=5&sort=title&order=DESC&filter={"q":"go"}`,
	))
	s := NewStore(Options{Resource: "posts", Router: router})

	q := s.Query()
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 5, q.PerPage)
	assert.Equal(t, "title", q.Sort)
	assert.Equal(t, core.SortDesc, q.Order)
	assert.Equal(t, core.Filter{"q": "go"}, q.Filter)

	s.SetPage(3)

	loc := router.Location()
	assert.Equal(t, "/posts", loc.Pathname)
	restored := NewStore(Options{Resource: "posts", Router: router}).Query()
	assert.Equal(t, s.Query(), restored, "a reload restores identical list state")
}

func TestLocationSync_MemoryFallback(t *testing.T) {
	mem := NewMemory()
	router := navigation.NewMemoryRouter(navigation.Location{Pathname: "/posts"})
	first := NewStore(Options{Resource: "posts", Router: router, Memory: mem})
	first.SetPerPage(50)
	first.Close()

	// Back on the list without any query string.
	fresh := navigation.NewMemoryRouter(navigation.Location{Pathname: "/posts"})
	second := NewStore(Options{Resource: "posts", Router: fresh, Memory: mem})
	assert.Equal(t, 50, second.Query().PerPage)
}

func TestLocationSync_ConcurrentWritesKeepLatestQuery(t *testing.T) {
	for round := 0; round < 20; round++ {
		mem := NewMemory()
		sched := &fakeScheduler{}
		router := navigation.NewMemoryRouter(navigation.Location{Pathname: "/posts"})
		s := NewStore(Options{Resource: "posts", Router: router, Memory: mem, AfterFunc: sched.AfterFunc})
		s.SetFilters(core.Filter{"q": "go"}, map[string]bool{"q": true}, true)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Fire()
		}()
		for page := 2; page <= 12; page++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				s.SetPage(p)
			}(page)
		}
		wg.Wait()

		want := Encode(s.Query())
		require.Equal(t, want, router.Location().Query(), "the location holds the latest query")
		saved, ok := mem.Load("posts")
		require.True(t, ok)
		require.Equal(t, want, Encode(saved))
	}
}

func TestSyncDisabled_KeepsLocationUntouched(t *testing.T) {
	router := navigation.NewMemoryRouter(navigation.ParseLocation("/posts?page=7"))
	s := NewStore(Options{Resource: "posts", Router: router, DisableSyncWithLocation: true})

	assert.Equal(t, 1, s.Query().Page, "location is ignored when sync is disabled")
	s.SetPage(2)
	assert.False(t, router.Moved())
}

func TestDecode_IgnoresMalformedValues(t *testing.T) {
	loc := navigation.ParseLocation(`/posts?page=abc&perPage=-1&order=sideways&filter={oops`)
	base := Query{Page: 1, PerPage: 10, Sort: "id", Order: core.SortAsc}
	q := Decode(loc.Query(), base)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 10, q.PerPage)
	assert.Equal(t, core.SortAsc, q.Order)
	assert.Empty(t, q.Filter)
}
