package reference

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/notify"
	"backoffice/internal/resource"
	"backoffice/internal/store/memory"
)

func records(ids ...int) []core.Record {
	out := make([]core.Record, len(ids))
	for i, id := range ids {
		out[i] = core.Record{"id": id}
	}
	return out
}

func TestMerge_SelectedAlreadyOnPage(t *testing.T) {
	for k := 1; k <= 6; k++ {
		ids := make([]int, k)
		for i := range ids {
			ids[i] = i + 1
		}
		for pick := 0; pick < k; pick++ {
			page := records(ids...)
			all, total := Merge(page, core.IntPtr(40), core.Record{"id": ids[pick]})
			assert.Equal(t, page, all)
			assert.Equal(t, 40, *total)
		}
	}
}

func TestMerge_SplicesMissingSelected(t *testing.T) {
	for k := 0; k <= 6; k++ {
		ids := make([]int, k)
		for i := range ids {
			ids[i] = i + 1
		}
		selected := core.Record{"id": 100}
		all, total := Merge(records(ids...), core.IntPtr(k+10), selected)
		require.Len(t, all, k+1)
		assert.Equal(t, selected, all[0])
		assert.Equal(t, k+11, *total)
	}
}

func TestMerge_UnknownTotalStaysUnknown(t *testing.T) {
	all, total := Merge(records(1), nil, core.Record{"id": 2})
	assert.Len(t, all, 2)
	assert.Nil(t, total)

	all, total = Merge(nil, nil, nil)
	assert.Empty(t, all)
	assert.NotNil(t, all)
	assert.Nil(t, total)
}

func TestBuildChoices(t *testing.T) {
	c := BuildChoices(records(5, 6), core.Record{"id": 7})
	assert.Equal(t, records(7, 5, 6), c.All)
	assert.Equal(t, records(5, 6), c.Available)
	assert.Equal(t, records(7), c.Selected)
}

func authors() *memory.Provider {
	return memory.New(map[string][]core.Record{
		"authors": {
			{"id": 5, "name": "Ann"},
			{"id": 6, "name": "Bob"},
			{"id": 7, "name": "Cid"},
		},
	})
}

// gated lets the test decide when each fetch returns.
type gated struct {
	dp.Provider
	list    chan struct{}
	many    chan struct{}
	listErr error
	manyErr error
}

func (g *gated) GetList(ctx context.Context, res string, p dp.GetListParams) (core.Page, error) {
	if g.list != nil {
		<-g.list
	}
	if g.listErr != nil {
		return core.Page{}, g.listErr
	}
	return g.Provider.GetList(ctx, res, p)
}

func (g *gated) GetMany(ctx context.Context, res string, p dp.GetManyParams) ([]core.Record, error) {
	if g.many != nil {
		<-g.many
	}
	if g.manyErr != nil {
		return nil, g.manyErr
	}
	return g.Provider.GetMany(ctx, res, p)
}

func TestInput_SplicesCurrentValueIntoChoices(t *testing.T) {
	in, err := NewInput(context.Background(), InputOptions{
		Reference:    "authors",
		CurrentValue: 7,
		Filter:       core.Filter{"id": []any{5, 6}},
	}, Deps{Data: authors()})
	require.NoError(t, err)
	defer in.Close()

	res := in.Refetch(context.Background())

	require.NoError(t, res.Error)
	assert.Equal(t, []core.Identifier{"7", "5", "6"}, ids(res.All))
	assert.Equal(t, 3, *res.Total)
	assert.Equal(t, []core.Identifier{"7"}, ids(res.Selected))
	assert.False(t, res.IsFetching)
	assert.Equal(t, 25, res.PerPage)
}

func ids(recs []core.Record) []core.Identifier {
	out := make([]core.Identifier, len(recs))
	for i, r := range recs {
		out[i] = r.ID()
	}
	return out
}

func TestInput_CurrentValueFromScope(t *testing.T) {
	ctx := resource.WithScope(context.Background(), resource.Scope{
		Resource: "books",
		Record:   core.Record{"id": 1, "author_id": 6},
	})
	in, err := NewInput(ctx, InputOptions{Reference: "authors", Source: "author_id"}, Deps{Data: authors()})
	require.NoError(t, err)
	defer in.Close()

	assert.Equal(t, 6, in.CurrentValue())
	res := in.Refetch(ctx)
	assert.Equal(t, []core.Identifier{"6"}, ids(res.Selected))
	assert.Equal(t, []core.Identifier{"5", "6", "7"}, ids(res.All))
}

func TestInput_NoCurrentValueSkipsSelectedFetch(t *testing.T) {
	g := &gated{Provider: authors(), manyErr: errors.New("must not be called")}
	in, err := NewInput(context.Background(), InputOptions{Reference: "authors"}, Deps{Data: g})
	require.NoError(t, err)
	defer in.Close()

	res := in.Refetch(context.Background())
	assert.NoError(t, res.Error)
	assert.Empty(t, res.Selected)
	assert.Len(t, res.All, 3)
}

func TestInput_ErrorsAndBusyFlagsCombine(t *testing.T) {
	g := &gated{
		Provider: authors(),
		list:     make(chan struct{}),
		listErr:  errors.New("choices down"),
	}
	in, err := NewInput(context.Background(), InputOptions{Reference: "authors", CurrentValue: 5}, Deps{Data: g})
	require.NoError(t, err)
	defer in.Close()

	var mu sync.Mutex
	var seen []InputResult
	stop := in.Watch(context.Background(), func(r InputResult) {
		mu.Lock()
		seen = append(seen, r)
		mu.Unlock()
	})
	defer stop()

	// The selected record settles first while the candidates are held back.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, r := range seen {
			if len(r.Selected) == 1 && r.IsFetching {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "partial results are delivered")

	close(g.list)
	assert.Eventually(t, func() bool {
		r := in.Result()
		return !r.IsFetching && r.Error != nil
	}, time.Second, 5*time.Millisecond)

	res := in.Result()
	assert.Equal(t, "choices down", res.ErrorMessage)
	assert.Equal(t, []core.Identifier{"5"}, ids(res.All), "the selected record stays selectable")
}

func TestInput_WatchFollowsCurrentValue(t *testing.T) {
	in, err := NewInput(context.Background(), InputOptions{
		Reference:    "authors",
		CurrentValue: 5,
		Filter:       core.Filter{"id": []any{5, 6}},
	}, Deps{Data: authors()})
	require.NoError(t, err)
	defer in.Close()

	var mu sync.Mutex
	var seen []InputResult
	stop := in.Watch(context.Background(), func(r InputResult) {
		mu.Lock()
		seen = append(seen, r)
		mu.Unlock()
	})
	defer stop()

	assert.Eventually(t, func() bool {
		r := in.Result()
		return !r.IsFetching && len(r.All) == 2
	}, time.Second, 5*time.Millisecond)

	in.SetCurrentValue(7)

	delivered := func() (InputResult, bool) {
		mu.Lock()
		defer mu.Unlock()
		for _, r := range seen {
			if !r.IsFetching && len(r.Selected) == 1 && r.Selected[0].ID() == "7" {
				return r, true
			}
		}
		return InputResult{}, false
	}
	assert.Eventually(t, func() bool {
		_, ok := delivered()
		return ok
	}, time.Second, 5*time.Millisecond, "the new selected record is delivered")

	r, ok := delivered()
	require.True(t, ok)
	assert.Equal(t, []core.Identifier{"7", "5", "6"}, ids(r.All))
	assert.Equal(t, []core.Identifier{"5", "6"}, ids(r.Available))
	assert.Equal(t, 3, *r.Total)
	assert.Equal(t, 7, r.CurrentValue)
}

func TestInput_EnableGetChoices(t *testing.T) {
	g := &gated{Provider: authors()}
	in, err := NewInput(context.Background(), InputOptions{
		Reference:        "authors",
		EnableGetChoices: func(f core.Filter) bool { return f["q"] != nil },
	}, Deps{Data: g})
	require.NoError(t, err)
	defer in.Close()

	res := in.Refetch(context.Background())
	assert.Empty(t, res.All)
	assert.Nil(t, res.Total)

	in.SetFilters(core.Filter{"q": "bo"}, false)
	res = in.Refetch(context.Background())
	assert.Equal(t, []core.Identifier{"6"}, ids(res.All))
}

func TestInput_MissingReference(t *testing.T) {
	_, err := NewInput(context.Background(), InputOptions{}, Deps{Data: authors()})
	assert.ErrorIs(t, err, ErrMissingReference)
}

func TestOneField(t *testing.T) {
	store := memory.New(map[string][]core.Record{
		"bios": {
			{"id": 1, "author_id": 6, "text": "Bob's bio"},
			{"id": 2, "author_id": 7, "text": "Cid's bio"},
		},
	})
	f, err := NewOneField(context.Background(), OneFieldOptions{
		Reference: "bios",
		Target:    "author_id",
		Record:    core.Record{"id": 7},
	}, OneFieldDeps{Data: store})
	require.NoError(t, err)

	res := f.Load(context.Background())
	require.NoError(t, res.Error)
	assert.Equal(t, "Cid's bio", res.Record["text"])
}

func TestOneField_DisabledWithoutRecord(t *testing.T) {
	f, err := NewOneField(context.Background(), OneFieldOptions{Reference: "bios", Target: "author_id"},
		OneFieldDeps{Data: &gated{manyErr: errors.New("unused")}})
	require.NoError(t, err)
	assert.False(t, f.Enabled())
	assert.Equal(t, OneFieldResult{}, f.Load(context.Background()))
}

type failingRefs struct{ dp.Provider }

func (failingRefs) GetManyReference(context.Context, string, dp.GetManyReferenceParams) (core.Page, error) {
	return core.Page{}, errors.New("refs down")
}

func TestOneField_NotifiesOnError(t *testing.T) {
	rec := notify.NewRecorder(nil)
	f, err := NewOneField(context.Background(), OneFieldOptions{
		Reference: "bios",
		Target:    "author_id",
		Record:    core.Record{"id": 7},
	}, OneFieldDeps{Data: failingRefs{}, Notifier: rec})
	require.NoError(t, err)

	res := f.Load(context.Background())
	assert.Equal(t, "refs down", res.ErrorMessage)
	n, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.TypeWarning, n.Type)
}
