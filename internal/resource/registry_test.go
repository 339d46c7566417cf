package resource

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core"
)

func TestRegister_EqualDefinitionIsNoop(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Subscribe(func(map[string]Definition) { calls++ })

	def := Definition{
		Name:    "posts",
		HasList: true,
		HasEdit: true,
		Options: map[string]any{"label": "Posts"},
	}

	assert.True(t, reg.Register(def))
	before := reg.Definitions()

	// A structurally identical copy built separately.
	again := Definition{
		Name:    "posts",
		HasList: true,
		HasEdit: true,
		Options: map[string]any{"label": "Posts"},
	}
	assert.False(t, reg.Register(again))

	assert.Equal(t, 1, calls, "second registration must not notify subscribers")
	assert.Equal(t, before, reg.Definitions())
}

type iconSpec struct {
	name string
}

func TestRegister_OptionsWithUnexportedFields(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Subscribe(func(map[string]Definition) { calls++ })

	build := func(icon string) Definition {
		return Definition{
			Name:    "posts",
			HasList: true,
			Options: map[string]any{"icon": iconSpec{name: icon}},
		}
	}

	assert.True(t, reg.Register(build("book")))
	assert.NotPanics(t, func() {
		assert.False(t, reg.Register(build("book")))
	})
	assert.Equal(t, 1, calls)

	assert.True(t, reg.Register(build("pen")), "a different unexported value is a change")
	assert.Equal(t, 2, calls)
}

func TestRegister_ChangedDefinitionOverwrites(t *testing.T) {
	reg := NewRegistry(Definition{Name: "posts", HasList: true})
	var snapshots []map[string]Definition
	reg.Subscribe(func(s map[string]Definition) { snapshots = append(snapshots, s) })

	assert.True(t, reg.Register(Definition{Name: "posts", HasList: true, HasShow: true}))

	got, ok := reg.Definition("posts")
	require.True(t, ok)
	assert.True(t, got.HasShow)
	require.Len(t, snapshots, 1)
	assert.True(t, snapshots[0]["posts"].HasShow)
}

func TestUnregister_RemovesUnconditionally(t *testing.T) {
	reg := NewRegistry(Definition{Name: "posts", HasList: true})

	reg.Unregister(Definition{Name: "posts"})

	_, ok := reg.Definition("posts")
	assert.False(t, ok)
	assert.Empty(t, reg.Names())
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	unsubscribe := reg.Subscribe(func(map[string]Definition) { calls++ })
	unsubscribe()

	reg.Register(Definition{Name: "posts"})
	assert.Zero(t, calls)
}

func TestResolve_OverridesWinOverRegistered(t *testing.T) {
	reg := NewRegistry(Definition{Name: "posts", HasEdit: true, HasShow: true})

	def := reg.Resolve("posts", Overrides{HasEdit: core.BoolPtr(false)})
	assert.False(t, def.HasEdit)
	assert.True(t, def.HasShow)

	unknown := reg.Resolve("tags", Overrides{HasList: core.BoolPtr(true)})
	assert.Equal(t, Definition{Name: "tags", HasList: true}, unknown)
}

func TestLoadDefinitions(t *testing.T) {
	doc := `
resources:
  - name: posts
    hasList: true
    hasEdit: true
    options:
      label: Blog posts
  - name: comments
    hasList: true
`
	defs, err := LoadDefinitions(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "Blog posts", defs[0].Label())
	assert.Equal(t, "comments", defs[1].Label())
}

func TestLoadDefinitions_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing name", "resources:\n  - hasList: true\n"},
		{"duplicate", "resources:\n  - name: a\n  - name: a\n"},
		{"unknown field", "resources:\n  - name: a\n    hasLsit: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDefinitions(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestResolveName(t *testing.T) {
	_, err := ResolveName(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingResource)

	ctx := WithResource(context.Background(), "posts")
	name, err := ResolveName(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "posts", name)

	name, err = ResolveName(ctx, "comments")
	require.NoError(t, err)
	assert.Equal(t, "comments", name, "explicit override wins over the ambient scope")
}

func TestWithScope_InheritsFromParent(t *testing.T) {
	ctx := WithResource(context.Background(), "comments")
	ctx = WithScope(ctx, Scope{Record: core.Record{"id": 1, "post_id": 7}})

	s := ScopeFrom(ctx)
	assert.Equal(t, "comments", s.Resource)
	assert.Equal(t, core.Identifier("1"), s.Record.ID())
	assert.Equal(t, core.Identifier("1"), ResolveRecord(ctx, nil).ID())
	assert.Equal(t, core.Identifier("9"), ResolveRecord(ctx, core.Record{"id": 9}).ID())
}
