package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"backoffice/internal/app"
	"backoffice/internal/config"
	"backoffice/internal/core"
	"backoffice/internal/store/memory"
)

// snapshotOpener returns an opener backed by a memory provider restored from
// a snapshot file, so state survives across command runs.
func snapshotOpener(t *testing.T) opener {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	seed := map[string][]core.Record{
		"posts": {
			{"id": 1, "title": "Hello", "status": "published"},
			{"id": 2, "title": "World", "status": "draft"},
			{"id": 3, "title": "Again", "status": "published"},
		},
	}
	require.NoError(t, memory.NewSnapshotFile(path).Save(context.Background(), seed))

	v := viper.New()
	config.SetDefaults(v)
	v.Set("SNAPSHOT_PATH", path)
	v.Set("SNAPSHOT_EVERY", "1h")
	cfg, err := config.Parse(v)
	require.NoError(t, err)

	return func(ctx context.Context) (*app.App, error) {
		return app.New(ctx, cfg)
	}
}

func run(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(open)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestList_FilterAndSort(t *testing.T) {
	open := snapshotOpener(t)
	out, err := run(t, open, "list", "posts", "--filter", `{"status":"published"}`, "--sort", "id", "--order", "DESC")
	require.NoError(t, err)

	var res struct {
		Data  []core.Record `json:"data"`
		Total int           `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Data, 2)
	assert.Equal(t, core.Identifier("3"), res.Data[0].ID())
}

func TestList_BadOrder(t *testing.T) {
	_, err := run(t, snapshotOpener(t), "list", "posts", "--order", "SIDEWAYS")
	assert.ErrorContains(t, err, "--order")
}

func TestShow_YAML(t *testing.T) {
	out, err := run(t, snapshotOpener(t), "show", "posts", "2", "--format", "yaml")
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "World", rec["title"])
}

func TestShow_Missing(t *testing.T) {
	_, err := run(t, snapshotOpener(t), "show", "posts", "99")
	assert.Error(t, err)
}

func TestChoices_IncludeCurrentValue(t *testing.T) {
	out, err := run(t, snapshotOpener(t), "choices", "posts", "--value", "3", "--per-page", "1", "--sort", "id")
	require.NoError(t, err)

	var res struct {
		All []core.Record `json:"allChoices"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.All, 2)
	assert.Equal(t, core.Identifier("3"), res.All[0].ID())
	assert.Equal(t, core.Identifier("1"), res.All[1].ID())
}

func TestDelete_PersistsAcrossRuns(t *testing.T) {
	open := snapshotOpener(t)
	_, err := run(t, open, "delete", "posts", "2")
	require.NoError(t, err)

	_, err = run(t, open, "show", "posts", "2")
	assert.Error(t, err)
	_, err = run(t, open, "show", "posts", "1")
	assert.NoError(t, err)
}

func TestDelete_UnknownMode(t *testing.T) {
	_, err := run(t, snapshotOpener(t), "delete", "posts", "2", "--mode", "later")
	assert.ErrorContains(t, err, "unknown mutation mode")
}

func TestRender_UnknownFormat(t *testing.T) {
	assert.Error(t, render(&bytes.Buffer{}, "toml", map[string]any{}))
}
