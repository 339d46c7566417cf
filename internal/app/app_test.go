package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/config"
	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/selection"
	"backoffice/internal/store/memory"
	"backoffice/internal/store/sqlite"
)

func testConfig(t *testing.T, kv map[string]any) config.Cfg {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	for k, val := range kv {
		v.Set(k, val)
	}
	cfg, err := config.Parse(v)
	require.NoError(t, err)
	return cfg
}

func TestNew_MemoryWithSnapshotAndResources(t *testing.T) {
	dir := t.TempDir()
	resources := filepath.Join(dir, "resources.yaml")
	require.NoError(t, os.WriteFile(resources, []byte("resources:\n  - name: posts\n    hasList: true\n    hasEdit: true\n"), 0o644))
	snapshot := filepath.Join(dir, "data.json")

	cfg := testConfig(t, map[string]any{
		"RESOURCES_FILE": resources,
		"SNAPSHOT_PATH":  snapshot,
		"SNAPSHOT_EVERY": "1h",
		"UNDO_WINDOW":    "1h",
	})
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	def, ok := a.Registry.Definition("posts")
	require.True(t, ok)
	assert.True(t, def.HasEdit)
	assert.IsType(t, &memory.Provider{}, a.Provider)
	assert.IsType(t, &selection.Memory{}, a.Selection)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	a.Mutator.Create(context.Background(), "posts", dp.CreateParams{Data: core.Record{"id": 1, "title": "Hi"}},
		dp.MutateOptions{Mode: dp.ModeUndoable})
	assert.Equal(t, 1, a.Mutator.Pending())
	a.Mutator.Flush()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not stop")
	}
	a.Close()

	saved, err := memory.NewSnapshotFile(snapshot).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, saved["posts"], 1)
	assert.Equal(t, "Hi", saved["posts"][0]["title"])
}

func TestNew_SQLiteAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, map[string]any{
		"DATA_PROVIDER":   "sqlite",
		"SQLITE_PATH":     ":memory:",
		"REDIS_ADDR":      mr.Addr(),
		"CONNECT_TIMEOUT": "2s",
	})
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &sqlite.Provider{}, a.Provider)
	assert.IsType(t, &selection.Redis{}, a.Selection)

	require.NoError(t, a.Selection.Select(context.Background(), "posts", core.IDs(1)))
	ids, err := a.Selection.Get(context.Background(), "posts")
	require.NoError(t, err)
	assert.Equal(t, core.IDs(1), ids)
}

func TestNew_RedisUnreachableGivesUp(t *testing.T) {
	cfg := testConfig(t, map[string]any{
		"REDIS_ADDR":      "127.0.0.1:1",
		"CONNECT_TIMEOUT": "300ms",
	})
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}

func TestNew_BadResourcesFile(t *testing.T) {
	cfg := testConfig(t, map[string]any{"RESOURCES_FILE": filepath.Join(t.TempDir(), "missing.yaml")})
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
