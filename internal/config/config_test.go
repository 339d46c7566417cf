package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dp "backoffice/internal/dataprovider"
)

func newViper(kv map[string]any) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	for k, val := range kv {
		v.Set(k, val)
	}
	return v
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(newViper(nil))
	require.NoError(t, err)

	assert.Equal(t, ProviderMemory, cfg.Provider.Kind)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.True(t, cfg.Dev())
	assert.Equal(t, zerolog.InfoLevel, cfg.App.LogLevel)
	assert.Equal(t, 10, cfg.Controllers.ListPerPage)
	assert.Equal(t, 500*time.Millisecond, cfg.Controllers.ListDebounce)
	assert.Equal(t, 25, cfg.Controllers.ReferencePerPage)
	assert.Equal(t, 5*time.Second, cfg.Controllers.UndoWindow)
	assert.Equal(t, dp.ModeUndoable, cfg.Controllers.MutationMode)
	assert.Equal(t, 30*time.Second, cfg.Provider.SnapshotEvery)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse(newViper(map[string]any{
		"DATA_PROVIDER":  " Postgres ",
		"DB_DSN":         "postgres://localhost/backoffice",
		"ADMIN_TOKEN":    "  s3cret ",
		"LOG_LEVEL":      "DEBUG",
		"UNDO_WINDOW":    "2s",
		"MUTATION_MODE":  "pessimistic",
		"REDIS_ADDR":     "localhost:6379",
		"RESOURCES_FILE": "resources.yaml",
	}))
	require.NoError(t, err)

	assert.Equal(t, ProviderPostgres, cfg.Provider.Kind)
	assert.Equal(t, "s3cret", cfg.Sec.AdminToken)
	assert.Equal(t, zerolog.DebugLevel, cfg.App.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.Controllers.UndoWindow)
	assert.Equal(t, dp.ModePessimistic, cfg.Controllers.MutationMode)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "resources.yaml", cfg.Controllers.ResourcesFile)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		kv   map[string]any
		want string
	}{
		{"unknown provider", map[string]any{"DATA_PROVIDER": "mongo"}, `DATA_PROVIDER "mongo"`},
		{"postgres without dsn", map[string]any{"DATA_PROVIDER": "postgres"}, "DB_DSN is required"},
		{"rest without url", map[string]any{"DATA_PROVIDER": "rest"}, "REST_BASE_URL is required"},
		{"bad per page", map[string]any{"LIST_PER_PAGE": 0}, "LIST_PER_PAGE"},
		{"bad level", map[string]any{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"bad mode", map[string]any{"MUTATION_MODE": "eventually"}, "MUTATION_MODE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(newViper(tt.kv))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
