package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	dp "backoffice/internal/dataprovider"
)

type AppCfg struct {
	Env      string
	Port     string
	LogLevel zerolog.Level
}

type ProviderCfg struct {
	// Kind is one of memory, postgres, sqlite or rest.
	Kind           string
	DSN            string
	SQLitePath     string
	RESTBaseURL    string
	RESTRetryMax   int
	RESTTimeout    time.Duration
	SnapshotPath   string
	SnapshotEvery  time.Duration
	ConnectTimeout time.Duration
}

type RedisCfg struct {
	Addr   string
	Prefix string
}

type ControllerCfg struct {
	ResourcesFile    string
	ListPerPage      int
	ListDebounce     time.Duration
	ReferencePerPage int
	UndoWindow       time.Duration
	MutationMode     dp.Mode
}

type SecurityCfg struct {
	AdminToken string
}

type Cfg struct {
	App         AppCfg
	Provider    ProviderCfg
	Redis       RedisCfg
	Controllers ControllerCfg
	Sec         SecurityCfg
}

const (
	ProviderMemory   = "memory"
	ProviderPostgres = "postgres"
	ProviderSQLite   = "sqlite"
	ProviderREST     = "rest"
)

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ADMIN_TOKEN", "")
	v.SetDefault("DATA_PROVIDER", ProviderMemory)
	v.SetDefault("SQLITE_PATH", "backoffice.db")
	v.SetDefault("REST_RETRY_MAX", 3)
	v.SetDefault("REST_TIMEOUT", "10s")
	v.SetDefault("REDIS_PREFIX", "backoffice")
	v.SetDefault("SNAPSHOT_EVERY", "30s")
	v.SetDefault("LIST_PER_PAGE", 10)
	v.SetDefault("LIST_DEBOUNCE", "500ms")
	v.SetDefault("REFERENCE_PER_PAGE", 25)
	v.SetDefault("UNDO_WINDOW", "5s")
	v.SetDefault("MUTATION_MODE", string(dp.ModeUndoable))
	v.SetDefault("CONNECT_TIMEOUT", "30s")
}

// Load reads .env when present, then the environment, and exits on an
// invalid setting.
func Load() Cfg {
	if err := godotenv.Load(".env"); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	v := viper.New()
	v.AutomaticEnv()
	SetDefaults(v)

	cfg, err := Parse(v)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	return cfg
}

// Parse builds the configuration from v and validates it.
func Parse(v *viper.Viper) (Cfg, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(v.GetString("LOG_LEVEL")))
	if err != nil {
		return Cfg{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	mode, err := dp.ParseMode(v.GetString("MUTATION_MODE"))
	if err != nil {
		return Cfg{}, fmt.Errorf("MUTATION_MODE: %w", err)
	}

	cfg := Cfg{
		App: AppCfg{
			Env:      v.GetString("APP_ENV"),
			Port:     v.GetString("APP_PORT"),
			LogLevel: level,
		},
		Provider: ProviderCfg{
			Kind:           strings.ToLower(strings.TrimSpace(v.GetString("DATA_PROVIDER"))),
			DSN:            v.GetString("DB_DSN"),
			SQLitePath:     v.GetString("SQLITE_PATH"),
			RESTBaseURL:    v.GetString("REST_BASE_URL"),
			RESTRetryMax:   v.GetInt("REST_RETRY_MAX"),
			RESTTimeout:    v.GetDuration("REST_TIMEOUT"),
			SnapshotPath:   v.GetString("SNAPSHOT_PATH"),
			SnapshotEvery:  v.GetDuration("SNAPSHOT_EVERY"),
			ConnectTimeout: v.GetDuration("CONNECT_TIMEOUT"),
		},
		Redis: RedisCfg{
			Addr:   v.GetString("REDIS_ADDR"),
			Prefix: v.GetString("REDIS_PREFIX"),
		},
		Controllers: ControllerCfg{
			ResourcesFile:    v.GetString("RESOURCES_FILE"),
			ListPerPage:      v.GetInt("LIST_PER_PAGE"),
			ListDebounce:     v.GetDuration("LIST_DEBOUNCE"),
			ReferencePerPage: v.GetInt("REFERENCE_PER_PAGE"),
			UndoWindow:       v.GetDuration("UNDO_WINDOW"),
			MutationMode:     mode,
		},
		Sec: SecurityCfg{
			AdminToken: strings.TrimSpace(v.GetString("ADMIN_TOKEN")),
		},
	}
	return cfg, cfg.validate()
}

func (c Cfg) validate() error {
	var errs []error
	switch c.Provider.Kind {
	case ProviderMemory:
	case ProviderPostgres:
		if c.Provider.DSN == "" {
			errs = append(errs, errors.New("DB_DSN is required for the postgres provider"))
		}
	case ProviderSQLite:
		if c.Provider.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite provider"))
		}
	case ProviderREST:
		if c.Provider.RESTBaseURL == "" {
			errs = append(errs, errors.New("REST_BASE_URL is required for the rest provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("DATA_PROVIDER %q is not one of memory, postgres, sqlite, rest", c.Provider.Kind))
	}
	if c.Controllers.ListPerPage <= 0 {
		errs = append(errs, errors.New("LIST_PER_PAGE must be positive"))
	}
	if c.Controllers.ReferencePerPage <= 0 {
		errs = append(errs, errors.New("REFERENCE_PER_PAGE must be positive"))
	}
	if c.Controllers.UndoWindow <= 0 {
		errs = append(errs, errors.New("UNDO_WINDOW must be positive"))
	}
	if c.Provider.RESTRetryMax < 0 {
		errs = append(errs, errors.New("REST_RETRY_MAX must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address of the HTTP server.
func (c Cfg) Addr() string { return ":" + c.App.Port }

// Dev reports whether the app runs in development mode.
func (c Cfg) Dev() bool { return c.App.Env == "dev" }
