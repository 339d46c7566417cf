package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"backoffice/internal/auth"
	"backoffice/internal/config"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/params"
	"backoffice/internal/resource"
	"backoffice/internal/selection"
	"backoffice/internal/store/memory"
	"backoffice/internal/store/postgres"
	"backoffice/internal/store/rest"
	"backoffice/internal/store/sqlite"
)

// App holds the long-lived collaborators shared by every request.
type App struct {
	Cfg       config.Cfg
	Provider  dp.Provider
	Mutator   *dp.Mutator
	Selection selection.Store
	Registry  *resource.Registry
	Memory    *params.Memory
	Auth      auth.Checker

	workers []func(context.Context)
	closers []func()
}

// New connects the configured data provider and selection store and loads
// the resource definitions.
func New(ctx context.Context, cfg config.Cfg) (*App, error) {
	a := &App{
		Cfg:      cfg,
		Registry: resource.NewRegistry(),
		Memory:   params.NewMemory(),
		Auth:     auth.TokenChecker{AdminToken: cfg.Sec.AdminToken},
	}
	if err := a.loadResources(); err != nil {
		return nil, err
	}
	if err := a.openProvider(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openSelection(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.Mutator = dp.NewMutator(a.Provider, dp.MutatorOptions{UndoWindow: cfg.Controllers.UndoWindow})
	return a, nil
}

func (a *App) loadResources() error {
	path := a.Cfg.Controllers.ResourcesFile
	if path == "" {
		return nil
	}
	defs, err := resource.LoadDefinitionsFile(path)
	if err != nil {
		return fmt.Errorf("load resources %s: %w", path, err)
	}
	for _, d := range defs {
		a.Registry.Register(d)
	}
	log.Info().Int("count", len(defs)).Str("file", path).Msg("resource definitions loaded")
	return nil
}

func (a *App) openProvider(ctx context.Context) error {
	pc := a.Cfg.Provider
	switch pc.Kind {
	case config.ProviderPostgres:
		err := retry(ctx, "postgres", pc.ConnectTimeout, func() error {
			return postgres.Migrate(ctx, pc.DSN)
		})
		if err != nil {
			return err
		}
		var p *postgres.Provider
		err = retry(ctx, "postgres", pc.ConnectTimeout, func() error {
			pool, err := postgres.Open(ctx, pc.DSN)
			if err != nil {
				return err
			}
			p = postgres.NewProvider(pool)
			return nil
		})
		if err != nil {
			return err
		}
		a.Provider = p
		a.closers = append(a.closers, p.DB().Close)

	case config.ProviderSQLite:
		db, err := sqlite.Open(pc.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("close sqlite")
			}
		})
		if err := sqlite.Migrate(ctx, db); err != nil {
			return err
		}
		a.Provider = sqlite.NewProvider(db)

	case config.ProviderREST:
		a.Provider = rest.NewProvider(rest.NewHTTPClient(rest.ClientOptions{
			BaseURL:  pc.RESTBaseURL,
			RetryMax: pc.RESTRetryMax,
			Timeout:  pc.RESTTimeout,
		}))

	default:
		p := memory.New(nil)
		if pc.SnapshotPath != "" {
			file := memory.NewSnapshotFile(pc.SnapshotPath)
			data, err := file.Load(ctx)
			if err != nil {
				return err
			}
			p.Restore(data)
			a.workers = append(a.workers, memory.NewWorker(p, file, pc.SnapshotEvery).Run)
		}
		a.Provider = p
	}
	log.Info().Str("provider", pc.Kind).Msg("data provider ready")
	return nil
}

func (a *App) openSelection(ctx context.Context) error {
	rc := a.Cfg.Redis
	if rc.Addr == "" {
		a.Selection = selection.NewMemory()
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: rc.Addr})
	err := retry(ctx, "redis", a.Cfg.Provider.ConnectTimeout, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return err
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("close redis")
		}
	})
	a.Selection = selection.NewRedis(client, rc.Prefix)
	log.Info().Str("addr", rc.Addr).Msg("redis selection store ready")
	return nil
}

// retry runs op with exponential backoff until it succeeds, timeout elapses
// or ctx is done.
func retry(ctx context.Context, target string, timeout time.Duration, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = timeout
	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("target", target).Dur("retry_in", wait).Msg("connection failed, retrying")
	})
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	return nil
}

// Run starts the background workers and blocks until ctx is done and every
// worker returned.
func (a *App) Run(ctx context.Context) {
	var wg conc.WaitGroup
	for _, w := range a.workers {
		wg.Go(func() { w(ctx) })
	}
	wg.Wait()
}

// Close commits pending undoable mutations and releases connections.
func (a *App) Close() {
	if a.Mutator != nil {
		if n := a.Mutator.Pending(); n > 0 {
			log.Info().Int("pending", n).Msg("committing pending mutations")
		}
		a.Mutator.Flush()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
