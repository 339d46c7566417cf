package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"backoffice/internal/app"
	"backoffice/internal/config"
	httpx "backoffice/internal/http"
)

func main() {
	cfg := config.Load()
	zerolog.SetGlobalLevel(cfg.App.LogLevel)
	if cfg.Dev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	// Snapshot worker and friends
	workersDone := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(workersDone)
	}()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      httpx.NewRouter(httpx.DepsFromApp(a)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("addr", srv.Addr).Str("provider", cfg.Provider.Kind).Msg("admin API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// pending undoable mutations are committed before the final snapshot
	a.Mutator.Flush()
	cancel()
	<-workersDone
	a.Close()
	log.Info().Msg("server stopped")
}
