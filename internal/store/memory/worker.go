package memory

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Worker saves a snapshot of the provider whenever it changed since the last
// save.
type Worker struct {
	provider  *Provider
	file      *SnapshotFile
	saveEvery time.Duration
	saved     uint64
}

func NewWorker(p *Provider, file *SnapshotFile, every time.Duration) *Worker {
	if every <= 0 {
		every = 30 * time.Second
	}
	return &Worker{provider: p, file: file, saveEvery: every, saved: p.Version()}
}

// Run saves on every tick and once more when ctx is done.
func (w *Worker) Run(ctx context.Context) {
	log.Info().Str("path", w.file.Path()).Dur("every", w.saveEvery).Msg("snapshot worker: started")
	t := time.NewTicker(w.saveEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := w.tick(context.WithoutCancel(ctx)); err != nil {
				log.Error().Err(err).Msg("snapshot worker: final save failed")
			}
			log.Info().Msg("snapshot worker: stopping")
			return
		case <-t.C:
			if err := w.tick(ctx); err != nil {
				log.Error().Err(err).Msg("snapshot worker: save failed")
			}
		}
	}
}

func (w *Worker) tick(ctx context.Context) error {
	data, version := w.provider.Snapshot()
	if version == w.saved {
		return nil
	}
	if err := w.file.Save(ctx, data); err != nil {
		return err
	}
	w.saved = version
	log.Debug().Uint64("version", version).Msg("snapshot worker: saved")
	return nil
}
