package record

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/notify"
)

// Transform rewrites form data before it is saved. previous is nil on create.
type Transform func(data, previous core.Record) (core.Record, error)

// SaveOptions override the controller options for a single save.
type SaveOptions struct {
	Transform Transform
	OnSuccess func(core.Record)
	OnError   func(error)
}

// SaveFunc sends data to the mutator and returns the undo token, if any.
type SaveFunc func(ctx context.Context, data core.Record, opts dp.MutateOptions) string

// Middleware wraps the save of a create or edit controller, e.g. to upload
// files before the record is written.
type Middleware func(next SaveFunc) SaveFunc

type middlewares struct {
	mu    sync.Mutex
	next  int
	chain map[int]Middleware
	order []int
}

// Use registers mw. The returned function unregisters it.
func (m *middlewares) Use(mw Middleware) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chain == nil {
		m.chain = make(map[int]Middleware)
	}
	id := m.next
	m.next++
	m.chain[id] = mw
	m.order = append(m.order, id)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.chain, id)
		for i, o := range m.order {
			if o == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
}

// wrap applies the middlewares so that the first registered runs first.
func (m *middlewares) wrap(save SaveFunc) SaveFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		save = m.chain[m.order[i]](save)
	}
	return save
}

func pickTransform(fromSave, fromOptions Transform) Transform {
	if fromSave != nil {
		return fromSave
	}
	return fromOptions
}

// pickCallbacks resolves the success and error callbacks: the save options
// win over the controller options, which win over the defaults.
func pickCallbacks(save SaveOptions, onSuccess func(core.Record), onError func(error), defSuccess func(core.Record), defError func(error)) (func(core.Record), func(error)) {
	success, failure := defSuccess, defError
	if onSuccess != nil {
		success = onSuccess
	}
	if save.OnSuccess != nil {
		success = save.OnSuccess
	}
	if onError != nil {
		failure = onError
	}
	if save.OnError != nil {
		failure = save.OnError
	}
	return success, failure
}

func notifyFailure(n notify.Notifier, resource, op string) func(error) {
	return func(err error) {
		log.Warn().Err(err).Str("resource", resource).Str("op", op).Msg("record: save failed")
		n.Notify(notify.FromError(err))
	}
}
