package dataprovider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"backoffice/internal/core"
)

// Mode decides when the effects of a mutation become visible.
type Mode string

const (
	// ModePessimistic reports the outcome once the provider answered.
	ModePessimistic Mode = "pessimistic"
	// ModeOptimistic reports success immediately and calls the provider next.
	ModeOptimistic Mode = "optimistic"
	// ModeUndoable reports success immediately and calls the provider after
	// the undo window unless the mutation is undone first.
	ModeUndoable Mode = "undoable"
)

// ParseMode returns the mode named s.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePessimistic, ModeOptimistic, ModeUndoable:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mutation mode %q", s)
	}
}

// MutateOptions carry the mode and the outcome callbacks of one mutation.
type MutateOptions struct {
	Mode      Mode
	OnSuccess func(core.Record)
	OnError   func(error)
	// UndoToken names an undoable mutation. Empty means a generated token.
	UndoToken string
}

const DefaultUndoWindow = 5 * time.Second

type Timer interface {
	Stop() bool
}

type MutatorOptions struct {
	UndoWindow time.Duration
	AfterFunc  func(d time.Duration, f func()) Timer
}

type pendingMutation struct {
	kind     string
	resource string
	timer    Timer
	run      func()
}

// Mutator applies create, update and delete calls under a mutation mode.
type Mutator struct {
	provider Provider
	opts     MutatorOptions

	mu      sync.Mutex
	pending map[string]*pendingMutation
}

func NewMutator(p Provider, opts MutatorOptions) *Mutator {
	if opts.UndoWindow <= 0 {
		opts.UndoWindow = DefaultUndoWindow
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	return &Mutator{provider: p, opts: opts, pending: make(map[string]*pendingMutation)}
}

// Provider returns the provider the mutator writes to.
func (m *Mutator) Provider() Provider { return m.provider }

// Create adds a record. It returns the undo token of an undoable mutation.
func (m *Mutator) Create(ctx context.Context, resource string, params CreateParams, opts MutateOptions) string {
	return m.mutate(ctx, "create", resource, params.Data, func(ctx context.Context) (core.Record, error) {
		return m.provider.Create(ctx, resource, params)
	}, opts)
}

// Update changes a record. The optimistic result is PreviousData with Data
// applied on top.
func (m *Mutator) Update(ctx context.Context, resource string, params UpdateParams, opts MutateOptions) string {
	optimistic := params.PreviousData.Clone()
	if optimistic == nil {
		optimistic = core.Record{}
	}
	for k, v := range params.Data {
		optimistic[k] = v
	}
	if _, ok := optimistic["id"]; !ok {
		optimistic["id"] = string(params.ID)
	}
	return m.mutate(ctx, "update", resource, optimistic, func(ctx context.Context) (core.Record, error) {
		return m.provider.Update(ctx, resource, params)
	}, opts)
}

// Delete removes a record.
func (m *Mutator) Delete(ctx context.Context, resource string, params DeleteParams, opts MutateOptions) string {
	optimistic := params.PreviousData
	if optimistic == nil {
		optimistic = core.Record{"id": string(params.ID)}
	}
	return m.mutate(ctx, "delete", resource, optimistic, func(ctx context.Context) (core.Record, error) {
		return m.provider.Delete(ctx, resource, params)
	}, opts)
}

func (m *Mutator) mutate(
	ctx context.Context,
	kind, resource string,
	optimistic core.Record,
	call func(context.Context) (core.Record, error),
	opts MutateOptions,
) string {
	onSuccess := opts.OnSuccess
	if onSuccess == nil {
		onSuccess = func(core.Record) {}
	}
	onError := opts.OnError
	if onError == nil {
		onError = func(err error) {
			log.Warn().Err(err).Str("resource", resource).Str("kind", kind).Msg("mutation failed")
		}
	}

	switch opts.Mode {
	case ModeOptimistic:
		onSuccess(optimistic)
		if _, err := call(ctx); err != nil {
			onError(err)
		}
		return ""
	case ModeUndoable:
		return m.schedule(ctx, kind, resource, opts.UndoToken, optimistic, call, onSuccess, onError)
	default:
		rec, err := call(ctx)
		if err != nil {
			onError(err)
			return ""
		}
		onSuccess(rec)
		return ""
	}
}

func (m *Mutator) schedule(
	ctx context.Context,
	kind, resource, token string,
	optimistic core.Record,
	call func(context.Context) (core.Record, error),
	onSuccess func(core.Record),
	onError func(error),
) string {
	if token == "" {
		token = uuid.NewString()
	}
	detached := context.WithoutCancel(ctx)
	p := &pendingMutation{kind: kind, resource: resource}
	p.run = func() {
		if !m.take(token) {
			return
		}
		if _, err := call(detached); err != nil {
			onError(err)
			return
		}
		log.Debug().Str("resource", resource).Str("kind", kind).Str("token", token).Msg("undoable mutation committed")
	}

	m.mu.Lock()
	m.pending[token] = p
	p.timer = m.opts.AfterFunc(m.opts.UndoWindow, p.run)
	m.mu.Unlock()

	onSuccess(optimistic)
	return token
}

func (m *Mutator) take(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[token]; !ok {
		return false
	}
	delete(m.pending, token)
	return true
}

// Undo cancels a pending undoable mutation. It reports false when the token
// is unknown or the mutation already ran.
func (m *Mutator) Undo(token string) bool {
	m.mu.Lock()
	p, ok := m.pending[token]
	if ok {
		delete(m.pending, token)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	p.timer.Stop()
	log.Info().Str("resource", p.resource).Str("kind", p.kind).Str("token", token).Msg("mutation undone")
	return true
}

// Pending returns the number of mutations waiting for their undo window.
func (m *Mutator) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Flush commits every pending mutation now, e.g. before shutdown.
func (m *Mutator) Flush() {
	m.mu.Lock()
	runs := make([]*pendingMutation, 0, len(m.pending))
	for _, p := range m.pending {
		runs = append(runs, p)
	}
	m.mu.Unlock()
	for _, p := range runs {
		p.timer.Stop()
		p.run()
	}
}
