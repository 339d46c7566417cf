package record

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/navigation"
	"backoffice/internal/notify"
)

type EditOptions struct {
	Resource string
	// ID defaults to the ambient record, then the current location.
	ID core.Identifier
	// Mode defaults to undoable.
	Mode dp.Mode
	// Redirect defaults to the list view.
	Redirect              navigation.Redirect
	Transform             Transform
	OnSuccess             func(core.Record)
	OnError               func(error)
	DisableAuthentication bool
}

// Edit loads a record and saves changes to it.
type Edit struct {
	*loader
	middlewares
	opts   EditOptions
	saving bool
}

func NewEdit(ctx context.Context, opts EditOptions, deps Deps) (*Edit, error) {
	l, err := newLoader(ctx, opts.Resource, opts.ID, opts.DisableAuthentication, deps)
	if err != nil {
		return nil, err
	}
	if l.deps.Mutator == nil {
		return nil, fmt.Errorf("edit %s: mutator is required", l.resource)
	}
	if opts.Mode == "" {
		opts.Mode = dp.ModeUndoable
	}
	opts.Redirect = opts.Redirect.Or(navigation.RedirectList)
	return &Edit{loader: l, opts: opts}, nil
}

func (e *Edit) Resource() string    { return e.resource }
func (e *Edit) ID() core.Identifier { return e.id }

// Load fetches the record. The error is non-nil only for ErrIDMismatch.
func (e *Edit) Load(ctx context.Context) (Result, error) {
	err := e.load(ctx)
	return e.Result(), err
}

func (e *Edit) Result() Result {
	res := e.result()
	res.MutationMode = e.opts.Mode
	res.Redirect = e.opts.Redirect
	e.loader.mu.Lock()
	res.Saving = e.saving
	e.loader.mu.Unlock()
	return res
}

func (e *Edit) setSaving(v bool) {
	e.loader.mu.Lock()
	e.saving = v
	e.loader.mu.Unlock()
}

// Save updates the record with data. It returns the undo token of an
// undoable save, and an error only when the transform fails.
func (e *Edit) Save(ctx context.Context, data core.Record, so SaveOptions) (string, error) {
	prev := e.previous()
	if t := pickTransform(so.Transform, e.opts.Transform); t != nil {
		out, err := t(data.Clone(), prev)
		if err != nil {
			log.Warn().Err(err).Str("resource", e.resource).Str("id", string(e.id)).Msg("edit: transform failed")
			return "", err
		}
		data = out
	}

	var token string
	if e.opts.Mode == dp.ModeUndoable {
		token = uuid.NewString()
	}
	success, failure := pickCallbacks(so, e.opts.OnSuccess, e.opts.OnError,
		func(rec core.Record) {
			e.deps.Notifier.Notify(notify.Notification{
				Message:     notify.MsgUpdated,
				Type:        notify.TypeInfo,
				MessageArgs: map[string]any{"smart_count": 1},
				Undoable:    e.opts.Mode == dp.ModeUndoable,
				UndoToken:   token,
			})
			navigation.Go(e.deps.Router, e.opts.Redirect, e.resource, rec.ID(), rec)
		},
		notifyFailure(e.deps.Notifier, e.resource, "update"),
	)

	save := e.wrap(func(ctx context.Context, data core.Record, mo dp.MutateOptions) string {
		return e.deps.Mutator.Update(ctx, e.resource, dp.UpdateParams{ID: e.id, Data: data, PreviousData: prev}, mo)
	})
	e.setSaving(true)
	return save(ctx, data, dp.MutateOptions{
		Mode: e.opts.Mode,
		OnSuccess: func(rec core.Record) {
			e.setSaving(false)
			success(rec)
		},
		OnError: func(err error) {
			e.setSaving(false)
			failure(err)
		},
		UndoToken: token,
	}), nil
}
