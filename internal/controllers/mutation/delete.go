package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/navigation"
	"backoffice/internal/notify"
	"backoffice/internal/resource"
	"backoffice/internal/selection"
)

var ErrMissingRecord = errors.New("mutation: a record with an id is required")

type Options struct {
	// Resource overrides the resource bound to the context.
	Resource string
	// Record overrides the record bound to the context.
	Record core.Record
	Mode   dp.Mode
	// Redirect defaults to the list view.
	Redirect navigation.Redirect
	// OnSuccess and OnError replace the default side effects.
	OnSuccess func(core.Record)
	OnError   func(error)
}

type Deps struct {
	Mutator   *dp.Mutator
	Selection selection.Store
	Notifier  notify.Notifier
	Router    navigation.Router
}

// deleter holds what both delete controllers share.
type deleter struct {
	resource string
	record   core.Record
	opts     Options
	deps     Deps

	mu      sync.Mutex
	loading bool
	open    bool
}

func newDeleter(ctx context.Context, opts Options, deps Deps) (*deleter, error) {
	name, err := resource.ResolveName(ctx, opts.Resource)
	if err != nil {
		return nil, err
	}
	rec := resource.ResolveRecord(ctx, opts.Record)
	if rec == nil || rec.ID() == "" {
		return nil, ErrMissingRecord
	}
	if deps.Mutator == nil {
		return nil, fmt.Errorf("delete %s: mutator is required", name)
	}
	if deps.Selection == nil {
		deps.Selection = selection.NewMemory()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Log{}
	}
	if opts.Mode == "" {
		opts.Mode = dp.ModePessimistic
	}
	opts.Redirect = opts.Redirect.Or(navigation.RedirectList)
	return &deleter{resource: name, record: rec, opts: opts, deps: deps}, nil
}

// IsLoading reports whether a delete is waiting for its outcome.
func (d *deleter) IsLoading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading
}

func (d *deleter) setState(open, loading bool) {
	d.mu.Lock()
	d.open, d.loading = open, loading
	d.mu.Unlock()
}

// run dispatches the delete and then onClick. It returns the undo token of
// an undoable delete.
func (d *deleter) run(ctx context.Context, onClick func()) string {
	d.mu.Lock()
	d.loading = true
	d.mu.Unlock()

	id := d.record.ID()
	var token string
	if d.opts.Mode == dp.ModeUndoable {
		token = uuid.NewString()
	}
	onSuccess := d.opts.OnSuccess
	if onSuccess == nil {
		onSuccess = func(core.Record) { d.succeeded(ctx, id, token) }
	}
	onError := d.opts.OnError
	if onError == nil {
		onError = d.failed
	}

	token = d.deps.Mutator.Delete(ctx, d.resource, dp.DeleteParams{ID: id, PreviousData: d.record}, dp.MutateOptions{
		Mode: d.opts.Mode,
		OnSuccess: func(rec core.Record) {
			d.setState(false, false)
			onSuccess(rec)
		},
		OnError: func(err error) {
			d.setState(false, false)
			onError(err)
		},
		UndoToken: token,
	})
	runClick(onClick)
	return token
}

func (d *deleter) succeeded(ctx context.Context, id core.Identifier, token string) {
	d.deps.Notifier.Notify(notify.Notification{
		Message:     notify.MsgDeleted,
		Type:        notify.TypeInfo,
		MessageArgs: map[string]any{"smart_count": 1},
		Undoable:    d.opts.Mode == dp.ModeUndoable,
		UndoToken:   token,
	})
	if err := d.deps.Selection.Unselect(ctx, d.resource, []core.Identifier{id}); err != nil {
		log.Warn().Err(err).Str("resource", d.resource).Str("id", string(id)).Msg("delete: unselecting failed")
	}
	navigation.Go(d.deps.Router, d.opts.Redirect, d.resource, id, nil)
}

func (d *deleter) failed(err error) {
	log.Warn().Err(err).Str("resource", d.resource).Str("id", string(d.record.ID())).Msg("delete failed")
	d.deps.Notifier.Notify(notify.FromError(err))
}

func runClick(onClick func()) {
	if onClick == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("delete: click handler panicked")
		}
	}()
	onClick()
}

// DeleteWithConfirm deletes a record after the user confirmed a dialog.
type DeleteWithConfirm struct {
	*deleter
}

func NewDeleteWithConfirm(ctx context.Context, opts Options, deps Deps) (*DeleteWithConfirm, error) {
	d, err := newDeleter(ctx, opts, deps)
	if err != nil {
		return nil, err
	}
	return &DeleteWithConfirm{deleter: d}, nil
}

// Open shows the confirmation dialog.
func (c *DeleteWithConfirm) Open() {
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
}

// Close hides the confirmation dialog.
func (c *DeleteWithConfirm) Close() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

func (c *DeleteWithConfirm) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Delete confirms the dialog. The dialog is closed once the delete settles,
// whatever the outcome.
func (c *DeleteWithConfirm) Delete(ctx context.Context, onClick func()) string {
	return c.run(ctx, onClick)
}

// DeleteWithUndo deletes a record right away with an undoable mutation.
type DeleteWithUndo struct {
	*deleter
}

func NewDeleteWithUndo(ctx context.Context, opts Options, deps Deps) (*DeleteWithUndo, error) {
	opts.Mode = dp.ModeUndoable
	d, err := newDeleter(ctx, opts, deps)
	if err != nil {
		return nil, err
	}
	return &DeleteWithUndo{deleter: d}, nil
}

// Delete dispatches the undoable delete and returns its undo token.
func (c *DeleteWithUndo) Delete(ctx context.Context, onClick func()) string {
	return c.run(ctx, onClick)
}
