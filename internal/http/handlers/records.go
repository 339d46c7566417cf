package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/controllers/mutation"
	"backoffice/internal/controllers/record"
	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
)

type saveResponse struct {
	Resource  string      `json:"resource"`
	Record    core.Record `json:"record,omitempty"`
	Mode      dp.Mode     `json:"mutationMode"`
	UndoToken string      `json:"undoToken,omitempty"`
}

// outcome captures the settled result of a save through a record middleware.
type outcome struct {
	mu     sync.Mutex
	record core.Record
	err    error
}

func (o *outcome) middleware() record.Middleware {
	return func(next record.SaveFunc) record.SaveFunc {
		return func(ctx context.Context, data core.Record, mo dp.MutateOptions) string {
			onSuccess, onError := mo.OnSuccess, mo.OnError
			mo.OnSuccess = func(rec core.Record) {
				o.mu.Lock()
				o.record = rec
				o.mu.Unlock()
				onSuccess(rec)
			}
			mo.OnError = func(err error) {
				o.mu.Lock()
				o.err = err
				o.mu.Unlock()
				onError(err)
			}
			return next(ctx, data, mo)
		}
	}
}

func (o *outcome) get() (core.Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.record, o.err
}

func (d Deps) recordDeps(x *exchange) record.Deps {
	return record.Deps{
		Data:     d.Provider,
		Mutator:  d.Mutator,
		Notifier: x.notes,
		Router:   x.router,
		Auth:     d.Auth,
		Registry: d.Registry,
	}
}

func recordPath(name, id string) string {
	return "/" + url.PathEscape(name) + "/" + url.PathEscape(id)
}

// Show serves one record.
func Show(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, id := chi.URLParam(r, "resource"), chi.URLParam(r, "id")
		x := newExchange(w, r, recordPath(name, id))
		s, err := record.NewShow(r.Context(), record.ShowOptions{ID: core.Identifier(id)}, d.recordDeps(x))
		if err != nil {
			x.fail(err, nil)
			return
		}
		res, err := s.Load(r.Context())
		if err == nil {
			err = res.Error
		}
		if err != nil {
			x.fail(err, res)
			return
		}
		x.respond(http.StatusOK, res)
	}
}

// Create adds the posted record. ?source= may prefill fields the body omits.
func Create(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "resource")
		x := newExchange(w, r, "/"+url.PathEscape(name)+"/create")
		mode, err := mutationMode(r, dp.ModePessimistic)
		if err != nil {
			x.fail(err, nil)
			return
		}
		var data core.Record
		if err := decodeBody(r, &data); err != nil {
			x.fail(err, nil)
			return
		}
		c, err := record.NewCreate(r.Context(), record.CreateOptions{Mode: mode}, d.recordDeps(x))
		if err != nil {
			x.fail(err, nil)
			return
		}
		merged := c.Record().Clone()
		if merged == nil {
			merged = core.Record{}
		}
		for k, v := range data {
			merged[k] = v
		}

		var o outcome
		defer c.Use(o.middleware())()
		token, err := c.Save(r.Context(), merged, record.SaveOptions{})
		if err != nil {
			x.fail(errors.Join(errBadRequest, err), nil)
			return
		}
		d.respondSave(x, name, mode, token, &o, http.StatusCreated)
	}
}

// Update loads {id} and saves the posted fields over it.
func Update(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, id := chi.URLParam(r, "resource"), chi.URLParam(r, "id")
		x := newExchange(w, r, recordPath(name, id))
		mode, err := mutationMode(r, d.MutationMode)
		if err != nil {
			x.fail(err, nil)
			return
		}
		var data core.Record
		if err := decodeBody(r, &data); err != nil {
			x.fail(err, nil)
			return
		}
		e, err := record.NewEdit(r.Context(), record.EditOptions{ID: core.Identifier(id), Mode: mode}, d.recordDeps(x))
		if err != nil {
			x.fail(err, nil)
			return
		}
		res, err := e.Load(r.Context())
		if err == nil {
			err = res.Error
		}
		if err != nil {
			x.fail(err, res)
			return
		}

		var o outcome
		defer e.Use(o.middleware())()
		token, err := e.Save(r.Context(), data, record.SaveOptions{})
		if err != nil {
			x.fail(errors.Join(errBadRequest, err), nil)
			return
		}
		d.respondSave(x, name, mode, token, &o, http.StatusOK)
	}
}

func (d Deps) respondSave(x *exchange, name string, mode dp.Mode, token string, o *outcome, status int) {
	rec, err := o.get()
	if err != nil {
		x.fail(err, nil)
		return
	}
	if mode == dp.ModeUndoable {
		status = http.StatusAccepted
	}
	x.respond(status, saveResponse{Resource: name, Record: rec, Mode: mode, UndoToken: token})
}

// Delete removes {id}. An undoable delete answers 202 with the undo token.
func Delete(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, id := chi.URLParam(r, "resource"), chi.URLParam(r, "id")
		x := newExchange(w, r, recordPath(name, id))
		mode, err := mutationMode(r, d.MutationMode)
		if err != nil {
			x.fail(err, nil)
			return
		}
		rec, err := d.Provider.GetOne(r.Context(), name, dp.GetOneParams{ID: core.Identifier(id)})
		if err != nil {
			x.fail(err, nil)
			return
		}
		opts := mutation.Options{Record: rec, Mode: mode}
		deps := mutation.Deps{Mutator: d.Mutator, Selection: d.Selection, Notifier: x.notes, Router: x.router}

		var token string
		if mode == dp.ModeUndoable {
			del, err := mutation.NewDeleteWithUndo(r.Context(), opts, deps)
			if err != nil {
				x.fail(err, nil)
				return
			}
			token = del.Delete(r.Context(), nil)
		} else {
			del, err := mutation.NewDeleteWithConfirm(r.Context(), opts, deps)
			if err != nil {
				x.fail(err, nil)
				return
			}
			del.Open()
			del.Delete(r.Context(), nil)
		}

		if x.warned() {
			n, _ := x.notes.Last()
			x.fail(fmt.Errorf("delete %s %s: %s", name, id, n.Message), nil)
			return
		}
		status := http.StatusOK
		if mode == dp.ModeUndoable {
			status = http.StatusAccepted
		}
		x.respond(status, saveResponse{Resource: name, Record: rec, Mode: mode, UndoToken: token})
	}
}
