package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"backoffice/internal/controllers/list"
	"backoffice/internal/core"
)

// List serves one page of a resource. The list parameters come from the
// query string, then from the remembered query of the resource.
func List(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		x := newExchange(w, r, "/"+chi.URLParam(r, "resource"))
		c, err := d.newList(x)
		if err != nil {
			x.fail(err, nil)
			return
		}
		defer c.Close()

		res := c.Load(r.Context())
		if res.Error != nil {
			x.fail(res.Error, res)
			return
		}
		x.respond(http.StatusOK, res)
	}
}

func (d Deps) newList(x *exchange) (*list.Controller, error) {
	return list.New(x.r.Context(), list.Options{PerPage: d.ListPerPage, Debounce: d.ListDebounce}, list.Deps{
		Data:      d.Provider,
		Selection: d.Selection,
		Notifier:  x.notes,
		Auth:      d.Auth,
		Router:    x.router,
		Memory:    d.Memory,
	})
}

// ForgetQuery drops the remembered list parameters of a resource, so the next
// list request without a query string starts from the defaults.
func ForgetQuery(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "resource")
		x := newExchange(w, r, "/"+name)
		d.Memory.Forget(name)
		log.Debug().Str("resource", name).Msg("forgot list parameters")
		x.respond(http.StatusOK, map[string]string{"resource": name})
	}
}

type selectionRequest struct {
	IDs []any `json:"ids"`
}

type selectionResponse struct {
	Resource    string            `json:"resource"`
	SelectedIDs []core.Identifier `json:"selectedIds"`
}

// Selection serves GET (read), POST (replace) and DELETE (clear) on the
// selection of a resource.
func Selection(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "resource")
		x := newExchange(w, r, "/"+name)
		ctx := r.Context()

		var err error
		switch r.Method {
		case http.MethodPost:
			var req selectionRequest
			if err = decodeBody(r, &req); err == nil {
				err = d.Selection.Select(ctx, name, core.IDs(req.IDs...))
			}
		case http.MethodDelete:
			err = d.Selection.Clear(ctx, name)
		}
		if err != nil {
			x.fail(err, nil)
			return
		}
		d.respondSelection(x, name)
	}
}

// ToggleSelection flips the selection state of {id}.
func ToggleSelection(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "resource")
		x := newExchange(w, r, "/"+name)
		id := core.Identifier(chi.URLParam(r, "id"))
		if err := d.Selection.Toggle(r.Context(), name, id); err != nil {
			x.fail(err, nil)
			return
		}
		d.respondSelection(x, name)
	}
}

// Unselect removes the posted ids from the selection.
func Unselect(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "resource")
		x := newExchange(w, r, "/"+name)
		var req selectionRequest
		if err := decodeBody(r, &req); err != nil {
			x.fail(err, nil)
			return
		}
		if err := d.Selection.Unselect(r.Context(), name, core.IDs(req.IDs...)); err != nil {
			x.fail(err, nil)
			return
		}
		d.respondSelection(x, name)
	}
}

func (d Deps) respondSelection(x *exchange, name string) {
	ids, err := d.Selection.Get(x.r.Context(), name)
	if err != nil {
		x.fail(err, nil)
		return
	}
	x.respond(http.StatusOK, selectionResponse{Resource: name, SelectedIDs: ids})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
