package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/controllers/reference"
	"backoffice/internal/params"
)

// Choices serves the options of a reference input pointing at {resource}.
// ?value= is the current value of the input; the list parameters page,
// sort and filter the candidates.
func Choices(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "resource")
		x := newExchange(w, r, "/"+name)
		qs := r.URL.Query()

		opts := reference.InputOptions{Reference: name, PerPage: d.ReferencePerPage}
		if v := qs.Get("value"); v != "" {
			opts.CurrentValue = v
		}
		in, err := reference.NewInput(r.Context(), opts, reference.Deps{Data: d.Provider})
		if err != nil {
			x.fail(err, nil)
			return
		}
		defer in.Close()

		if params.HasQuery(qs) {
			q := params.Decode(qs, in.Query())
			in.SetFilters(q.Filter, false)
			in.SetSort(q.SortPayload())
			in.SetPerPage(q.PerPage)
			// page last: every other setter resets it
			in.SetPage(q.Page)
		}

		res := in.Refetch(r.Context())
		if res.Error != nil {
			x.fail(res.Error, res)
			return
		}
		x.respond(http.StatusOK, res)
	}
}
