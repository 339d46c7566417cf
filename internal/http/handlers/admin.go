package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/resource"
)

// ErrUnknownUndoToken is reported when the mutation already ran or never
// existed.
var ErrUnknownUndoToken = errors.New("unknown or expired undo token")

type resourceView struct {
	resource.Definition
	Label string `json:"label"`
}

// Resources lists the registered resource definitions sorted by name.
func Resources(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defs := d.Registry.Definitions()
		out := make([]resourceView, 0, len(defs))
		for _, def := range defs {
			out = append(out, resourceView{Definition: def, Label: def.Label()})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		writeJSON(w, http.StatusOK, envelope{Result: out})
	}
}

// Undo cancels a pending undoable mutation.
func Undo(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		if !d.Mutator.Undo(token) {
			writeJSON(w, http.StatusNotFound, envelope{Error: ErrUnknownUndoToken.Error()})
			return
		}
		writeJSON(w, http.StatusOK, envelope{Result: map[string]any{"undone": true, "undoToken": token}})
	}
}

// Health reports liveness and the number of pending undoable mutations.
func Health(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "pendingMutations": d.Mutator.Pending()})
	}
}
