package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"backoffice/internal/auth"
	"backoffice/internal/controllers/list"
	"backoffice/internal/controllers/mutation"
	"backoffice/internal/controllers/record"
	"backoffice/internal/controllers/reference"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/navigation"
	"backoffice/internal/notify"
	"backoffice/internal/params"
	"backoffice/internal/resource"
	"backoffice/internal/selection"
)

// Deps are the shared collaborators of the admin handlers.
type Deps struct {
	Provider         dp.Provider
	Mutator          *dp.Mutator
	Selection        selection.Store
	Registry         *resource.Registry
	Memory           *params.Memory
	Auth             auth.Checker
	MutationMode     dp.Mode
	ListPerPage      int
	ListDebounce     time.Duration
	ReferencePerPage int
}

// envelope wraps every admin response: the controller result plus the side
// effects the controller produced while serving the request.
type envelope struct {
	Result        any                   `json:"result,omitempty"`
	Notifications []notify.Notification `json:"notifications,omitempty"`
	Location      string                `json:"location,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// exchange holds the per-request notification sink and router. The router
// starts at the request path without the /admin prefix.
type exchange struct {
	w      http.ResponseWriter
	r      *http.Request
	notes  *notify.Recorder
	router *navigation.MemoryRouter
}

func newExchange(w http.ResponseWriter, r *http.Request, path string) *exchange {
	loc := navigation.Location{Pathname: path}
	if r.URL.RawQuery != "" {
		loc.Search = "?" + r.URL.RawQuery
	}
	return &exchange{
		w:      w,
		r:      r,
		notes:  notify.NewRecorder(notify.Log{}),
		router: navigation.NewMemoryRouter(loc),
	}
}

func (x *exchange) respond(status int, result any) {
	env := envelope{Result: result, Notifications: x.notes.All()}
	if x.router.Moved() {
		env.Location = x.router.Location().String()
	}
	writeJSON(x.w, status, env)
}

// fail reports err with its mapped status. result may be nil.
func (x *exchange) fail(err error, result any) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", x.r.URL.Path).Msg("admin request failed")
	}
	env := envelope{Result: result, Error: err.Error(), Notifications: x.notes.All()}
	if x.router.Moved() {
		env.Location = x.router.Location().String()
	}
	writeJSON(x.w, status, env)
}

// warned reports whether the controller surfaced a failure as a warning.
func (x *exchange) warned() bool {
	for _, n := range x.notes.All() {
		if n.Type == notify.TypeWarning {
			return true
		}
	}
	return false
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, dp.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, resource.ErrMissingResource),
		errors.Is(err, list.ErrFilterElement),
		errors.Is(err, reference.ErrMissingReference),
		errors.Is(err, mutation.ErrMissingRecord),
		errors.Is(err, record.ErrMissingID),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, record.ErrIDMismatch):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

// mutationMode reads ?mutationMode=, falling back to fallback.
func mutationMode(r *http.Request, fallback dp.Mode) (dp.Mode, error) {
	raw := r.URL.Query().Get("mutationMode")
	if raw == "" {
		return fallback, nil
	}
	m, err := dp.ParseMode(raw)
	if err != nil {
		return "", errors.Join(errBadRequest, err)
	}
	return m, nil
}
