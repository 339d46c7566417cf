package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"backoffice/internal/app"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/http/handlers"
	middlewarex "backoffice/internal/http/middleware"
)

// DepsFromApp builds the handler dependencies from the running app.
func DepsFromApp(a *app.App) handlers.Deps {
	return handlers.Deps{
		Provider:         a.Provider,
		Mutator:          a.Mutator,
		Selection:        a.Selection,
		Registry:         a.Registry,
		Memory:           a.Memory,
		Auth:             a.Auth,
		MutationMode:     a.Cfg.Controllers.MutationMode,
		ListPerPage:      a.Cfg.Controllers.ListPerPage,
		ListDebounce:     a.Cfg.Controllers.ListDebounce,
		ReferencePerPage: a.Cfg.Controllers.ReferencePerPage,
	}
}

// NewRouter creates the HTTP router of the admin API
func NewRouter(deps handlers.Deps) http.Handler {
	if deps.MutationMode == "" {
		deps.MutationMode = dp.ModeUndoable
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", handlers.Health(deps))

	r.Route("/admin", func(r chi.Router) {
		r.Use(middlewarex.AdminAuth(deps.Auth))

		r.Get("/resources", handlers.Resources(deps))
		r.Post("/undo/{token}", handlers.Undo(deps))

		r.Route("/{resource}", func(r chi.Router) {
			r.Use(middlewarex.ResourceScope)

			r.Get("/", handlers.List(deps))
			r.Post("/", handlers.Create(deps))
			r.Get("/choices", handlers.Choices(deps))
			r.Delete("/query", handlers.ForgetQuery(deps))

			r.Get("/selection", handlers.Selection(deps))
			r.Post("/selection", handlers.Selection(deps))
			r.Delete("/selection", handlers.Selection(deps))
			r.Post("/selection/unselect", handlers.Unselect(deps))
			r.Post("/selection/toggle/{id}", handlers.ToggleSelection(deps))

			r.Get("/{id}", handlers.Show(deps))
			r.Put("/{id}", handlers.Update(deps))
			r.Delete("/{id}", handlers.Delete(deps))
		})
	})

	return r
}
