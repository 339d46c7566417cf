package middlewarex

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/resource"
)

// ResourceScope binds the {resource} URL parameter to the request context.
func ResourceScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "resource")
		if name == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(resource.WithResource(r.Context(), name)))
	})
}
