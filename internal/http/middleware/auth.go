package middlewarex

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"backoffice/internal/auth"
)

// AdminAuth reads the admin token from "Authorization: Bearer" or
// X-Admin-Token, stores it in the request context and rejects the request
// when checker refuses it.
func AdminAuth(checker auth.Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimPrefix(h, "Bearer ")
			}
			ctx := auth.WithToken(r.Context(), strings.TrimSpace(token))
			if err := auth.Guard(ctx, checker, false); err != nil {
				log.Debug().Str("path", r.URL.Path).Msg("admin auth rejected")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
