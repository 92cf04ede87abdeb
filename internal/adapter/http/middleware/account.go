package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/esledger/internal/infrastructure/logging"
)

// AccountContext tags the request context with the {id} route parameter so
// log lines written further down carry the account id.
func AccountContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chi.URLParam(r, "id"); id != "" {
			r = r.WithContext(logging.WithAccountID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
