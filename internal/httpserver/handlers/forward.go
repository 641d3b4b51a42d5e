package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/logger"
)

// Forward answers the public /{userKey}/{slug} address with a 302 to
// the stored destination. Errors are plain text; the caller here is a
// browser following a link, not an API client.
func Forward(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userKey := chi.URLParam(r, "userKey")
		slug := chi.URLParam(r, "slug")

		dest, err := d.Forward.Resolve(r.Context(), userKey, slug)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				http.NotFound(w, r)
			case domain.IsValidation(err):
				http.Error(w, "refusing to redirect to this destination", http.StatusBadRequest)
			default:
				d.Logger.Error("redirect lookup failed",
					logger.String("user_key", userKey),
					logger.String("slug", slug),
					logger.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		http.Redirect(w, r, dest, http.StatusFound)
	}
}
