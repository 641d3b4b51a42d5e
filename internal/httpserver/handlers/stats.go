package handlers

import (
	"net/http"

	"github.com/marque-app/marque/internal/httpserver/deps"
)

// Stats lists the caller's own bookmarks with their access counters,
// most visited first.
func Stats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookmarks, err := d.Access.Stats(r.Context(), principal(r))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookmarkList(bookmarks))
	}
}
