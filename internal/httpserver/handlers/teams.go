package handlers

import (
	"net/http"

	"github.com/marque-app/marque/internal/httpserver/deps"
)

// ListMyTeams returns the teams the caller belongs to. Team membership
// itself is managed by admins under /api/admin.
func ListMyTeams(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teams, err := d.Access.MyTeams(r.Context(), principal(r))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		out := make([]teamJSON, 0, len(teams))
		for _, t := range teams {
			out = append(out, toTeamJSON(t))
		}
		writeJSON(w, http.StatusOK, out)
	}
}
