package handlers

import (
	"net/http"
	"strings"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/httpserver/deps"
)

// Admin handlers talk to the store directly: the admin surface manages
// accounts and teams wholesale, there is no per-object visibility to
// resolve. Routes mount them behind the admin gate.

func ListUsers(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := d.Store.ListUsers(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		out := make([]userJSON, 0, len(users))
		for i := range users {
			out = append(out, toUserJSON(&users[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type adminUserUpdateRequest struct {
	Admin *bool `json:"admin"`
}

func UpdateUser(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		var req adminUserUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if req.Admin != nil {
			if err := d.Store.SetAdmin(r.Context(), id, *req.Admin); err != nil {
				writeError(w, d.Logger, err)
				return
			}
		}
		u, err := d.Store.UserByID(r.Context(), id)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserJSON(u))
	}
}

func DeleteUser(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if id == principal(r).UserID {
			writeError(w, d.Logger, domain.Validationf("cannot delete your own account"))
			return
		}
		if err := d.Store.DeleteUser(r.Context(), id); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type teamCreateRequest struct {
	Name string `json:"name"`
}

func ListTeams(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teams, err := d.Store.ListTeams(r.Context())
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

func CreateTeam(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req teamCreateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeError(w, d.Logger, domain.Validationf("team name required"))
			return
		}
		t, err := d.Store.CreateTeam(r.Context(), name)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toTeamJSON(*t))
	}
}

func DeleteTeam(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := d.Store.DeleteTeam(r.Context(), id); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func AddTeamMember(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID, err := idParam(r, "id")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		userID, err := idParam(r, "userID")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := d.Store.AddTeamMember(r.Context(), teamID, userID); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func RemoveTeamMember(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID, err := idParam(r, "id")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		userID, err := idParam(r, "userID")
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := d.Store.RemoveTeamMember(r.Context(), teamID, userID); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
