package handlers

import (
	"net/http"

	"github.com/marque-app/marque/internal/httpserver/deps"
)

type profileUpdateRequest struct {
	DisplayName *string `json:"display_name"`
	Password    *string `json:"password"`
}

func GetProfile(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := d.Store.UserByID(r.Context(), principal(r).UserID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserJSON(u))
	}
}

// UpdateProfile lets the caller change their display name or password.
// The bearer token is proof enough; no current password is asked for.
func UpdateProfile(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req profileUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		p := principal(r)
		if req.DisplayName != nil {
			if err := d.Store.UpdateDisplayName(r.Context(), p.UserID, *req.DisplayName); err != nil {
				writeError(w, d.Logger, err)
				return
			}
		}
		if req.Password != nil {
			if err := d.Auth.ChangePassword(r.Context(), p.UserID, *req.Password); err != nil {
				writeError(w, d.Logger, err)
				return
			}
		}
		u, err := d.Store.UserByID(r.Context(), p.UserID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserJSON(u))
	}
}

// RotateUserKey draws a fresh forwarding key. Every public address the
// caller published under the old key stops resolving at once.
func RotateUserKey(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := d.Auth.RotateUserKey(r.Context(), principal(r).UserID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"user_key": key})
	}
}
