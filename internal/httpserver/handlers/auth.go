package handlers

import (
	"errors"
	"net/http"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/logger"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string   `json:"token"`
	User  userJSON `json:"user"`
}

func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		token, user, err := d.Auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{Token: token, User: toUserJSON(user)})
	}
}

type forgotRequest struct {
	Email string `json:"email"`
}

// ForgotPassword starts a password reset. The response is 202 whether
// or not the address exists, so the endpoint cannot be used to probe
// for accounts.
func ForgotPassword(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		token, user, err := d.Auth.StartPasswordReset(r.Context(), req.Email)
		switch {
		case err == nil:
			go d.Mailer.PasswordReset(user, token)
		case errors.Is(err, domain.ErrNotFound):
			// Unknown address, same answer.
		default:
			d.Logger.Error("password reset failed", logger.Error(err))
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func ResetPassword(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := d.Auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
			// An unknown token is a bad request, not a missing resource.
			if errors.Is(err, domain.ErrNotFound) {
				err = domain.Validationf("invalid or expired token")
			}
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// OIDCStart redirects the browser to the configured identity provider.
func OIDCStart(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.OIDC == nil {
			http.NotFound(w, r)
			return
		}
		url, err := d.OIDC.Start(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
	}
}

// OIDCCallback finishes the provider round-trip and answers with the
// same token payload as Login.
func OIDCCallback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.OIDC == nil {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		token, user, err := d.OIDC.Callback(r.Context(), q.Get("state"), q.Get("code"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{Token: token, User: toUserJSON(user)})
	}
}
