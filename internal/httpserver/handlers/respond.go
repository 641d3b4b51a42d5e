// Package handlers contains the HTTP handlers. They translate between
// JSON and the access layer; every policy decision lives below them.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marque-app/marque/internal/auth"
	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/httpserver/mw"
	"github.com/marque-app/marque/internal/logger"
	"github.com/marque-app/marque/internal/utils"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Anything unmapped
// is a 500 and the only case worth an error-level log line.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	var ve *domain.ValidationError
	var ce *domain.ConflictError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Msg})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, errorResponse{Error: ce.Error(), Field: ce.Field})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	default:
		log.Error("request failed",
			logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer utils.Close(r.Body)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Validationf("invalid JSON body")
	}
	return nil
}

// principal returns the authenticated caller. Routes behind mw.Auth
// always have one; the zero value only shows up in mis-wired tests.
func principal(r *http.Request) domain.Principal {
	p, _ := mw.Principal(r.Context())
	return p
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validationf("invalid %s", name)
	}
	return id, nil
}
