package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/logger"
)

const readyzTimeout = 2 * time.Second

type readyzResponse struct {
	Ready bool `json:"ready"`
}

// Readyz reports whether the service can answer real traffic, which
// for marque means the database responds.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := d.Store.Ping(ctx); err != nil {
			d.Logger.Warn("readiness check failed", logger.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(readyzResponse{Ready: false})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(readyzResponse{Ready: true})
	}
}
