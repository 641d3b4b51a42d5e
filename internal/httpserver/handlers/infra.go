package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/marque-app/marque/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Driver string `json:"driver,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports per-component status for operators. The route is
// CIDR-gated; this is not a public surface.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		components := map[string]componentStatus{
			"database": checkDatabase(d),
			"redis":    checkRedis(d),
			"mailer": {
				OK:   d.Mailer != nil,
				Mode: configuredMode(d.Mailer != nil),
			},
			"oidc": {
				OK:   d.OIDC != nil,
				Mode: configuredMode(d.OIDC != nil),
			},
		}

		response := infraResponse{
			Mode:       determineMode(components),
			Components: components,
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// determineMode folds component states into one word an operator can
// alert on. Only the database is critical; mailer and oidc are
// optional features, absent is their normal state.
func determineMode(components map[string]componentStatus) string {
	if db, exists := components["database"]; exists && !db.OK {
		return "critical"
	}
	if redis, exists := components["redis"]; exists && !redis.OK && redis.Error != "disabled" {
		return "degraded"
	}
	return "ok"
}

func checkDatabase(d deps.Deps) componentStatus {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Driver: d.Store.DriverName(),
			Impact: "service-unavailable",
			Error:  err.Error(),
		}
	}
	return componentStatus{
		OK:     true,
		Driver: d.Store.DriverName(),
	}
}

func checkRedis(d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{
			OK:     false,
			Mode:   "local",
			Impact: "rate-limits-per-process",
			Error:  "disabled",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "local",
			Impact: "rate-limits-per-process",
			Error:  err.Error(),
		}
	}
	return componentStatus{
		OK:   true,
		Mode: "shared",
	}
}

func configuredMode(on bool) string {
	if on {
		return "configured"
	}
	return "disabled"
}
