package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/httpserver/handlers"
	"github.com/marque-app/marque/internal/httpserver/mw"
)

func init() { Register(registerSystem) }

// Probes stay open; /infra is for operators only, so it sits behind
// the admin CIDR allowlist and an admin bearer token.
func registerSystem(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.Get("/readyz", handlers.Readyz(d))
	r.With(
		mw.AllowOnlyCIDRS(d.Cfg.AdminCIDRs, d.Cfg.TrustProxy, d.Logger),
		mw.Auth(d.Auth, d.Logger),
		mw.AdminOnly(),
	).Get("/infra", handlers.Infra(d))
}
