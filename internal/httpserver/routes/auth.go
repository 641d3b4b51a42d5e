package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/httpserver/handlers"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(d.APILimiter)
		r.Post("/login", handlers.Login(d))
		r.Post("/forgot", handlers.ForgotPassword(d))
		r.Post("/reset", handlers.ResetPassword(d))
		r.Get("/oidc/start", handlers.OIDCStart(d))
		r.Get("/oidc/callback", handlers.OIDCCallback(d))
	})
}
