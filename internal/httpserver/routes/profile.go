package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/httpserver/handlers"
	"github.com/marque-app/marque/internal/httpserver/mw"
)

func init() { Register(registerProfile) }

func registerProfile(r chi.Router, d deps.Deps) {
	r.Route("/api/profile", func(r chi.Router) {
		r.Use(d.APILimiter, mw.Auth(d.Auth, d.Logger))
		r.Get("/", handlers.GetProfile(d))
		r.Patch("/", handlers.UpdateProfile(d))
		r.Post("/user-key", handlers.RotateUserKey(d))
	})

	r.With(d.APILimiter, mw.Auth(d.Auth, d.Logger)).
		Get("/api/teams", handlers.ListMyTeams(d))
	r.With(d.APILimiter, mw.Auth(d.Auth, d.Logger)).
		Get("/api/stats", handlers.Stats(d))
}
