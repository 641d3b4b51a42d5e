package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/httpserver/handlers"
	"github.com/marque-app/marque/internal/httpserver/mw"
)

func init() { Register(registerAdmin) }

func registerAdmin(r chi.Router, d deps.Deps) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(
			d.APILimiter,
			mw.AllowOnlyCIDRS(d.Cfg.AdminCIDRs, d.Cfg.TrustProxy, d.Logger),
			mw.Auth(d.Auth, d.Logger),
			mw.AdminOnly(),
		)
		r.Get("/users", handlers.ListUsers(d))
		r.Patch("/users/{id}", handlers.UpdateUser(d))
		r.Delete("/users/{id}", handlers.DeleteUser(d))

		r.Get("/teams", handlers.ListTeams(d))
		r.Post("/teams", handlers.CreateTeam(d))
		r.Delete("/teams/{id}", handlers.DeleteTeam(d))
		r.Put("/teams/{id}/members/{userID}", handlers.AddTeamMember(d))
		r.Delete("/teams/{id}/members/{userID}", handlers.RemoveTeamMember(d))
	})
}
