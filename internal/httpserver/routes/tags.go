package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/httpserver/handlers"
	"github.com/marque-app/marque/internal/httpserver/mw"
)

func init() { Register(registerTags) }

func registerTags(r chi.Router, d deps.Deps) {
	r.Route("/api/tags", func(r chi.Router) {
		r.Use(d.APILimiter, mw.Auth(d.Auth, d.Logger))
		r.Get("/", handlers.ListTags(d))
		r.Post("/", handlers.CreateTag(d))
		r.Patch("/{id}", handlers.RenameTag(d))
		r.Delete("/{id}", handlers.DeleteTag(d))
	})
}
