package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/httpserver/handlers"
	"github.com/marque-app/marque/internal/httpserver/mw"
)

func init() { Register(registerFolders) }

func registerFolders(r chi.Router, d deps.Deps) {
	r.Route("/api/folders", func(r chi.Router) {
		r.Use(d.APILimiter, mw.Auth(d.Auth, d.Logger))
		r.Get("/", handlers.ListFolders(d))
		r.Post("/", handlers.CreateFolder(d))
		r.Get("/{id}", handlers.GetFolder(d))
		r.Patch("/{id}", handlers.UpdateFolder(d))
		r.Delete("/{id}", handlers.DeleteFolder(d))
	})
}
