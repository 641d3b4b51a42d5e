package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/httpserver/handlers"
	"github.com/marque-app/marque/internal/httpserver/mw"
)

func init() { Register(registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	r.Route("/api/bookmarks", func(r chi.Router) {
		r.Use(d.APILimiter, mw.Auth(d.Auth, d.Logger))
		r.Get("/", handlers.ListBookmarks(d))
		r.Post("/", handlers.CreateBookmark(d))
		r.Get("/{id}", handlers.GetBookmark(d))
		r.Patch("/{id}", handlers.UpdateBookmark(d))
		r.Delete("/{id}", handlers.DeleteBookmark(d))
	})
}
