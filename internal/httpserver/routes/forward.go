package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/httpserver/handlers"
)

func init() { Register(registerForward) }

// The public forwarding address. Static segments win in chi, so /api,
// /healthz and the rest route ahead of this pattern; the handler still
// refuses reserved first segments that fall through, like /api/nope.
func registerForward(r chi.Router, d deps.Deps) {
	r.With(d.ForwardLimiter).Get("/{userKey}/{slug}", handlers.Forward(d))
}
