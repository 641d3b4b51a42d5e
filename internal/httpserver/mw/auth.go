package mw

import (
	"context"
	"net/http"
	"strings"

	"github.com/marque-app/marque/internal/auth"
	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/logger"
)

type ctxKey int

const (
	principalKey ctxKey = iota
	logSlotKey
)

// Principal returns the authenticated principal stored by Auth.
func Principal(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}

// WithPrincipal injects a principal directly; handler tests use it to
// skip the token dance.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// Auth rejects requests without a valid bearer token and stores the
// resolved principal in the request context.
func Auth(svc *auth.Service, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="marque"`)
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			p, err := svc.VerifyToken(raw)
			if err != nil {
				log.Debug("rejected bearer token",
					logger.Error(err))
				w.Header().Set("WWW-Authenticate", `Bearer realm="marque", error="invalid_token"`)
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			if slot, ok := r.Context().Value(logSlotKey).(*logSlot); ok {
				slot.userID = p.UserID
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// AdminOnly passes only principals with the admin flag. It must run
// after Auth.
func AdminOnly() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := Principal(r.Context())
			if !ok || !p.Admin {
				http.Error(w, "admin only", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
