package forward

import (
	"context"
	"net/url"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/logger"
	"github.com/marque-app/marque/internal/store"
)

// Resolver turns a /{user_key}/{slug} pair into a redirect target.
type Resolver struct {
	st  *store.Store
	log logger.Logger
}

func NewResolver(st *store.Store, log logger.Logger) *Resolver {
	return &Resolver{st: st, log: log}
}

// Resolve looks up the destination for userKey/slug and bumps the
// access counters on success.
//
// Every non-match (unknown key, unknown slug, forwarding disabled,
// reserved key) comes back as domain.ErrNotFound so the public
// surface never reveals which part failed. A stored destination that
// is not plain http/https comes back as a ValidationError and is
// never served.
func (r *Resolver) Resolve(ctx context.Context, userKey, slug string) (string, error) {
	if userKey == "" || slug == "" || ReservedKey(userKey) {
		return "", domain.ErrNotFound
	}

	id, dest, err := r.st.ForwardTarget(ctx, userKey, slug)
	if err != nil {
		return "", err
	}

	if err := checkDestination(dest); err != nil {
		r.log.Warn("refusing redirect to unsafe destination",
			logger.Int64("bookmark_id", id),
			logger.Error(err),
		)
		return "", err
	}

	// Counter updates never block the redirect.
	if err := r.st.TouchBookmark(ctx, id); err != nil {
		r.log.Warn("failed to record bookmark access",
			logger.Int64("bookmark_id", id),
			logger.Error(err),
		)
	}

	return dest, nil
}

// checkDestination gates what the service is willing to redirect to.
// Bookmarks may store any URL; only http and https ones are served.
func checkDestination(dest string) error {
	u, err := url.Parse(dest)
	if err != nil {
		return domain.Validationf("destination is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.Validationf("destination scheme %q is not allowed", u.Scheme)
	}
	if u.Host == "" {
		return domain.Validationf("destination has no host")
	}
	return nil
}
