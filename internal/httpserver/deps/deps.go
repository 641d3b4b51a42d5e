package deps

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marque-app/marque/internal/access"
	"github.com/marque-app/marque/internal/auth"
	"github.com/marque-app/marque/internal/config"
	"github.com/marque-app/marque/internal/forward"
	"github.com/marque-app/marque/internal/logger"
	"github.com/marque-app/marque/internal/mailer"
	"github.com/marque-app/marque/internal/store"
)

type Deps struct {
	Logger    logger.Logger
	Cfg       *config.Config
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	Store   *store.Store     // SQL store (sqlite or postgres)
	Access  *access.Resolver // visibility + ownership enforcement
	Forward *forward.Resolver
	Auth    *auth.Service
	OIDC    *auth.OIDC     // nil when no provider is configured
	Mailer  *mailer.Mailer // nil when SMTP is not configured

	RedisClient *redis.Client // nil unless shared rate limiting is on

	// Rate limiters, built once in server.New so every route file
	// shares the same buckets.
	APILimiter     func(http.Handler) http.Handler
	ForwardLimiter func(http.Handler) http.Handler
}
