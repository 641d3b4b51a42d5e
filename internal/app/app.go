package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/marque-app/marque/internal/access"
	"github.com/marque-app/marque/internal/auth"
	"github.com/marque-app/marque/internal/config"
	"github.com/marque-app/marque/internal/forward"
	"github.com/marque-app/marque/internal/httpserver"
	"github.com/marque-app/marque/internal/httpserver/deps"
	"github.com/marque-app/marque/internal/logger"
	"github.com/marque-app/marque/internal/mailer"
	"github.com/marque-app/marque/internal/redis"
	"github.com/marque-app/marque/internal/scheduler"
	"github.com/marque-app/marque/internal/store"
	"github.com/marque-app/marque/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	st          *store.Store
	redisClient *goredis.Client
	janitor     *scheduler.Janitor
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	st, err := store.Open(cfg.DBDriver, cfg.DBDSN, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open database: %v", err)
		os.Exit(1)
	}
	if err := st.Migrate(context.Background()); err != nil {
		loggerClient.Errorf("Failed to migrate database: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("database ready",
		logger.String("driver", st.DriverName()))

	// Redis is optional: without it rate limits are per-process, which
	// is fine for a single replica.
	var redisClient *goredis.Client
	if cfg.RedisEnabled() {
		redisClient, err = redis.New(redis.Options{
			Addr:         cfg.RedisAddr,
			User:         cfg.RedisUser,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  cfg.RedisDT,
			ReadTimeout:  cfg.RedisRT,
			WriteTimeout: cfg.RedisWT,
			PoolSize:     cfg.RedisPoolSize,
		}, loggerClient)
		if err != nil {
			loggerClient.Warnf("Redis unavailable, rate limits stay per-process: %v", err)
			redisClient = nil
		}
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	authSvc := auth.NewService(st, tokens, cfg.ResetTTL, loggerClient)

	var oidc *auth.OIDC
	if cfg.OIDCEnabled() {
		oidc = auth.NewOIDC(auth.OIDCSettings{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			AuthURL:      cfg.OIDCAuthURL,
			TokenURL:     cfg.OIDCTokenURL,
			UserinfoURL:  cfg.OIDCUserinfoURL,
			RedirectURL:  cfg.PublicURL + "/api/auth/oidc/callback",
			Scopes:       cfg.OIDCScopes,
			EmailClaim:   cfg.OIDCEmailClaim,
			NameClaim:    cfg.OIDCNameClaim,
		}, st, authSvc, loggerClient)
		loggerClient.Info("OIDC login enabled")
	}

	var mail *mailer.Mailer
	if cfg.MailEnabled() {
		mail = mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser,
			cfg.SMTPPassword, cfg.SMTPFrom, cfg.PublicURL, loggerClient)
		loggerClient.Info("outgoing mail enabled",
			logger.String("host", cfg.SMTPHost))
	} else {
		loggerClient.Info("outgoing mail not configured, notifications disabled")
	}

	d := deps.Deps{
		Logger:      loggerClient,
		Cfg:         cfg,
		StartTime:   time.Now(),
		Version:     version.Version,
		Commit:      version.Commit,
		BuildDate:   version.BuildDate,
		GoVersion:   version.GoVersion,
		Store:       st,
		Access:      access.New(st, loggerClient),
		Forward:     forward.NewResolver(st, loggerClient),
		Auth:        authSvc,
		OIDC:        oidc,
		Mailer:      mail,
		RedisClient: redisClient,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		st:          st,
		redisClient: redisClient,
		janitor:     scheduler.NewJanitor(st, loggerClient, cfg.JanitorInterval),
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Marque v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Marque %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.janitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start janitor: %w", err)
	}
	a.logger.Info("janitor started",
		logger.Duration("interval", a.cfg.JanitorInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.janitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	if err := a.st.Close(); err != nil {
		a.logger.Warnf("failed to close database: %v", err)
	}

	a.logger.Info("✅ Marque stopped cleanly")
	return nil
}
