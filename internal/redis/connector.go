// Package redis connects the optional Redis backend. Marque only uses
// it for shared rate-limit counters; when it is absent or unreachable
// the limiter falls back to per-process buckets.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marque-app/marque/internal/logger"
)

// Options defines the Redis connection.
type Options struct {
	Addr         string
	User         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

const (
	connectTimeout = 15 * time.Second
	pingTimeout    = 2 * time.Second
	initialWait    = time.Second
	maxWait        = 4 * time.Second
)

// New dials Redis and verifies it answers, retrying with exponential
// backoff until connectTimeout. Failure is an error, not fatal;
// callers decide whether to run without it.
func New(opts Options, log logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	log.Info("connecting to redis",
		logger.String("addr", opts.Addr),
		logger.Duration("timeout", connectTimeout))

	attempt := 0
	wait := initialWait
	for {
		attempt++

		pingCtx, pingCancel := context.WithTimeout(ctx, pingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()

		if err == nil {
			if attempt > 1 {
				log.Warn("connected to redis after retry",
					logger.String("addr", opts.Addr),
					logger.Int("attempts", attempt))
			} else {
				log.Info("connected to redis",
					logger.String("addr", opts.Addr))
			}
			return client, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			_ = client.Close()
			return nil, fmt.Errorf("redis unavailable at %s after %d attempts: %w",
				opts.Addr, attempt, err)

		case <-timer.C:
			log.Warn("redis connection failed, retrying",
				logger.String("addr", opts.Addr),
				logger.Int("attempt", attempt),
				logger.Duration("next_retry_in", wait),
				logger.Error(err))
			// Exponential backoff with cap
			wait *= 2
			if wait > maxWait {
				wait = maxWait
			}
		}
	}
}
