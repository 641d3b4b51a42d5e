package mw

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/marque-app/marque/internal/logger"
	"github.com/marque-app/marque/internal/utils"
)

type RateLimitConfig struct {
	Burst             int
	RefillPerIPPerMin int
	MaxEntries        int
	SweepInterval     time.Duration
	IdleTTL           time.Duration
	TrustProxy        bool   // resolve IP from proxy headers when true
	KeyPrefix         string // namespace for shared (Redis) counters
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastRef  time.Time
	lastSeen time.Time
}

type limiter struct {
	cfg       RateLimitConfig
	rate      float64
	capacity  float64
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.RefillPerIPPerMin < 1 {
		cfg.RefillPerIPPerMin = 1
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl"
	}
	return &limiter{
		cfg:       cfg,
		rate:      float64(cfg.RefillPerIPPerMin) / 60.0,
		capacity:  float64(cfg.Burst),
		buckets:   make(map[string]*bucket, 1024),
		lastSweep: time.Now(),
	}
}

func (l *limiter) getBucket(key string, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.MaxEntries > 0 && len(l.buckets) >= l.cfg.MaxEntries {
		l.sweepLocked(now)
	}
	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: l.capacity, lastRef: now, lastSeen: now}
		l.buckets[key] = b
	}
	return b
}

func (l *limiter) allow(key string, now time.Time) (ok bool, remaining int, retryAfterSec int) {
	b := l.getBucket(key, now)

	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRef).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.rate)
		b.lastRef = now
	}

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		b.lastSeen = now
		return true, int(math.Floor(b.tokens)), 0
	}

	needed := 1.0 - b.tokens
	sec := int(math.Ceil(needed / l.rate))
	if sec < 1 {
		sec = 1
	}
	return false, int(math.Floor(b.tokens)), sec
}

// allowShared counts in Redis with a fixed one-minute window, so all
// replicas see the same budget per IP.
func (l *limiter) allowShared(ctx context.Context, rdb *goredis.Client, key string, now time.Time) (ok bool, remaining int, retryAfterSec int, err error) {
	window := now.Unix() / 60
	k := fmt.Sprintf("%s:%s:%d", l.cfg.KeyPrefix, key, window)

	n, err := rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, 0, err
	}
	if n == 1 {
		// Expiry a window past its own end keeps clock skew harmless.
		rdb.Expire(ctx, k, 2*time.Minute)
	}

	limit := int64(l.cfg.RefillPerIPPerMin)
	if n > limit {
		retry := 60 - int(now.Unix()%60)
		if retry < 1 {
			retry = 1
		}
		return false, 0, retry, nil
	}
	return true, int(limit - n), 0, nil
}

func (l *limiter) sweepLocked(now time.Time) {
	ttl := l.cfg.IdleTTL
	for ip, b := range l.buckets {
		if now.Sub(b.lastSeen) > ttl {
			delete(l.buckets, ip)
		}
	}
	l.lastSweep = now
}

func (l *limiter) sweepMaybe(now time.Time) {
	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.cfg.SweepInterval {
		l.sweepLocked(now)
	}
	l.mu.Unlock()
}

// RateLimit limits requests per client IP. With a Redis client the
// budget is shared across replicas; without one (or when Redis errors)
// each process falls back to its own token buckets.
func RateLimit(cfg RateLimitConfig, rdb *goredis.Client, log logger.Logger) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limitStr := strconv.Itoa(l.cfg.RefillPerIPPerMin)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			key := utils.ClientIP(r, l.cfg.TrustProxy)

			var (
				ok               bool
				remaining, retry int
			)
			if rdb != nil {
				var err error
				ok, remaining, retry, err = l.allowShared(r.Context(), rdb, key, now)
				if err != nil {
					log.Warn("shared rate limiter unavailable, using local buckets",
						logger.Error(err))
					l.sweepMaybe(now)
					ok, remaining, retry = l.allow(key, now)
				}
			} else {
				l.sweepMaybe(now)
				ok, remaining, retry = l.allow(key, now)
			}

			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("X-RateLimit-Limit", limitStr)
				w.Header().Set("X-RateLimit-Remaining", "0")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			// Write informational headers AFTER the handler, so they reflect this request's consumption.
			defer func(rem int) {
				if rem < 0 {
					rem = 0
				}
				w.Header().Set("X-RateLimit-Limit", limitStr)
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rem))
			}(remaining)

			next.ServeHTTP(w, r)
		})
	}
}
