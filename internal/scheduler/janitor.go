package scheduler

import (
	"context"
	"time"

	"github.com/marque-app/marque/internal/logger"
	"github.com/marque-app/marque/internal/store"
)

const (
	// DefaultJanitorInterval is used when no interval is configured.
	DefaultJanitorInterval = 15 * time.Minute

	// sweepBatch bounds how many rows a single sweep statement may
	// delete, so a large backlog never holds one long transaction.
	sweepBatch = 500
)

// Janitor periodically deletes expired password-reset tokens and OIDC
// states.
type Janitor struct {
	st       *store.Store
	log      logger.Logger
	interval time.Duration
	batch    int
	stopCh   chan struct{}
}

func NewJanitor(st *store.Store, log logger.Logger, interval time.Duration) *Janitor {
	if interval == 0 {
		interval = DefaultJanitorInterval
	}
	return &Janitor{
		st:       st,
		log:      log,
		interval: interval,
		batch:    sweepBatch,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (j *Janitor) Start(ctx context.Context) error {
	// Run immediately on start
	if err := j.Sweep(ctx); err != nil {
		j.log.Warn("initial token sweep failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(j.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := j.Sweep(ctx); err != nil {
					j.log.Error("token sweep failed",
						logger.Error(err))
				}
			case <-j.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the janitor.
func (j *Janitor) Stop() {
	close(j.stopCh)
}

// Sweep deletes every expired token row, batch by batch.
func (j *Janitor) Sweep(ctx context.Context) error {
	deleted, err := j.st.SweepExpiredTokens(ctx, time.Now(), j.batch)
	if err != nil {
		return err
	}

	if deleted > 0 {
		j.log.Info("swept expired tokens",
			logger.Int64("deleted", deleted))
	} else {
		j.log.Debug("no expired tokens to sweep")
	}

	return nil
}
