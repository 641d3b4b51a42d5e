package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/logger"
)

// Store is the relational repository shared by every feature. It owns
// the only database handle in the process; everything that needs
// persistence receives a *Store.
type Store struct {
	db  *sql.DB
	d   dialect
	log logger.Logger
}

// busyAttempts bounds retries on transient lock errors from the
// embedded engine.
const busyAttempts = 5

// Open connects to the configured engine and verifies the connection.
// It does not run migrations; see Migrate.
func Open(driver, dsn string, log logger.Logger) (*Store, error) {
	d, err := newDialect(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver(), d.dsn(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.name(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", d.name(), err)
	}

	return &Store{db: db, d: d, log: log}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports connectivity for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DriverName reports the active engine ("sqlite" or "postgres").
func (s *Store) DriverName() string {
	return s.d.name()
}

func busyDelay(attempt int) time.Duration {
	d := time.Duration(attempt+1) * 40 * time.Millisecond
	if d > 300*time.Millisecond {
		d = 300 * time.Millisecond
	}
	return d
}

// exec runs a statement with placeholder rebinding and bounded retry
// on transient lock errors.
func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	q := s.d.rebind(query)
	var res sql.Result
	var err error
	for attempt := 0; attempt < busyAttempts; attempt++ {
		res, err = s.db.ExecContext(ctx, q, args...)
		if err == nil || !s.d.isBusy(err) {
			return res, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		time.Sleep(busyDelay(attempt))
	}
	return res, err
}

// query runs a SELECT with placeholder rebinding and bounded retry.
func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	q := s.d.rebind(query)
	var rows *sql.Rows
	var err error
	for attempt := 0; attempt < busyAttempts; attempt++ {
		rows, err = s.db.QueryContext(ctx, q, args...)
		if err == nil || !s.d.isBusy(err) {
			return rows, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		time.Sleep(busyDelay(attempt))
	}
	return rows, err
}

// scanRow runs a single-row query and scans it, retrying the whole
// query on transient lock errors. *sql.Row defers errors to Scan, so
// the retry has to wrap both.
func (s *Store) scanRow(ctx context.Context, query string, args []any, dest ...any) error {
	q := s.d.rebind(query)
	var err error
	for attempt := 0; attempt < busyAttempts; attempt++ {
		err = s.db.QueryRowContext(ctx, q, args...).Scan(dest...)
		if err == nil || !s.d.isBusy(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(busyDelay(attempt))
	}
	return err
}

// withTx runs fn inside a transaction, retrying the whole unit when
// the engine reports a transient lock error. fn must be safe to run
// again from scratch.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < busyAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			if s.d.isBusy(err) {
				lastErr = err
				time.Sleep(busyDelay(attempt))
				continue
			}
			return err
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if s.d.isBusy(err) {
				lastErr = err
				time.Sleep(busyDelay(attempt))
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if s.d.isBusy(err) {
				lastErr = err
				time.Sleep(busyDelay(attempt))
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("transaction kept hitting lock contention: %w", lastErr)
}

// execTx is exec inside an open transaction: rebinding without the
// retry loop, which belongs to withTx.
func (s *Store) execTx(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	return tx.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s *Store) scanRowTx(ctx context.Context, tx *sql.Tx, query string, args []any, dest ...any) error {
	return tx.QueryRowContext(ctx, s.d.rebind(query), args...).Scan(dest...)
}

// wrap folds driver errors into the domain taxonomy and gives the
// rest a contextual message. Constraint translation happens here and
// nowhere else.
func (s *Store) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if terr := s.d.translate(err); terr != err {
		return terr
	}
	return fmt.Errorf("%s: %w", op, err)
}

// unixNow is the single clock for stored timestamps.
func unixNow() int64 { return time.Now().Unix() }
