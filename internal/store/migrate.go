package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/marque-app/marque/internal/logger"
)

// migration is one schema change. run executes DDL and DML inside the
// transaction the runner opens; the ledger insert commits with it, so
// a failed migration leaves no trace. pre and post run outside the
// transaction on the same connection, for pragma toggles that SQLite
// refuses to execute transactionally.
type migration struct {
	id   int
	name string
	run  func(ctx context.Context, tx *sql.Tx, d dialect) error
	pre  func(ctx context.Context, conn *sql.Conn, d dialect) error
	post func(ctx context.Context, conn *sql.Conn, d dialect) error
}

const ledgerSchema = `CREATE TABLE IF NOT EXISTS schema_migrations (
	id BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at BIGINT NOT NULL
)`

// Migrate applies pending migrations in ascending id order. The whole
// pass runs on one pooled connection so per-connection state set by a
// migration's pre hook holds for its run. Any failure aborts the pass
// and is fatal to startup.
func (s *Store) Migrate(ctx context.Context) error {
	return s.migrateTo(ctx, migrations[len(migrations)-1].id)
}

// migrateTo applies pending migrations with id <= max.
func (s *Store) migrateTo(ctx context.Context, max int) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire migration connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("failed to create migrations ledger: %w", err)
	}

	applied, err := s.appliedMigrations(ctx, conn)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.id > max || applied[m.id] {
			continue
		}
		if err := s.applyMigration(ctx, conn, m); err != nil {
			return fmt.Errorf("migration %04d_%s failed: %w", m.id, m.name, err)
		}
		s.log.Info("applied migration",
			logger.Int("id", m.id),
			logger.String("name", m.name))
	}
	return nil
}

func (s *Store) appliedMigrations(ctx context.Context, conn *sql.Conn) (map[int]bool, error) {
	rows, err := conn.QueryContext(ctx, "SELECT id FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

func (s *Store) applyMigration(ctx context.Context, conn *sql.Conn, m migration) error {
	if m.pre != nil {
		if err := m.pre(ctx, conn, s.d); err != nil {
			return err
		}
	}

	err := func() error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := m.run(ctx, tx, s.d); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx,
			s.d.rebind("INSERT INTO schema_migrations (id, name, applied_at) VALUES (?, ?, ?)"),
			m.id, m.name, unixNow()); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	}()

	// post must run even when the transaction failed, to restore
	// connection state before the connection returns to the pool.
	if m.post != nil {
		if perr := m.post(ctx, conn, s.d); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}
