package store

import (
	"errors"
	"strings"

	"github.com/marque-app/marque/internal/domain"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type sqliteDialect struct{}

func (sqliteDialect) name() string   { return "sqlite" }
func (sqliteDialect) driver() string { return "sqlite" }

// dsn enables foreign keys, WAL and a lock timeout on every pooled
// connection. Pragmas set via Exec would only bind to one connection.
func (sqliteDialect) dsn(raw string) string {
	if strings.Contains(raw, "_pragma=") {
		return raw
	}
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) translate(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		// The column is only surfaced in the error text
		// ("UNIQUE constraint failed: bookmarks.slug"); the
		// classification itself is by code.
		return domain.Conflict(conflictField(se.Error()))
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return domain.ErrNotFound
	}
	return err
}

func (sqliteDialect) isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}
