package store

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/marque-app/marque/internal/domain"
)

type postgresDialect struct{}

func (postgresDialect) name() string   { return "postgres" }
func (postgresDialect) driver() string { return "pgx" }

func (postgresDialect) dsn(raw string) string { return raw }

func (postgresDialect) rebind(query string) string { return rebindNumbered(query) }

func (postgresDialect) translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return domain.Conflict(conflictField(pgErr.ConstraintName))
	case pgerrcode.ForeignKeyViolation:
		return domain.ErrNotFound
	}
	return err
}

// isBusy is always false: the server queues writers instead of
// surfacing lock errors the way the embedded engine does.
func (postgresDialect) isBusy(err error) bool { return false }
