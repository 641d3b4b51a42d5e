package store

import (
	"fmt"
	"strings"
)

// dialect covers the differences between the two supported engines:
// driver registration, DSN shaping, placeholder syntax, DDL and the
// classification of driver errors. All queries in this package are
// written with `?` placeholders and rebound per engine.
type dialect interface {
	// name is "sqlite" or "postgres".
	name() string

	// driver is the database/sql driver name to open.
	driver() string

	// dsn shapes the configured DSN for the driver.
	dsn(raw string) string

	// rebind rewrites `?` placeholders into the engine's syntax.
	rebind(query string) string

	// translate classifies a driver error into the domain taxonomy.
	// Errors it does not recognize are returned unchanged.
	translate(err error) error

	// isBusy reports a transient lock error worth retrying.
	isBusy(err error) bool
}

func newDialect(driver string) (dialect, error) {
	switch driver {
	case "sqlite":
		return sqliteDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

// rebindNumbered rewrites each `?` into $1..$N. Quoted literals are
// not handled; queries in this package keep literals out of SQL text.
func rebindNumbered(query string) string {
	if !strings.ContainsRune(query, '?') {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		fmt.Fprintf(&b, "$%d", n)
	}
	return b.String()
}

// conflictFields maps unique-constraint identifiers to the field
// reported in a ConflictError. Both engines surface the table and
// column in the constraint identity (sqlite: "bookmarks.slug",
// postgres: "bookmarks_slug_key").
var conflictFields = []struct {
	needle string
	field  string
}{
	{"user_key", "user_key"},
	{"bookmarks", "slug"},
	{"users", "email"},
	{"teams", "team name"},
	{"folders", "folder name"},
	{"tags", "tag name"},
}

func conflictField(constraint string) string {
	for _, cf := range conflictFields {
		if strings.Contains(constraint, cf.needle) {
			return cf.field
		}
	}
	return "value"
}
