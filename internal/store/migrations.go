package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// migrations is the ordered history of the schema. Entries are append
// only; editing an applied entry would desynchronize deployments.
var migrations = []migration{
	{id: 1, name: "base_schema", run: runBaseSchema},
	{id: 2, name: "access_counters", run: runAccessCounters},
	{
		id:   3,
		name: "global_slug",
		run:  runGlobalSlug,
		pre:  sqliteFKOff,
		post: sqliteFKOn,
	},
}

var baseSchemaSQLite = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		email TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		user_key TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		CONSTRAINT users_email_key UNIQUE (email),
		CONSTRAINT users_user_key_key UNIQUE (user_key)
	)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		CONSTRAINT teams_name_key UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS team_members (
		team_id INTEGER NOT NULL REFERENCES teams(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		created_at INTEGER NOT NULL,
		PRIMARY KEY (team_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS folders (
		id INTEGER PRIMARY KEY,
		owner_id INTEGER NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		CONSTRAINT folders_owner_name_key UNIQUE (owner_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS bookmarks (
		id INTEGER PRIMARY KEY,
		owner_id INTEGER NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		dest_url TEXT NOT NULL,
		slug TEXT,
		forwarding_enabled INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		CONSTRAINT bookmarks_owner_slug_key UNIQUE (owner_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS bookmark_folders (
		bookmark_id INTEGER NOT NULL REFERENCES bookmarks(id),
		folder_id INTEGER NOT NULL REFERENCES folders(id),
		PRIMARY KEY (bookmark_id, folder_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY,
		owner_id INTEGER NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		CONSTRAINT tags_owner_name_key UNIQUE (owner_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS bookmark_tags (
		bookmark_id INTEGER NOT NULL REFERENCES bookmarks(id),
		tag_id INTEGER NOT NULL REFERENCES tags(id),
		PRIMARY KEY (bookmark_id, tag_id)
	)`,
	`CREATE TABLE IF NOT EXISTS folder_user_shares (
		folder_id INTEGER NOT NULL REFERENCES folders(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		created_at INTEGER NOT NULL,
		PRIMARY KEY (folder_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS folder_team_shares (
		folder_id INTEGER NOT NULL REFERENCES folders(id),
		team_id INTEGER NOT NULL REFERENCES teams(id),
		created_at INTEGER NOT NULL,
		PRIMARY KEY (folder_id, team_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bookmark_user_shares (
		bookmark_id INTEGER NOT NULL REFERENCES bookmarks(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		created_at INTEGER NOT NULL,
		PRIMARY KEY (bookmark_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bookmark_team_shares (
		bookmark_id INTEGER NOT NULL REFERENCES bookmarks(id),
		team_id INTEGER NOT NULL REFERENCES teams(id),
		created_at INTEGER NOT NULL,
		PRIMARY KEY (bookmark_id, team_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reset_tokens (
		token TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS oidc_states (
		state TEXT PRIMARY KEY,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookmarks_owner ON bookmarks(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_folders_owner ON folders(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_team_members_user ON team_members(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookmark_folders_folder ON bookmark_folders(folder_id)`,
}

var baseSchemaPostgres = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		user_key TEXT NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		CONSTRAINT users_email_key UNIQUE (email),
		CONSTRAINT users_user_key_key UNIQUE (user_key)
	)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		CONSTRAINT teams_name_key UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS team_members (
		team_id BIGINT NOT NULL REFERENCES teams(id),
		user_id BIGINT NOT NULL REFERENCES users(id),
		created_at BIGINT NOT NULL,
		PRIMARY KEY (team_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS folders (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		CONSTRAINT folders_owner_name_key UNIQUE (owner_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS bookmarks (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		dest_url TEXT NOT NULL,
		slug TEXT,
		forwarding_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		CONSTRAINT bookmarks_owner_slug_key UNIQUE (owner_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS bookmark_folders (
		bookmark_id BIGINT NOT NULL REFERENCES bookmarks(id),
		folder_id BIGINT NOT NULL REFERENCES folders(id),
		PRIMARY KEY (bookmark_id, folder_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		CONSTRAINT tags_owner_name_key UNIQUE (owner_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS bookmark_tags (
		bookmark_id BIGINT NOT NULL REFERENCES bookmarks(id),
		tag_id BIGINT NOT NULL REFERENCES tags(id),
		PRIMARY KEY (bookmark_id, tag_id)
	)`,
	`CREATE TABLE IF NOT EXISTS folder_user_shares (
		folder_id BIGINT NOT NULL REFERENCES folders(id),
		user_id BIGINT NOT NULL REFERENCES users(id),
		created_at BIGINT NOT NULL,
		PRIMARY KEY (folder_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS folder_team_shares (
		folder_id BIGINT NOT NULL REFERENCES folders(id),
		team_id BIGINT NOT NULL REFERENCES teams(id),
		created_at BIGINT NOT NULL,
		PRIMARY KEY (folder_id, team_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bookmark_user_shares (
		bookmark_id BIGINT NOT NULL REFERENCES bookmarks(id),
		user_id BIGINT NOT NULL REFERENCES users(id),
		created_at BIGINT NOT NULL,
		PRIMARY KEY (bookmark_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bookmark_team_shares (
		bookmark_id BIGINT NOT NULL REFERENCES bookmarks(id),
		team_id BIGINT NOT NULL REFERENCES teams(id),
		created_at BIGINT NOT NULL,
		PRIMARY KEY (bookmark_id, team_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reset_tokens (
		token TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		expires_at BIGINT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS oidc_states (
		state TEXT PRIMARY KEY,
		expires_at BIGINT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookmarks_owner ON bookmarks(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_folders_owner ON folders(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_team_members_user ON team_members(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookmark_folders_folder ON bookmark_folders(folder_id)`,
}

func runBaseSchema(ctx context.Context, tx *sql.Tx, d dialect) error {
	stmts := baseSchemaSQLite
	if d.name() == "postgres" {
		stmts = baseSchemaPostgres
	}
	return execAll(ctx, tx, stmts)
}

func runAccessCounters(ctx context.Context, tx *sql.Tx, d dialect) error {
	stmts := []string{
		`ALTER TABLE bookmarks ADD COLUMN access_count BIGINT NOT NULL DEFAULT 0`,
		`ALTER TABLE bookmarks ADD COLUMN last_accessed BIGINT`,
	}
	return execAll(ctx, tx, stmts)
}

// dedupSlugsSQLite clears the slug of every bookmark that shares its
// slug with an earlier one. The earliest created_at wins; equal
// timestamps fall back to the lowest id. Losers also stop forwarding
// so a half-configured public address never resolves.
const dedupSlugsSQLite = `UPDATE bookmarks
	SET slug = NULL, forwarding_enabled = 0
	WHERE slug IS NOT NULL AND EXISTS (
		SELECT 1 FROM bookmarks b2
		WHERE b2.slug = bookmarks.slug
		AND (b2.created_at < bookmarks.created_at
			OR (b2.created_at = bookmarks.created_at AND b2.id < bookmarks.id))
	)`

const dedupSlugsPostgres = `UPDATE bookmarks
	SET slug = NULL, forwarding_enabled = FALSE
	WHERE slug IS NOT NULL AND EXISTS (
		SELECT 1 FROM bookmarks b2
		WHERE b2.slug = bookmarks.slug
		AND (b2.created_at < bookmarks.created_at
			OR (b2.created_at = bookmarks.created_at AND b2.id < bookmarks.id))
	)`

// runGlobalSlug replaces the per-owner slug constraint with a global
// one. SQLite cannot drop a table constraint, so the table is rebuilt
// and swapped; the server engine swaps constraints in place.
func runGlobalSlug(ctx context.Context, tx *sql.Tx, d dialect) error {
	if d.name() == "postgres" {
		return execAll(ctx, tx, []string{
			dedupSlugsPostgres,
			`ALTER TABLE bookmarks DROP CONSTRAINT bookmarks_owner_slug_key`,
			`ALTER TABLE bookmarks ADD CONSTRAINT bookmarks_slug_key UNIQUE (slug)`,
		})
	}
	return execAll(ctx, tx, []string{
		dedupSlugsSQLite,
		`CREATE TABLE bookmarks_new (
			id INTEGER PRIMARY KEY,
			owner_id INTEGER NOT NULL REFERENCES users(id),
			title TEXT NOT NULL,
			dest_url TEXT NOT NULL,
			slug TEXT,
			forwarding_enabled INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			access_count BIGINT NOT NULL DEFAULT 0,
			last_accessed INTEGER,
			CONSTRAINT bookmarks_slug_key UNIQUE (slug)
		)`,
		`INSERT INTO bookmarks_new (id, owner_id, title, dest_url, slug,
			forwarding_enabled, created_at, updated_at, access_count, last_accessed)
			SELECT id, owner_id, title, dest_url, slug,
			forwarding_enabled, created_at, updated_at, access_count, last_accessed
			FROM bookmarks`,
		`DROP TABLE bookmarks`,
		`ALTER TABLE bookmarks_new RENAME TO bookmarks`,
		`CREATE INDEX IF NOT EXISTS idx_bookmarks_owner ON bookmarks(owner_id)`,
	})
}

func execAll(ctx context.Context, tx *sql.Tx, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

// sqliteFKOff suspends foreign key enforcement for a table rebuild.
// SQLite refuses to toggle the pragma inside a transaction, which is
// why this runs on the bare connection.
func sqliteFKOff(ctx context.Context, conn *sql.Conn, d dialect) error {
	if d.name() != "sqlite" {
		return nil
	}
	_, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=OFF")
	return err
}

// sqliteFKOn re-enables enforcement and verifies no dangling
// references were introduced by the rebuild.
func sqliteFKOn(ctx context.Context, conn *sql.Conn, d dialect) error {
	if d.name() != "sqlite" {
		return nil
	}
	rows, err := conn.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return err
	}
	violation := rows.Next()
	if cerr := rows.Close(); cerr != nil {
		return cerr
	}
	if violation {
		return errors.New("foreign key check failed after table rebuild")
	}
	_, err = conn.ExecContext(ctx, "PRAGMA foreign_keys=ON")
	return err
}
