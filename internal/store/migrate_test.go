package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/marque-app/marque/internal/domain"
	"github.com/marque-app/marque/internal/logger"
)

// openUnmigrated opens a store without running any migration, so the
// test can stop the chain partway and stage historical data.
func openUnmigrated(t *testing.T) *Store {
	t.Helper()
	st, err := Open("sqlite", filepath.Join(t.TempDir(), "marque.db"), logger.New("error", false))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// stageLegacyBookmark inserts directly under the pre-0003 schema,
// where UNIQUE(owner_id, slug) still allows the same slug for
// different owners.
func stageLegacyBookmark(t *testing.T, st *Store, owner int64, slug string, createdAt int64) int64 {
	t.Helper()
	var id int64
	err := st.db.QueryRowContext(context.Background(),
		`INSERT INTO bookmarks (owner_id, title, dest_url, slug, forwarding_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?) RETURNING id`,
		owner, "staged", "https://example.com", slug, createdAt, createdAt).Scan(&id)
	if err != nil {
		t.Fatalf("stage bookmark: %v", err)
	}
	return id
}

func stageUser(t *testing.T, st *Store, email, key string) int64 {
	t.Helper()
	var id int64
	err := st.db.QueryRowContext(context.Background(),
		`INSERT INTO users (email, display_name, password_hash, user_key, is_admin, created_at, updated_at)
		VALUES (?, '', '', ?, 0, 0, 0) RETURNING id`,
		email, key).Scan(&id)
	if err != nil {
		t.Fatalf("stage user: %v", err)
	}
	return id
}

type slugRow struct {
	slug       sql.NullString
	forwarding bool
}

func loadSlugRow(t *testing.T, st *Store, id int64) slugRow {
	t.Helper()
	var row slugRow
	err := st.db.QueryRowContext(context.Background(),
		"SELECT slug, forwarding_enabled FROM bookmarks WHERE id = ?", id).
		Scan(&row.slug, &row.forwarding)
	if err != nil {
		t.Fatalf("load bookmark %d: %v", id, err)
	}
	return row
}

// TestGlobalSlugMigrationDedup stages duplicate slugs under the old
// per-owner constraint and checks that 0003 keeps exactly the oldest
// claim per slug and silences the rest.
func TestGlobalSlugMigrationDedup(t *testing.T) {
	st := openUnmigrated(t)
	ctx := context.Background()

	if err := st.MigrateTo(ctx, 2); err != nil {
		t.Fatalf("MigrateTo(2): %v", err)
	}

	u1 := stageUser(t, st, "a@example.com", "aaaaaaaa")
	u2 := stageUser(t, st, "b@example.com", "bbbbbbbb")
	u3 := stageUser(t, st, "c@example.com", "cccccccc")

	// Three claims on "dup" at strictly increasing times.
	oldest := stageLegacyBookmark(t, st, u1, "dup", 100)
	middle := stageLegacyBookmark(t, st, u2, "dup", 200)
	newest := stageLegacyBookmark(t, st, u3, "dup", 300)
	// An uncontested slug must come through untouched.
	lone := stageLegacyBookmark(t, st, u2, "lone", 150)

	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	if row := loadSlugRow(t, st, oldest); !row.slug.Valid || row.slug.String != "dup" || !row.forwarding {
		t.Fatalf("oldest claim should survive: %+v", row)
	}
	for _, id := range []int64{middle, newest} {
		row := loadSlugRow(t, st, id)
		if row.slug.Valid {
			t.Errorf("bookmark %d should have lost its slug, has %q", id, row.slug.String)
		}
		if row.forwarding {
			t.Errorf("bookmark %d should have forwarding disabled", id)
		}
	}
	if row := loadSlugRow(t, st, lone); !row.slug.Valid || row.slug.String != "lone" {
		t.Fatalf("uncontested slug should survive: %+v", row)
	}

	// The rebuilt table enforces the global constraint from now on.
	b := &domain.Bookmark{OwnerID: u3, Title: "again", URL: "https://example.com", Slug: strPtr("dup")}
	if err := st.CreateBookmark(ctx, b); !domain.IsConflict(err) {
		t.Fatalf("expected conflict under new constraint, got %v", err)
	}
}

// Equal creation times fall back to the lowest id.
func TestGlobalSlugMigrationTieBreak(t *testing.T) {
	st := openUnmigrated(t)
	ctx := context.Background()

	if err := st.MigrateTo(ctx, 2); err != nil {
		t.Fatalf("MigrateTo(2): %v", err)
	}
	u1 := stageUser(t, st, "a@example.com", "aaaaaaaa")
	u2 := stageUser(t, st, "b@example.com", "bbbbbbbb")

	first := stageLegacyBookmark(t, st, u1, "tie", 100)
	second := stageLegacyBookmark(t, st, u2, "tie", 100)

	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	if row := loadSlugRow(t, st, first); !row.slug.Valid {
		t.Fatalf("lowest id should keep the slug on a tie")
	}
	if row := loadSlugRow(t, st, second); row.slug.Valid {
		t.Fatalf("higher id should lose the slug on a tie")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	st := openUnmigrated(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := st.Migrate(ctx); err != nil {
			t.Fatalf("Migrate round %d: %v", i, err)
		}
	}

	var n int
	if err := st.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if n != len(migrations) {
		t.Fatalf("ledger has %d entries, want %d", n, len(migrations))
	}
}

func TestMigrationLedgerOrder(t *testing.T) {
	st := openUnmigrated(t)
	ctx := context.Background()

	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	rows, err := st.db.QueryContext(ctx, "SELECT id FROM schema_migrations ORDER BY id")
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan: %v", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	want := []int{1, 2, 3}
	if len(ids) != len(want) {
		t.Fatalf("ledger ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ledger ids = %v, want %v", ids, want)
		}
	}
}
