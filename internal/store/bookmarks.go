package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/marque-app/marque/internal/domain"
)

const bookmarkCols = "id, owner_id, title, dest_url, slug, forwarding_enabled, access_count, last_accessed, created_at, updated_at"

// BookmarkFilter narrows a bookmark listing. Zero values mean no
// filtering on that axis.
type BookmarkFilter struct {
	FolderID int64
	TagID    int64
}

func nullStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func (s *Store) CreateBookmark(ctx context.Context, b *domain.Bookmark) error {
	now := unixNow()
	err := s.scanRow(ctx,
		`INSERT INTO bookmarks (owner_id, title, dest_url, slug, forwarding_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		[]any{b.OwnerID, b.Title, b.URL, nullStr(b.Slug), b.Forwarding, now, now},
		&b.ID)
	if err != nil {
		return s.wrap("failed to create bookmark", err)
	}
	b.CreatedAt = time.Unix(now, 0).UTC()
	b.UpdatedAt = b.CreatedAt
	return nil
}

func (s *Store) BookmarkByID(ctx context.Context, id int64) (*domain.Bookmark, error) {
	var b domain.Bookmark
	var slug sql.NullString
	var lastAccessed sql.NullInt64
	var created, updated int64
	err := s.scanRow(ctx,
		"SELECT "+bookmarkCols+" FROM bookmarks WHERE id = ?", []any{id},
		&b.ID, &b.OwnerID, &b.Title, &b.URL, &slug, &b.Forwarding,
		&b.AccessCount, &lastAccessed, &created, &updated)
	if err != nil {
		return nil, s.wrap("failed to load bookmark", err)
	}
	fillBookmarkTimes(&b, slug, lastAccessed, created, updated)
	return &b, nil
}

// UpdateBookmark writes content and forwarding fields in one
// statement. A slug collision fails the whole update, so the stored
// slug is untouched after a rejected rename.
func (s *Store) UpdateBookmark(ctx context.Context, b *domain.Bookmark) error {
	res, err := s.exec(ctx,
		`UPDATE bookmarks SET title = ?, dest_url = ?, slug = ?, forwarding_enabled = ?, updated_at = ?
		WHERE id = ?`,
		b.Title, b.URL, nullStr(b.Slug), b.Forwarding, unixNow(), b.ID)
	if err != nil {
		return s.wrap("failed to update bookmark", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteBookmark(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM bookmark_tags WHERE bookmark_id = ?",
			"DELETE FROM bookmark_folders WHERE bookmark_id = ?",
			"DELETE FROM bookmark_user_shares WHERE bookmark_id = ?",
			"DELETE FROM bookmark_team_shares WHERE bookmark_id = ?",
		} {
			if _, err := s.execTx(ctx, tx, q, id); err != nil {
				return err
			}
		}
		res, err := s.execTx(ctx, tx, "DELETE FROM bookmarks WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return s.wrap("failed to delete bookmark", err)
}

// visibleBookmarksSQL is the bookmark read-set: owned, shared with
// the user, shared with one of the user's teams, or filed in a
// folder the user can see. The folder branch is what makes folder
// sharing transitive. UNION deduplicates bookmarks reachable through
// several paths. The caller binds the user id once per branch, six
// placeholders in total.
const visibleBookmarksSQL = `
	SELECT b.id, b.owner_id, b.title, b.dest_url, b.slug, b.forwarding_enabled,
		b.access_count, b.last_accessed, b.created_at, b.updated_at
	FROM bookmarks b WHERE b.owner_id = ?
	UNION
	SELECT b.id, b.owner_id, b.title, b.dest_url, b.slug, b.forwarding_enabled,
		b.access_count, b.last_accessed, b.created_at, b.updated_at
	FROM bookmarks b
	JOIN bookmark_user_shares bus ON bus.bookmark_id = b.id
	WHERE bus.user_id = ?
	UNION
	SELECT b.id, b.owner_id, b.title, b.dest_url, b.slug, b.forwarding_enabled,
		b.access_count, b.last_accessed, b.created_at, b.updated_at
	FROM bookmarks b
	JOIN bookmark_team_shares bts ON bts.bookmark_id = b.id
	JOIN team_members m ON m.team_id = bts.team_id
	WHERE m.user_id = ?
	UNION
	SELECT b.id, b.owner_id, b.title, b.dest_url, b.slug, b.forwarding_enabled,
		b.access_count, b.last_accessed, b.created_at, b.updated_at
	FROM bookmarks b
	JOIN bookmark_folders bf ON bf.bookmark_id = b.id
	WHERE bf.folder_id IN (
		SELECT f.id FROM folders f WHERE f.owner_id = ?
		UNION
		SELECT fus.folder_id FROM folder_user_shares fus WHERE fus.user_id = ?
		UNION
		SELECT fts.folder_id FROM folder_team_shares fts
		JOIN team_members m2 ON m2.team_id = fts.team_id
		WHERE m2.user_id = ?
	)`

func (s *Store) VisibleBookmarks(ctx context.Context, userID int64, filter BookmarkFilter) ([]domain.Bookmark, error) {
	var q strings.Builder
	q.WriteString("SELECT vb.id, vb.owner_id, vb.title, vb.dest_url, vb.slug, vb.forwarding_enabled, vb.access_count, vb.last_accessed, vb.created_at, vb.updated_at FROM (")
	q.WriteString(visibleBookmarksSQL)
	q.WriteString(") vb")
	args := []any{userID, userID, userID, userID, userID, userID}

	if filter.FolderID != 0 {
		q.WriteString(" JOIN bookmark_folders fbf ON fbf.bookmark_id = vb.id AND fbf.folder_id = ?")
		args = append(args, filter.FolderID)
	}
	if filter.TagID != 0 {
		q.WriteString(" JOIN bookmark_tags fbt ON fbt.bookmark_id = vb.id AND fbt.tag_id = ?")
		args = append(args, filter.TagID)
	}
	q.WriteString(" ORDER BY vb.created_at DESC, vb.id DESC")

	rows, err := s.query(ctx, q.String(), args...)
	if err != nil {
		return nil, s.wrap("failed to list bookmarks", err)
	}
	defer func() { _ = rows.Close() }()

	bookmarks := []domain.Bookmark{}
	for rows.Next() {
		var b domain.Bookmark
		var slug sql.NullString
		var lastAccessed sql.NullInt64
		var created, updated int64
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Title, &b.URL, &slug, &b.Forwarding,
			&b.AccessCount, &lastAccessed, &created, &updated); err != nil {
			return nil, err
		}
		fillBookmarkTimes(&b, slug, lastAccessed, created, updated)
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// CanSeeBookmark answers read-set membership for one bookmark.
func (s *Store) CanSeeBookmark(ctx context.Context, userID, bookmarkID int64) (bool, error) {
	var ok bool
	err := s.scanRow(ctx, `SELECT
		EXISTS (SELECT 1 FROM bookmarks WHERE id = ? AND owner_id = ?)
		OR EXISTS (SELECT 1 FROM bookmark_user_shares WHERE bookmark_id = ? AND user_id = ?)
		OR EXISTS (SELECT 1 FROM bookmark_team_shares bts
			JOIN team_members m ON m.team_id = bts.team_id
			WHERE bts.bookmark_id = ? AND m.user_id = ?)
		OR EXISTS (SELECT 1 FROM bookmark_folders bf
			WHERE bf.bookmark_id = ? AND bf.folder_id IN (
				SELECT f.id FROM folders f WHERE f.owner_id = ?
				UNION
				SELECT fus.folder_id FROM folder_user_shares fus WHERE fus.user_id = ?
				UNION
				SELECT fts.folder_id FROM folder_team_shares fts
				JOIN team_members m2 ON m2.team_id = fts.team_id
				WHERE m2.user_id = ?
			))`,
		[]any{
			bookmarkID, userID,
			bookmarkID, userID,
			bookmarkID, userID,
			bookmarkID, userID, userID, userID,
		}, &ok)
	if err != nil {
		return false, s.wrap("failed to check bookmark visibility", err)
	}
	return ok, nil
}

// SetBookmarkFolders replaces the folder memberships of a bookmark.
func (s *Store) SetBookmarkFolders(ctx context.Context, bookmarkID int64, folderIDs []int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.execTx(ctx, tx, "DELETE FROM bookmark_folders WHERE bookmark_id = ?", bookmarkID); err != nil {
			return err
		}
		for _, fid := range folderIDs {
			if _, err := s.execTx(ctx, tx,
				"INSERT INTO bookmark_folders (bookmark_id, folder_id) VALUES (?, ?)",
				bookmarkID, fid); err != nil {
				return err
			}
		}
		return nil
	})
	return s.wrap("failed to set bookmark folders", err)
}

// SetBookmarkTags replaces the tag links of a bookmark.
func (s *Store) SetBookmarkTags(ctx context.Context, bookmarkID int64, tagIDs []int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.execTx(ctx, tx, "DELETE FROM bookmark_tags WHERE bookmark_id = ?", bookmarkID); err != nil {
			return err
		}
		for _, tid := range tagIDs {
			if _, err := s.execTx(ctx, tx,
				"INSERT INTO bookmark_tags (bookmark_id, tag_id) VALUES (?, ?)",
				bookmarkID, tid); err != nil {
				return err
			}
		}
		return nil
	})
	return s.wrap("failed to set bookmark tags", err)
}

func inPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// BookmarkFolderLinks loads folder memberships for a batch of
// bookmarks in one query.
func (s *Store) BookmarkFolderLinks(ctx context.Context, bookmarkIDs []int64) (map[int64][]int64, error) {
	links := make(map[int64][]int64, len(bookmarkIDs))
	if len(bookmarkIDs) == 0 {
		return links, nil
	}
	rows, err := s.query(ctx,
		"SELECT bookmark_id, folder_id FROM bookmark_folders WHERE bookmark_id IN ("+
			inPlaceholders(len(bookmarkIDs))+") ORDER BY folder_id",
		int64Args(bookmarkIDs)...)
	if err != nil {
		return nil, s.wrap("failed to load folder links", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var bid, fid int64
		if err := rows.Scan(&bid, &fid); err != nil {
			return nil, err
		}
		links[bid] = append(links[bid], fid)
	}
	return links, rows.Err()
}

// BookmarkTagLinks loads tags for a batch of bookmarks in one query.
func (s *Store) BookmarkTagLinks(ctx context.Context, bookmarkIDs []int64) (map[int64][]domain.Tag, error) {
	links := make(map[int64][]domain.Tag, len(bookmarkIDs))
	if len(bookmarkIDs) == 0 {
		return links, nil
	}
	rows, err := s.query(ctx,
		`SELECT bt.bookmark_id, t.id, t.owner_id, t.name, t.created_at
		FROM bookmark_tags bt JOIN tags t ON t.id = bt.tag_id
		WHERE bt.bookmark_id IN (`+inPlaceholders(len(bookmarkIDs))+`) ORDER BY t.name`,
		int64Args(bookmarkIDs)...)
	if err != nil {
		return nil, s.wrap("failed to load tag links", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var bid int64
		var t domain.Tag
		var created int64
		if err := rows.Scan(&bid, &t.ID, &t.OwnerID, &t.Name, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = time.Unix(created, 0).UTC()
		links[bid] = append(links[bid], t)
	}
	return links, rows.Err()
}

// ForwardTarget resolves a public address to its destination. The
// forwarding flag is part of the match, so a disabled bookmark is the
// same as an absent one.
func (s *Store) ForwardTarget(ctx context.Context, userKey, slug string) (int64, string, error) {
	var id int64
	var dest string
	err := s.scanRow(ctx,
		`SELECT b.id, b.dest_url FROM bookmarks b
		JOIN users u ON u.id = b.owner_id
		WHERE u.user_key = ? AND b.slug = ? AND b.forwarding_enabled = ?`,
		[]any{userKey, slug, true}, &id, &dest)
	if err != nil {
		return 0, "", s.wrap("failed to resolve forward target", err)
	}
	return id, dest, nil
}

// TouchBookmark bumps the access counter after a served redirect.
func (s *Store) TouchBookmark(ctx context.Context, id int64) error {
	_, err := s.exec(ctx,
		"UPDATE bookmarks SET access_count = access_count + 1, last_accessed = ? WHERE id = ?",
		unixNow(), id)
	return s.wrap("failed to touch bookmark", err)
}

// OwnedBookmarkStats lists the caller's bookmarks most-visited first
// for the statistics view.
func (s *Store) OwnedBookmarkStats(ctx context.Context, ownerID int64) ([]domain.Bookmark, error) {
	rows, err := s.query(ctx,
		"SELECT "+bookmarkCols+" FROM bookmarks WHERE owner_id = ? ORDER BY access_count DESC, id",
		ownerID)
	if err != nil {
		return nil, s.wrap("failed to load bookmark stats", err)
	}
	defer func() { _ = rows.Close() }()

	bookmarks := []domain.Bookmark{}
	for rows.Next() {
		var b domain.Bookmark
		var slug sql.NullString
		var lastAccessed sql.NullInt64
		var created, updated int64
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Title, &b.URL, &slug, &b.Forwarding,
			&b.AccessCount, &lastAccessed, &created, &updated); err != nil {
			return nil, err
		}
		fillBookmarkTimes(&b, slug, lastAccessed, created, updated)
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

func fillBookmarkTimes(b *domain.Bookmark, slug sql.NullString, lastAccessed sql.NullInt64, created, updated int64) {
	if slug.Valid {
		v := slug.String
		b.Slug = &v
	}
	if lastAccessed.Valid {
		t := time.Unix(lastAccessed.Int64, 0).UTC()
		b.LastAccessed = &t
	}
	b.CreatedAt = time.Unix(created, 0).UTC()
	b.UpdatedAt = time.Unix(updated, 0).UTC()
}
