package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/marque-app/marque/internal/domain"
)

const folderCols = "id, owner_id, name, icon, created_at, updated_at"

func (s *Store) CreateFolder(ctx context.Context, f *domain.Folder) error {
	now := unixNow()
	err := s.scanRow(ctx,
		`INSERT INTO folders (owner_id, name, icon, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`,
		[]any{f.OwnerID, f.Name, f.Icon, now, now}, &f.ID)
	if err != nil {
		return s.wrap("failed to create folder", err)
	}
	f.CreatedAt = time.Unix(now, 0).UTC()
	f.UpdatedAt = f.CreatedAt
	return nil
}

func (s *Store) FolderByID(ctx context.Context, id int64) (*domain.Folder, error) {
	var f domain.Folder
	var created, updated int64
	err := s.scanRow(ctx,
		"SELECT "+folderCols+" FROM folders WHERE id = ?", []any{id},
		&f.ID, &f.OwnerID, &f.Name, &f.Icon, &created, &updated)
	if err != nil {
		return nil, s.wrap("failed to load folder", err)
	}
	f.CreatedAt = time.Unix(created, 0).UTC()
	f.UpdatedAt = time.Unix(updated, 0).UTC()
	return &f, nil
}

func (s *Store) UpdateFolder(ctx context.Context, f *domain.Folder) error {
	res, err := s.exec(ctx,
		"UPDATE folders SET name = ?, icon = ?, updated_at = ? WHERE id = ?",
		f.Name, f.Icon, unixNow(), f.ID)
	if err != nil {
		return s.wrap("failed to update folder", err)
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

// DeleteFolder removes the folder, its shares and its bookmark
// memberships. The bookmarks themselves survive.
func (s *Store) DeleteFolder(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM bookmark_folders WHERE folder_id = ?",
			"DELETE FROM folder_user_shares WHERE folder_id = ?",
			"DELETE FROM folder_team_shares WHERE folder_id = ?",
		} {
			if _, err := s.execTx(ctx, tx, q, id); err != nil {
				return err
			}
		}
		res, err := s.execTx(ctx, tx, "DELETE FROM folders WHERE id = ?", id)
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
	return s.wrap("failed to delete folder", err)
}

// visibleFoldersSQL is the folder read-set: owned, shared directly
// with the user, or shared with a team the user belongs to. UNION
// collapses a folder reachable through several paths into one row.
const visibleFoldersSQL = `
	SELECT f.id, f.owner_id, f.name, f.icon, f.created_at, f.updated_at
	FROM folders f WHERE f.owner_id = ?
	UNION
	SELECT f.id, f.owner_id, f.name, f.icon, f.created_at, f.updated_at
	FROM folders f
	JOIN folder_user_shares fus ON fus.folder_id = f.id
	WHERE fus.user_id = ?
	UNION
	SELECT f.id, f.owner_id, f.name, f.icon, f.created_at, f.updated_at
	FROM folders f
	JOIN folder_team_shares fts ON fts.folder_id = f.id
	JOIN team_members m ON m.team_id = fts.team_id
	WHERE m.user_id = ?`

func (s *Store) VisibleFolders(ctx context.Context, userID int64) ([]domain.Folder, error) {
	rows, err := s.query(ctx, visibleFoldersSQL+" ORDER BY name, id", userID, userID, userID)
	if err != nil {
		return nil, s.wrap("failed to list folders", err)
	}
	defer func() { _ = rows.Close() }()

	folders := []domain.Folder{}
	for rows.Next() {
		var f domain.Folder
		var created, updated int64
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Icon, &created, &updated); err != nil {
			return nil, err
		}
		f.CreatedAt = time.Unix(created, 0).UTC()
		f.UpdatedAt = time.Unix(updated, 0).UTC()
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// CanSeeFolder answers the read-set membership question for a single
// folder without materializing the whole set.
func (s *Store) CanSeeFolder(ctx context.Context, userID, folderID int64) (bool, error) {
	var ok bool
	err := s.scanRow(ctx, `SELECT
		EXISTS (SELECT 1 FROM folders WHERE id = ? AND owner_id = ?)
		OR EXISTS (SELECT 1 FROM folder_user_shares WHERE folder_id = ? AND user_id = ?)
		OR EXISTS (SELECT 1 FROM folder_team_shares fts
			JOIN team_members m ON m.team_id = fts.team_id
			WHERE fts.folder_id = ? AND m.user_id = ?)`,
		[]any{folderID, userID, folderID, userID, folderID, userID}, &ok)
	if err != nil {
		return false, s.wrap("failed to check folder visibility", err)
	}
	return ok, nil
}
