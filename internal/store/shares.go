package store

import (
	"context"
	"database/sql"
)

// SetFolderShares replaces both share sets of a folder in one
// transaction. Membership and existence checks belong to the access
// layer; foreign keys are the last line of defense here.
func (s *Store) SetFolderShares(ctx context.Context, folderID int64, userIDs, teamIDs []int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.replaceShares(ctx, tx, shareTables{
			userTable: "folder_user_shares",
			teamTable: "folder_team_shares",
			idColumn:  "folder_id",
		}, folderID, userIDs, teamIDs)
	})
	return s.wrap("failed to set folder shares", err)
}

// SetBookmarkShares replaces both share sets of a bookmark.
func (s *Store) SetBookmarkShares(ctx context.Context, bookmarkID int64, userIDs, teamIDs []int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.replaceShares(ctx, tx, shareTables{
			userTable: "bookmark_user_shares",
			teamTable: "bookmark_team_shares",
			idColumn:  "bookmark_id",
		}, bookmarkID, userIDs, teamIDs)
	})
	return s.wrap("failed to set bookmark shares", err)
}

type shareTables struct {
	userTable string
	teamTable string
	idColumn  string
}

func (s *Store) replaceShares(ctx context.Context, tx *sql.Tx, t shareTables, id int64, userIDs, teamIDs []int64) error {
	now := unixNow()

	if _, err := s.execTx(ctx, tx, "DELETE FROM "+t.userTable+" WHERE "+t.idColumn+" = ?", id); err != nil {
		return err
	}
	for _, uid := range userIDs {
		if _, err := s.execTx(ctx, tx,
			"INSERT INTO "+t.userTable+" ("+t.idColumn+", user_id, created_at) VALUES (?, ?, ?)",
			id, uid, now); err != nil {
			return err
		}
	}

	if _, err := s.execTx(ctx, tx, "DELETE FROM "+t.teamTable+" WHERE "+t.idColumn+" = ?", id); err != nil {
		return err
	}
	for _, tid := range teamIDs {
		if _, err := s.execTx(ctx, tx,
			"INSERT INTO "+t.teamTable+" ("+t.idColumn+", team_id, created_at) VALUES (?, ?, ?)",
			id, tid, now); err != nil {
			return err
		}
	}
	return nil
}

// FolderShares reads the current share sets of a folder.
func (s *Store) FolderShares(ctx context.Context, folderID int64) (userIDs, teamIDs []int64, err error) {
	return s.shareSets(ctx, shareTables{
		userTable: "folder_user_shares",
		teamTable: "folder_team_shares",
		idColumn:  "folder_id",
	}, folderID)
}

// BookmarkShares reads the current share sets of a bookmark.
func (s *Store) BookmarkShares(ctx context.Context, bookmarkID int64) (userIDs, teamIDs []int64, err error) {
	return s.shareSets(ctx, shareTables{
		userTable: "bookmark_user_shares",
		teamTable: "bookmark_team_shares",
		idColumn:  "bookmark_id",
	}, bookmarkID)
}

func (s *Store) shareSets(ctx context.Context, t shareTables, id int64) ([]int64, []int64, error) {
	userIDs, err := s.idList(ctx,
		"SELECT user_id FROM "+t.userTable+" WHERE "+t.idColumn+" = ? ORDER BY user_id", id)
	if err != nil {
		return nil, nil, s.wrap("failed to read shares", err)
	}
	teamIDs, err := s.idList(ctx,
		"SELECT team_id FROM "+t.teamTable+" WHERE "+t.idColumn+" = ? ORDER BY team_id", id)
	if err != nil {
		return nil, nil, s.wrap("failed to read shares", err)
	}
	return userIDs, teamIDs, nil
}

func (s *Store) idList(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UsersExist verifies that every id names a user. Used to reject a
// share aimed at a deleted account before touching the share tables.
func (s *Store) UsersExist(ctx context.Context, ids []int64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	var count int
	err := s.scanRow(ctx,
		"SELECT COUNT(*) FROM users WHERE id IN ("+inPlaceholders(len(ids))+")",
		int64Args(ids), &count)
	if err != nil {
		return false, s.wrap("failed to check users", err)
	}
	return count == len(ids), nil
}
