package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marque-app/marque/internal/domain"
)

const userCols = "id, email, display_name, password_hash, user_key, is_admin, created_at, updated_at"

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	now := unixNow()
	err := s.scanRow(ctx,
		`INSERT INTO users (email, display_name, password_hash, user_key, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		[]any{u.Email, u.DisplayName, u.PasswordHash, u.UserKey, u.Admin, now, now},
		&u.ID)
	if err != nil {
		return s.wrap("failed to create user", err)
	}
	u.CreatedAt = time.Unix(now, 0).UTC()
	u.UpdatedAt = u.CreatedAt
	return nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.oneUser(ctx, "SELECT "+userCols+" FROM users WHERE id = ?", id)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.oneUser(ctx, "SELECT "+userCols+" FROM users WHERE email = ?", email)
}

func (s *Store) oneUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User
	var created, updated int64
	err := s.scanRow(ctx, query, args,
		&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.UserKey, &u.Admin, &created, &updated)
	if err != nil {
		return nil, s.wrap("failed to load user", err)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	u.UpdatedAt = time.Unix(updated, 0).UTC()
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.query(ctx, "SELECT "+userCols+" FROM users ORDER BY id")
	if err != nil {
		return nil, s.wrap("failed to list users", err)
	}
	defer func() { _ = rows.Close() }()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		var created, updated int64
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.UserKey, &u.Admin, &created, &updated); err != nil {
			return nil, err
		}
		u.CreatedAt = time.Unix(created, 0).UTC()
		u.UpdatedAt = time.Unix(updated, 0).UTC()
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateDisplayName(ctx context.Context, id int64, name string) error {
	return s.updateUserField(ctx, "failed to update display name",
		"UPDATE users SET display_name = ?, updated_at = ? WHERE id = ?", name, unixNow(), id)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return s.updateUserField(ctx, "failed to update password",
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?", hash, unixNow(), id)
}

// UpdateUserKey swaps the public forwarding prefix. A colliding key
// surfaces as a ConflictError for the caller's retry loop.
func (s *Store) UpdateUserKey(ctx context.Context, id int64, key string) error {
	return s.updateUserField(ctx, "failed to update user key",
		"UPDATE users SET user_key = ?, updated_at = ? WHERE id = ?", key, unixNow(), id)
}

func (s *Store) SetAdmin(ctx context.Context, id int64, admin bool) error {
	return s.updateUserField(ctx, "failed to update admin flag",
		"UPDATE users SET is_admin = ?, updated_at = ? WHERE id = ?", admin, unixNow(), id)
}

func (s *Store) updateUserField(ctx context.Context, op, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return s.wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteUser removes the account and everything hanging off it:
// owned bookmarks, folders and tags with their links, shares granted
// on owned objects, shares received, team memberships and pending
// tokens. Children go first so foreign keys hold at every step.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmts := []struct {
			q    string
			args []any
		}{
			{`DELETE FROM bookmark_tags WHERE tag_id IN (SELECT id FROM tags WHERE owner_id = ?)`, []any{id}},
			{`DELETE FROM bookmark_tags WHERE bookmark_id IN (SELECT id FROM bookmarks WHERE owner_id = ?)`, []any{id}},
			{`DELETE FROM bookmark_folders WHERE bookmark_id IN (SELECT id FROM bookmarks WHERE owner_id = ?)`, []any{id}},
			{`DELETE FROM bookmark_folders WHERE folder_id IN (SELECT id FROM folders WHERE owner_id = ?)`, []any{id}},
			{`DELETE FROM bookmark_user_shares WHERE bookmark_id IN (SELECT id FROM bookmarks WHERE owner_id = ?)`, []any{id}},
			{`DELETE FROM bookmark_user_shares WHERE user_id = ?`, []any{id}},
			{`DELETE FROM bookmark_team_shares WHERE bookmark_id IN (SELECT id FROM bookmarks WHERE owner_id = ?)`, []any{id}},
			{`DELETE FROM folder_user_shares WHERE folder_id IN (SELECT id FROM folders WHERE owner_id = ?)`, []any{id}},
			{`DELETE FROM folder_user_shares WHERE user_id = ?`, []any{id}},
			{`DELETE FROM folder_team_shares WHERE folder_id IN (SELECT id FROM folders WHERE owner_id = ?)`, []any{id}},
			{`DELETE FROM team_members WHERE user_id = ?`, []any{id}},
			{`DELETE FROM reset_tokens WHERE user_id = ?`, []any{id}},
			{`DELETE FROM bookmarks WHERE owner_id = ?`, []any{id}},
			{`DELETE FROM folders WHERE owner_id = ?`, []any{id}},
			{`DELETE FROM tags WHERE owner_id = ?`, []any{id}},
		}
		for _, st := range stmts {
			if _, err := s.execTx(ctx, tx, st.q, st.args...); err != nil {
				return err
			}
		}
		res, err := s.execTx(ctx, tx, `DELETE FROM users WHERE id = ?`, id)
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
	return s.wrap("failed to delete user", err)
}
