package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/marque-app/marque/internal/domain"
)

func (s *Store) CreateTag(ctx context.Context, t *domain.Tag) error {
	now := unixNow()
	err := s.scanRow(ctx,
		"INSERT INTO tags (owner_id, name, created_at) VALUES (?, ?, ?) RETURNING id",
		[]any{t.OwnerID, t.Name, now}, &t.ID)
	if err != nil {
		return s.wrap("failed to create tag", err)
	}
	t.CreatedAt = time.Unix(now, 0).UTC()
	return nil
}

func (s *Store) TagByID(ctx context.Context, id int64) (*domain.Tag, error) {
	var t domain.Tag
	var created int64
	err := s.scanRow(ctx,
		"SELECT id, owner_id, name, created_at FROM tags WHERE id = ?", []any{id},
		&t.ID, &t.OwnerID, &t.Name, &created)
	if err != nil {
		return nil, s.wrap("failed to load tag", err)
	}
	t.CreatedAt = time.Unix(created, 0).UTC()
	return &t, nil
}

// TagsOfUser lists the caller's tags. Tags are private to their
// owner; there is no tag sharing.
func (s *Store) TagsOfUser(ctx context.Context, ownerID int64) ([]domain.Tag, error) {
	rows, err := s.query(ctx,
		"SELECT id, owner_id, name, created_at FROM tags WHERE owner_id = ? ORDER BY name", ownerID)
	if err != nil {
		return nil, s.wrap("failed to list tags", err)
	}
	defer func() { _ = rows.Close() }()

	tags := []domain.Tag{}
	for rows.Next() {
		var t domain.Tag
		var created int64
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = time.Unix(created, 0).UTC()
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *Store) RenameTag(ctx context.Context, id int64, name string) error {
	res, err := s.exec(ctx, "UPDATE tags SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return s.wrap("failed to rename tag", err)
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

func (s *Store) DeleteTag(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.execTx(ctx, tx, "DELETE FROM bookmark_tags WHERE tag_id = ?", id); err != nil {
			return err
		}
		res, err := s.execTx(ctx, tx, "DELETE FROM tags WHERE id = ?", id)
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
	return s.wrap("failed to delete tag", err)
}
