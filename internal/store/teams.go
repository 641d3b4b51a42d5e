package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/marque-app/marque/internal/domain"
)

func (s *Store) CreateTeam(ctx context.Context, name string) (*domain.Team, error) {
	now := unixNow()
	t := domain.Team{Name: name, CreatedAt: time.Unix(now, 0).UTC()}
	err := s.scanRow(ctx,
		"INSERT INTO teams (name, created_at) VALUES (?, ?) RETURNING id",
		[]any{name, now}, &t.ID)
	if err != nil {
		return nil, s.wrap("failed to create team", err)
	}
	return &t, nil
}

func (s *Store) DeleteTeam(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM folder_team_shares WHERE team_id = ?",
			"DELETE FROM bookmark_team_shares WHERE team_id = ?",
			"DELETE FROM team_members WHERE team_id = ?",
		} {
			if _, err := s.execTx(ctx, tx, q, id); err != nil {
				return err
			}
		}
		res, err := s.execTx(ctx, tx, "DELETE FROM teams WHERE id = ?", id)
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
	return s.wrap("failed to delete team", err)
}

func (s *Store) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return s.teams(ctx, "SELECT id, name, created_at FROM teams ORDER BY name")
}

// TeamsOfUser lists the caller's current memberships.
func (s *Store) TeamsOfUser(ctx context.Context, userID int64) ([]domain.Team, error) {
	return s.teams(ctx,
		`SELECT t.id, t.name, t.created_at FROM teams t
		JOIN team_members m ON m.team_id = t.id
		WHERE m.user_id = ? ORDER BY t.name`, userID)
}

// TeamIDsOfUser is the membership set used both for checking a
// requested team share and for snapshotting "share with all my
// teams" into concrete rows.
func (s *Store) TeamIDsOfUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.query(ctx,
		"SELECT team_id FROM team_members WHERE user_id = ? ORDER BY team_id", userID)
	if err != nil {
		return nil, s.wrap("failed to list memberships", err)
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

func (s *Store) teams(ctx context.Context, query string, args ...any) ([]domain.Team, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("failed to list teams", err)
	}
	defer func() { _ = rows.Close() }()

	teams := []domain.Team{}
	for rows.Next() {
		var t domain.Team
		var created int64
		if err := rows.Scan(&t.ID, &t.Name, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = time.Unix(created, 0).UTC()
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// AddTeamMember is idempotent: adding an existing member succeeds.
// A missing team or user surfaces as not found via the foreign keys.
func (s *Store) AddTeamMember(ctx context.Context, teamID, userID int64) error {
	_, err := s.exec(ctx,
		"INSERT INTO team_members (team_id, user_id, created_at) VALUES (?, ?, ?)",
		teamID, userID, unixNow())
	if err != nil {
		werr := s.wrap("failed to add team member", err)
		if domain.IsConflict(werr) {
			return nil
		}
		return werr
	}
	return nil
}

func (s *Store) RemoveTeamMember(ctx context.Context, teamID, userID int64) error {
	res, err := s.exec(ctx,
		"DELETE FROM team_members WHERE team_id = ? AND user_id = ?", teamID, userID)
	if err != nil {
		return s.wrap("failed to remove team member", err)
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

func (s *Store) IsTeamMember(ctx context.Context, teamID, userID int64) (bool, error) {
	var member bool
	err := s.scanRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM team_members WHERE team_id = ? AND user_id = ?)",
		[]any{teamID, userID}, &member)
	if err != nil {
		return false, s.wrap("failed to check membership", err)
	}
	return member, nil
}
