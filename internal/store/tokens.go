package store

import (
	"context"
	"time"
)

// CreateResetToken stores a password reset token.
func (s *Store) CreateResetToken(ctx context.Context, token string, userID int64, expires time.Time) error {
	_, err := s.exec(ctx,
		"INSERT INTO reset_tokens (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		token, userID, expires.Unix(), unixNow())
	return s.wrap("failed to create reset token", err)
}

// ConsumeResetToken atomically deletes an unexpired token and returns
// its user. A second consume, or an expired token, is not found.
func (s *Store) ConsumeResetToken(ctx context.Context, token string, now time.Time) (int64, error) {
	var userID int64
	err := s.scanRow(ctx,
		"DELETE FROM reset_tokens WHERE token = ? AND expires_at > ? RETURNING user_id",
		[]any{token, now.Unix()}, &userID)
	if err != nil {
		return 0, s.wrap("failed to consume reset token", err)
	}
	return userID, nil
}

// CreateOIDCState stores the anti-forgery state for a login attempt.
func (s *Store) CreateOIDCState(ctx context.Context, state string, expires time.Time) error {
	_, err := s.exec(ctx,
		"INSERT INTO oidc_states (state, expires_at, created_at) VALUES (?, ?, ?)",
		state, expires.Unix(), unixNow())
	return s.wrap("failed to create oidc state", err)
}

// ConsumeOIDCState atomically validates and burns a state value.
func (s *Store) ConsumeOIDCState(ctx context.Context, state string, now time.Time) error {
	var burned string
	err := s.scanRow(ctx,
		"DELETE FROM oidc_states WHERE state = ? AND expires_at > ? RETURNING state",
		[]any{state, now.Unix()}, &burned)
	return s.wrap("failed to consume oidc state", err)
}

// SweepExpiredTokens removes expired reset tokens and OIDC states in
// bounded batches so the janitor never holds long locks. It reports
// how many rows went away.
func (s *Store) SweepExpiredTokens(ctx context.Context, now time.Time, batch int) (int64, error) {
	if batch <= 0 {
		batch = 500
	}
	var total int64
	for _, q := range []string{
		`DELETE FROM reset_tokens WHERE token IN (
			SELECT token FROM reset_tokens WHERE expires_at <= ? LIMIT ?)`,
		`DELETE FROM oidc_states WHERE state IN (
			SELECT state FROM oidc_states WHERE expires_at <= ? LIMIT ?)`,
	} {
		for {
			res, err := s.exec(ctx, q, now.Unix(), batch)
			if err != nil {
				return total, s.wrap("failed to sweep expired tokens", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return total, err
			}
			total += n
			if n < int64(batch) {
				break
			}
		}
	}
	return total, nil
}
