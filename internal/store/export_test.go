package store

import "context"

// MigrateTo lets tests stop the migration chain early to stage data
// under a historical schema.
func (s *Store) MigrateTo(ctx context.Context, max int) error {
	return s.migrateTo(ctx, max)
}
