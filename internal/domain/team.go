package domain

import "time"

// Team is a named group of users used as a sharing target.
type Team struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// TeamMember links a user to a team. Membership is checked at the
// moment a share is created or a read-set is resolved; later changes
// do not rewrite existing share rows.
type TeamMember struct {
	TeamID    int64
	UserID    int64
	CreatedAt time.Time
}
