package domain

import "time"

// Folder is a user-owned grouping of bookmarks.
//
// Sharing a folder shares every bookmark filed under it, including
// bookmarks added after the share was created.
type Folder struct {
	// ID is the canonical unique identifier.
	ID int64

	// OwnerID references the owning user. Only the owner may mutate
	// the folder or manage its shares.
	OwnerID int64

	// Name is unique per owner.
	Name string

	// Icon is an optional display hint. Empty means none.
	Icon string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tag is a user-owned label. Tag names are unique per owner.
type Tag struct {
	ID        int64
	OwnerID   int64
	Name      string
	CreatedAt time.Time
}

// ShareGrant describes the audience of a folder or bookmark share as
// accepted by the write endpoints. Nil slices leave the corresponding
// share set untouched; empty slices clear it.
type ShareGrant struct {
	UserIDs []int64
	TeamIDs []int64

	// AllMyTeams snapshots the caller's current team memberships
	// into team shares. Teams joined later are not included.
	AllMyTeams bool
}
