package domain

import "time"

// Bookmark represents a stored link owned by a single user.
//
// A bookmark may optionally carry a slug. The slug is globally unique
// across all users and, together with the owner's user key, forms the
// public forwarding address /{user_key}/{slug}.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the canonical unique identifier.
	ID int64

	// OwnerID references the owning user. Only the owner may mutate
	// or delete the bookmark.
	OwnerID int64

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// Title is the display name.
	// Example: "Team wiki"
	Title string

	// URL is the destination the bookmark points at.
	// Example: https://wiki.example.com/
	URL string

	// ─────────────────────────────
	// Public forwarding
	// ─────────────────────────────

	// Slug is the public short name. Nil means the bookmark has no
	// public address. Non-nil values are unique across all users.
	Slug *string

	// Forwarding gates the public endpoint. A bookmark with a slug
	// but Forwarding=false answers 404.
	Forwarding bool

	// ─────────────────────────────
	// Usage
	// ─────────────────────────────

	// AccessCount is the number of successful public redirects.
	AccessCount int64

	// LastAccessed is set after each successful public redirect.
	// Nil until the first hit.
	LastAccessed *time.Time

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt is the creation time. It decides which duplicate
	// keeps its slug when uniqueness is tightened.
	CreatedAt time.Time

	// UpdatedAt is updated on any mutation.
	UpdatedAt time.Time

	// ─────────────────────────────
	// Associations (loaded on demand)
	// ─────────────────────────────

	// FolderIDs lists the folders this bookmark is filed under.
	FolderIDs []int64

	// Tags lists the owner's labels on this bookmark.
	Tags []Tag
}
