package domain

import "time"

// User is an account holder.
//
// A User is uniquely identified by ID internally, by Email for login
// and by UserKey on the public forwarding surface.
type User struct {
	// ID is the canonical unique identifier.
	ID int64

	// Email is the login identifier. Unique, case-preserved.
	Email string

	// DisplayName is shown to other users on shares. Optional.
	DisplayName string

	// PasswordHash holds the argon2id PHC string for local accounts.
	// Empty for accounts that only ever signed in through OIDC.
	PasswordHash string

	// UserKey is the short public token that prefixes forwarding
	// URLs. Unique across all users, regenerable on demand.
	UserKey string

	// Admin grants access to the administration surface.
	Admin bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID int64
	Admin  bool
}
