package auth

// Package auth contains domain-level types for authentication.
// It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and token claims.
// Valid values are defined as constants below.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Identity represents the authenticated principal behind a bearer token.
// Adapters map provider-specific claims into this shape. UserID is the
// owner identity recorded on every job the caller submits.
type Identity struct {
	UserID    string // stable user identifier (token sub)
	Email     string
	Role      Role
	ExpiresAt time.Time // absolute expiry from the token
}

// IsAdmin returns true if the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }
