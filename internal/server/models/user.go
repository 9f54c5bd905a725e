// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an identity keyed by email. An unverified user is provisional and
// may be evicted by a later signup with the same email; a verified one is
// durable.
type User struct {
	ID            string
	Email         string
	Name          string
	EmailVerified bool
	Image         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
