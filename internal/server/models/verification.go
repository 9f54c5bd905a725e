package models

import "time"

// ResetPasswordPrefix prefixes Verification identifiers of password reset tokens.
const ResetPasswordPrefix = "reset-password:"

// Verification is a one-shot secret: Identifier is looked up, Value is the payload.
type Verification struct {
	ID         string
	Identifier string
	Value      string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}
