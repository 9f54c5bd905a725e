package models

import "time"

// CredentialProviderID marks the email/password account of a user.
const CredentialProviderID = "credential"

// Account links a user to a sign-in method: the local credential or a
// social provider identity.
type Account struct {
	ID         string
	UserID     string
	ProviderID string
	// AccountID is the provider-side user id; for credentials it equals UserID.
	AccountID string
	// Password holds the scrypt hash for credential accounts, empty otherwise.
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
