package account

import "time"

const (
	// RoleUser is a regular player account.
	RoleUser = "user"
	// RoleAdmin may settle withdrawals, mint redeem codes and edit policy.
	RoleAdmin = "admin"

	// StatusActive marks a live account.
	StatusActive = "active"
	// StatusDeleted marks a soft-deleted account. The row is never removed
	// while ledger entries reference it.
	StatusDeleted = "deleted"
)

// Account represents a registered player or admin. Its balances live in the
// balance store, keyed by ID; only the profile is kept here.
type Account struct {
	ID           string
	Phone        string
	DisplayName  string
	Role         string
	PINHash      []byte
	DeviceID     string
	TokenVersion int
	Status       string
	CreatedAt    time.Time
}

// Credentials carried by register and login requests.
type Credentials struct {
	Phone    string
	PIN      string
	DeviceID string
}
