// Package profile owns the per-user financial profile record:
// intake fields, stated goals and preferences, and the bank
// connection status written by the link flow.
package profile

import (
	"time"

	"github.com/shopspring/decimal"
)

// Profile is the durable per-user record. Created at registration,
// mutated by profile edits and by the link flow; never deleted here
// (account deletion is an identity-provider concern).
type Profile struct {
	UserID      string
	FirstName   string
	LastName    string
	Email       string
	DateOfBirth *time.Time
	Income      decimal.NullDecimal
	Assets      decimal.NullDecimal
	ZipCode     string
	Goals       string
	Preferences string

	// BankConnected and BankConnectionID are written together in one
	// update: the id is non-nil iff connected.
	BankConnected    bool
	BankConnectionID *string

	UpdatedAt time.Time
}
