// Package models defines the persistent entities of the project store.
package models

import "time"

// Account type codes.
const (
	AccountTypeUser      = 0
	AccountTypeModerator = 1
)

// Account is a registered user of the IDE. The numeric ID is internal;
// callers see its lowercase-hex encoding (hexid package).
type Account struct {
	ID             int64
	Email          string
	Name           string
	Link           string
	EmailFrequency int
	TosAccepted    bool
	Type           int
	SessionID      string
	// Password holds the bcrypt hash, or "" when no password is stored
	// (persisted as NULL).
	Password   string
	Settings   string
	BackpackID string
	VisitedAt  time.Time
}

// IsModerator reports whether the account carries the moderator type code.
func (a *Account) IsModerator() bool {
	return a.Type == AccountTypeModerator
}

// AccountField enumerates the mutable account columns reachable through the
// keyed field accessors. The set is closed: repositories reject anything
// outside it.
type AccountField string

const (
	AccountEmail          AccountField = "email"
	AccountName           AccountField = "name"
	AccountLink           AccountField = "link"
	AccountEmailFrequency AccountField = "email_frequency"
	AccountTosAccepted    AccountField = "tos_accepted"
	AccountSessionID      AccountField = "session_id"
	AccountPassword       AccountField = "password"
	AccountSettings       AccountField = "settings"
	AccountBackpackID     AccountField = "backpack_id"
	AccountVisitedAt      AccountField = "visited_at"
)
