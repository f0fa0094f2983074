package models

import "time"

// LedgerEntry records one signed point delta applied to a user's balance.
type LedgerEntry struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	RequestID *string   `db:"request_id" json:"request_id,omitempty"`
	Delta     int       `db:"delta" json:"delta"`
	Balance   int       `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Balance is the current CredPoints total for a user.
type Balance struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}
