package models

import "time"

// ActivityType enumerates audit trail categories.
type ActivityType string

const (
	ActivityCredit            ActivityType = "credit"
	ActivityDebit             ActivityType = "debit"
	ActivityRequestRejected   ActivityType = "request_rejected"
	ActivityRequestCorrection ActivityType = "request_correction"
)

// Activity is an append-only audit record. Points is always a non-negative magnitude.
type Activity struct {
	ID               string       `db:"id" json:"id"`
	UserID           string       `db:"user_id" json:"user_id"`
	ActivityType     ActivityType `db:"activity_type" json:"activity_type"`
	Description      string       `db:"description" json:"description"`
	Points           int          `db:"points" json:"points"`
	RelatedRequestID *string      `db:"related_request_id" json:"related_request_id,omitempty"`
	RequestRevision  *int         `db:"request_revision" json:"request_revision,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
}
