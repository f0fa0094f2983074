package models

import (
	"encoding/json"
	"time"
)

// NotificationType enumerates the alerts the workflow produces.
type NotificationType string

const (
	NotificationRequestSubmitted  NotificationType = "request_submitted"
	NotificationRequestApproved   NotificationType = "request_approved"
	NotificationRequestRejected   NotificationType = "request_rejected"
	NotificationRequestCorrection NotificationType = "request_correction"
)

// Notification is an inbox entry for a single recipient.
type Notification struct {
	ID               string           `db:"id" json:"id"`
	UserID           string           `db:"user_id" json:"user_id"`
	Type             NotificationType `db:"type" json:"type"`
	Title            string           `db:"title" json:"title"`
	Message          string           `db:"message" json:"message"`
	Read             bool             `db:"read" json:"read"`
	RelatedRequestID *string          `db:"related_request_id" json:"related_request_id,omitempty"`
	RequestRevision  *int             `db:"request_revision" json:"request_revision,omitempty"`
	RequestData      json.RawMessage  `db:"request_data" json:"request_data,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	ReadAt           *time.Time       `db:"read_at" json:"read_at,omitempty"`
}

// NotificationRequestData is the request snapshot embedded in workflow notifications.
type NotificationRequestData struct {
	RequestID       string        `json:"request_id"`
	StaffID         string        `json:"staff_id"`
	WorkDescription string        `json:"work_description"`
	RequestedPoints int           `json:"requested_points"`
	ApprovedPoints  *int          `json:"approved_points,omitempty"`
	Status          RequestStatus `json:"status"`
	Revision        int           `json:"revision"`
	Resubmission    bool          `json:"resubmission"`
	ResponseMessage *string       `json:"response_message,omitempty"`
}
