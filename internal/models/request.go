package models

import "time"

// RequestStatus is the single source of truth for where a work request sits in its lifecycle.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusApproved   RequestStatus = "approved"
	RequestStatusRejected   RequestStatus = "rejected"
	RequestStatusCorrection RequestStatus = "correction"
)

// Valid reports whether the status is one of the known states.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected, RequestStatusCorrection:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined from the status.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// RequestEvent names a lifecycle transition.
type RequestEvent string

const (
	RequestEventSubmit     RequestEvent = "submit"
	RequestEventApprove    RequestEvent = "approve"
	RequestEventReject     RequestEvent = "reject"
	RequestEventCorrection RequestEvent = "request_correction"
	RequestEventResubmit   RequestEvent = "resubmit"
)

// Request is a staff claim for CredPoints awaiting or past advisor review.
// Revision starts at 1 and increases with every resubmission.
type Request struct {
	ID              string        `db:"id" json:"id"`
	StaffID         string        `db:"staff_id" json:"staff_id"`
	AdvisorID       string        `db:"advisor_id" json:"advisor_id"`
	ClassID         *string       `db:"class_id" json:"class_id"`
	WorkDescription string        `db:"work_description" json:"work_description"`
	RequestedPoints int           `db:"requested_points" json:"requested_points"`
	Status          RequestStatus `db:"status" json:"status"`
	ResponseMessage *string       `db:"response_message" json:"response_message"`
	ApprovedPoints  *int          `db:"approved_points" json:"approved_points"`
	Revision        int           `db:"revision" json:"revision"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
	RespondedAt     *time.Time    `db:"responded_at" json:"responded_at"`
}

// CheckConsistency verifies the nullable columns agree with the status.
func (r *Request) CheckConsistency() bool {
	if r == nil || !r.Status.Valid() || r.RequestedPoints <= 0 {
		return false
	}
	if (r.Status == RequestStatusApproved) != (r.ApprovedPoints != nil) {
		return false
	}
	if (r.Status == RequestStatusPending) != (r.RespondedAt == nil) {
		return false
	}
	return true
}

// RequestFilter constrains request listing queries. DateTo covers its whole calendar day.
type RequestFilter struct {
	StaffID   string
	AdvisorID string
	ClassID   string
	Status    []RequestStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
	Offset    int
}

// RequestStats aggregates a staff member's requests.
type RequestStats struct {
	StaffID         string `db:"staff_id" json:"staff_id"`
	Total           int    `db:"total" json:"total"`
	Pending         int    `db:"pending" json:"pending"`
	Approved        int    `db:"approved" json:"approved"`
	Rejected        int    `db:"rejected" json:"rejected"`
	Correction      int    `db:"correction" json:"correction"`
	RequestedPoints int    `db:"requested_points" json:"total_requested_points"`
	ApprovedPoints  int    `db:"approved_points" json:"total_approved_points"`
}

// TransitionEvent is published to observers after a status write commits.
// From is empty for a fresh submission.
type TransitionEvent struct {
	Event   RequestEvent
	From    RequestStatus
	To      RequestStatus
	Request Request
	At      time.Time
}
