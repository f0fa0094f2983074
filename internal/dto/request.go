package dto

import "time"

// SubmitRequest is the staff payload for claiming CredPoints. AdvisorID is optional and, when present,
// must match the advisor resolved from the staff member's active class.
type SubmitRequest struct {
	AdvisorID       string  `json:"advisor_id"`
	ClassID         *string `json:"class_id"`
	WorkDescription string  `json:"work_description" validate:"notblank,max=4000"`
	RequestedPoints int     `json:"requested_points" validate:"gt=0"`
}

// ApproveRequest carries the advisor decision; ApprovedPoints may differ from the requested amount.
type ApproveRequest struct {
	ApprovedPoints int     `json:"approved_points" validate:"gt=0"`
	Message        *string `json:"message" validate:"omitempty,max=2000"`
}

// RejectRequest carries an optional rejection reason.
type RejectRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=2000"`
}

// CorrectionRequest asks the staff member to revise the request.
type CorrectionRequest struct {
	Note string `json:"note" validate:"notblank,max=2000"`
}

// ResubmitRequest replaces the description and points of a request under correction.
type ResubmitRequest struct {
	WorkDescription string `json:"work_description" validate:"notblank,max=4000"`
	RequestedPoints int    `json:"requested_points" validate:"gt=0"`
}

// RequestQuery mirrors the supported listing filters.
type RequestQuery struct {
	StaffID   string
	AdvisorID string
	ClassID   string
	Status    []string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// StatsQuery scopes staff statistics to an optional date window.
type StatsQuery struct {
	StaffID  string
	DateFrom *time.Time
	DateTo   *time.Time
}

// RepairReport summarises a repair sweep.
type RepairReport struct {
	Scanned  int      `json:"scanned"`
	Repaired int      `json:"repaired"`
	Failed   []string `json:"failed,omitempty"`
}
