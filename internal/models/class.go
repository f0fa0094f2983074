package models

// AdvisorAssignment is the resolved advisor for a staff member's active class.
type AdvisorAssignment struct {
	ClassID   string `db:"class_id" json:"class_id"`
	AdvisorID string `db:"advisor_id" json:"advisor_id"`
}
