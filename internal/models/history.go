package models

import "time"

// ArchiveReason explains why an enrollment row was retired to history.
type ArchiveReason string

// Possible archive reasons.
const (
	ArchiveReasonSuperseded  ArchiveReason = "SUPERSEDED"
	ArchiveReasonRenewed     ArchiveReason = "RENEWED"
	ArchiveReasonDeleted     ArchiveReason = "DELETED"
	ArchiveReasonDeactivated ArchiveReason = "DEACTIVATED"
)

// EnrollmentHistory is an append-only archival copy of a retired enrollment.
// Immutable once written.
type EnrollmentHistory struct {
	ID           string           `db:"id" json:"id"`
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	PlanID       *string          `db:"plan_id" json:"plan_id,omitempty"`
	PlanName     string           `db:"plan_name" json:"plan_name"`
	PlanPrice    float64          `db:"plan_price" json:"plan_price"`
	StartDate    time.Time        `db:"start_date" json:"start_date"`
	EndDate      time.Time        `db:"end_date" json:"end_date"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	IsCustomPlan bool             `db:"is_custom_plan" json:"is_custom_plan"`
	Reason       ArchiveReason    `db:"reason" json:"reason"`
	ArchivedAt   time.Time        `db:"archived_at" json:"archived_at"`
}
