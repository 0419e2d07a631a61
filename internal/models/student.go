package models

import "time"

// StudentStatus represents the lifecycle of a student record.
type StudentStatus string

// Possible student statuses. DELETED is a soft-delete tombstone; the row is
// never physically removed.
const (
	StudentStatusActive   StudentStatus = "ACTIVE"
	StudentStatusInactive StudentStatus = "INACTIVE"
	StudentStatusDeleted  StudentStatus = "DELETED"
)

// Student represents a gym member, titular or dependent.
type Student struct {
	ID               string        `db:"id" json:"id"`
	FullName         string        `db:"full_name" json:"full_name"`
	Email            string        `db:"email" json:"email"`
	Phone            string        `db:"phone" json:"phone"`
	BirthDate        *time.Time    `db:"birth_date" json:"birth_date,omitempty"`
	Address          string        `db:"address" json:"address"`
	EmergencyContact string        `db:"emergency_contact" json:"emergency_contact"`
	MedicalNotes     string        `db:"medical_notes" json:"medical_notes"`
	Status           StudentStatus `db:"status" json:"status"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Status    StudentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail contains student information with current enrollment context.
type StudentDetail struct {
	Student
	CurrentEnrollmentID *string    `db:"current_enrollment_id" json:"current_enrollment_id,omitempty"`
	CurrentPlanName     *string    `db:"current_plan_name" json:"current_plan_name,omitempty"`
	CurrentEndDate      *time.Time `db:"current_end_date" json:"current_end_date,omitempty"`
}
