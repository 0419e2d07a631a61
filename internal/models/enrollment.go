package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. None is terminal: INACTIVE can return to
// ACTIVE through reactivation, which creates a new enrollment row.
const (
	EnrollmentStatusActive   EnrollmentStatus = "ACTIVE"
	EnrollmentStatusExpired  EnrollmentStatus = "EXPIRED"
	EnrollmentStatusInactive EnrollmentStatus = "INACTIVE"
)

// Enrollment binds a student to a plan for a date range. Plan name and price
// are snapshotted so later catalog edits never change what was sold.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	PlanID    *string          `db:"plan_id" json:"plan_id,omitempty"`
	PlanName  string           `db:"plan_name" json:"plan_name"`
	PlanPrice float64          `db:"plan_price" json:"plan_price"`
	StartDate time.Time        `db:"start_date" json:"start_date"`
	EndDate   time.Time        `db:"end_date" json:"end_date"`
	Status    EnrollmentStatus `db:"status" json:"status"`

	IsCustomPlan      bool     `db:"is_custom_plan" json:"is_custom_plan"`
	CustomDuration    *string  `db:"custom_duration" json:"custom_duration,omitempty"`
	IsFamilyPlan      bool     `db:"is_family_plan" json:"is_family_plan"`
	IsInstallmentPlan bool     `db:"is_installment_plan" json:"is_installment_plan"`
	TotalInstallments *int     `db:"total_installments" json:"total_installments,omitempty"`
	PaymentDay        *int     `db:"payment_day" json:"payment_day,omitempty"`
	InstallmentAmount *float64 `db:"installment_amount" json:"installment_amount,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EnrollmentDependent links a dependent student to a titular's enrollment at
// an individually set price.
type EnrollmentDependent struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Price        float64   `db:"price" json:"price"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DependentDetail enriches a dependent link with the student's name.
type DependentDetail struct {
	EnrollmentDependent
	StudentName string `db:"student_name" json:"student_name"`
}

// EnrollmentDetail enriches an enrollment with student context, the live
// dependent list and the computed total price (titular + dependents), which
// is the authoritative amount for display and billing.
type EnrollmentDetail struct {
	Enrollment
	StudentName string            `db:"student_name" json:"student_name"`
	Dependents  []DependentDetail `db:"-" json:"dependents,omitempty"`
	TotalPrice  float64           `db:"-" json:"total_price"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
