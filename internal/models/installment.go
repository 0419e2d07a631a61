package models

import "time"

// InstallmentStatus represents the payment state of one tranche.
type InstallmentStatus string

// Possible installment statuses.
const (
	InstallmentStatusPending InstallmentStatus = "PENDING"
	InstallmentStatusPaid    InstallmentStatus = "PAID"
	InstallmentStatusOverdue InstallmentStatus = "OVERDUE"
)

// PaymentInstallment is one scheduled payment tranche of an enrollment.
// Rows are never physically deleted in the normal flow.
type PaymentInstallment struct {
	ID                string            `db:"id" json:"id"`
	EnrollmentID      string            `db:"enrollment_id" json:"enrollment_id"`
	Number            int               `db:"number" json:"number"`
	TotalInstallments int               `db:"total_installments" json:"total_installments"`
	Amount            float64           `db:"amount" json:"amount"`
	DueDate           time.Time         `db:"due_date" json:"due_date"`
	Status            InstallmentStatus `db:"status" json:"status"`
	PaidDate          *time.Time        `db:"paid_date" json:"paid_date,omitempty"`
	PaymentMethod     string            `db:"payment_method" json:"payment_method"`
	Notes             string            `db:"notes" json:"notes"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}
