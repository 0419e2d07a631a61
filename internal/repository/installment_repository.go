package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/academiafit/academia-api/internal/models"
)

// InstallmentRepository handles persistence of payment installments.
type InstallmentRepository struct {
	db *sqlx.DB
}

// NewInstallmentRepository constructs the repository.
func NewInstallmentRepository(db *sqlx.DB) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

const installmentColumns = `id, enrollment_id, number, total_installments, amount, due_date, status,
        paid_date, payment_method, notes, created_at, updated_at`

// CreateBatch inserts a full schedule in one transaction.
func (r *InstallmentRepository) CreateBatch(ctx context.Context, installments []models.PaymentInstallment) error {
	if len(installments) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create installments: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO payment_installments (` + "\n" + installmentColumns + `)
        VALUES (:id, :enrollment_id, :number, :total_installments, :amount, :due_date, :status,
        :paid_date, :payment_method, :notes, :created_at, :updated_at)`

	now := time.Now().UTC()
	for i := range installments {
		if installments[i].ID == "" {
			installments[i].ID = uuid.NewString()
		}
		if installments[i].Status == "" {
			installments[i].Status = models.InstallmentStatusPending
		}
		installments[i].CreatedAt = now
		installments[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, installments[i]); err != nil {
			return fmt.Errorf("create installment %d: %w", installments[i].Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create installments: %w", err)
	}
	return nil
}

// FindByID returns an installment by its ID.
func (r *InstallmentRepository) FindByID(ctx context.Context, id string) (*models.PaymentInstallment, error) {
	query := fmt.Sprintf("SELECT %s FROM payment_installments WHERE id = $1", installmentColumns)
	var installment models.PaymentInstallment
	if err := r.db.GetContext(ctx, &installment, query, id); err != nil {
		return nil, err
	}
	return &installment, nil
}

// ListByEnrollment returns an enrollment's installments in schedule order.
func (r *InstallmentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PaymentInstallment, error) {
	query := fmt.Sprintf("SELECT %s FROM payment_installments WHERE enrollment_id = $1 ORDER BY number ASC", installmentColumns)
	var installments []models.PaymentInstallment
	if err := r.db.SelectContext(ctx, &installments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	return installments, nil
}

// ExistsByEnrollment reports whether a schedule was already generated.
func (r *InstallmentRepository) ExistsByEnrollment(ctx context.Context, enrollmentID string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM payment_installments WHERE enrollment_id = $1", enrollmentID); err != nil {
		return false, fmt.Errorf("count installments: %w", err)
	}
	return count > 0, nil
}

// MarkPaid stamps an installment as PAID with the collection details.
func (r *InstallmentRepository) MarkPaid(ctx context.Context, id string, paidDate time.Time, method, notes string) error {
	const query = `UPDATE payment_installments SET status = $2, paid_date = $3, payment_method = $4,
        notes = $5, updated_at = $6 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		id, models.InstallmentStatusPaid, paidDate, method, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark installment paid: %w", err)
	}
	return nil
}

// CountOverdueByEnrollment returns how many OVERDUE installments remain.
func (r *InstallmentRepository) CountOverdueByEnrollment(ctx context.Context, enrollmentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM payment_installments WHERE enrollment_id = $1 AND status = $2",
		enrollmentID, models.InstallmentStatusOverdue); err != nil {
		return 0, fmt.Errorf("count overdue installments: %w", err)
	}
	return count, nil
}

// FlagOverdueBefore flips PENDING installments past their due date to
// OVERDUE and returns the distinct enrollments affected. Idempotent:
// already-overdue rows do not match.
func (r *InstallmentRepository) FlagOverdueBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryxContext(ctx,
		`UPDATE payment_installments SET status = $1, updated_at = $2
         WHERE status = $3 AND due_date < $4 RETURNING enrollment_id`,
		models.InstallmentStatusOverdue, time.Now().UTC(), models.InstallmentStatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("flag overdue installments: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var enrollmentIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan enrollment id: %w", err)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		enrollmentIDs = append(enrollmentIDs, id)
	}
	return enrollmentIDs, nil
}
