package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/academiafit/academia-api/internal/models"
)

// DependentRepository handles persistence of dependent links.
type DependentRepository struct {
	db *sqlx.DB
}

// NewDependentRepository constructs the repository.
func NewDependentRepository(db *sqlx.DB) *DependentRepository {
	return &DependentRepository{db: db}
}

// ListByEnrollment returns the live dependents of an enrollment with their
// student names.
func (r *DependentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.DependentDetail, error) {
	const query = `SELECT d.id, d.enrollment_id, d.student_id, d.price, d.created_at,
        s.full_name AS student_name
        FROM enrollment_dependents d
        LEFT JOIN students s ON s.id = d.student_id
        WHERE d.enrollment_id = $1 ORDER BY d.created_at ASC`
	var dependents []models.DependentDetail
	if err := r.db.SelectContext(ctx, &dependents, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	return dependents, nil
}

// FindByID returns a dependent link by its ID.
func (r *DependentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentDependent, error) {
	const query = `SELECT id, enrollment_id, student_id, price, created_at FROM enrollment_dependents WHERE id = $1`
	var dependent models.EnrollmentDependent
	if err := r.db.GetContext(ctx, &dependent, query, id); err != nil {
		return nil, err
	}
	return &dependent, nil
}

// Create links a dependent student to an enrollment. The unique constraint
// on (enrollment_id, student_id) rejects double linkage.
func (r *DependentRepository) Create(ctx context.Context, dependent *models.EnrollmentDependent) error {
	if dependent.ID == "" {
		dependent.ID = uuid.NewString()
	}
	dependent.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO enrollment_dependents (id, enrollment_id, student_id, price, created_at)
        VALUES (:id, :enrollment_id, :student_id, :price, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dependent); err != nil {
		return fmt.Errorf("create dependent: %w", err)
	}
	return nil
}

// Delete removes a dependent link.
func (r *DependentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM enrollment_dependents WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete dependent: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation, letting services map it to a duplicate-dependent conflict.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
