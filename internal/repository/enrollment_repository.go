package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/academiafit/academia-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments, their archival
// history and the multi-table cascades the lifecycle rules require. Every
// cascade runs inside a single transaction.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, plan_id, plan_name, plan_price, start_date, end_date, status,
        is_custom_plan, custom_duration, is_family_plan, is_installment_plan,
        total_installments, payment_day, installment_amount, created_at, updated_at`

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_date":   "e.start_date",
		"end_date":     "e.end_date",
		"student_name": "s.full_name",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "start_date"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.%s, s.full_name AS student_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		prefixColumns(enrollmentColumns, "e."), base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with the student's name attached.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT e.%s, s.full_name AS student_name
        FROM enrollments e LEFT JOIN students s ON s.id = e.student_id
        WHERE e.id = $1`, prefixColumns(enrollmentColumns, "e."))
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindActiveByStudent returns the student's active enrollment, or
// sql.ErrNoRows when there is none.
func (r *EnrollmentRepository) FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE student_id = $1 AND status = $2", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindLatestRetiredByStudent returns the most recent non-active enrollment,
// used to offer previously attached dependents during reactivation.
func (r *EnrollmentRepository) FindLatestRetiredByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE student_id = $1 AND status <> $2
        ORDER BY end_date DESC LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create inserts a new enrollment, its dependents, and flips the student to
// ACTIVE. When previous is non-nil the old active enrollment is archived to
// history and deleted first (supersede). The whole cascade is one
// transaction, so the one-active-per-student invariant cannot be observed
// half-applied.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment, dependents []models.EnrollmentDependent, previous *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create enrollment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if previous != nil {
		if err := insertHistoryTx(ctx, tx, previous, models.ArchiveReasonSuperseded); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM enrollments WHERE id = $1", previous.ID); err != nil {
			return fmt.Errorf("delete superseded enrollment: %w", err)
		}
	}

	const insert = `INSERT INTO enrollments (` + "\n" + enrollmentColumns + `)
        VALUES (:id, :student_id, :plan_id, :plan_name, :plan_price, :start_date, :end_date, :status,
        :is_custom_plan, :custom_duration, :is_family_plan, :is_installment_plan,
        :total_installments, :payment_day, :installment_amount, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}

	for i := range dependents {
		dependents[i].EnrollmentID = enrollment.ID
		if err := insertDependentTx(ctx, tx, &dependents[i]); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE students SET status = $2, updated_at = $3 WHERE id = $1",
		enrollment.StudentID, models.StudentStatusActive, now); err != nil {
		return fmt.Errorf("activate student: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create enrollment: %w", err)
	}
	return nil
}

// Renew archives the previous values to history and updates the same row in
// place with the new plan snapshot and dates, flipping the student back to
// ACTIVE. Renewal keeps the enrollment id; only creation/reactivation mints
// a new one.
func (r *EnrollmentRepository) Renew(ctx context.Context, previous *models.Enrollment, updated *models.Enrollment) error {
	now := time.Now().UTC()
	updated.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin renew enrollment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertHistoryTx(ctx, tx, previous, models.ArchiveReasonRenewed); err != nil {
		return err
	}

	const update = `UPDATE enrollments SET plan_id = :plan_id, plan_name = :plan_name, plan_price = :plan_price,
        start_date = :start_date, end_date = :end_date, status = :status,
        is_custom_plan = :is_custom_plan, custom_duration = :custom_duration,
        is_installment_plan = :is_installment_plan, total_installments = :total_installments,
        payment_day = :payment_day, installment_amount = :installment_amount,
        updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, update, updated); err != nil {
		return fmt.Errorf("renew enrollment: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE students SET status = $2, updated_at = $3 WHERE id = $1",
		updated.StudentID, models.StudentStatusActive, now); err != nil {
		return fmt.Errorf("activate student: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit renew enrollment: %w", err)
	}
	return nil
}

// UpdateStatusCascade flips an enrollment's status together with its
// student's in one transaction.
func (r *EnrollmentRepository) UpdateStatusCascade(ctx context.Context, id string, status models.EnrollmentStatus, studentID string, studentStatus models.StudentStatus) error {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status cascade: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1",
		id, status, now); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE students SET status = $2, updated_at = $3 WHERE id = $1",
		studentID, studentStatus, now); err != nil {
		return fmt.Errorf("cascade student status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status cascade: %w", err)
	}
	return nil
}

// ArchiveAndDelete copies the enrollment to history and removes the row.
func (r *EnrollmentRepository) ArchiveAndDelete(ctx context.Context, enrollment *models.Enrollment, reason models.ArchiveReason) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive enrollment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertHistoryTx(ctx, tx, enrollment, reason); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM enrollments WHERE id = $1", enrollment.ID); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive enrollment: %w", err)
	}
	return nil
}

// ListHistoryByStudent returns the archived enrollments of a student, newest first.
func (r *EnrollmentRepository) ListHistoryByStudent(ctx context.Context, studentID string) ([]models.EnrollmentHistory, error) {
	const query = `SELECT id, enrollment_id, student_id, plan_id, plan_name, plan_price,
        start_date, end_date, status, is_custom_plan, reason, archived_at
        FROM enrollment_history WHERE student_id = $1 ORDER BY archived_at DESC`
	var history []models.EnrollmentHistory
	if err := r.db.SelectContext(ctx, &history, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollment history: %w", err)
	}
	return history, nil
}

// ExpireActiveBefore flips ACTIVE enrollments whose end date passed the
// cutoff to EXPIRED. Idempotent: already-expired rows do not match.
func (r *EnrollmentRepository) ExpireActiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `UPDATE enrollments SET status = $1, updated_at = $2 WHERE status = $3 AND end_date < $4`
	res, err := r.db.ExecContext(ctx, query,
		models.EnrollmentStatusExpired, time.Now().UTC(), models.EnrollmentStatusActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire enrollments: %w", err)
	}
	return res.RowsAffected()
}

// InactivateExpiredBefore moves EXPIRED enrollments past the grace cutoff to
// INACTIVE and cascades the same status to their students, in one
// transaction. Idempotent by construction.
func (r *EnrollmentRepository) InactivateExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin inactivate sweep: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryxContext(ctx,
		`UPDATE enrollments SET status = $1, updated_at = $2
         WHERE status = $3 AND end_date < $4 RETURNING student_id`,
		models.EnrollmentStatusInactive, now, models.EnrollmentStatusExpired, cutoff)
	if err != nil {
		return 0, fmt.Errorf("inactivate expired enrollments: %w", err)
	}
	var studentIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan student id: %w", err)
		}
		studentIDs = append(studentIDs, id)
	}
	rows.Close()

	if len(studentIDs) > 0 {
		query, args := inClause(
			"UPDATE students SET status = $1, updated_at = $2 WHERE id IN (%s)",
			[]interface{}{models.StudentStatusInactive, now}, studentIDs)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("cascade student inactivation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit inactivate sweep: %w", err)
	}
	return int64(len(studentIDs)), nil
}

// SuspendWithStudents sets the given enrollments and their students to
// INACTIVE. Used by the overdue-installment cascade; re-running on already
// suspended rows is a no-op.
func (r *EnrollmentRepository) SuspendWithStudents(ctx context.Context, enrollmentIDs []string) (int64, error) {
	if len(enrollmentIDs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin suspension cascade: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query, args := inClause(
		"UPDATE enrollments SET status = $1, updated_at = $2 WHERE id IN (%s) AND status <> $1",
		[]interface{}{models.EnrollmentStatusInactive, now}, enrollmentIDs)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("suspend enrollments: %w", err)
	}
	affected, _ := res.RowsAffected()

	query, args = inClause(
		`UPDATE students SET status = $1, updated_at = $2
         WHERE id IN (SELECT student_id FROM enrollments WHERE id IN (%s))`,
		[]interface{}{models.StudentStatusInactive, now}, enrollmentIDs)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("suspend students: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit suspension cascade: %w", err)
	}
	return affected, nil
}

// ReactivateWithStudent flips a suspended enrollment and its student back to
// ACTIVE in one transaction. Only INACTIVE enrollments match, so paying off
// an expired membership does not resurrect it.
func (r *EnrollmentRepository) ReactivateWithStudent(ctx context.Context, id, studentID string) error {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reactivation cascade: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"UPDATE enrollments SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4",
		models.EnrollmentStatusActive, now, id, models.EnrollmentStatusInactive); err != nil {
		return fmt.Errorf("reactivate enrollment: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE students SET status = $1, updated_at = $2 WHERE id = $3",
		models.StudentStatusActive, now, studentID); err != nil {
		return fmt.Errorf("reactivate student: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reactivation cascade: %w", err)
	}
	return nil
}

// UpdateInstallmentTerms stamps the installment plan fields after a schedule
// is generated for an existing enrollment.
func (r *EnrollmentRepository) UpdateInstallmentTerms(ctx context.Context, id string, total int, paymentDay *int, amount float64) error {
	const query = `UPDATE enrollments SET is_installment_plan = TRUE, total_installments = $2,
        payment_day = $3, installment_amount = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, total, paymentDay, amount, time.Now().UTC()); err != nil {
		return fmt.Errorf("update installment terms: %w", err)
	}
	return nil
}

func insertHistoryTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment, reason models.ArchiveReason) error {
	history := models.EnrollmentHistory{
		ID:           uuid.NewString(),
		EnrollmentID: enrollment.ID,
		StudentID:    enrollment.StudentID,
		PlanID:       enrollment.PlanID,
		PlanName:     enrollment.PlanName,
		PlanPrice:    enrollment.PlanPrice,
		StartDate:    enrollment.StartDate,
		EndDate:      enrollment.EndDate,
		Status:       enrollment.Status,
		IsCustomPlan: enrollment.IsCustomPlan,
		Reason:       reason,
		ArchivedAt:   time.Now().UTC(),
	}
	const query = `INSERT INTO enrollment_history (id, enrollment_id, student_id, plan_id, plan_name, plan_price,
        start_date, end_date, status, is_custom_plan, reason, archived_at)
        VALUES (:id, :enrollment_id, :student_id, :plan_id, :plan_name, :plan_price,
        :start_date, :end_date, :status, :is_custom_plan, :reason, :archived_at)`
	if _, err := tx.NamedExecContext(ctx, query, history); err != nil {
		return fmt.Errorf("archive enrollment: %w", err)
	}
	return nil
}

func insertDependentTx(ctx context.Context, tx *sqlx.Tx, dependent *models.EnrollmentDependent) error {
	if dependent.ID == "" {
		dependent.ID = uuid.NewString()
	}
	if dependent.CreatedAt.IsZero() {
		dependent.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_dependents (id, enrollment_id, student_id, price, created_at)
        VALUES (:id, :enrollment_id, :student_id, :price, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, dependent); err != nil {
		return fmt.Errorf("create dependent: %w", err)
	}
	return nil
}

// inClause expands ids into positional placeholders appended after the fixed
// arguments, substituting them into the %s of the query template.
func inClause(template string, fixed []interface{}, ids []string) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := append([]interface{}{}, fixed...)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, id)
	}
	return fmt.Sprintf(template, strings.Join(placeholders, ",")), args
}

func prefixColumns(columns, prefix string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = prefix + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
