package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academiafit/academia-api/internal/models"
)

func TestInstallmentRepositoryCreateBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	due := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	installments := []models.PaymentInstallment{
		{EnrollmentID: "enr-1", Number: 1, TotalInstallments: 2, Amount: 150, DueDate: due},
		{EnrollmentID: "enr-1", Number: 2, TotalInstallments: 2, Amount: 150, DueDate: due.AddDate(0, 1, 0)},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO payment_installments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO payment_installments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateBatch(context.Background(), installments))
	assert.NotEmpty(t, installments[0].ID)
	assert.Equal(t, models.InstallmentStatusPending, installments[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallmentRepositoryMarkPaid(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	paid := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE payment_installments SET status = \$2, paid_date = \$3, payment_method = \$4`).
		WithArgs("ins-1", models.InstallmentStatusPaid, paid, "pix", "caught up", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkPaid(context.Background(), "ins-1", paid, "pix", "caught up"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallmentRepositoryCountOverdueByEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payment_installments WHERE enrollment_id = \$1 AND status = \$2`).
		WithArgs("enr-1", models.InstallmentStatusOverdue).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountOverdueByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallmentRepositoryFlagOverdueBeforeDeduplicates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	cutoff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`UPDATE payment_installments SET status = \$1, updated_at = \$2\s+WHERE status = \$3 AND due_date < \$4 RETURNING enrollment_id`).
		WithArgs(models.InstallmentStatusOverdue, sqlmock.AnyArg(), models.InstallmentStatusPending, cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"enrollment_id"}).
			AddRow("enr-1").AddRow("enr-2").AddRow("enr-1"))

	ids, err := repo.FlagOverdueBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"enr-1", "enr-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInstallmentRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInstallmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "enrollment_id", "number", "total_installments", "amount", "due_date", "status",
		"paid_date", "payment_method", "notes", "created_at", "updated_at",
	}).
		AddRow("ins-1", "enr-1", 1, 2, 150.0, now, models.InstallmentStatusPaid, now, "pix", "", now, now).
		AddRow("ins-2", "enr-1", 2, 2, 150.0, now.AddDate(0, 1, 0), models.InstallmentStatusPending, nil, "", "", now, now)
	mock.ExpectQuery(`SELECT .+ FROM payment_installments WHERE enrollment_id = \$1 ORDER BY number ASC`).
		WithArgs("enr-1").
		WillReturnRows(rows)

	installments, err := repo.ListByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, installments, 2)
	assert.Equal(t, 1, installments[0].Number)
	require.NoError(t, mock.ExpectationsWereMet())
}
