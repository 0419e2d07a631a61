package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academiafit/academia-api/internal/models"
	appErrors "github.com/academiafit/academia-api/pkg/errors"
)

type mockInstallmentRepo struct {
	byID         map[string]*models.PaymentInstallment
	byEnrollment map[string][]models.PaymentInstallment
	exists       bool
	overdueCount int
	batches      [][]models.PaymentInstallment
	markPaidFn   func(ctx context.Context, id string, paidDate time.Time, method, notes string) error
	paid         []string
}

func (m *mockInstallmentRepo) CreateBatch(ctx context.Context, installments []models.PaymentInstallment) error {
	m.batches = append(m.batches, installments)
	return nil
}

func (m *mockInstallmentRepo) FindByID(ctx context.Context, id string) (*models.PaymentInstallment, error) {
	if installment, ok := m.byID[id]; ok {
		return installment, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockInstallmentRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PaymentInstallment, error) {
	return m.byEnrollment[enrollmentID], nil
}

func (m *mockInstallmentRepo) ExistsByEnrollment(ctx context.Context, enrollmentID string) (bool, error) {
	return m.exists, nil
}

func (m *mockInstallmentRepo) MarkPaid(ctx context.Context, id string, paidDate time.Time, method, notes string) error {
	if m.markPaidFn != nil {
		return m.markPaidFn(ctx, id, paidDate, method, notes)
	}
	m.paid = append(m.paid, id)
	return nil
}

func (m *mockInstallmentRepo) CountOverdueByEnrollment(ctx context.Context, enrollmentID string) (int, error) {
	return m.overdueCount, nil
}

type mockInstallmentEnrollments struct {
	enrollment    *models.Enrollment
	reactivated   []string
	reactivateErr error
	stampedTotal  int
}

func (m *mockInstallmentEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.enrollment == nil {
		return nil, sql.ErrNoRows
	}
	return m.enrollment, nil
}

func (m *mockInstallmentEnrollments) ReactivateWithStudent(ctx context.Context, id, studentID string) error {
	if m.reactivateErr != nil {
		return m.reactivateErr
	}
	m.reactivated = append(m.reactivated, id)
	return nil
}

func (m *mockInstallmentEnrollments) UpdateInstallmentTerms(ctx context.Context, id string, total int, paymentDay *int, amount float64) error {
	m.stampedTotal = total
	return nil
}

type fakeDetailLoader struct {
	detail *models.EnrollmentDetail
}

func (f *fakeDetailLoader) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if f.detail == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return f.detail, nil
}

func newTestInstallmentService(repo *mockInstallmentRepo, enrollments *mockInstallmentEnrollments, details *fakeDetailLoader) *InstallmentService {
	svc := NewInstallmentService(repo, enrollments, details, nil, nil, time.UTC)
	svc.now = fixedNow
	return svc
}

func TestInstallmentServiceGenerateSplitsComputedTotal(t *testing.T) {
	repo := &mockInstallmentRepo{}
	enrollments := &mockInstallmentEnrollments{enrollment: &models.Enrollment{
		ID:        "enr-1",
		StudentID: "stu-1",
		StartDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}}
	details := &fakeDetailLoader{detail: &models.EnrollmentDetail{
		Enrollment: models.Enrollment{ID: "enr-1", PlanPrice: 100},
		TotalPrice: 180,
	}}
	svc := newTestInstallmentService(repo, enrollments, details)

	installments, err := svc.Generate(context.Background(), "enr-1", InstallmentTerms{Total: 2})
	require.NoError(t, err)
	require.Len(t, installments, 2)
	assert.Equal(t, 90.0, installments[0].Amount)
	assert.Equal(t, 90.0, installments[1].Amount)
	assert.Equal(t, 2, enrollments.stampedTotal)
	require.Len(t, repo.batches, 1)
}

func TestInstallmentServiceGenerateRejectsExistingSchedule(t *testing.T) {
	repo := &mockInstallmentRepo{exists: true}
	enrollments := &mockInstallmentEnrollments{enrollment: &models.Enrollment{ID: "enr-1"}}
	svc := newTestInstallmentService(repo, enrollments, &fakeDetailLoader{})

	_, err := svc.Generate(context.Background(), "enr-1", InstallmentTerms{Total: 2})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInstallmentServiceMarkPaidAlreadyPaidIsNoop(t *testing.T) {
	paid := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	repo := &mockInstallmentRepo{byID: map[string]*models.PaymentInstallment{
		"ins-1": {ID: "ins-1", EnrollmentID: "enr-1", Status: models.InstallmentStatusPaid, PaidDate: &paid},
	}}
	svc := newTestInstallmentService(repo, &mockInstallmentEnrollments{}, &fakeDetailLoader{})

	installment, err := svc.MarkPaid(context.Background(), "ins-1", MarkPaidRequest{PaymentMethod: "pix"})
	require.NoError(t, err)
	assert.Equal(t, models.InstallmentStatusPaid, installment.Status)
	assert.Empty(t, repo.paid)
}

func TestInstallmentServiceMarkPaidReactivatesSuspendedEnrollment(t *testing.T) {
	repo := &mockInstallmentRepo{
		byID: map[string]*models.PaymentInstallment{
			"ins-1": {ID: "ins-1", EnrollmentID: "enr-1", Status: models.InstallmentStatusOverdue},
		},
		overdueCount: 0,
	}
	enrollments := &mockInstallmentEnrollments{enrollment: &models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", Status: models.EnrollmentStatusInactive,
	}}
	svc := newTestInstallmentService(repo, enrollments, &fakeDetailLoader{})

	_, err := svc.MarkPaid(context.Background(), "ins-1", MarkPaidRequest{PaymentMethod: "pix"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ins-1"}, repo.paid)
	assert.Equal(t, []string{"enr-1"}, enrollments.reactivated)
}

func TestInstallmentServiceMarkPaidKeepsSuspensionWhileOverdueRemain(t *testing.T) {
	repo := &mockInstallmentRepo{
		byID: map[string]*models.PaymentInstallment{
			"ins-1": {ID: "ins-1", EnrollmentID: "enr-1", Status: models.InstallmentStatusOverdue},
		},
		overdueCount: 1,
	}
	enrollments := &mockInstallmentEnrollments{enrollment: &models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", Status: models.EnrollmentStatusInactive,
	}}
	svc := newTestInstallmentService(repo, enrollments, &fakeDetailLoader{})

	_, err := svc.MarkPaid(context.Background(), "ins-1", MarkPaidRequest{PaymentMethod: "pix"})
	require.NoError(t, err)
	assert.Empty(t, enrollments.reactivated)
}

func TestInstallmentServiceMarkPaidDoesNotResurrectExpired(t *testing.T) {
	repo := &mockInstallmentRepo{
		byID: map[string]*models.PaymentInstallment{
			"ins-1": {ID: "ins-1", EnrollmentID: "enr-1", Status: models.InstallmentStatusPending},
		},
	}
	enrollments := &mockInstallmentEnrollments{enrollment: &models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", Status: models.EnrollmentStatusExpired,
	}}
	svc := newTestInstallmentService(repo, enrollments, &fakeDetailLoader{})

	_, err := svc.MarkPaid(context.Background(), "ins-1", MarkPaidRequest{PaymentMethod: "cash"})
	require.NoError(t, err)
	assert.Empty(t, enrollments.reactivated)
}

func TestInstallmentServiceMarkPaidReactivationFailureIsCascadeIncomplete(t *testing.T) {
	repo := &mockInstallmentRepo{
		byID: map[string]*models.PaymentInstallment{
			"ins-1": {ID: "ins-1", EnrollmentID: "enr-1", Status: models.InstallmentStatusOverdue},
		},
	}
	enrollments := &mockInstallmentEnrollments{
		enrollment:    &models.Enrollment{ID: "enr-1", StudentID: "stu-1", Status: models.EnrollmentStatusInactive},
		reactivateErr: errors.New("db down"),
	}
	svc := newTestInstallmentService(repo, enrollments, &fakeDetailLoader{})

	_, err := svc.MarkPaid(context.Background(), "ins-1", MarkPaidRequest{PaymentMethod: "pix"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCascadeIncomplete.Code, appErrors.FromError(err).Code)
	// The payment itself went through.
	assert.Equal(t, []string{"ins-1"}, repo.paid)
}

func TestInstallmentServiceMarkPaidRequiresPaymentMethod(t *testing.T) {
	svc := newTestInstallmentService(&mockInstallmentRepo{}, &mockInstallmentEnrollments{}, &fakeDetailLoader{})

	_, err := svc.MarkPaid(context.Background(), "ins-1", MarkPaidRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
