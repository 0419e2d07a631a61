package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academiafit/academia-api/internal/models"
	appErrors "github.com/academiafit/academia-api/pkg/errors"
)

func newTestRenewalService(repo *mockEnrollmentRepo, students *mockStudentReader, plans *mockPlanReader, deps *mockDependentRepo, installments *mockInstallmentWriter) *RenewalService {
	enrollments := newTestEnrollmentService(repo, students, plans, deps, installments)
	svc := NewRenewalService(repo, enrollments, deps, installments, nil, nil, time.UTC)
	svc.now = fixedNow
	return svc
}

func TestRenewalServiceRenewAfterExpiryStartsToday(t *testing.T) {
	var renewed *models.Enrollment
	repo := &mockEnrollmentRepo{
		findByIDFn: func(ctx context.Context, id string) (*models.Enrollment, error) {
			return &models.Enrollment{
				ID:        id,
				StudentID: "stu-1",
				Status:    models.EnrollmentStatusExpired,
				EndDate:   time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC),
			}, nil
		},
		renewFn: func(ctx context.Context, prev, updated *models.Enrollment) error {
			renewed = updated
			return nil
		},
		findDetailByIDFn: func(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
			return &models.EnrollmentDetail{Enrollment: *renewed}, nil
		},
	}
	svc := newTestRenewalService(repo, activeStudents("stu-1"), monthlyPlans(), &mockDependentRepo{}, &mockInstallmentWriter{})

	_, err := svc.Renew(context.Background(), "enr-1", RenewEnrollmentRequest{PlanID: "plan-1"})
	require.NoError(t, err)

	// Ended Jan 1, renewed Jan 10: the new period starts today, not backdated.
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), renewed.StartDate)
	assert.Equal(t, models.EnrollmentStatusActive, renewed.Status)
	assert.Equal(t, "enr-1", renewed.ID)
}

func TestRenewalServiceRenewEarlyStartsAfterCurrentEnd(t *testing.T) {
	var renewed *models.Enrollment
	repo := &mockEnrollmentRepo{
		findByIDFn: func(ctx context.Context, id string) (*models.Enrollment, error) {
			return &models.Enrollment{
				ID:        id,
				StudentID: "stu-1",
				Status:    models.EnrollmentStatusActive,
				EndDate:   time.Date(2024, 1, 20, 23, 59, 59, 0, time.UTC),
			}, nil
		},
		renewFn: func(ctx context.Context, prev, updated *models.Enrollment) error {
			renewed = updated
			return nil
		},
		findDetailByIDFn: func(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
			return &models.EnrollmentDetail{Enrollment: *renewed}, nil
		},
	}
	svc := newTestRenewalService(repo, activeStudents("stu-1"), monthlyPlans(), &mockDependentRepo{}, &mockInstallmentWriter{})

	_, err := svc.Renew(context.Background(), "enr-1", RenewEnrollmentRequest{PlanID: "plan-1"})
	require.NoError(t, err)

	// Renewing early keeps the remaining days: the new period starts Jan 21.
	assert.Equal(t, time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC), renewed.StartDate)
}

func TestRenewalServiceRenewRejectsInactiveEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{
		findByIDFn: func(ctx context.Context, id string) (*models.Enrollment, error) {
			return &models.Enrollment{ID: id, StudentID: "stu-1", Status: models.EnrollmentStatusInactive}, nil
		},
	}
	svc := newTestRenewalService(repo, activeStudents("stu-1"), monthlyPlans(), &mockDependentRepo{}, &mockInstallmentWriter{})

	_, err := svc.Renew(context.Background(), "enr-1", RenewEnrollmentRequest{PlanID: "plan-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestRenewalServiceRenewWithCustomPlan(t *testing.T) {
	var renewed *models.Enrollment
	repo := &mockEnrollmentRepo{
		findByIDFn: func(ctx context.Context, id string) (*models.Enrollment, error) {
			return &models.Enrollment{
				ID:        id,
				StudentID: "stu-1",
				Status:    models.EnrollmentStatusExpired,
				EndDate:   time.Date(2024, 1, 5, 23, 59, 59, 0, time.UTC),
			}, nil
		},
		renewFn: func(ctx context.Context, prev, updated *models.Enrollment) error {
			renewed = updated
			return nil
		},
		findDetailByIDFn: func(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
			return &models.EnrollmentDetail{Enrollment: *renewed}, nil
		},
	}
	svc := newTestRenewalService(repo, activeStudents("stu-1"), &mockPlanReader{}, &mockDependentRepo{}, &mockInstallmentWriter{})

	_, err := svc.Renew(context.Background(), "enr-1", RenewEnrollmentRequest{
		CustomPlan: &CustomPlanInput{Name: "Negociado", Duration: "year", TitularPrice: 900},
	})
	require.NoError(t, err)
	assert.True(t, renewed.IsCustomPlan)
	assert.Equal(t, 900.0, renewed.PlanPrice)
	assert.Nil(t, renewed.PlanID)
}

func TestRenewalServiceReactivateRejectsActiveEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{
		findActiveByStudentFn: func(ctx context.Context, studentID string) (*models.Enrollment, error) {
			return &models.Enrollment{ID: "enr-1", StudentID: studentID, Status: models.EnrollmentStatusActive}, nil
		},
	}
	svc := newTestRenewalService(repo, activeStudents("stu-1"), monthlyPlans(), &mockDependentRepo{}, &mockInstallmentWriter{})

	_, err := svc.Reactivate(context.Background(), "stu-1", ReactivateEnrollmentRequest{PlanID: "plan-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestRenewalServiceReactivateCreatesNewEnrollmentAndArchivesRetired(t *testing.T) {
	var created *models.Enrollment
	var archived *models.Enrollment
	retired := &models.Enrollment{ID: "enr-old", StudentID: "stu-1", Status: models.EnrollmentStatusInactive}
	repo := &mockEnrollmentRepo{
		findLatestRetiredFn: func(ctx context.Context, studentID string) (*models.Enrollment, error) {
			return retired, nil
		},
		createFn: func(ctx context.Context, e *models.Enrollment, deps []models.EnrollmentDependent, prev *models.Enrollment) error {
			e.ID = "enr-new"
			created = e
			return nil
		},
		archiveAndDeleteFn: func(ctx context.Context, e *models.Enrollment, reason models.ArchiveReason) error {
			archived = e
			return nil
		},
		findDetailByIDFn: func(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
			return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: id, PlanPrice: 100}}, nil
		},
	}
	svc := newTestRenewalService(repo, activeStudents("stu-1", "stu-2"), monthlyPlans(), &mockDependentRepo{}, &mockInstallmentWriter{})

	detail, err := svc.Reactivate(context.Background(), "stu-1", ReactivateEnrollmentRequest{
		PlanID:     "plan-1",
		Dependents: []DependentInput{{StudentID: "stu-2", Price: 40}},
	})
	require.NoError(t, err)

	assert.Equal(t, "enr-new", detail.ID)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), created.StartDate)
	require.NotNil(t, archived)
	assert.Equal(t, "enr-old", archived.ID)
}

func TestRenewalServicePreviousDependents(t *testing.T) {
	repo := &mockEnrollmentRepo{
		findLatestRetiredFn: func(ctx context.Context, studentID string) (*models.Enrollment, error) {
			return &models.Enrollment{ID: "enr-old", StudentID: studentID, Status: models.EnrollmentStatusInactive}, nil
		},
	}
	deps := &mockDependentRepo{byEnrollment: map[string][]models.DependentDetail{
		"enr-old": {{EnrollmentDependent: models.EnrollmentDependent{ID: "dep-1", StudentID: "stu-2", Price: 40}, StudentName: "Dep"}},
	}}
	svc := newTestRenewalService(repo, activeStudents("stu-1"), monthlyPlans(), deps, &mockInstallmentWriter{})

	dependents, err := svc.PreviousDependents(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, dependents, 1)
	assert.Equal(t, "stu-2", dependents[0].StudentID)
}

func TestRenewalServicePreviousDependentsEmptyWithoutRetired(t *testing.T) {
	svc := newTestRenewalService(&mockEnrollmentRepo{}, activeStudents("stu-1"), monthlyPlans(), &mockDependentRepo{}, &mockInstallmentWriter{})

	dependents, err := svc.PreviousDependents(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Empty(t, dependents)
}
