package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/academiafit/academia-api/internal/billing"
	"github.com/academiafit/academia-api/internal/models"
	appErrors "github.com/academiafit/academia-api/pkg/errors"
)

type renewalRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
	FindLatestRetiredByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
	Renew(ctx context.Context, previous *models.Enrollment, updated *models.Enrollment) error
	Create(ctx context.Context, enrollment *models.Enrollment, dependents []models.EnrollmentDependent, previous *models.Enrollment) error
}

type enrollmentDetailLoader interface {
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

// RenewEnrollmentRequest renews an enrollment in place, optionally on a
// different catalog or custom plan.
type RenewEnrollmentRequest struct {
	PlanID       string            `json:"plan_id"`
	CustomPlan   *CustomPlanInput  `json:"custom_plan"`
	Installments *InstallmentTerms `json:"installments"`
}

// ReactivateEnrollmentRequest brings a deactivated student back with a brand
// new enrollment. Dependents must be re-selected explicitly; nothing carries
// over implicitly from the retired enrollment.
type ReactivateEnrollmentRequest struct {
	PlanID       string            `json:"plan_id"`
	CustomPlan   *CustomPlanInput  `json:"custom_plan"`
	Installments *InstallmentTerms `json:"installments"`
	Dependents   []DependentInput  `json:"dependents" validate:"dive"`
}

// RenewalService handles the two paths back to an active membership: in-place
// renewal of an ACTIVE or EXPIRED enrollment, and reactivation of a student
// whose enrollment went INACTIVE, which mints a new enrollment row.
type RenewalService struct {
	repo         renewalRepository
	enrollments  *EnrollmentService
	details      enrollmentDetailLoader
	dependents   dependentRepository
	installments installmentWriter
	validator    *validator.Validate
	logger       *zap.Logger
	loc          *time.Location
	now          func() time.Time
}

// NewRenewalService constructs RenewalService. The enrollment service is
// reused for plan resolution, dependent validation and detail loading.
func NewRenewalService(repo renewalRepository, enrollments *EnrollmentService, dependents dependentRepository, installments installmentWriter, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *RenewalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RenewalService{
		repo:         repo,
		enrollments:  enrollments,
		details:      enrollments,
		dependents:   dependents,
		installments: installments,
		validator:    validate,
		logger:       logger,
		loc:          loc,
		now:          time.Now,
	}
}

// Renew extends an enrollment in place. The previous terms are archived to
// history and the same row gets the new plan snapshot. The new period starts
// at the later of today and the day after the current end date, so renewing
// early does not shorten the remaining time and renewing late does not
// backdate the new period.
func (s *RenewalService) Renew(ctx context.Context, enrollmentID string, req RenewEnrollmentRequest) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusInactive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "inactive enrollments are reactivated, not renewed")
	}

	terms, err := s.enrollments.resolvePlanTerms(ctx, req.PlanID, req.CustomPlan)
	if err != nil {
		return nil, err
	}

	anchor := s.renewalAnchor(enrollment.EndDate)
	period := billing.NewPeriod(terms.category, anchor, s.loc)

	previous := *enrollment
	updated := *enrollment
	updated.PlanID = terms.planID
	updated.PlanName = terms.name
	updated.PlanPrice = terms.titularPrice
	updated.StartDate = period.StartDate
	updated.EndDate = period.EndDate
	updated.Status = models.EnrollmentStatusActive
	updated.IsCustomPlan = terms.isCustom
	updated.CustomDuration = terms.customDuration
	updated.IsInstallmentPlan = false
	updated.TotalInstallments = nil
	updated.PaymentDay = nil
	updated.InstallmentAmount = nil

	tranches, err := s.applyInstallmentTerms(&updated, req.Installments, period.StartDate)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Renew(ctx, &previous, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to renew enrollment")
	}

	if len(tranches) > 0 {
		if err := s.installments.CreateBatch(ctx, tranchesToInstallments(updated.ID, req.Installments.Total, tranches)); err != nil {
			s.logger.Warn("enrollment renewed but installment generation failed",
				zap.String("enrollment_id", updated.ID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrCascadeIncomplete.Code, appErrors.ErrCascadeIncomplete.Status,
				"enrollment renewed but installments could not be generated; retry installment generation")
		}
	}

	return s.details.Get(ctx, updated.ID)
}

// Reactivate creates a brand new enrollment for a student whose membership
// went INACTIVE. The period always starts today; the retired enrollment, when
// one still exists, is archived and removed in the same transaction.
func (s *RenewalService) Reactivate(ctx context.Context, studentID string, req ReactivateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reactivation payload")
	}

	if _, err := s.repo.FindActiveByStudent(ctx, studentID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student already has an active enrollment")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active enrollment")
	}

	detail, err := s.enrollments.Create(ctx, CreateEnrollmentRequest{
		StudentID:    studentID,
		PlanID:       req.PlanID,
		CustomPlan:   req.CustomPlan,
		Installments: req.Installments,
		Dependents:   req.Dependents,
	})
	if err != nil {
		return nil, err
	}

	if retired, err := s.repo.FindLatestRetiredByStudent(ctx, studentID); err == nil && retired.ID != detail.ID {
		if archiveErr := s.archiveRetired(ctx, retired); archiveErr != nil {
			s.logger.Warn("reactivated but retired enrollment could not be archived",
				zap.String("enrollment_id", retired.ID), zap.Error(archiveErr))
		}
	}

	return detail, nil
}

// PreviousDependents lists the dependents attached to the student's most
// recently retired enrollment, so callers can offer them for re-selection
// during reactivation.
func (s *RenewalService) PreviousDependents(ctx context.Context, studentID string) ([]models.DependentDetail, error) {
	retired, err := s.repo.FindLatestRetiredByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.DependentDetail{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load retired enrollment")
	}
	dependents, err := s.dependents.ListByEnrollment(ctx, retired.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous dependents")
	}
	return dependents, nil
}

// renewalAnchor picks the start of the renewed period: today, or the day
// after the current end date when that is still in the future.
func (s *RenewalService) renewalAnchor(endDate time.Time) time.Time {
	today := billing.StartOfDay(s.now(), s.loc)
	dayAfterEnd := billing.StartOfDay(endDate, s.loc).AddDate(0, 0, 1)
	if dayAfterEnd.After(today) {
		return dayAfterEnd
	}
	return today
}

func (s *RenewalService) applyInstallmentTerms(enrollment *models.Enrollment, terms *InstallmentTerms, start time.Time) ([]billing.Tranche, error) {
	if terms == nil {
		return nil, nil
	}
	tranches, err := billing.BuildSchedule(billing.ScheduleInput{
		TotalAmount:       enrollment.PlanPrice,
		TotalInstallments: terms.Total,
		StartDate:         start,
		PaymentDay:        terms.PaymentDay,
	}, s.loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	enrollment.IsInstallmentPlan = true
	enrollment.TotalInstallments = &terms.Total
	if terms.PaymentDay > 0 {
		day := terms.PaymentDay
		enrollment.PaymentDay = &day
	}
	amount := tranches[0].Amount
	enrollment.InstallmentAmount = &amount
	return tranches, nil
}

func (s *RenewalService) archiveRetired(ctx context.Context, retired *models.Enrollment) error {
	return s.enrollments.repo.ArchiveAndDelete(ctx, retired, models.ArchiveReasonSuperseded)
}
