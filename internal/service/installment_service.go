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

type installmentRepository interface {
	CreateBatch(ctx context.Context, installments []models.PaymentInstallment) error
	FindByID(ctx context.Context, id string) (*models.PaymentInstallment, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PaymentInstallment, error)
	ExistsByEnrollment(ctx context.Context, enrollmentID string) (bool, error)
	MarkPaid(ctx context.Context, id string, paidDate time.Time, method, notes string) error
	CountOverdueByEnrollment(ctx context.Context, enrollmentID string) (int, error)
}

type installmentEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ReactivateWithStudent(ctx context.Context, id, studentID string) error
	UpdateInstallmentTerms(ctx context.Context, id string, total int, paymentDay *int, amount float64) error
}

// MarkPaidRequest records a payment against an installment.
type MarkPaidRequest struct {
	PaymentMethod string     `json:"payment_method" validate:"required"`
	Notes         string     `json:"notes"`
	PaidDate      *time.Time `json:"paid_date"`
}

// InstallmentService generates payment schedules for enrollments and collects
// payments against them. Paying off the last overdue installment of a
// suspended enrollment brings the enrollment and its student back to ACTIVE.
type InstallmentService struct {
	repo        installmentRepository
	enrollments installmentEnrollmentRepository
	details     enrollmentDetailLoader
	validator   *validator.Validate
	logger      *zap.Logger
	loc         *time.Location
	now         func() time.Time
}

// NewInstallmentService constructs InstallmentService.
func NewInstallmentService(repo installmentRepository, enrollments installmentEnrollmentRepository, details enrollmentDetailLoader, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *InstallmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &InstallmentService{
		repo:        repo,
		enrollments: enrollments,
		details:     details,
		validator:   validate,
		logger:      logger,
		loc:         loc,
		now:         time.Now,
	}
}

// Generate builds the monthly schedule for an existing enrollment that does
// not have one yet. The split is based on the enrollment's computed total
// price, titular plus dependents.
func (s *InstallmentService) Generate(ctx context.Context, enrollmentID string, terms InstallmentTerms) ([]models.PaymentInstallment, error) {
	if err := s.validator.Struct(terms); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid installment terms")
	}

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	exists, err := s.repo.ExistsByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing installments")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "installments already generated for enrollment")
	}

	detail, err := s.details.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	tranches, err := billing.BuildSchedule(billing.ScheduleInput{
		TotalAmount:       detail.TotalPrice,
		TotalInstallments: terms.Total,
		StartDate:         enrollment.StartDate,
		PaymentDay:        terms.PaymentDay,
	}, s.loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	installments := tranchesToInstallments(enrollmentID, terms.Total, tranches)
	if err := s.repo.CreateBatch(ctx, installments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create installments")
	}

	var paymentDay *int
	if terms.PaymentDay > 0 {
		day := terms.PaymentDay
		paymentDay = &day
	}
	if err := s.enrollments.UpdateInstallmentTerms(ctx, enrollmentID, terms.Total, paymentDay, tranches[0].Amount); err != nil {
		s.logger.Warn("installments created but enrollment terms not stamped",
			zap.String("enrollment_id", enrollmentID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrCascadeIncomplete.Code, appErrors.ErrCascadeIncomplete.Status,
			"installments created but enrollment terms could not be updated")
	}

	return installments, nil
}

// MarkPaid records a payment. Paying an already-paid installment is a no-op.
// When the payment clears the enrollment's last overdue installment and the
// enrollment was suspended, the enrollment and its student return to ACTIVE.
func (s *InstallmentService) MarkPaid(ctx context.Context, id string, req MarkPaidRequest) (*models.PaymentInstallment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	installment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "installment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load installment")
	}
	if installment.Status == models.InstallmentStatusPaid {
		return installment, nil
	}

	paidDate := s.now().In(s.loc)
	if req.PaidDate != nil {
		paidDate = *req.PaidDate
	}
	if err := s.repo.MarkPaid(ctx, id, paidDate, req.PaymentMethod, req.Notes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	if err := s.reactivateIfCleared(ctx, installment.EnrollmentID); err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, id)
}

// List returns all installments of an enrollment ordered by number.
func (s *InstallmentService) List(ctx context.Context, enrollmentID string) ([]models.PaymentInstallment, error) {
	installments, err := s.repo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list installments")
	}
	return installments, nil
}

func (s *InstallmentService) reactivateIfCleared(ctx context.Context, enrollmentID string) error {
	overdue, err := s.repo.CountOverdueByEnrollment(ctx, enrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrCascadeIncomplete.Code, appErrors.ErrCascadeIncomplete.Status,
			"payment recorded but overdue check failed")
	}
	if overdue > 0 {
		return nil
	}

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrCascadeIncomplete.Code, appErrors.ErrCascadeIncomplete.Status,
			"payment recorded but enrollment lookup failed")
	}
	if enrollment.Status != models.EnrollmentStatusInactive {
		return nil
	}

	if err := s.enrollments.ReactivateWithStudent(ctx, enrollment.ID, enrollment.StudentID); err != nil {
		s.logger.Warn("payment recorded but reactivation failed",
			zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrCascadeIncomplete.Code, appErrors.ErrCascadeIncomplete.Status,
			"payment recorded but enrollment reactivation failed")
	}

	s.logger.Info("enrollment reactivated after clearing overdue installments",
		zap.String("enrollment_id", enrollment.ID), zap.String("student_id", enrollment.StudentID))
	return nil
}
