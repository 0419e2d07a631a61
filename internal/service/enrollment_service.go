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
	"github.com/academiafit/academia-api/internal/repository"
	appErrors "github.com/academiafit/academia-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment, dependents []models.EnrollmentDependent, previous *models.Enrollment) error
	UpdateStatusCascade(ctx context.Context, id string, status models.EnrollmentStatus, studentID string, studentStatus models.StudentStatus) error
	ArchiveAndDelete(ctx context.Context, enrollment *models.Enrollment, reason models.ArchiveReason) error
	ListHistoryByStudent(ctx context.Context, studentID string) ([]models.EnrollmentHistory, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type planReader interface {
	FindByID(ctx context.Context, id string) (*models.Plan, error)
}

type dependentRepository interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.DependentDetail, error)
	FindByID(ctx context.Context, id string) (*models.EnrollmentDependent, error)
	Create(ctx context.Context, dependent *models.EnrollmentDependent) error
	Delete(ctx context.Context, id string) error
}

type installmentWriter interface {
	CreateBatch(ctx context.Context, installments []models.PaymentInstallment) error
}

// CustomPlanInput describes an enrollment that bypasses the plan catalog.
type CustomPlanInput struct {
	Name         string  `json:"name" validate:"required"`
	Duration     string  `json:"duration" validate:"required"`
	TitularPrice float64 `json:"titular_price" validate:"gte=0"`
	IsFamilyPlan bool    `json:"is_family_plan"`
}

// InstallmentTerms requests installment billing for an enrollment.
type InstallmentTerms struct {
	Total      int `json:"total" validate:"required,min=1"`
	PaymentDay int `json:"payment_day" validate:"gte=0,lte=31"`
}

// DependentInput attaches a dependent at an individually set price.
type DependentInput struct {
	StudentID string  `json:"student_id" validate:"required"`
	Price     float64 `json:"price"`
}

// CreateEnrollmentRequest describes enrollment creation. Exactly one of
// plan_id or custom_plan must be set.
type CreateEnrollmentRequest struct {
	StudentID    string            `json:"student_id" validate:"required"`
	PlanID       string            `json:"plan_id"`
	CustomPlan   *CustomPlanInput  `json:"custom_plan"`
	Installments *InstallmentTerms `json:"installments"`
	Dependents   []DependentInput  `json:"dependents" validate:"dive"`
}

// UpdateEnrollmentStatusRequest flips an enrollment between ACTIVE and
// INACTIVE manually. EXPIRED is sweep-only.
type UpdateEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required"`
}

// planTerms is the resolved pricing/duration of a catalog or custom plan.
type planTerms struct {
	planID         *string
	name           string
	titularPrice   float64
	category       billing.DurationCategory
	isCustom       bool
	customDuration *string
	isFamilyPlan   bool
}

// EnrollmentService orchestrates the enrollment lifecycle: creation with
// supersede, manual status transitions, soft delete and dependent linkage.
type EnrollmentService struct {
	repo         enrollmentRepository
	students     studentReader
	plans        planReader
	dependents   dependentRepository
	installments installmentWriter
	validator    *validator.Validate
	logger       *zap.Logger
	loc          *time.Location
	now          func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, plans planReader, dependents dependentRepository, installments installmentWriter, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &EnrollmentService{
		repo:         repo,
		students:     students,
		plans:        plans,
		dependents:   dependents,
		installments: installments,
		validator:    validate,
		logger:       logger,
		loc:          loc,
		now:          time.Now,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one enrollment with its dependents and the authoritative
// computed total price.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return s.enrich(ctx, detail)
}

// Create registers a new enrollment for a student. An existing active
// enrollment is archived to history and superseded in the same transaction,
// keeping at most one active enrollment per student.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status == models.StudentStatusDeleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is deleted")
	}

	terms, err := s.resolvePlanTerms(ctx, req.PlanID, req.CustomPlan)
	if err != nil {
		return nil, err
	}

	dependents, dependentPrices, err := s.buildDependents(ctx, req.StudentID, req.Dependents)
	if err != nil {
		return nil, err
	}

	totalPrice, err := billing.TotalPrice(terms.titularPrice, dependentPrices)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNegativePrice.Code, appErrors.ErrNegativePrice.Status, err.Error())
	}

	period := billing.NewPeriod(terms.category, s.now(), s.loc)

	enrollment := &models.Enrollment{
		StudentID:      req.StudentID,
		PlanID:         terms.planID,
		PlanName:       terms.name,
		PlanPrice:      terms.titularPrice,
		StartDate:      period.StartDate,
		EndDate:        period.EndDate,
		Status:         models.EnrollmentStatusActive,
		IsCustomPlan:   terms.isCustom,
		CustomDuration: terms.customDuration,
		IsFamilyPlan:   terms.isFamilyPlan || len(dependents) > 0,
	}

	var tranches []billing.Tranche
	if req.Installments != nil {
		tranches, err = billing.BuildSchedule(billing.ScheduleInput{
			TotalAmount:       totalPrice,
			TotalInstallments: req.Installments.Total,
			StartDate:         period.StartDate,
			PaymentDay:        req.Installments.PaymentDay,
		}, s.loc)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		enrollment.IsInstallmentPlan = true
		enrollment.TotalInstallments = &req.Installments.Total
		if req.Installments.PaymentDay > 0 {
			day := req.Installments.PaymentDay
			enrollment.PaymentDay = &day
		}
		amount := tranches[0].Amount
		enrollment.InstallmentAmount = &amount
	}

	previous, err := s.repo.FindActiveByStudent(ctx, req.StudentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active enrollment")
	}

	if err := s.repo.Create(ctx, enrollment, dependents, previous); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateDependent, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if len(tranches) > 0 {
		if err := s.installments.CreateBatch(ctx, tranchesToInstallments(enrollment.ID, req.Installments.Total, tranches)); err != nil {
			s.logger.Warn("enrollment created but installment generation failed",
				zap.String("enrollment_id", enrollment.ID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrCascadeIncomplete.Code, appErrors.ErrCascadeIncomplete.Status,
				"enrollment created but installments could not be generated; retry installment generation")
		}
	}

	return s.Get(ctx, enrollment.ID)
}

// UpdateStatus applies a manual ACTIVE/INACTIVE transition, cascading the
// same status to the linked student in one transaction.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req UpdateEnrollmentStatusRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	var studentStatus models.StudentStatus
	switch req.Status {
	case models.EnrollmentStatusInactive:
		if enrollment.Status == models.EnrollmentStatusInactive {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment already inactive")
		}
		studentStatus = models.StudentStatusInactive
	case models.EnrollmentStatusActive:
		if enrollment.Status != models.EnrollmentStatusInactive {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only inactive enrollments can be activated manually")
		}
		studentStatus = models.StudentStatusActive
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be ACTIVE or INACTIVE")
	}

	if err := s.repo.UpdateStatusCascade(ctx, id, req.Status, enrollment.StudentID, studentStatus); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCascadeIncomplete.Code, appErrors.ErrCascadeIncomplete.Status,
			"failed to apply status transition")
	}
	return s.Get(ctx, id)
}

// Delete archives the enrollment to history and removes the row.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if err := s.repo.ArchiveAndDelete(ctx, enrollment, models.ArchiveReasonDeleted); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}

// AddDependent links a dependent student to an enrollment.
func (s *EnrollmentService) AddDependent(ctx context.Context, enrollmentID string, req DependentInput) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dependent payload")
	}
	if req.Price < 0 {
		return nil, appErrors.Clone(appErrors.ErrNegativePrice, "")
	}

	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if req.StudentID == enrollment.StudentID {
		return nil, appErrors.Clone(appErrors.ErrSelfDependent, "")
	}

	dependent, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "dependent student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dependent student")
	}
	if dependent.Status == models.StudentStatusDeleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "dependent student is deleted")
	}

	link := &models.EnrollmentDependent{
		EnrollmentID: enrollmentID,
		StudentID:    req.StudentID,
		Price:        req.Price,
	}
	if err := s.dependents.Create(ctx, link); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateDependent, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add dependent")
	}
	return s.Get(ctx, enrollmentID)
}

// RemoveDependent unlinks a dependent from an enrollment.
func (s *EnrollmentService) RemoveDependent(ctx context.Context, enrollmentID, dependentID string) (*models.EnrollmentDetail, error) {
	dependent, err := s.dependents.FindByID(ctx, dependentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "dependent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dependent")
	}
	if dependent.EnrollmentID != enrollmentID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "dependent not linked to enrollment")
	}
	if err := s.dependents.Delete(ctx, dependentID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove dependent")
	}
	return s.Get(ctx, enrollmentID)
}

// History returns the archived enrollments of a student.
func (s *EnrollmentService) History(ctx context.Context, studentID string) ([]models.EnrollmentHistory, error) {
	history, err := s.repo.ListHistoryByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment history")
	}
	return history, nil
}

func (s *EnrollmentService) enrich(ctx context.Context, detail *models.EnrollmentDetail) (*models.EnrollmentDetail, error) {
	dependents, err := s.dependents.ListByEnrollment(ctx, detail.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dependents")
	}
	detail.Dependents = dependents

	prices := make([]float64, 0, len(dependents))
	for _, dependent := range dependents {
		prices = append(prices, dependent.Price)
	}
	total, err := billing.TotalPrice(detail.PlanPrice, prices)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute total price")
	}
	detail.TotalPrice = total
	return detail, nil
}

func (s *EnrollmentService) resolvePlanTerms(ctx context.Context, planID string, custom *CustomPlanInput) (*planTerms, error) {
	switch {
	case planID != "" && custom != nil:
		return nil, appErrors.Clone(appErrors.ErrValidation, "provide either plan_id or custom_plan, not both")
	case planID != "":
		plan, err := s.plans.FindByID(ctx, planID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
		}
		if !plan.Active {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "plan is not active")
		}
		return &planTerms{
			planID:       &plan.ID,
			name:         plan.Name,
			titularPrice: plan.Price,
			category:     billing.ParseDurationCategory(plan.Duration),
		}, nil
	case custom != nil:
		if err := s.validator.Struct(custom); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid custom plan")
		}
		category := billing.ParseDurationCategory(custom.Duration)
		duration := string(category)
		return &planTerms{
			name:           custom.Name,
			titularPrice:   custom.TitularPrice,
			category:       category,
			isCustom:       true,
			customDuration: &duration,
			isFamilyPlan:   custom.IsFamilyPlan,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "plan_id or custom_plan is required")
	}
}

func (s *EnrollmentService) buildDependents(ctx context.Context, titularID string, inputs []DependentInput) ([]models.EnrollmentDependent, []float64, error) {
	if len(inputs) == 0 {
		return nil, nil, nil
	}

	seen := make(map[string]struct{}, len(inputs))
	dependents := make([]models.EnrollmentDependent, 0, len(inputs))
	prices := make([]float64, 0, len(inputs))

	for _, input := range inputs {
		if input.StudentID == titularID {
			return nil, nil, appErrors.Clone(appErrors.ErrSelfDependent, "")
		}
		if input.Price < 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrNegativePrice, "")
		}
		if _, ok := seen[input.StudentID]; ok {
			return nil, nil, appErrors.Clone(appErrors.ErrDuplicateDependent, "")
		}
		seen[input.StudentID] = struct{}{}

		student, err := s.students.FindByID(ctx, input.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "dependent student not found")
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dependent student")
		}
		if student.Status == models.StudentStatusDeleted {
			return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "dependent student is deleted")
		}

		dependents = append(dependents, models.EnrollmentDependent{StudentID: input.StudentID, Price: input.Price})
		prices = append(prices, input.Price)
	}
	return dependents, prices, nil
}

func tranchesToInstallments(enrollmentID string, total int, tranches []billing.Tranche) []models.PaymentInstallment {
	installments := make([]models.PaymentInstallment, len(tranches))
	for i, tranche := range tranches {
		installments[i] = models.PaymentInstallment{
			EnrollmentID:      enrollmentID,
			Number:            tranche.Number,
			TotalInstallments: total,
			Amount:            tranche.Amount,
			DueDate:           tranche.DueDate,
			Status:            models.InstallmentStatusPending,
		}
	}
	return installments
}
