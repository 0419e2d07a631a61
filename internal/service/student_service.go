package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/academiafit/academia-api/internal/models"
	appErrors "github.com/academiafit/academia-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error
	SoftDelete(ctx context.Context, id string) error
}

type studentEnrollmentRepository interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
	UpdateStatusCascade(ctx context.Context, id string, status models.EnrollmentStatus, studentID string, studentStatus models.StudentStatus) error
	ArchiveAndDelete(ctx context.Context, enrollment *models.Enrollment, reason models.ArchiveReason) error
}

// CacheStore is the cache dependency of the listing services. A nil value
// disables caching.
type CacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateStudentRequest carries the editable fields of a student record.
type CreateStudentRequest struct {
	FullName         string     `json:"full_name" validate:"required"`
	Email            string     `json:"email" validate:"omitempty,email"`
	Phone            string     `json:"phone"`
	BirthDate        *time.Time `json:"birth_date"`
	Address          string     `json:"address"`
	EmergencyContact string     `json:"emergency_contact"`
	MedicalNotes     string     `json:"medical_notes"`
}

// UpdateStudentRequest mirrors CreateStudentRequest for edits.
type UpdateStudentRequest = CreateStudentRequest

type cachedStudentList struct {
	Students []models.Student `json:"students"`
	Total    int              `json:"total"`
}

// StudentService manages member records. Student status normally follows the
// enrollment lifecycle; the manual operations here keep both sides in step.
type StudentService struct {
	repo        studentRepository
	enrollments studentEnrollmentRepository
	cache       CacheStore
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs StudentService. cache may be nil.
func NewStudentService(repo studentRepository, enrollments studentEnrollmentRepository, cache CacheStore, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:        repo,
		enrollments: enrollments,
		cache:       cache,
		cacheTTL:    cacheTTL,
		validator:   validate,
		logger:      logger,
	}
}

// List returns students matching the filter, served from cache when possible.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	key := studentListKey(filter)

	if s.cache != nil {
		var cached cachedStudentList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Students, paginationFor(filter.Page, filter.PageSize, cached.Total), nil
		}
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedStudentList{Students: students, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache student list", zap.Error(err))
		}
	}

	return students, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a student with its current enrollment context.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student := &models.Student{
		FullName:         req.FullName,
		Email:            req.Email,
		Phone:            req.Phone,
		BirthDate:        req.BirthDate,
		Address:          req.Address,
		EmergencyContact: req.EmergencyContact,
		MedicalNotes:     req.MedicalNotes,
		Status:           models.StudentStatusActive,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.invalidateCache(ctx)
	return student, nil
}

// Update edits the student's contact and medical fields. Status is managed by
// the lifecycle operations, not here.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.loadEditable(ctx, id)
	if err != nil {
		return nil, err
	}

	student.FullName = req.FullName
	student.Email = req.Email
	student.Phone = req.Phone
	student.BirthDate = req.BirthDate
	student.Address = req.Address
	student.EmergencyContact = req.EmergencyContact
	student.MedicalNotes = req.MedicalNotes

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	s.invalidateCache(ctx)
	return student, nil
}

// Deactivate flips a student to INACTIVE. When the student has an active
// enrollment, both are deactivated in one transaction so neither side is left
// dangling.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	student, err := s.loadEditable(ctx, id)
	if err != nil {
		return err
	}
	if student.Status == models.StudentStatusInactive {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student already inactive")
	}

	enrollment, err := s.enrollments.FindActiveByStudent(ctx, id)
	switch {
	case err == nil:
		if err := s.enrollments.UpdateStatusCascade(ctx, enrollment.ID, models.EnrollmentStatusInactive, id, models.StudentStatusInactive); err != nil {
			return appErrors.Wrap(err, appErrors.ErrCascadeIncomplete.Code, appErrors.ErrCascadeIncomplete.Status,
				"failed to deactivate student and enrollment")
		}
	case errors.Is(err, sql.ErrNoRows):
		if err := s.repo.UpdateStatus(ctx, id, models.StudentStatusInactive); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
		}
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active enrollment")
	}

	s.invalidateCache(ctx)
	return nil
}

// Delete tombstones a student. An active enrollment, when present, is
// archived to history first so the membership record survives the deletion.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.loadEditable(ctx, id); err != nil {
		return err
	}

	enrollment, err := s.enrollments.FindActiveByStudent(ctx, id)
	switch {
	case err == nil:
		if err := s.enrollments.ArchiveAndDelete(ctx, enrollment, models.ArchiveReasonDeleted); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive enrollment")
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active enrollment")
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}

	s.invalidateCache(ctx)
	return nil
}

func (s *StudentService) loadEditable(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status == models.StudentStatusDeleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return student, nil
}

func (s *StudentService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "students:*"); err != nil {
		s.logger.Warn("failed to invalidate student cache", zap.Error(err))
	}
}

func studentListKey(filter models.StudentFilter) string {
	return fmt.Sprintf("students:list:%s:%s:%d:%d:%s:%s",
		filter.Search, filter.Status, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
