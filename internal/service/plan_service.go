package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/academiafit/academia-api/internal/billing"
	"github.com/academiafit/academia-api/internal/models"
	appErrors "github.com/academiafit/academia-api/pkg/errors"
)

type planRepository interface {
	List(ctx context.Context, filter models.PlanFilter) ([]models.Plan, int, error)
	FindByID(ctx context.Context, id string) (*models.Plan, error)
	Create(ctx context.Context, plan *models.Plan) error
	Update(ctx context.Context, plan *models.Plan) error
}

// CreatePlanRequest carries the editable fields of a catalog plan.
type CreatePlanRequest struct {
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Duration string  `json:"duration" validate:"required"`
	Active   *bool   `json:"active"`
}

// UpdatePlanRequest mirrors CreatePlanRequest for edits.
type UpdatePlanRequest = CreatePlanRequest

type cachedPlanList struct {
	Plans []models.Plan `json:"plans"`
	Total int           `json:"total"`
}

// PlanService manages the plan catalog. Catalog edits only apply going
// forward; enrollments snapshot plan name and price at creation time.
type PlanService struct {
	repo      planRepository
	cache     CacheStore
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPlanService constructs PlanService. cache may be nil.
func NewPlanService(repo planRepository, cache CacheStore, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *PlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

// List returns catalog plans, served from cache when possible.
func (s *PlanService) List(ctx context.Context, filter models.PlanFilter) ([]models.Plan, *models.Pagination, error) {
	key := planListKey(filter)

	if s.cache != nil {
		var cached cachedPlanList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Plans, paginationFor(filter.Page, filter.PageSize, cached.Total), nil
		}
	}

	plans, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedPlanList{Plans: plans, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache plan list", zap.Error(err))
		}
	}

	return plans, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one plan.
func (s *PlanService) Get(ctx context.Context, id string) (*models.Plan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	return plan, nil
}

// Create adds a plan to the catalog. The duration is normalised to one of
// the supported categories.
func (s *PlanService) Create(ctx context.Context, req CreatePlanRequest) (*models.Plan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	plan := &models.Plan{
		Name:     req.Name,
		Price:    req.Price,
		Duration: string(billing.ParseDurationCategory(req.Duration)),
		Active:   active,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan")
	}

	s.invalidateCache(ctx)
	return plan, nil
}

// Update edits a plan going forward.
func (s *PlanService) Update(ctx context.Context, id string, req UpdatePlanRequest) (*models.Plan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}

	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	plan.Name = req.Name
	plan.Price = req.Price
	plan.Duration = string(billing.ParseDurationCategory(req.Duration))
	if req.Active != nil {
		plan.Active = *req.Active
	}

	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update plan")
	}

	s.invalidateCache(ctx)
	return plan, nil
}

// Deactivate retires a plan from the catalog. Existing enrollments are
// unaffected; the plan just stops being offered.
func (s *PlanService) Deactivate(ctx context.Context, id string) (*models.Plan, error) {
	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return plan, nil
	}

	plan.Active = false
	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate plan")
	}

	s.invalidateCache(ctx)
	return plan, nil
}

func (s *PlanService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "plans:*"); err != nil {
		s.logger.Warn("failed to invalidate plan cache", zap.Error(err))
	}
}

func planListKey(filter models.PlanFilter) string {
	active := "all"
	if filter.Active != nil {
		active = fmt.Sprintf("%t", *filter.Active)
	}
	return fmt.Sprintf("plans:list:%s:%d:%d", active, filter.Page, filter.PageSize)
}
