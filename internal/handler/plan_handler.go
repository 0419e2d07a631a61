package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/academiafit/academia-api/internal/models"
	"github.com/academiafit/academia-api/internal/service"
	appErrors "github.com/academiafit/academia-api/pkg/errors"
	"github.com/academiafit/academia-api/pkg/response"
)

type planService interface {
	List(ctx context.Context, filter models.PlanFilter) ([]models.Plan, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Plan, error)
	Create(ctx context.Context, req service.CreatePlanRequest) (*models.Plan, error)
	Update(ctx context.Context, id string, req service.UpdatePlanRequest) (*models.Plan, error)
	Deactivate(ctx context.Context, id string) (*models.Plan, error)
}

// PlanHandler exposes the plan catalog endpoints.
type PlanHandler struct {
	plans planService
}

// NewPlanHandler constructs PlanHandler.
func NewPlanHandler(plans planService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// Register wires the plan routes.
func (h *PlanHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/plans", h.List)
	rg.POST("/plans", h.Create)
	rg.GET("/plans/:id", h.Get)
	rg.PUT("/plans/:id", h.Update)
	rg.PATCH("/plans/:id/deactivate", h.Deactivate)
}

// List godoc
// @Summary List catalog plans
// @Tags plans
// @Produce json
// @Param active query bool false "Filter by active flag"
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=[]models.Plan}
// @Router /plans [get]
func (h *PlanHandler) List(c *gin.Context) {
	filter := models.PlanFilter{
		Active:   queryBool(c, "active"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 50),
	}

	plans, pagination, err := h.plans.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Get godoc
// @Summary Get a plan
// @Tags plans
// @Produce json
// @Param id path string true "Plan ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.Plan}
// @Failure 404 {object} response.Envelope
// @Router /plans/{id} [get]
func (h *PlanHandler) Get(c *gin.Context) {
	plan, err := h.plans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Create godoc
// @Summary Add a plan to the catalog
// @Tags plans
// @Accept json
// @Produce json
// @Param payload body service.CreatePlanRequest true "Plan"
// @Security BearerAuth
// @Success 201 {object} response.Envelope{data=models.Plan}
// @Failure 400 {object} response.Envelope
// @Router /plans [post]
func (h *PlanHandler) Create(c *gin.Context) {
	var req service.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	plan, err := h.plans.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// Update godoc
// @Summary Edit a plan going forward
// @Tags plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body service.UpdatePlanRequest true "Plan"
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.Plan}
// @Failure 404 {object} response.Envelope
// @Router /plans/{id} [put]
func (h *PlanHandler) Update(c *gin.Context) {
	var req service.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	plan, err := h.plans.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Deactivate godoc
// @Summary Retire a plan from the catalog
// @Tags plans
// @Produce json
// @Param id path string true "Plan ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.Plan}
// @Failure 404 {object} response.Envelope
// @Router /plans/{id}/deactivate [patch]
func (h *PlanHandler) Deactivate(c *gin.Context) {
	plan, err := h.plans.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}
