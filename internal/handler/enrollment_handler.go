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

type enrollmentService interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Create(ctx context.Context, req service.CreateEnrollmentRequest) (*models.EnrollmentDetail, error)
	UpdateStatus(ctx context.Context, id string, req service.UpdateEnrollmentStatusRequest) (*models.EnrollmentDetail, error)
	Delete(ctx context.Context, id string) error
	AddDependent(ctx context.Context, enrollmentID string, req service.DependentInput) (*models.EnrollmentDetail, error)
	RemoveDependent(ctx context.Context, enrollmentID, dependentID string) (*models.EnrollmentDetail, error)
	History(ctx context.Context, studentID string) ([]models.EnrollmentHistory, error)
}

type renewalService interface {
	Renew(ctx context.Context, enrollmentID string, req service.RenewEnrollmentRequest) (*models.EnrollmentDetail, error)
	Reactivate(ctx context.Context, studentID string, req service.ReactivateEnrollmentRequest) (*models.EnrollmentDetail, error)
	PreviousDependents(ctx context.Context, studentID string) ([]models.DependentDetail, error)
}

// EnrollmentHandler exposes the enrollment lifecycle endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
	renewals    renewalService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService, renewals renewalService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, renewals: renewals}
}

// Register wires the enrollment routes.
func (h *EnrollmentHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/enrollments", h.List)
	rg.POST("/enrollments", h.Create)
	rg.GET("/enrollments/:id", h.Get)
	rg.PATCH("/enrollments/:id/status", h.UpdateStatus)
	rg.DELETE("/enrollments/:id", h.Delete)
	rg.POST("/enrollments/:id/renew", h.Renew)
	rg.POST("/enrollments/:id/dependents", h.AddDependent)
	rg.DELETE("/enrollments/:id/dependents/:dependentId", h.RemoveDependent)

	rg.GET("/students/:id/enrollments/history", h.History)
	rg.GET("/students/:id/previous-dependents", h.PreviousDependents)
	rg.POST("/students/:id/reactivate", h.Reactivate)
}

// List godoc
// @Summary List enrollments
// @Tags enrollments
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param status query string false "Status filter" Enums(ACTIVE, EXPIRED, INACTIVE)
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=[]models.EnrollmentDetail}
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentID: c.Query("student_id"),
		Status:    models.EnrollmentStatus(c.Query("status")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get an enrollment with dependents and computed total
// @Tags enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.EnrollmentDetail}
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	detail, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Enroll a student
// @Description Creates an enrollment on a catalog or custom plan. An existing
// @Description active enrollment is archived and superseded.
// @Tags enrollments
// @Accept json
// @Produce json
// @Param payload body service.CreateEnrollmentRequest true "Enrollment"
// @Security BearerAuth
// @Success 201 {object} response.Envelope{data=models.EnrollmentDetail}
// @Failure 400 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req service.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	detail, err := h.enrollments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// UpdateStatus godoc
// @Summary Manually activate or deactivate an enrollment
// @Tags enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpdateEnrollmentStatusRequest true "Target status"
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.EnrollmentDetail}
// @Failure 412 {object} response.Envelope
// @Router /enrollments/{id}/status [patch]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateEnrollmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	detail, err := h.enrollments.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Archive and remove an enrollment
// @Tags enrollments
// @Param id path string true "Enrollment ID"
// @Security BearerAuth
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	if err := h.enrollments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Renew godoc
// @Summary Renew an enrollment in place
// @Description The new period starts at the later of today and the day after
// @Description the current end date.
// @Tags enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.RenewEnrollmentRequest true "Renewal terms"
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.EnrollmentDetail}
// @Failure 412 {object} response.Envelope
// @Router /enrollments/{id}/renew [post]
func (h *EnrollmentHandler) Renew(c *gin.Context) {
	var req service.RenewEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	detail, err := h.renewals.Renew(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// AddDependent godoc
// @Summary Attach a dependent to an enrollment
// @Tags enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.DependentInput true "Dependent"
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.EnrollmentDetail}
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/dependents [post]
func (h *EnrollmentHandler) AddDependent(c *gin.Context) {
	var req service.DependentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	detail, err := h.enrollments.AddDependent(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// RemoveDependent godoc
// @Summary Detach a dependent from an enrollment
// @Tags enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param dependentId path string true "Dependent link ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.EnrollmentDetail}
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/dependents/{dependentId} [delete]
func (h *EnrollmentHandler) RemoveDependent(c *gin.Context) {
	detail, err := h.enrollments.RemoveDependent(c.Request.Context(), c.Param("id"), c.Param("dependentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// History godoc
// @Summary List a student's archived enrollments
// @Tags enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=[]models.EnrollmentHistory}
// @Router /students/{id}/enrollments/history [get]
func (h *EnrollmentHandler) History(c *gin.Context) {
	history, err := h.enrollments.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// PreviousDependents godoc
// @Summary List dependents of the student's most recent retired enrollment
// @Tags enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=[]models.DependentDetail}
// @Router /students/{id}/previous-dependents [get]
func (h *EnrollmentHandler) PreviousDependents(c *gin.Context) {
	dependents, err := h.renewals.PreviousDependents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dependents, nil)
}

// Reactivate godoc
// @Summary Reactivate a student with a new enrollment
// @Description Creates a brand new enrollment starting today. Dependents must
// @Description be re-selected explicitly.
// @Tags enrollments
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.ReactivateEnrollmentRequest true "Reactivation terms"
// @Security BearerAuth
// @Success 201 {object} response.Envelope{data=models.EnrollmentDetail}
// @Failure 412 {object} response.Envelope
// @Router /students/{id}/reactivate [post]
func (h *EnrollmentHandler) Reactivate(c *gin.Context) {
	var req service.ReactivateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	detail, err := h.renewals.Reactivate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}
