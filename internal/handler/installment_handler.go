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

type installmentService interface {
	Generate(ctx context.Context, enrollmentID string, terms service.InstallmentTerms) ([]models.PaymentInstallment, error)
	MarkPaid(ctx context.Context, id string, req service.MarkPaidRequest) (*models.PaymentInstallment, error)
	List(ctx context.Context, enrollmentID string) ([]models.PaymentInstallment, error)
}

// InstallmentHandler exposes the payment installment endpoints.
type InstallmentHandler struct {
	installments installmentService
}

// NewInstallmentHandler constructs InstallmentHandler.
func NewInstallmentHandler(installments installmentService) *InstallmentHandler {
	return &InstallmentHandler{installments: installments}
}

// Register wires the installment routes.
func (h *InstallmentHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/enrollments/:id/installments", h.List)
	rg.POST("/enrollments/:id/installments", h.Generate)
	rg.POST("/installments/:id/pay", h.MarkPaid)
}

// List godoc
// @Summary List an enrollment's installments
// @Tags installments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=[]models.PaymentInstallment}
// @Router /enrollments/{id}/installments [get]
func (h *InstallmentHandler) List(c *gin.Context) {
	installments, err := h.installments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, installments, nil)
}

// Generate godoc
// @Summary Generate the installment schedule for an enrollment
// @Tags installments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.InstallmentTerms true "Terms"
// @Security BearerAuth
// @Success 201 {object} response.Envelope{data=[]models.PaymentInstallment}
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/installments [post]
func (h *InstallmentHandler) Generate(c *gin.Context) {
	var terms service.InstallmentTerms
	if err := c.ShouldBindJSON(&terms); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	installments, err := h.installments.Generate(c.Request.Context(), c.Param("id"), terms)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, installments)
}

// MarkPaid godoc
// @Summary Record a payment against an installment
// @Description Clearing the last overdue installment of a suspended
// @Description enrollment reactivates it along with the student.
// @Tags installments
// @Accept json
// @Produce json
// @Param id path string true "Installment ID"
// @Param payload body service.MarkPaidRequest true "Payment"
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.PaymentInstallment}
// @Failure 404 {object} response.Envelope
// @Router /installments/{id}/pay [post]
func (h *InstallmentHandler) MarkPaid(c *gin.Context) {
	var req service.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	installment, err := h.installments.MarkPaid(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, installment, nil)
}
