package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academiafit/academia-api/internal/models"
	"github.com/academiafit/academia-api/internal/service"
	appErrors "github.com/academiafit/academia-api/pkg/errors"
)

type fakeInstallmentService struct {
	generateFn func(ctx context.Context, enrollmentID string, terms service.InstallmentTerms) ([]models.PaymentInstallment, error)
	markPaidFn func(ctx context.Context, id string, req service.MarkPaidRequest) (*models.PaymentInstallment, error)
	listFn     func(ctx context.Context, enrollmentID string) ([]models.PaymentInstallment, error)
}

func (f *fakeInstallmentService) Generate(ctx context.Context, enrollmentID string, terms service.InstallmentTerms) ([]models.PaymentInstallment, error) {
	return f.generateFn(ctx, enrollmentID, terms)
}

func (f *fakeInstallmentService) MarkPaid(ctx context.Context, id string, req service.MarkPaidRequest) (*models.PaymentInstallment, error) {
	return f.markPaidFn(ctx, id, req)
}

func (f *fakeInstallmentService) List(ctx context.Context, enrollmentID string) ([]models.PaymentInstallment, error) {
	return f.listFn(ctx, enrollmentID)
}

func newInstallmentRouter(installments installmentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewInstallmentHandler(installments).Register(router.Group("/api/v1"))
	return router
}

func TestInstallmentHandlerGenerateReturnsCreated(t *testing.T) {
	installments := &fakeInstallmentService{
		generateFn: func(ctx context.Context, enrollmentID string, terms service.InstallmentTerms) ([]models.PaymentInstallment, error) {
			assert.Equal(t, "enr-1", enrollmentID)
			assert.Equal(t, 3, terms.Total)
			due := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
			return []models.PaymentInstallment{
				{ID: "ins-1", EnrollmentID: enrollmentID, Number: 1, Amount: 100, DueDate: due},
				{ID: "ins-2", EnrollmentID: enrollmentID, Number: 2, Amount: 100, DueDate: due.AddDate(0, 1, 0)},
				{ID: "ins-3", EnrollmentID: enrollmentID, Number: 3, Amount: 100, DueDate: due.AddDate(0, 2, 0)},
			}, nil
		},
	}
	router := newInstallmentRouter(installments)

	recorder := performRequest(router, http.MethodPost, "/api/v1/enrollments/enr-1/installments",
		`{"total":3,"payment_day":5}`)

	require.Equal(t, http.StatusCreated, recorder.Code)
}

func TestInstallmentHandlerGenerateMapsConflict(t *testing.T) {
	installments := &fakeInstallmentService{
		generateFn: func(ctx context.Context, enrollmentID string, terms service.InstallmentTerms) ([]models.PaymentInstallment, error) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "installments already generated for enrollment")
		},
	}
	router := newInstallmentRouter(installments)

	recorder := performRequest(router, http.MethodPost, "/api/v1/enrollments/enr-1/installments",
		`{"total":3}`)

	require.Equal(t, http.StatusConflict, recorder.Code)
}

func TestInstallmentHandlerMarkPaid(t *testing.T) {
	installments := &fakeInstallmentService{
		markPaidFn: func(ctx context.Context, id string, req service.MarkPaidRequest) (*models.PaymentInstallment, error) {
			assert.Equal(t, "ins-1", id)
			assert.Equal(t, "pix", req.PaymentMethod)
			paid := time.Now()
			return &models.PaymentInstallment{ID: id, Status: models.InstallmentStatusPaid, PaidDate: &paid}, nil
		},
	}
	router := newInstallmentRouter(installments)

	recorder := performRequest(router, http.MethodPost, "/api/v1/installments/ins-1/pay",
		`{"payment_method":"pix"}`)

	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestInstallmentHandlerMarkPaidRejectsMalformedBody(t *testing.T) {
	router := newInstallmentRouter(&fakeInstallmentService{})

	recorder := performRequest(router, http.MethodPost, "/api/v1/installments/ins-1/pay", `{`)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestInstallmentHandlerList(t *testing.T) {
	installments := &fakeInstallmentService{
		listFn: func(ctx context.Context, enrollmentID string) ([]models.PaymentInstallment, error) {
			return []models.PaymentInstallment{{ID: "ins-1", EnrollmentID: enrollmentID, Number: 1}}, nil
		},
	}
	router := newInstallmentRouter(installments)

	recorder := performRequest(router, http.MethodGet, "/api/v1/enrollments/enr-1/installments", "")

	require.Equal(t, http.StatusOK, recorder.Code)
}
