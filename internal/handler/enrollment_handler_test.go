package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academiafit/academia-api/internal/models"
	"github.com/academiafit/academia-api/internal/service"
	appErrors "github.com/academiafit/academia-api/pkg/errors"
	"github.com/academiafit/academia-api/pkg/response"
)

type fakeEnrollmentService struct {
	listFn            func(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	getFn             func(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	createFn          func(ctx context.Context, req service.CreateEnrollmentRequest) (*models.EnrollmentDetail, error)
	updateStatusFn    func(ctx context.Context, id string, req service.UpdateEnrollmentStatusRequest) (*models.EnrollmentDetail, error)
	deleteFn          func(ctx context.Context, id string) error
	addDependentFn    func(ctx context.Context, enrollmentID string, req service.DependentInput) (*models.EnrollmentDetail, error)
	removeDependentFn func(ctx context.Context, enrollmentID, dependentID string) (*models.EnrollmentDetail, error)
	historyFn         func(ctx context.Context, studentID string) ([]models.EnrollmentHistory, error)
}

func (f *fakeEnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	return f.listFn(ctx, filter)
}

func (f *fakeEnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return f.getFn(ctx, id)
}

func (f *fakeEnrollmentService) Create(ctx context.Context, req service.CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	return f.createFn(ctx, req)
}

func (f *fakeEnrollmentService) UpdateStatus(ctx context.Context, id string, req service.UpdateEnrollmentStatusRequest) (*models.EnrollmentDetail, error) {
	return f.updateStatusFn(ctx, id, req)
}

func (f *fakeEnrollmentService) Delete(ctx context.Context, id string) error {
	return f.deleteFn(ctx, id)
}

func (f *fakeEnrollmentService) AddDependent(ctx context.Context, enrollmentID string, req service.DependentInput) (*models.EnrollmentDetail, error) {
	return f.addDependentFn(ctx, enrollmentID, req)
}

func (f *fakeEnrollmentService) RemoveDependent(ctx context.Context, enrollmentID, dependentID string) (*models.EnrollmentDetail, error) {
	return f.removeDependentFn(ctx, enrollmentID, dependentID)
}

func (f *fakeEnrollmentService) History(ctx context.Context, studentID string) ([]models.EnrollmentHistory, error) {
	return f.historyFn(ctx, studentID)
}

type fakeRenewalService struct {
	renewFn              func(ctx context.Context, enrollmentID string, req service.RenewEnrollmentRequest) (*models.EnrollmentDetail, error)
	reactivateFn         func(ctx context.Context, studentID string, req service.ReactivateEnrollmentRequest) (*models.EnrollmentDetail, error)
	previousDependentsFn func(ctx context.Context, studentID string) ([]models.DependentDetail, error)
}

func (f *fakeRenewalService) Renew(ctx context.Context, enrollmentID string, req service.RenewEnrollmentRequest) (*models.EnrollmentDetail, error) {
	return f.renewFn(ctx, enrollmentID, req)
}

func (f *fakeRenewalService) Reactivate(ctx context.Context, studentID string, req service.ReactivateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	return f.reactivateFn(ctx, studentID, req)
}

func (f *fakeRenewalService) PreviousDependents(ctx context.Context, studentID string) ([]models.DependentDetail, error) {
	return f.previousDependentsFn(ctx, studentID)
}

func newEnrollmentRouter(enrollments enrollmentService, renewals renewalService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewEnrollmentHandler(enrollments, renewals).Register(router.Group("/api/v1"))
	return router
}

func performRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestEnrollmentHandlerCreateReturnsCreated(t *testing.T) {
	enrollments := &fakeEnrollmentService{
		createFn: func(ctx context.Context, req service.CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
			assert.Equal(t, "stu-1", req.StudentID)
			return &models.EnrollmentDetail{
				Enrollment: models.Enrollment{ID: "enr-1", StudentID: req.StudentID, PlanName: "Mensal"},
				TotalPrice: 100,
			}, nil
		},
	}
	router := newEnrollmentRouter(enrollments, &fakeRenewalService{})

	recorder := performRequest(router, http.MethodPost, "/api/v1/enrollments",
		`{"student_id":"stu-1","plan_id":"plan-1"}`)

	require.Equal(t, http.StatusCreated, recorder.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data)
}

func TestEnrollmentHandlerCreateRejectsMalformedBody(t *testing.T) {
	router := newEnrollmentRouter(&fakeEnrollmentService{}, &fakeRenewalService{})

	recorder := performRequest(router, http.MethodPost, "/api/v1/enrollments", `{not json`)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error.Code)
}

func TestEnrollmentHandlerGetMapsNotFound(t *testing.T) {
	enrollments := &fakeEnrollmentService{
		getFn: func(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		},
	}
	router := newEnrollmentRouter(enrollments, &fakeRenewalService{})

	recorder := performRequest(router, http.MethodGet, "/api/v1/enrollments/missing", "")

	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestEnrollmentHandlerUpdateStatusMapsPrecondition(t *testing.T) {
	enrollments := &fakeEnrollmentService{
		updateStatusFn: func(ctx context.Context, id string, req service.UpdateEnrollmentStatusRequest) (*models.EnrollmentDetail, error) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment already inactive")
		},
	}
	router := newEnrollmentRouter(enrollments, &fakeRenewalService{})

	recorder := performRequest(router, http.MethodPatch, "/api/v1/enrollments/enr-1/status",
		`{"status":"INACTIVE"}`)

	require.Equal(t, http.StatusPreconditionFailed, recorder.Code)
}

func TestEnrollmentHandlerRemoveDependent(t *testing.T) {
	var gotEnrollment, gotDependent string
	enrollments := &fakeEnrollmentService{
		removeDependentFn: func(ctx context.Context, enrollmentID, dependentID string) (*models.EnrollmentDetail, error) {
			gotEnrollment, gotDependent = enrollmentID, dependentID
			return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: enrollmentID}, TotalPrice: 150}, nil
		},
	}
	router := newEnrollmentRouter(enrollments, &fakeRenewalService{})

	recorder := performRequest(router, http.MethodDelete, "/api/v1/enrollments/enr-1/dependents/dep-2", "")

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "enr-1", gotEnrollment)
	assert.Equal(t, "dep-2", gotDependent)
}

func TestEnrollmentHandlerRenew(t *testing.T) {
	renewals := &fakeRenewalService{
		renewFn: func(ctx context.Context, enrollmentID string, req service.RenewEnrollmentRequest) (*models.EnrollmentDetail, error) {
			assert.Equal(t, "enr-1", enrollmentID)
			assert.Equal(t, "plan-2", req.PlanID)
			return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: enrollmentID}}, nil
		},
	}
	router := newEnrollmentRouter(&fakeEnrollmentService{}, renewals)

	recorder := performRequest(router, http.MethodPost, "/api/v1/enrollments/enr-1/renew",
		`{"plan_id":"plan-2"}`)

	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestEnrollmentHandlerReactivateReturnsCreated(t *testing.T) {
	renewals := &fakeRenewalService{
		reactivateFn: func(ctx context.Context, studentID string, req service.ReactivateEnrollmentRequest) (*models.EnrollmentDetail, error) {
			assert.Equal(t, "stu-1", studentID)
			return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "enr-new", StudentID: studentID}}, nil
		},
	}
	router := newEnrollmentRouter(&fakeEnrollmentService{}, renewals)

	recorder := performRequest(router, http.MethodPost, "/api/v1/students/stu-1/reactivate",
		`{"plan_id":"plan-1","dependents":[{"student_id":"stu-2","price":40}]}`)

	require.Equal(t, http.StatusCreated, recorder.Code)
}

func TestEnrollmentHandlerPreviousDependents(t *testing.T) {
	renewals := &fakeRenewalService{
		previousDependentsFn: func(ctx context.Context, studentID string) ([]models.DependentDetail, error) {
			return []models.DependentDetail{
				{EnrollmentDependent: models.EnrollmentDependent{ID: "dep-1", StudentID: "stu-2", Price: 40}, StudentName: "Dep"},
			}, nil
		},
	}
	router := newEnrollmentRouter(&fakeEnrollmentService{}, renewals)

	recorder := performRequest(router, http.MethodGet, "/api/v1/students/stu-1/previous-dependents", "")

	require.Equal(t, http.StatusOK, recorder.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data)
}
