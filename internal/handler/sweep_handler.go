package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/academiafit/academia-api/internal/service"
	"github.com/academiafit/academia-api/pkg/response"
)

type sweepService interface {
	RunAll(ctx context.Context) (*service.SweepResult, error)
}

// SweepHandler exposes a manual trigger for the lifecycle sweeps, useful for
// operations and tests; the scheduler runs the same sweeps periodically.
type SweepHandler struct {
	sweeps sweepService
}

// NewSweepHandler constructs SweepHandler.
func NewSweepHandler(sweeps sweepService) *SweepHandler {
	return &SweepHandler{sweeps: sweeps}
}

// Register wires the sweep routes.
func (h *SweepHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/sweeps/run", h.Run)
}

// Run godoc
// @Summary Run all lifecycle sweeps now
// @Tags sweeps
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=service.SweepResult}
// @Router /sweeps/run [post]
func (h *SweepHandler) Run(c *gin.Context) {
	result, err := h.sweeps.RunAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
