package handler

import (
	"context"
	"net/http"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/batch"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/dto"
	"github.com/labstack/echo/v4"
)

// JobRunner is satisfied by *jobs.Jobs.
type JobRunner interface {
	Run(ctx context.Context, name string) (batch.Result, error)
}

type JobHandler struct {
	jobs JobRunner
}

func NewJobHandler(jobs JobRunner) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func (h *JobHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/jobs/:name/run", h.RunJob)
}

// RunJob runs a batch job synchronously and reports its counts.
func (h *JobHandler) RunJob(c echo.Context) error {
	name := c.Param("name")
	result, err := h.jobs.Run(c.Request().Context(), name)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.JobResultResponse{Job: name, Result: result})
}
