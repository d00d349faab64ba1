package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// JobRunner is the background scheduler as seen by the admin API.
type JobRunner interface {
	RunNow(name string) error
	GetJobStatus() map[string]interface{}
}

// JobHandlers exposes background jobs to admins.
type JobHandlers struct {
	runner JobRunner
}

// NewJobHandlers creates a new job handlers instance
func NewJobHandlers(runner JobRunner) *JobHandlers {
	return &JobHandlers{runner: runner}
}

// GetJobStatus lists the scheduled jobs with their last and next run.
// @Summary      Background job status
// @Tags         admin
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /v1/admin/jobs [get]
func (h *JobHandlers) GetJobStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.runner.GetJobStatus())
}

// RunJob triggers a job outside its schedule. The job runs in the background.
// @Summary      Run a job now
// @Tags         admin
// @Param        name  path  string  true  "Job name"  Enums(quota-audit)
// @Success      202
// @Failure      404  {object}  common.ErrorResponse
// @Router       /v1/admin/jobs/{name}/run [post]
func (h *JobHandlers) RunJob(c echo.Context) error {
	if err := h.runner.RunNow(c.Param("name")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}
