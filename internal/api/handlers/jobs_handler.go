package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/inboxwrap/inboxwrap-backend/internal/api/response"
)

// Trigger starts one out-of-schedule pass of a background runner.
type Trigger interface {
	ForceRun()
	IsRunning() bool
}

// JobsHandler exposes manual triggers for the pipeline stages
type JobsHandler struct {
	fetch    Trigger
	dispatch Trigger
}

// NewJobsHandler creates a new JobsHandler
func NewJobsHandler(fetch, dispatch Trigger) *JobsHandler {
	return &JobsHandler{fetch: fetch, dispatch: dispatch}
}

// TriggerFetch handles POST /api/jobs/fetch
func (h *JobsHandler) TriggerFetch(c echo.Context) error {
	if !h.fetch.IsRunning() {
		return response.Conflict(c, "fetch loop is not running")
	}
	h.fetch.ForceRun()
	return response.Accepted(c, "fetch pass triggered")
}

// TriggerDispatch handles POST /api/jobs/dispatch
func (h *JobsHandler) TriggerDispatch(c echo.Context) error {
	if !h.dispatch.IsRunning() {
		return response.Conflict(c, "dispatch loop is not running")
	}
	h.dispatch.ForceRun()
	return response.Accepted(c, "dispatch pass triggered")
}
