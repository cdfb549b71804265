package api

import (
	"errors"

	models "SignalFlow/internal/domain/models"
	internalrepo "SignalFlow/internal/repository"
	"SignalFlow/internal/usecase"
	"SignalFlow/internal/workflow"
	xhttp "SignalFlow/pkg/http"
	xlogger "SignalFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// WorkflowsEchoHandler exposes workflow CRUD, execution and run tracking.
type WorkflowsEchoHandler struct {
	logger    *xlogger.Logger
	workflows *usecase.WorkflowService
}

func NewWorkflowsEchoHandler(logger *xlogger.Logger, workflows *usecase.WorkflowService) *WorkflowsEchoHandler {
	return &WorkflowsEchoHandler{logger: logger, workflows: workflows}
}

func (h *WorkflowsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/workflows")
	g.GET("", h.List)
	g.POST("", h.Save)
	g.GET("/:id", h.Get)
	g.POST("/:id/execute", h.Execute)
	g.POST("/:id/stop", h.Stop)
	g.GET("/:id/status", h.Status)
	g.GET("/:id/runs", h.Runs)
}

func (h *WorkflowsEchoHandler) List(c echo.Context) error {
	rows, err := h.workflows.ListWorkflows(c.Request().Context())
	if err != nil {
		h.logger.Error("list workflows error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *WorkflowsEchoHandler) Save(c echo.Context) error {
	wf := &models.Workflow{}
	if err := c.Bind(wf); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if wf.ID == "" || wf.Name == "" {
		return xhttp.BadRequestResponse(c, "id and name are required")
	}

	if err := h.workflows.SaveWorkflow(c.Request().Context(), wf); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	}
	return xhttp.CreatedResponse(c, wf)
}

func (h *WorkflowsEchoHandler) Get(c echo.Context) error {
	wf, err := h.workflows.GetWorkflow(c.Request().Context(), c.Param("id"))
	if errors.Is(err, internalrepo.ErrWorkflowNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("workflow %s not found", c.Param("id")).WithError(err))
	}
	if err != nil {
		h.logger.Error("get workflow error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, wf)
}

// Execute runs a workflow, either synchronously or through the task queue
// when async is requested. A workflow already executing answers 409.
func (h *WorkflowsEchoHandler) Execute(c echo.Context) error {
	req := &models.ExecuteWorkflowRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	id := c.Param("id")

	if req.Async {
		if err := h.workflows.EnqueueWorkflow(c.Request().Context(), id, req.Mode); err != nil {
			if errors.Is(err, internalrepo.ErrWorkflowNotFound) {
				return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("workflow %s not found", id).WithError(err))
			}
			h.logger.Error("enqueue workflow error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.SuccessResponse(c, map[string]string{"workflow_id": id, "mode": req.Mode, "queued": "true"})
	}

	record, err := h.workflows.ExecuteWorkflow(c.Request().Context(), id, req.Mode)
	if errors.Is(err, workflow.ErrRunInProgress) {
		return xhttp.AppErrorResponse(c, xhttp.ConflictErrorf("workflow %s already has an active run", id).WithError(err))
	}
	if errors.Is(err, internalrepo.ErrWorkflowNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("workflow %s not found", id).WithError(err))
	}
	if err != nil {
		h.logger.Error("execute workflow error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, record)
}

func (h *WorkflowsEchoHandler) Stop(c echo.Context) error {
	id := c.Param("id")
	run, err := h.workflows.StopRun(c.Request().Context(), id)
	if errors.Is(err, workflow.ErrRunNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("workflow %s has no active run", id).WithError(err))
	}
	if err != nil {
		h.logger.Error("stop workflow error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, run)
}

func (h *WorkflowsEchoHandler) Status(c echo.Context) error {
	id := c.Param("id")
	run, err := h.workflows.GetRunStatus(c.Request().Context(), id)
	if errors.Is(err, workflow.ErrRunNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("workflow %s has no runs", id).WithError(err))
	}
	if err != nil {
		h.logger.Error("run status error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, run)
}

func (h *WorkflowsEchoHandler) Runs(c echo.Context) error {
	id := c.Param("id")
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 20)

	runs, err := h.workflows.ListRuns(c.Request().Context(), id, limit)
	if err != nil {
		h.logger.Error("list runs error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, runs, int64(len(runs)))
}
