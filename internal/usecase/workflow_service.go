package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/workflow"
	"SignalFlow/pkg/logger"
	"SignalFlow/pkg/queue"
)

// ExecutionRecord couples a run with its result tree. Result is nil when the
// run never reached the executor (graph failed validation) or when the run
// was stopped and its late result discarded.
type ExecutionRecord struct {
	Run    *models.WorkflowRun    `json:"run"`
	Result *models.WorkflowResult `json:"result,omitempty"`
}

// WorkflowService owns workflow persistence and execution. Synchronous
// execution runs in the caller's goroutine; asynchronous execution goes
// through the task queue and is picked up by a worker.
type WorkflowService struct {
	store    domrepo.WorkflowStore
	tracker  *workflow.Tracker
	executor *workflow.Executor
	queue    queue.QueueService
	metrics  domrepo.Metrics
	logger   *logger.Logger
}

func NewWorkflowService(
	store domrepo.WorkflowStore,
	tracker *workflow.Tracker,
	executor *workflow.Executor,
	q queue.QueueService,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *WorkflowService {
	return &WorkflowService{
		store:    store,
		tracker:  tracker,
		executor: executor,
		queue:    q,
		metrics:  metrics,
		logger:   log,
	}
}

// ExecuteWorkflow runs a workflow synchronously. A workflow with an active
// run is rejected with workflow.ErrRunInProgress. Graph-integrity problems
// fail the run before any node executes.
func (s *WorkflowService) ExecuteWorkflow(ctx context.Context, workflowID string, modeStr string) (*ExecutionRecord, error) {
	mode, err := workflow.ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}

	run, runCtx, err := s.tracker.StartRun(ctx, workflowID, mode)
	if err != nil {
		return nil, err
	}

	g, err := workflow.LoadGraph(wf)
	if err == nil {
		err = g.Validate()
	}
	if err != nil {
		s.logger.Warn("workflow graph rejected",
			logger.String("workflow_id", workflowID),
			logger.Error(err))
		return s.failRun(ctx, run, err)
	}

	s.logger.Info("workflow run started",
		logger.String("workflow_id", workflowID),
		logger.String("run_id", run.ID),
		logger.String("mode", string(mode)))

	result, execErr := s.executor.Execute(runCtx, g, mode)

	status := models.RunSuccess
	meta := map[string]string{}
	if execErr != nil {
		status = models.RunError
		meta["error"] = execErr.Error()
	}

	finished, err := s.tracker.FinishRun(ctx, run, status, meta)
	if errors.Is(err, workflow.ErrRunFinished) {
		// stopped while executing; the stop already recorded the run and
		// the partial result is discarded
		latest, serr := s.tracker.Status(ctx, workflowID)
		if serr != nil {
			return nil, serr
		}
		return &ExecutionRecord{Run: latest}, nil
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRun(string(finished.Status), finished.Duration.Seconds())
	s.logger.Info("workflow run finished",
		logger.String("workflow_id", workflowID),
		logger.String("run_id", finished.ID),
		logger.String("status", string(finished.Status)),
		logger.Duration("duration", finished.Duration))

	return &ExecutionRecord{Run: finished, Result: result}, nil
}

func (s *WorkflowService) failRun(ctx context.Context, run *models.WorkflowRun, cause error) (*ExecutionRecord, error) {
	failed, ferr := s.tracker.FinishRun(ctx, run, models.RunError, map[string]string{"error": cause.Error()})
	if ferr != nil {
		return nil, errors.Join(cause, ferr)
	}
	s.metrics.RecordRun(string(models.RunError), failed.Duration.Seconds())
	return &ExecutionRecord{Run: failed}, nil
}

// ExecuteWorkflowPayload is the queue message for asynchronous execution.
type ExecuteWorkflowPayload struct {
	WorkflowID string `json:"workflow_id"`
	Mode       string `json:"mode"`
}

// EnqueueWorkflow schedules an asynchronous execution. Realtime requests
// take the high-priority lane so backfill batches never starve them.
func (s *WorkflowService) EnqueueWorkflow(ctx context.Context, workflowID string, modeStr string) error {
	mode, err := workflow.ParseMode(modeStr)
	if err != nil {
		return err
	}
	// reject instead of queueing a message that will immediately fail
	if _, err := s.store.GetWorkflow(ctx, workflowID); err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}

	opts := []queue.PublishOption{}
	if mode == workflow.ModeRealtime {
		opts = append(opts, queue.WithPriority(queue.PriorityHigh))
	}
	payload := ExecuteWorkflowPayload{WorkflowID: workflowID, Mode: string(mode)}
	if err := s.queue.PublishMessage(ctx, JobTypeExecuteWorkflow, payload, opts...); err != nil {
		return fmt.Errorf("enqueue workflow: %w", err)
	}
	s.logger.Info("workflow execution enqueued",
		logger.String("workflow_id", workflowID),
		logger.String("mode", string(mode)))
	return nil
}

// StopRun requests cancellation of the active run.
func (s *WorkflowService) StopRun(ctx context.Context, workflowID string) (*models.WorkflowRun, error) {
	return s.tracker.Stop(ctx, workflowID)
}

// GetRunStatus returns the active or latest run of the workflow.
func (s *WorkflowService) GetRunStatus(ctx context.Context, workflowID string) (*models.WorkflowRun, error) {
	return s.tracker.Status(ctx, workflowID)
}

// ListRuns returns the run history of the workflow, newest first.
func (s *WorkflowService) ListRuns(ctx context.Context, workflowID string, limit int) ([]models.WorkflowRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.tracker.ListRuns(ctx, workflowID, limit)
}

// SaveWorkflow validates the graph and persists the record. A structurally
// broken graph is rejected at save time, not discovered at execution time.
func (s *WorkflowService) SaveWorkflow(ctx context.Context, wf *models.Workflow) error {
	g, err := workflow.LoadGraph(wf)
	if err == nil {
		err = g.Validate()
	}
	if err != nil {
		return fmt.Errorf("invalid workflow graph: %w", err)
	}

	now := time.Now().UTC()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	wf.UpdatedAt = now
	if wf.Status == "" {
		wf.Status = "active"
	}
	return s.store.SaveWorkflow(ctx, wf)
}

// GetWorkflow loads one workflow record.
func (s *WorkflowService) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	return s.store.GetWorkflow(ctx, id)
}

// ListWorkflows returns all stored workflows.
func (s *WorkflowService) ListWorkflows(ctx context.Context) ([]models.Workflow, error) {
	return s.store.ListWorkflows(ctx)
}
