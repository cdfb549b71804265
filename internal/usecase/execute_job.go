package usecase

import (
	"context"
	"errors"
	"fmt"

	"SignalFlow/internal/workflow"
	"SignalFlow/pkg/logger"
	"SignalFlow/pkg/queue"
)

// JobTypeExecuteWorkflow is the queue message type for workflow execution.
const JobTypeExecuteWorkflow = "workflow.execute"

// ExecuteWorkflowJob drains asynchronous workflow executions off the task
// queue. A run rejected because the workflow is already executing is not an
// error worth retrying; everything else goes through the queue's retry path.
type ExecuteWorkflowJob struct {
	workflows *WorkflowService
	logger    *logger.Logger
}

func NewExecuteWorkflowJob(workflows *WorkflowService, log *logger.Logger) *ExecuteWorkflowJob {
	return &ExecuteWorkflowJob{workflows: workflows, logger: log}
}

func (j *ExecuteWorkflowJob) Name() string { return "workflow-executor" }

func (j *ExecuteWorkflowJob) Type() string { return JobTypeExecuteWorkflow }

func (j *ExecuteWorkflowJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[ExecuteWorkflowPayload](payload)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	if req.WorkflowID == "" {
		return fmt.Errorf("payload missing workflow_id")
	}

	record, err := j.workflows.ExecuteWorkflow(ctx, req.WorkflowID, req.Mode)
	if errors.Is(err, workflow.ErrRunInProgress) {
		j.logger.Warn("queued workflow skipped, run already in progress",
			logger.String("workflow_id", req.WorkflowID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("execute workflow %s: %w", req.WorkflowID, err)
	}

	j.logger.Info("queued workflow executed",
		logger.String("workflow_id", req.WorkflowID),
		logger.String("run_id", record.Run.ID),
		logger.String("status", string(record.Run.Status)))
	return nil
}
