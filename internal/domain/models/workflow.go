package models

import (
	"encoding/json"
	"time"
)

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
	RunStopped RunStatus = "stopped"
)

// IsTerminal reports whether the status ends the run lifecycle.
func (s RunStatus) IsTerminal() bool { return s != RunRunning }

// Workflow is a persisted node graph record. Nodes, edges and per-node
// properties are stored serialized; the workflow package decodes them into
// a typed graph for execution.
type Workflow struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Nodes      json.RawMessage `json:"nodes"`
	Edges      json.RawMessage `json:"edges"`
	Properties json.RawMessage `json:"properties"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// WorkflowRun is one execution attempt of a workflow. A run makes exactly
// one terminal transition out of running.
type WorkflowRun struct {
	ID         string            `json:"run_id"`
	WorkflowID string            `json:"workflow_id"`
	Status     RunStatus         `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Duration   time.Duration     `json:"duration"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// NodeResult is the recorded outcome of a single node execution.
type NodeResult struct {
	Type          string                `json:"type"`
	Status        string                `json:"status"` // success | error
	Error         string                `json:"error,omitempty"`
	DataValidated bool                  `json:"data_validated"`
	Signals       []SignalResult        `json:"signals,omitempty"`
	Aggregated    *AggregatedSignal     `json:"aggregated,omitempty"`
	MultiTF       *MultiTimeframeSignal `json:"multi_timeframe,omitempty"`
	Delivered     []string              `json:"delivered,omitempty"`
	Failed        map[string]string     `json:"failed,omitempty"` // timeframe/channel -> error
}

// WorkflowResult is the full result tree of one execution.
type WorkflowResult struct {
	Success       bool                  `json:"success"`
	Mode          string                `json:"mode"`
	ExecutionTime time.Duration         `json:"execution_time"`
	Nodes         map[string]NodeResult `json:"nodes"`
}
