package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"SignalFlow/internal/domain/models"
	pkgch "SignalFlow/pkg/clickhouse"
	applogger "SignalFlow/pkg/logger"
)

// ErrWorkflowNotFound is returned by GetWorkflow on an unknown id.
var ErrWorkflowNotFound = errors.New("workflow not found")

// CHWorkflowStore implements WorkflowStore and RunStore backed by
// ClickHouse ReplacingMergeTree tables: every save inserts a new version
// and reads collapse to the latest one.
type CHWorkflowStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHWorkflowStore(ch *pkgch.Client) *CHWorkflowStore {
	return &CHWorkflowStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHWorkflowStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHWorkflowStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	const q = `
        SELECT id, name, nodes, edges, properties, status, created_at, updated_at
        FROM signalflow.workflows FINAL
        WHERE id = ?
        LIMIT 1
    `
	var wf models.Workflow
	var nodes, edges, props string
	row := s.db.QueryRowContext(ctx, q, id)
	err := row.Scan(&wf.ID, &wf.Name, &nodes, &edges, &props, &wf.Status, &wf.CreatedAt, &wf.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrWorkflowNotFound)
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_workflow query error",
				applogger.String("workflow_id", id),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	wf.Nodes = json.RawMessage(nodes)
	wf.Edges = json.RawMessage(edges)
	wf.Properties = json.RawMessage(props)
	return &wf, nil
}

func (s *CHWorkflowStore) SaveWorkflow(ctx context.Context, wf *models.Workflow) error {
	const q = `
        INSERT INTO signalflow.workflows
            (id, name, nodes, edges, properties, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		wf.ID, wf.Name,
		string(wf.Nodes), string(wf.Edges), string(wf.Properties),
		wf.Status, wf.CreatedAt, wf.UpdatedAt)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse save_workflow error",
				applogger.String("workflow_id", wf.ID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("save workflow: %w", err)
	}
	if s.l != nil {
		s.l.Info("workflow saved",
			applogger.String("workflow_id", wf.ID),
			applogger.String("name", wf.Name))
	}
	return nil
}

func (s *CHWorkflowStore) ListWorkflows(ctx context.Context) ([]models.Workflow, error) {
	const q = `
        SELECT id, name, nodes, edges, properties, status, created_at, updated_at
        FROM signalflow.workflows FINAL
        ORDER BY updated_at DESC
    `
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	out := make([]models.Workflow, 0, 32)
	for rows.Next() {
		var wf models.Workflow
		var nodes, edges, props string
		if err := rows.Scan(&wf.ID, &wf.Name, &nodes, &edges, &props, &wf.Status, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		wf.Nodes = json.RawMessage(nodes)
		wf.Edges = json.RawMessage(edges)
		wf.Properties = json.RawMessage(props)
		out = append(out, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// AppendRun inserts the initial running record of a run.
func (s *CHWorkflowStore) AppendRun(ctx context.Context, run *models.WorkflowRun) error {
	return s.insertRun(ctx, run)
}

// ReplaceRun inserts the terminal version; the ReplacingMergeTree keyed by
// run id collapses it over the running record.
func (s *CHWorkflowStore) ReplaceRun(ctx context.Context, run *models.WorkflowRun) error {
	return s.insertRun(ctx, run)
}

func (s *CHWorkflowStore) insertRun(ctx context.Context, run *models.WorkflowRun) error {
	meta, err := json.Marshal(run.Meta)
	if err != nil {
		return fmt.Errorf("marshal run meta: %w", err)
	}
	finished := time.Time{}
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	const q = `
        INSERT INTO signalflow.workflow_runs
            (run_id, workflow_id, status, started_at, finished_at, duration_ms, meta)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err = s.db.ExecContext(ctx, q,
		run.ID, run.WorkflowID, string(run.Status),
		run.StartedAt, finished, run.Duration.Milliseconds(), string(meta))
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse insert_run error",
				applogger.String("run_id", run.ID),
				applogger.String("workflow_id", run.WorkflowID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *CHWorkflowStore) ListRuns(ctx context.Context, workflowID string, limit int) ([]models.WorkflowRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
        SELECT run_id, workflow_id, status, started_at, finished_at, duration_ms, meta
        FROM signalflow.workflow_runs FINAL
        WHERE workflow_id = ?
        ORDER BY started_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.WorkflowRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHWorkflowStore) LatestRun(ctx context.Context, workflowID string) (*models.WorkflowRun, error) {
	runs, err := s.ListRuns(ctx, workflowID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func scanRun(rows *sql.Rows) (*models.WorkflowRun, error) {
	var run models.WorkflowRun
	var status, meta string
	var finished time.Time
	var durationMS int64
	if err := rows.Scan(&run.ID, &run.WorkflowID, &status, &run.StartedAt, &finished, &durationMS, &meta); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Status = models.RunStatus(status)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if !finished.IsZero() {
		run.FinishedAt = &finished
	}
	if meta != "" && meta != "null" {
		if err := json.Unmarshal([]byte(meta), &run.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal run meta: %w", err)
		}
	}
	return &run, nil
}
