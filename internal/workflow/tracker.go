package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
)

var (
	// ErrRunInProgress is returned when a workflow already has an active run.
	ErrRunInProgress = errors.New("workflow run already in progress")

	// ErrRunFinished is returned on a terminal transition for a run that
	// already reached a terminal state.
	ErrRunFinished = errors.New("workflow run already finished")

	// ErrRunNotFound is returned when no run is known for the workflow.
	ErrRunNotFound = errors.New("workflow run not found")
)

type activeRun struct {
	run    models.WorkflowRun
	cancel context.CancelFunc
}

// Tracker enforces single-flight execution per workflow and owns the run
// lifecycle records. Every run makes exactly one terminal transition; a
// stopped run's late results are rejected when the executor reports in.
type Tracker struct {
	mu     sync.Mutex
	active map[string]*activeRun
	store  domrepo.RunStore
}

func NewTracker(store domrepo.RunStore) *Tracker {
	return &Tracker{active: make(map[string]*activeRun), store: store}
}

// StartRun registers a new run for the workflow and returns the run record
// together with a context the executor must run under. Stop cancels that
// context. A workflow with an active run gets ErrRunInProgress.
func (t *Tracker) StartRun(ctx context.Context, workflowID string, mode Mode) (*models.WorkflowRun, context.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, busy := t.active[workflowID]; busy {
		return nil, nil, ErrRunInProgress
	}
	// a run left running by a previous process counts as active too
	if latest, err := t.store.LatestRun(ctx, workflowID); err == nil && latest != nil && !latest.Status.IsTerminal() {
		return nil, nil, ErrRunInProgress
	}

	run := models.WorkflowRun{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     models.RunRunning,
		StartedAt:  time.Now().UTC(),
		Meta:       map[string]string{"mode": string(mode)},
	}
	if err := t.store.AppendRun(ctx, &run); err != nil {
		return nil, nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.active[workflowID] = &activeRun{run: run, cancel: cancel}
	return &run, runCtx, nil
}

// FinishRun records the terminal transition of the given run. Finishing a
// run that was already stopped or finished is rejected and the late result
// is discarded by the caller. The run identity is checked, not just the
// workflow: a late finish from a superseded run never touches the run that
// replaced it.
func (t *Tracker) FinishRun(ctx context.Context, run *models.WorkflowRun, status models.RunStatus, meta map[string]string) (*models.WorkflowRun, error) {
	if !status.IsTerminal() {
		return nil, errors.New("finish requires a terminal status")
	}

	t.mu.Lock()
	ar, ok := t.active[run.WorkflowID]
	if !ok || ar.run.ID != run.ID {
		t.mu.Unlock()
		return nil, ErrRunFinished
	}
	delete(t.active, run.WorkflowID)
	ar.cancel()

	finished := ar.run
	now := time.Now().UTC()
	finished.Status = status
	finished.FinishedAt = &now
	finished.Duration = now.Sub(finished.StartedAt)
	for k, v := range meta {
		finished.Meta[k] = v
	}
	t.mu.Unlock()

	if err := t.store.ReplaceRun(ctx, &finished); err != nil {
		return nil, err
	}
	return &finished, nil
}

// Stop cancels the active run of the workflow and records it as stopped.
// The executor's eventual FinishRun for that run then fails with
// ErrRunFinished, so its partial result never overwrites the stop.
func (t *Tracker) Stop(ctx context.Context, workflowID string) (*models.WorkflowRun, error) {
	t.mu.Lock()
	ar, ok := t.active[workflowID]
	t.mu.Unlock()
	if !ok {
		return nil, ErrRunNotFound
	}

	run, err := t.FinishRun(ctx, &ar.run, models.RunStopped, map[string]string{"stopped_by": "request"})
	if errors.Is(err, ErrRunFinished) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// Status returns the active run for the workflow, or the latest persisted
// run when none is in flight.
func (t *Tracker) Status(ctx context.Context, workflowID string) (*models.WorkflowRun, error) {
	t.mu.Lock()
	if ar, ok := t.active[workflowID]; ok {
		run := ar.run
		run.Duration = time.Since(run.StartedAt)
		t.mu.Unlock()
		return &run, nil
	}
	t.mu.Unlock()

	latest, err := t.store.LatestRun(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, ErrRunNotFound
	}
	return latest, nil
}

// ListRuns returns the run history of the workflow, newest first.
func (t *Tracker) ListRuns(ctx context.Context, workflowID string, limit int) ([]models.WorkflowRun, error) {
	return t.store.ListRuns(ctx, workflowID, limit)
}
