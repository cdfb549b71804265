package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalFlow/internal/aggregation"
	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/strategy"
	"SignalFlow/internal/workflow"
	"SignalFlow/pkg/logger"
	"SignalFlow/pkg/queue"
)

type memoryWorkflowStore struct {
	mu  sync.Mutex
	wfs map[string]models.Workflow
}

func (s *memoryWorkflowStore) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.wfs[id]
	if !ok {
		return nil, errors.New("workflow not found")
	}
	return &wf, nil
}

func (s *memoryWorkflowStore) SaveWorkflow(_ context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wfs == nil {
		s.wfs = map[string]models.Workflow{}
	}
	s.wfs[wf.ID] = *wf
	return nil
}

func (s *memoryWorkflowStore) ListWorkflows(context.Context) ([]models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Workflow, 0, len(s.wfs))
	for _, wf := range s.wfs {
		out = append(out, wf)
	}
	return out, nil
}

type memoryRunStore struct {
	mu   sync.Mutex
	runs []models.WorkflowRun
}

func (s *memoryRunStore) AppendRun(_ context.Context, run *models.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *run)
	return nil
}

func (s *memoryRunStore) ReplaceRun(_ context.Context, run *models.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == run.ID {
			s.runs[i] = *run
			return nil
		}
	}
	return errors.New("run not found")
}

func (s *memoryRunStore) ListRuns(_ context.Context, workflowID string, limit int) ([]models.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.WorkflowRun, 0)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.runs[i].WorkflowID == workflowID {
			out = append(out, s.runs[i])
		}
	}
	return out, nil
}

func (s *memoryRunStore) LatestRun(_ context.Context, workflowID string) (*models.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].WorkflowID == workflowID {
			run := s.runs[i]
			return &run, nil
		}
	}
	return nil, nil
}

type recordingQueue struct {
	mu       sync.Mutex
	messages []queue.Message
}

func (q *recordingQueue) PublishMessage(_ context.Context, msgType string, payload interface{}, opts ...queue.PublishOption) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	msg := queue.Message{Type: msgType, Payload: payload}
	for _, opt := range opts {
		opt(&msg)
	}
	q.messages = append(q.messages, msg)
	return nil
}

type sinkDeliverer struct{}

func (sinkDeliverer) Deliver(context.Context, string, interface{}) error { return nil }

type staticCandleSource struct{}

func (staticCandleSource) GetRecentCandles(_ context.Context, symbolID int64, tf domrepo.Timeframe, _ int) ([]models.Candle, error) {
	return []models.Candle{{SymbolID: symbolID, Timeframe: string(tf), Close: 100}}, nil
}

func (staticCandleSource) GetCandlesRange(context.Context, int64, domrepo.Timeframe, time.Time, time.Time) ([]models.Candle, error) {
	return nil, nil
}

func pipelineRecord(t *testing.T, id string) *models.Workflow {
	t.Helper()
	nodes, _ := json.Marshal([]workflow.Node{
		{ID: "sym", Kind: workflow.NodeSymbol},
		{ID: "sma", Kind: workflow.NodeSMA},
		{ID: "rsi", Kind: workflow.NodeRSI},
		{ID: "agg", Kind: workflow.NodeAggregation},
	})
	edges, _ := json.Marshal([]workflow.Edge{
		{From: "sym", To: "sma"},
		{From: "sym", To: "rsi"},
		{From: "sma", To: "agg"},
		{From: "rsi", To: "agg"},
	})
	props, _ := json.Marshal(map[string]interface{}{
		"sym": workflow.SymbolNodeConfig{SymbolID: 7, Ticker: "BTCUSDT", Exchange: "binance", Timeframes: []string{"1h"}},
	})
	return &models.Workflow{ID: id, Name: "pipeline", Nodes: nodes, Edges: edges, Properties: props}
}

func newWorkflowService(t *testing.T) (*WorkflowService, *memoryWorkflowStore, *recordingQueue) {
	t.Helper()
	reg := strategy.NewRegistry()
	for _, spec := range []struct {
		name string
		eval func(domrepo.Timeframe) (models.SignalResult, error)
	}{
		{"sma", fixedSignal(models.DirectionBuy, 0.8, 0.9)},
		{"rsi", fixedSignal(models.DirectionBuy, 0.6, 0.7)},
	} {
		s := &fakeStrategy{name: spec.name, eval: spec.eval}
		s.cfg = strategy.Config{Name: spec.name, Enabled: true, Weight: 1.0}
		if err := reg.Register(s); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	engine, err := aggregation.NewEngine(aggregation.DefaultConfig())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	executor := workflow.NewExecutor(reg, engine, aggregation.NewMultiTimeframe(nil, 0.3),
		staticCandleSource{}, sinkDeliverer{}, nopMetrics{}, logger.Nop(), 4)

	wfStore := &memoryWorkflowStore{}
	q := &recordingQueue{}
	svc := NewWorkflowService(wfStore, workflow.NewTracker(&memoryRunStore{}), executor, q, nopMetrics{}, logger.Nop())
	return svc, wfStore, q
}

func TestExecuteWorkflowEndToEnd(t *testing.T) {
	svc, store, _ := newWorkflowService(t)
	if err := store.SaveWorkflow(context.Background(), pipelineRecord(t, "wf-1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	record, err := svc.ExecuteWorkflow(context.Background(), "wf-1", "realtime")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if record.Run.Status != models.RunSuccess {
		t.Fatalf("run status: %+v", record.Run)
	}
	if record.Result == nil || !record.Result.Success {
		t.Fatalf("result: %+v", record.Result)
	}
	agg := record.Result.Nodes["agg"]
	if agg.Aggregated == nil || agg.Aggregated.Direction != models.DirectionBuy {
		t.Fatalf("aggregation node: %+v", agg)
	}

	status, err := svc.GetRunStatus(context.Background(), "wf-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != models.RunSuccess {
		t.Fatalf("persisted status: %+v", status)
	}
}

func TestExecuteWorkflowInvalidGraphFailsRun(t *testing.T) {
	svc, store, _ := newWorkflowService(t)

	nodes, _ := json.Marshal([]workflow.Node{{ID: "a", Kind: workflow.NodeSMA}, {ID: "b", Kind: workflow.NodeRSI}})
	edges, _ := json.Marshal([]workflow.Edge{{From: "a", To: "b"}, {From: "b", To: "a"}})
	broken := &models.Workflow{ID: "wf-cyclic", Name: "broken", Nodes: nodes, Edges: edges}
	if err := store.SaveWorkflow(context.Background(), broken); err != nil {
		t.Fatalf("seed: %v", err)
	}

	record, err := svc.ExecuteWorkflow(context.Background(), "wf-cyclic", "realtime")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if record.Run.Status != models.RunError {
		t.Fatalf("expected failed run, got %+v", record.Run)
	}
	if record.Result != nil {
		t.Fatalf("no node may execute on a broken graph")
	}
	if record.Run.Meta["error"] == "" {
		t.Fatalf("expected failure cause in run meta")
	}
}

func TestExecuteWorkflowRejectsConcurrentRun(t *testing.T) {
	svc, store, _ := newWorkflowService(t)
	if err := store.SaveWorkflow(context.Background(), pipelineRecord(t, "wf-1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// hold the exclusivity slot the way a long execution would
	if _, _, err := svc.tracker.StartRun(context.Background(), "wf-1", workflow.ModeRealtime); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.ExecuteWorkflow(context.Background(), "wf-1", "realtime"); !errors.Is(err, workflow.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestEnqueueWorkflowPriorities(t *testing.T) {
	svc, store, q := newWorkflowService(t)
	if err := store.SaveWorkflow(context.Background(), pipelineRecord(t, "wf-1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := svc.EnqueueWorkflow(context.Background(), "wf-1", "realtime"); err != nil {
		t.Fatalf("enqueue realtime: %v", err)
	}
	if err := svc.EnqueueWorkflow(context.Background(), "wf-1", "backfill"); err != nil {
		t.Fatalf("enqueue backfill: %v", err)
	}
	if err := svc.EnqueueWorkflow(context.Background(), "wf-missing", "realtime"); err == nil {
		t.Fatalf("expected error for unknown workflow")
	}

	if len(q.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(q.messages))
	}
	if q.messages[0].Priority != queue.PriorityHigh {
		t.Fatalf("realtime must take the high-priority lane: %+v", q.messages[0])
	}
	if q.messages[1].Priority != queue.PriorityDefault {
		t.Fatalf("backfill must take the default lane: %+v", q.messages[1])
	}
}

func TestSaveWorkflowRejectsBrokenGraph(t *testing.T) {
	svc, _, _ := newWorkflowService(t)

	nodes, _ := json.Marshal([]workflow.Node{{ID: "a", Kind: "teleport"}})
	broken := &models.Workflow{ID: "wf-x", Name: "broken", Nodes: nodes}
	if err := svc.SaveWorkflow(context.Background(), broken); err == nil {
		t.Fatalf("expected validation error")
	}

	if err := svc.SaveWorkflow(context.Background(), pipelineRecord(t, "wf-ok")); err != nil {
		t.Fatalf("save: %v", err)
	}
	saved, err := svc.GetWorkflow(context.Background(), "wf-ok")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if saved.Status != "active" || saved.UpdatedAt.IsZero() {
		t.Fatalf("saved record: %+v", saved)
	}
}

func TestExecuteWorkflowJobHandle(t *testing.T) {
	svc, store, _ := newWorkflowService(t)
	if err := store.SaveWorkflow(context.Background(), pipelineRecord(t, "wf-1")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	job := NewExecuteWorkflowJob(svc, logger.Nop())

	payload, _ := json.Marshal(ExecuteWorkflowPayload{WorkflowID: "wf-1", Mode: "realtime"})
	if err := job.Handle(context.Background(), json.RawMessage(payload)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	status, err := svc.GetRunStatus(context.Background(), "wf-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != models.RunSuccess {
		t.Fatalf("run status: %+v", status)
	}

	if err := job.Handle(context.Background(), json.RawMessage(`{"mode":"realtime"}`)); err == nil {
		t.Fatalf("expected error for missing workflow_id")
	}
}
