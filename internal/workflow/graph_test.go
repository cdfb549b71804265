package workflow

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"SignalFlow/internal/domain/models"
)

func rawWorkflow(t *testing.T, nodes []Node, edges []Edge, props map[string]interface{}) *models.Workflow {
	t.Helper()
	nb, err := json.Marshal(nodes)
	if err != nil {
		t.Fatalf("marshal nodes: %v", err)
	}
	eb, err := json.Marshal(edges)
	if err != nil {
		t.Fatalf("marshal edges: %v", err)
	}
	pb, err := json.Marshal(props)
	if err != nil {
		t.Fatalf("marshal properties: %v", err)
	}
	return &models.Workflow{ID: "wf-1", Name: "test", Nodes: nb, Edges: eb, Properties: pb}
}

func pipelineWorkflow(t *testing.T) *models.Workflow {
	return rawWorkflow(t,
		[]Node{
			{ID: "sym", Kind: NodeSymbol},
			{ID: "sma", Kind: NodeSMA},
			{ID: "rsi", Kind: NodeRSI},
			{ID: "agg", Kind: NodeAggregation},
			{ID: "out", Kind: NodeOutput},
		},
		[]Edge{
			{From: "sym", To: "sma"},
			{From: "sym", To: "rsi"},
			{From: "sma", To: "agg"},
			{From: "rsi", To: "agg"},
			{From: "agg", To: "out"},
		},
		map[string]interface{}{
			"sym": SymbolNodeConfig{SymbolID: 7, Ticker: "BTCUSDT", Exchange: "binance", Timeframes: []string{"1h"}},
			"out": OutputNodeConfig{Channels: []string{"log"}},
		},
	)
}

func TestLoadGraphAndValidate(t *testing.T) {
	g, err := LoadGraph(pipelineWorkflow(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := g.StartNodes(); !reflect.DeepEqual(got, []string{"sym"}) {
		t.Fatalf("start nodes: %v", got)
	}

	order := g.TopoOrder()
	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	for _, e := range g.Edges {
		if pos[e.From] >= pos[e.To] {
			t.Fatalf("topo order violates edge %s -> %s: %v", e.From, e.To, order)
		}
	}

	up := g.Upstream("out")
	if !reflect.DeepEqual(up, []string{"agg", "rsi", "sma", "sym"}) {
		t.Fatalf("upstream of out: %v", up)
	}
}

func TestValidateRejectsCycle(t *testing.T) {
	wf := rawWorkflow(t,
		[]Node{{ID: "a", Kind: NodeSMA}, {ID: "b", Kind: NodeRSI}},
		[]Edge{{From: "a", To: "b"}, {From: "b", To: "a"}},
		nil,
	)
	g, err := LoadGraph(wf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := g.Validate(); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestValidateRejectsDanglingEdge(t *testing.T) {
	wf := rawWorkflow(t,
		[]Node{{ID: "a", Kind: NodeSMA}},
		[]Edge{{From: "a", To: "ghost"}},
		nil,
	)
	g, err := LoadGraph(wf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := g.Validate(); err == nil || !strings.Contains(err.Error(), "missing node") {
		t.Fatalf("expected dangling edge error, got %v", err)
	}
}

func TestValidateRejectsUnknownNodeType(t *testing.T) {
	wf := rawWorkflow(t, []Node{{ID: "a", Kind: "teleport"}}, nil, nil)
	g, err := LoadGraph(wf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := g.Validate(); err == nil || !strings.Contains(err.Error(), "unknown type") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestLoadGraphRejectsDuplicateNodeID(t *testing.T) {
	wf := rawWorkflow(t, []Node{{ID: "a", Kind: NodeSMA}, {ID: "a", Kind: NodeRSI}}, nil, nil)
	if _, err := LoadGraph(wf); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestSymbolForResolvesNearestSymbolNode(t *testing.T) {
	g, err := LoadGraph(pipelineWorkflow(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg, err := g.SymbolFor("agg")
	if err != nil {
		t.Fatalf("symbol for agg: %v", err)
	}
	if cfg.SymbolID != 7 || cfg.Ticker != "BTCUSDT" {
		t.Fatalf("unexpected symbol config: %+v", cfg)
	}
	if _, err := g.SymbolFor("sym"); err == nil {
		t.Fatalf("symbol node has no upstream symbol, expected error")
	}
}
