package workflow

import (
	"encoding/json"
	"fmt"
	"sort"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
)

// NodeKind is the executable node type of a workflow graph.
type NodeKind string

const (
	NodeSymbol      NodeKind = "symbol"
	NodeSMA         NodeKind = "sma"
	NodeRSI         NodeKind = "rsi"
	NodeMACD        NodeKind = "macd"
	NodeMACDMulti   NodeKind = "macd-multi"
	NodeBollinger   NodeKind = "bollinger"
	NodeAggregation NodeKind = "aggregation"
	NodeOutput      NodeKind = "output"
)

func (k NodeKind) valid() bool {
	switch k {
	case NodeSymbol, NodeSMA, NodeRSI, NodeMACD, NodeMACDMulti, NodeBollinger, NodeAggregation, NodeOutput:
		return true
	}
	return false
}

// IsIndicator reports whether the node runs a strategy evaluation.
func (k NodeKind) IsIndicator() bool {
	switch k {
	case NodeSMA, NodeRSI, NodeMACD, NodeMACDMulti, NodeBollinger:
		return true
	}
	return false
}

// StrategyKind maps an indicator node kind to the registered strategy name
// it evaluates.
func (k NodeKind) StrategyKind() string {
	switch k {
	case NodeSMA:
		return "sma"
	case NodeRSI:
		return "rsi"
	case NodeMACD, NodeMACDMulti:
		return "macd"
	case NodeBollinger:
		return "bollinger"
	}
	return ""
}

type Node struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"type"`
}

type Edge struct {
	From     string `json:"from"`
	FromPort string `json:"from_port,omitempty"`
	To       string `json:"to"`
	ToPort   string `json:"to_port,omitempty"`
}

// Graph is the decoded, validated form of a stored workflow record.
type Graph struct {
	WorkflowID string
	Name       string
	Nodes      map[string]Node
	Edges      []Edge
	Properties map[string]json.RawMessage

	// adjacency derived once at load time
	outgoing map[string][]string
	incoming map[string][]string
}

// SymbolNodeConfig selects the instrument and the timeframes downstream
// indicator nodes evaluate on.
type SymbolNodeConfig struct {
	SymbolID   int64    `json:"symbol_id"`
	Ticker     string   `json:"ticker"`
	Exchange   string   `json:"exchange"`
	Timeframes []string `json:"timeframes,omitempty"`
}

// Ref converts the node config into the domain symbol reference.
func (c SymbolNodeConfig) Ref() models.SymbolRef {
	return models.SymbolRef{ID: c.SymbolID, Ticker: c.Ticker, Exchange: c.Exchange}
}

// IndicatorNodeConfig tunes a single strategy node. Empty Timeframes means
// inherit from the upstream symbol node.
type IndicatorNodeConfig struct {
	Strategy   string             `json:"strategy,omitempty"`
	Timeframes []string           `json:"timeframes,omitempty"`
	Params     map[string]float64 `json:"params,omitempty"`
}

// AggregationNodeConfig optionally overrides pieces of the engine config
// for this node only.
type AggregationNodeConfig struct {
	MultiTimeframe      bool               `json:"multi_timeframe"`
	Method              string             `json:"method,omitempty"`
	MinStrategies       int                `json:"min_strategies,omitempty"`
	ConsensusThreshold  float64            `json:"consensus_threshold,omitempty"`
	ConfidenceThreshold float64            `json:"confidence_threshold,omitempty"`
	ConflictPenalty     *float64           `json:"conflict_penalty,omitempty"`
	CustomWeights       map[string]float64 `json:"custom_weights,omitempty"`
}

// OutputNodeConfig names the delivery channels a final signal fans out to.
type OutputNodeConfig struct {
	Channels []string `json:"channels"`
}

// LoadGraph decodes a stored workflow record into an executable graph.
// Structural problems are reported by Validate, not here; LoadGraph only
// fails on undecodable JSON.
func LoadGraph(wf *models.Workflow) (*Graph, error) {
	var nodes []Node
	if len(wf.Nodes) > 0 {
		if err := json.Unmarshal(wf.Nodes, &nodes); err != nil {
			return nil, fmt.Errorf("decode nodes: %w", err)
		}
	}
	var edges []Edge
	if len(wf.Edges) > 0 {
		if err := json.Unmarshal(wf.Edges, &edges); err != nil {
			return nil, fmt.Errorf("decode edges: %w", err)
		}
	}
	props := map[string]json.RawMessage{}
	if len(wf.Properties) > 0 {
		if err := json.Unmarshal(wf.Properties, &props); err != nil {
			return nil, fmt.Errorf("decode properties: %w", err)
		}
	}

	g := &Graph{
		WorkflowID: wf.ID,
		Name:       wf.Name,
		Nodes:      make(map[string]Node, len(nodes)),
		Edges:      edges,
		Properties: props,
		outgoing:   make(map[string][]string),
		incoming:   make(map[string][]string),
	}
	for _, n := range nodes {
		if _, dup := g.Nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id: %s", n.ID)
		}
		g.Nodes[n.ID] = n
	}
	for _, e := range edges {
		g.outgoing[e.From] = append(g.outgoing[e.From], e.To)
		g.incoming[e.To] = append(g.incoming[e.To], e.From)
	}
	for id := range g.outgoing {
		sort.Strings(g.outgoing[id])
	}
	for id := range g.incoming {
		sort.Strings(g.incoming[id])
	}
	return g, nil
}

// Validate checks graph integrity before any node runs. A workflow failing
// here produces a failed run with no node results.
func (g *Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return fmt.Errorf("workflow has no nodes")
	}
	for id, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node with empty id")
		}
		if !n.Kind.valid() {
			return fmt.Errorf("node %s: unknown type %q", id, n.Kind)
		}
	}
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			return fmt.Errorf("edge references missing node %q", e.From)
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return fmt.Errorf("edge references missing node %q", e.To)
		}
	}
	if cycle := g.findCycle(); len(cycle) > 0 {
		return fmt.Errorf("workflow graph has a cycle: %v", cycle)
	}
	if len(g.StartNodes()) == 0 {
		return fmt.Errorf("workflow has no start node")
	}
	return nil
}

const (
	colorUnseen = iota
	colorActive
	colorDone
)

func (g *Graph) findCycle() []string {
	color := make(map[string]int, len(g.Nodes))
	var cycle []string

	var visit func(id string, path []string) bool
	visit = func(id string, path []string) bool {
		color[id] = colorActive
		path = append(path, id)
		for _, next := range g.outgoing[id] {
			switch color[next] {
			case colorActive:
				cycle = append(path, next)
				return true
			case colorUnseen:
				if visit(next, path) {
					return true
				}
			}
		}
		color[id] = colorDone
		return false
	}

	for _, id := range g.sortedIDs() {
		if color[id] == colorUnseen && visit(id, nil) {
			return cycle
		}
	}
	return nil
}

// StartNodes returns node ids with no incoming edges, sorted.
func (g *Graph) StartNodes() []string {
	out := make([]string, 0)
	for id := range g.Nodes {
		if len(g.incoming[id]) == 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// TopoOrder returns every node id in dependency order. Calling it on a
// cyclic graph is a programming error; Validate runs first.
func (g *Graph) TopoOrder() []string {
	indegree := make(map[string]int, len(g.Nodes))
	for id := range g.Nodes {
		indegree[id] = len(g.incoming[id])
	}

	queue := g.StartNodes()
	order := make([]string, 0, len(g.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		ready := make([]string, 0)
		for _, next := range g.outgoing[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}
	return order
}

// Upstream returns the transitive ancestor set of a node, sorted.
func (g *Graph) Upstream(id string) []string {
	seen := map[string]bool{}
	var walk func(string)
	walk = func(cur string) {
		for _, prev := range g.incoming[cur] {
			if !seen[prev] {
				seen[prev] = true
				walk(prev)
			}
		}
	}
	walk(id)

	out := make([]string, 0, len(seen))
	for anc := range seen {
		out = append(out, anc)
	}
	sort.Strings(out)
	return out
}

// DecodeConfig unmarshals a node's stored properties into dest. A node
// without stored properties leaves dest at its zero value.
func (g *Graph) DecodeConfig(id string, dest interface{}) error {
	raw, ok := g.Properties[id]
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("node %s properties: %w", id, err)
	}
	return nil
}

// SymbolFor resolves the symbol configuration feeding a node by walking its
// ancestors for the nearest symbol node.
func (g *Graph) SymbolFor(id string) (SymbolNodeConfig, error) {
	for _, anc := range g.Upstream(id) {
		if g.Nodes[anc].Kind != NodeSymbol {
			continue
		}
		var cfg SymbolNodeConfig
		if err := g.DecodeConfig(anc, &cfg); err != nil {
			return SymbolNodeConfig{}, err
		}
		return cfg, nil
	}
	return SymbolNodeConfig{}, fmt.Errorf("node %s has no upstream symbol node", id)
}

// Timeframes resolves the timeframe list an indicator node evaluates on:
// the node's own override first, the symbol node's list second, the
// default timeframe last.
func (g *Graph) Timeframes(id string, nodeCfg IndicatorNodeConfig, symCfg SymbolNodeConfig) ([]domrepo.Timeframe, error) {
	raw := nodeCfg.Timeframes
	if len(raw) == 0 {
		raw = symCfg.Timeframes
	}
	if len(raw) == 0 {
		return []domrepo.Timeframe{domrepo.DefaultTimeframe()}, nil
	}

	out := make([]domrepo.Timeframe, 0, len(raw))
	for _, s := range raw {
		tf := domrepo.Timeframe(s)
		if !domrepo.IsValidTimeframe(tf) {
			return nil, fmt.Errorf("node %s: unknown timeframe %q", id, s)
		}
		out = append(out, tf)
	}
	return out, nil
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
