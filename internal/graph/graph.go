package graph

// NodeKind classifies a callable unit by the role its file plays.
type NodeKind string

const (
	KindFunction  NodeKind = "function"
	KindComponent NodeKind = "component"
	KindAPI       NodeKind = "api"
	KindDatabase  NodeKind = "database"
	KindExternal  NodeKind = "external"
)

// EdgeKind tags the directionality of a call relationship.
type EdgeKind string

const (
	EdgeSync     EdgeKind = "sync"
	EdgeAsync    EdgeKind = "async"
	EdgeCallback EdgeKind = "callback"
	EdgeEvent    EdgeKind = "event"
)

// ErrorKind classifies an error site or derived error exposure.
type ErrorKind string

const (
	ErrorThrow     ErrorKind = "throw"
	ErrorCatch     ErrorKind = "catch"
	ErrorPropagate ErrorKind = "propagate"
	ErrorUnhandled ErrorKind = "unhandled"
)

// ClusterKind classifies a cluster by its path tokens.
type ClusterKind string

const (
	ClusterFeature ClusterKind = "feature"
	ClusterLayer   ClusterKind = "layer"
	ClusterModule  ClusterKind = "module"
)

// Risk rates a critical path's exposure to errors.
type Risk string

const (
	RiskHigh   Risk = "high"
	RiskMedium Risk = "medium"
	RiskLow    Risk = "low"
)

// BottleneckKind names a detected performance anti-pattern.
type BottleneckKind string

const (
	BottleneckNPlusOne     BottleneckKind = "n+1"
	BottleneckSyncIO       BottleneckKind = "synchronous-io"
	BottleneckHeavyCompute BottleneckKind = "heavy-computation"
	BottleneckMultipleDB   BottleneckKind = "multiple-db-calls"
)

// Severity ranks a bottleneck finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// SeverityRank orders severities most severe first. Unknown severities sort last.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMajor:
		return 1
	case SeverityMinor:
		return 2
	}
	return 3
}

// Param describes one declared input or output of a node.
type Param struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declaredType,omitempty"`
	Required     bool   `json:"required"`
	Validated    bool   `json:"validated"`
}

// ErrorSite records a throw/catch site or a derived propagation entry.
type ErrorSite struct {
	Kind    ErrorKind `json:"kind"`
	Handled bool      `json:"handled"`
	// PropagatesTo names the callee whose error reaches this node.
	// Set only for propagate entries.
	PropagatesTo []string `json:"propagatesTo,omitempty"`
}

// Performance holds the per-node heuristic counters. Complexity starts at 1
// for a straight-line body.
type Performance struct {
	Complexity         int `json:"complexity"`
	DBCalls            int `json:"dbCalls"`
	APICalls           int `json:"apiCalls"`
	Loops              int `json:"loops"`
	AsyncOps           int `json:"asyncOps"`
	EstimatedLatencyMs int `json:"estimatedLatencyMs,omitempty"`
}

// Node is one callable unit of source code.
type Node struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Kind NodeKind `json:"kind"`
	File string   `json:"file"`
	Line int      `json:"line"`

	Inputs  []Param `json:"inputs,omitempty"`
	Outputs []Param `json:"outputs,omitempty"`

	Calls    []string `json:"calls,omitempty"`
	CalledBy []string `json:"calledBy,omitempty"`

	Errors      []ErrorSite `json:"errors,omitempty"`
	Performance Performance `json:"performance"`
}

// HasUnhandledError reports whether any error reaches or originates in this
// node without a handler.
func (n *Node) HasUnhandledError() bool {
	for _, e := range n.Errors {
		if !e.Handled && e.Kind != ErrorCatch {
			return true
		}
	}
	return false
}

// HasCatch reports whether the node contains a catch site of its own.
func (n *Node) HasCatch() bool {
	for _, e := range n.Errors {
		if e.Kind == ErrorCatch {
			return true
		}
	}
	return false
}

// Edge is a directed call relationship. Both endpoints always reference
// node ids present in the graph.
type Edge struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Kind      EdgeKind `json:"kind"`
	DataFlow  []string `json:"dataFlow,omitempty"`
	ErrorFlow bool     `json:"errorFlow"`
	// Fuzzy marks edges resolved by project-wide name fallback rather than
	// the scoped (file, name) table.
	Fuzzy bool `json:"fuzzy,omitempty"`
}

// Cluster groups nodes by source-path locality.
type Cluster struct {
	Name                 string      `json:"name"`
	Kind                 ClusterKind `json:"kind"`
	NodeIDs              []string    `json:"nodeIds"`
	ExternalDependencies []string    `json:"externalDependencies,omitempty"`
	Cohesion             float64     `json:"cohesion"`
}

// CriticalPath is the deepest call chain from one entry point.
type CriticalPath struct {
	Name               string   `json:"name"`
	NodeIDs            []string `json:"nodeIds"`
	TotalComplexity    int      `json:"totalComplexity"`
	EstimatedLatencyMs int      `json:"estimatedLatencyMs"`
	ErrorRisk          Risk     `json:"errorRisk"`
	BottleneckIDs      []string `json:"bottleneckIds,omitempty"`
}

// Bottleneck is one rule finding attached to a node.
type Bottleneck struct {
	NodeID          string         `json:"nodeId"`
	Kind            BottleneckKind `json:"kind"`
	Severity        Severity       `json:"severity"`
	ImpactedCallers []string       `json:"impactedCallers,omitempty"`
	Suggestion      string         `json:"suggestion"`
}

// Graph is the in-memory result of one analysis run. It is built by the
// pipeline, read by exporters, and discarded; nothing is shared between runs.
type Graph struct {
	nodes map[string]*Node
	order []string // insertion order, the basis of every stable-sort guarantee

	Edges         []*Edge
	Clusters      []*Cluster
	CriticalPaths []*CriticalPath
	Bottlenecks   []*Bottleneck
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// AddNode inserts a node, preserving insertion order. Re-adding an existing
// id is a no-op so ids stay unique within a run.
func (g *Graph) AddNode(n *Node) {
	if _, ok := g.nodes[n.ID]; ok {
		return
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.order)
}
