package validate

import (
	"fmt"

	"github.com/pathtrace/flowgraph/internal/export"
	"github.com/pathtrace/flowgraph/internal/graph"
)

// Check is one named consistency rule over a report.
type Check struct {
	Name string
	Fn   func(*export.Report) error
}

// Result summarizes a validation run.
type Result struct {
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures,omitempty"`
}

// Checks is the rule list applied by Run, in order.
var Checks = []Check{
	{"unique node ids", uniqueNodeIDs},
	{"edge endpoints exist", edgeEndpointsExist},
	{"adjacency matches edges", adjacencyMatchesEdges},
	{"cohesion within bounds", cohesionWithinBounds},
	{"bottleneck severity order", bottleneckSeverityOrder},
	{"critical path nodes exist", criticalPathNodesExist},
}

// Run applies every check and collects failures; one failing check never
// hides the rest.
func Run(r *export.Report) Result {
	var result Result
	for _, c := range Checks {
		if err := c.Fn(r); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", c.Name, err))
			continue
		}
		result.Passed++
	}
	return result
}

func uniqueNodeIDs(r *export.Report) error {
	seen := make(map[string]string, len(r.Nodes))
	for _, n := range r.Nodes {
		if prev, ok := seen[n.ID]; ok {
			return fmt.Errorf("id %q used by %s and %s", n.ID, prev, n.File)
		}
		seen[n.ID] = n.File
	}
	return nil
}

func nodeSet(r *export.Report) map[string]bool {
	ids := make(map[string]bool, len(r.Nodes))
	for _, n := range r.Nodes {
		ids[n.ID] = true
	}
	return ids
}

func edgeEndpointsExist(r *export.Report) error {
	ids := nodeSet(r)
	for _, e := range r.Edges {
		if !ids[e.From] {
			return fmt.Errorf("edge source %q not in node set", e.From)
		}
		if !ids[e.To] {
			return fmt.Errorf("edge target %q not in node set", e.To)
		}
	}
	return nil
}

func adjacencyMatchesEdges(r *export.Report) error {
	edges := make(map[[2]string]bool, len(r.Edges))
	for _, e := range r.Edges {
		edges[[2]string{e.From, e.To}] = true
	}
	for _, n := range r.Nodes {
		for _, callee := range n.Calls {
			if !edges[[2]string{n.ID, callee}] {
				return fmt.Errorf("%s lists call to %s with no matching edge", n.ID, callee)
			}
		}
	}
	return nil
}

func cohesionWithinBounds(r *export.Report) error {
	for _, c := range r.Clusters {
		if c.Cohesion < 0 || c.Cohesion > 1 {
			return fmt.Errorf("cluster %q cohesion %f out of [0,1]", c.Name, c.Cohesion)
		}
	}
	return nil
}

func bottleneckSeverityOrder(r *export.Report) error {
	prev := -1
	for i, b := range r.Bottlenecks {
		rank := graph.SeverityRank(b.Severity)
		if rank < prev {
			return fmt.Errorf("finding %d (%s) ranked above a less severe predecessor", i, b.Severity)
		}
		prev = rank
	}
	return nil
}

func criticalPathNodesExist(r *export.Report) error {
	ids := nodeSet(r)
	for _, cp := range r.CriticalPaths {
		seen := make(map[string]bool, len(cp.NodeIDs))
		for _, id := range cp.NodeIDs {
			if !ids[id] {
				return fmt.Errorf("path %q references unknown node %q", cp.Name, id)
			}
			if seen[id] {
				return fmt.Errorf("path %q repeats node %q", cp.Name, id)
			}
			seen[id] = true
		}
	}
	return nil
}
