package pipeline

import (
	"log/slog"

	"github.com/pathtrace/flowgraph/internal/graph"
)

// passLink resolves the raw call sites recorded during the build pass into
// edges and Calls/CalledBy adjacency. Unresolvable callees are dropped
// without logging noise; only the aggregate miss count is reported.
func (p *Pipeline) passLink() {
	seen := make(map[[2]string]bool)
	var misses int

	for _, from := range p.Graph.Nodes() {
		for _, site := range p.calls[from.ID] {
			toID, fuzzy := p.registry.Resolve(site.Callee, from.File)
			if toID == "" || toID == from.ID {
				if toID == "" {
					misses++
				}
				continue
			}
			key := [2]string{from.ID, toID}
			if seen[key] {
				continue
			}
			seen[key] = true

			to := p.Graph.Node(toID)
			from.Calls = append(from.Calls, toID)
			to.CalledBy = append(to.CalledBy, from.ID)

			kind := graph.EdgeSync
			if from.Performance.AsyncOps > 0 {
				kind = graph.EdgeAsync
			}
			p.Graph.Edges = append(p.Graph.Edges, &graph.Edge{
				From:      from.ID,
				To:        toID,
				Kind:      kind,
				DataFlow:  outputNames(to),
				ErrorFlow: calleeThrowsUnhandled(to),
				Fuzzy:     fuzzy,
			})
		}
	}

	slog.Debug("pass.link.done", "edges", len(p.Graph.Edges), "unresolved", misses)
}

// outputNames lists what a callee hands back to its caller.
func outputNames(n *graph.Node) []string {
	if len(n.Outputs) == 0 {
		return nil
	}
	names := make([]string, 0, len(n.Outputs))
	for _, out := range n.Outputs {
		names = append(names, out.Name)
	}
	return names
}

// calleeThrowsUnhandled reports whether an edge can carry an error upward:
// the callee throws and no catch of its own stops it.
func calleeThrowsUnhandled(n *graph.Node) bool {
	for _, e := range n.Errors {
		if e.Kind == graph.ErrorThrow && !e.Handled {
			return true
		}
	}
	return false
}

// passEstimate computes per-node latency from the configured weights.
func (p *Pipeline) passEstimate() {
	w := p.cfg.Weights
	for _, n := range p.Graph.Nodes() {
		perf := &n.Performance
		perf.EstimatedLatencyMs = perf.DBCalls*w.DBCallMs +
			perf.APICalls*w.APICallMs +
			perf.Loops*w.LoopMs +
			perf.Complexity*w.ComplexityMs
	}
}
