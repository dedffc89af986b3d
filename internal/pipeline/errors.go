package pipeline

import (
	"github.com/pathtrace/flowgraph/internal/graph"
)

// passErrors traces error propagation upward through the call graph.
// Every node with an unhandled throw seeds a breadth-first walk over
// CalledBy; each caller reached without a catch of its own gains a
// propagate site and the walk continues from it. A caller with a catch
// absorbs the error and the walk stops there. Visited sets make cycles
// terminate.
func (p *Pipeline) passErrors() {
	for _, seed := range p.Graph.Nodes() {
		if !seedThrows(seed) {
			continue
		}
		p.traceUpward(seed)
	}
}

func seedThrows(n *graph.Node) bool {
	for _, e := range n.Errors {
		if e.Kind == graph.ErrorThrow && !e.Handled {
			return true
		}
	}
	return false
}

func (p *Pipeline) traceUpward(seed *graph.Node) {
	visited := map[string]bool{seed.ID: true}
	queue := []string{seed.ID}

	for len(queue) > 0 {
		curID := queue[0]
		queue = queue[1:]
		cur := p.Graph.Node(curID)
		if cur == nil {
			continue
		}
		for _, callerID := range cur.CalledBy {
			if visited[callerID] {
				continue
			}
			visited[callerID] = true
			caller := p.Graph.Node(callerID)
			if caller == nil {
				continue
			}
			if caller.HasCatch() {
				// Absorbed here. The catch site already marks it handled.
				continue
			}
			caller.Errors = append(caller.Errors, graph.ErrorSite{
				Kind:         graph.ErrorPropagate,
				Handled:      false,
				PropagatesTo: []string{curID},
			})
			queue = append(queue, callerID)
		}
	}
}
