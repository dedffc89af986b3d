package pipeline

import (
	"sort"

	"github.com/pathtrace/flowgraph/internal/graph"
)

// passCriticalPaths finds, for each entry point, the deepest acyclic call
// chain starting there and keeps the heaviest ten overall. Entry points
// are nodes nothing calls, in insertion order, so equal-weight paths rank
// deterministically.
func (p *Pipeline) passCriticalPaths() {
	var paths []*graph.CriticalPath
	for _, n := range p.Graph.Nodes() {
		if len(n.CalledBy) > 0 {
			continue
		}
		if cp := p.deepestPathFrom(n); cp != nil {
			paths = append(paths, cp)
		}
	}

	sort.SliceStable(paths, func(i, j int) bool {
		return paths[i].TotalComplexity > paths[j].TotalComplexity
	})
	if len(paths) > 10 {
		paths = paths[:10]
	}
	p.Graph.CriticalPaths = paths
}

// dfsFrame is one level of the explicit depth-first stack.
type dfsFrame struct {
	id   string
	next int // index into the node's Calls not yet explored
}

// deepestPathFrom runs an iterative depth-first search from one entry.
// onPath blocks revisiting a node within the current chain, so cycles
// terminate; a node may still appear on chains from other entries.
func (p *Pipeline) deepestPathFrom(entry *graph.Node) *graph.CriticalPath {
	stack := []dfsFrame{{id: entry.ID}}
	onPath := map[string]bool{entry.ID: true}
	current := []string{entry.ID}

	var best []string
	record := func() {
		if len(current) > len(best) {
			best = append(best[:0:0], current...)
		}
	}
	record()

	for len(stack) > 0 {
		frame := &stack[len(stack)-1]
		node := p.Graph.Node(frame.id)

		advanced := false
		for frame.next < len(node.Calls) {
			childID := node.Calls[frame.next]
			frame.next++
			if onPath[childID] || p.Graph.Node(childID) == nil {
				continue
			}
			onPath[childID] = true
			current = append(current, childID)
			stack = append(stack, dfsFrame{id: childID})
			record()
			advanced = true
			break
		}
		if advanced {
			continue
		}

		delete(onPath, frame.id)
		current = current[:len(current)-1]
		stack = stack[:len(stack)-1]
	}

	if len(best) == 0 {
		return nil
	}
	return p.describePath(best)
}

func (p *Pipeline) describePath(ids []string) *graph.CriticalPath {
	cp := &graph.CriticalPath{NodeIDs: ids}

	unhandled := false
	for _, id := range ids {
		n := p.Graph.Node(id)
		cp.TotalComplexity += n.Performance.Complexity
		cp.EstimatedLatencyMs += n.Performance.EstimatedLatencyMs
		if n.HasUnhandledError() {
			unhandled = true
		}
	}

	first := p.Graph.Node(ids[0])
	last := p.Graph.Node(ids[len(ids)-1])
	if len(ids) == 1 {
		cp.Name = first.Name
	} else {
		cp.Name = first.Name + " -> " + last.Name
	}

	switch {
	case unhandled:
		cp.ErrorRisk = graph.RiskHigh
	case cp.TotalComplexity > p.cfg.Thresholds.PathComplexity:
		cp.ErrorRisk = graph.RiskMedium
	default:
		cp.ErrorRisk = graph.RiskLow
	}
	return cp
}
