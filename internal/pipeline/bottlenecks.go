package pipeline

import (
	"sort"

	"github.com/pathtrace/flowgraph/internal/graph"
)

// passBottlenecks applies the anti-pattern rules to every node in
// insertion order, then stable-sorts by severity. One node can trip
// several rules; each match is a separate finding. Finally critical
// paths pick up the findings on their member nodes.
func (p *Pipeline) passBottlenecks() {
	th := p.cfg.Thresholds
	var found []*graph.Bottleneck

	for _, n := range p.Graph.Nodes() {
		perf := n.Performance

		if perf.Loops > 0 && perf.DBCalls > 0 {
			found = append(found, &graph.Bottleneck{
				NodeID:          n.ID,
				Kind:            graph.BottleneckNPlusOne,
				Severity:        graph.SeverityCritical,
				ImpactedCallers: n.CalledBy,
				Suggestion:      "batch the queries outside the loop or use one query with an IN clause",
			})
		}
		if perf.DBCalls > th.MaxDBCalls {
			found = append(found, &graph.Bottleneck{
				NodeID:          n.ID,
				Kind:            graph.BottleneckMultipleDB,
				Severity:        graph.SeverityMajor,
				ImpactedCallers: n.CalledBy,
				Suggestion:      "combine the queries or move them behind a single data-access call",
			})
		}
		if perf.Loops > 0 && (perf.APICalls > 0 || perf.DBCalls > 0) && perf.AsyncOps == 0 {
			found = append(found, &graph.Bottleneck{
				NodeID:          n.ID,
				Kind:            graph.BottleneckSyncIO,
				Severity:        graph.SeverityCritical,
				ImpactedCallers: n.CalledBy,
				Suggestion:      "run the I/O concurrently, e.g. Promise.all over the collection",
			})
		}
		if perf.Complexity > th.HeavyComplexity {
			found = append(found, &graph.Bottleneck{
				NodeID:          n.ID,
				Kind:            graph.BottleneckHeavyCompute,
				Severity:        graph.SeverityMinor,
				ImpactedCallers: n.CalledBy,
				Suggestion:      "split the function or hoist invariant work out of the branches",
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return graph.SeverityRank(found[i].Severity) < graph.SeverityRank(found[j].Severity)
	})
	p.Graph.Bottlenecks = found

	p.attachToPaths()
}

// attachToPaths backfills each critical path with the findings on its nodes.
func (p *Pipeline) attachToPaths() {
	flagged := make(map[string]bool)
	for _, b := range p.Graph.Bottlenecks {
		flagged[b.NodeID] = true
	}
	for _, cp := range p.Graph.CriticalPaths {
		seen := make(map[string]bool)
		for _, id := range cp.NodeIDs {
			if flagged[id] && !seen[id] {
				seen[id] = true
				cp.BottleneckIDs = append(cp.BottleneckIDs, id)
			}
		}
	}
}
