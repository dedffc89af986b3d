package pipeline

import (
	"context"
	"testing"

	"github.com/pathtrace/flowgraph/internal/graph"
)

func TestLinkDedupesRepeatedCalls(t *testing.T) {
	g := analyze(t, map[string]string{
		"repeat.js": `
function target() { return 1; }
function caller() {
  target();
  target();
  target();
}
`,
	})

	if len(g.Edges) != 1 {
		t.Fatalf("edges = %d, want 1 (repeated calls collapse)", len(g.Edges))
	}
	caller := findNode(t, g, "caller")
	if len(caller.Calls) != 1 {
		t.Errorf("caller.Calls = %v, want one entry", caller.Calls)
	}
}

func TestLinkDropsUnresolvedCallees(t *testing.T) {
	g := analyze(t, map[string]string{
		"ext.js": `
function local() {
  externalLibraryCall();
  anotherUnknown();
}
`,
	})

	if len(g.Edges) != 0 {
		t.Errorf("edges = %d, want 0 for unresolvable callees", len(g.Edges))
	}
	local := findNode(t, g, "local")
	if len(local.Calls) != 0 {
		t.Errorf("local.Calls = %v, want empty", local.Calls)
	}
}

func TestLinkMarksErrorFlow(t *testing.T) {
	g := analyze(t, map[string]string{
		"flow.js": `
function risky() { throw new Error("x"); }
function caller() { risky(); }
`,
	})

	if len(g.Edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(g.Edges))
	}
	if !g.Edges[0].ErrorFlow {
		t.Error("edge to a throwing callee should carry errorFlow")
	}
}

func TestLinkAsyncCallerTagsAllEdgesAsync(t *testing.T) {
	g := analyze(t, map[string]string{
		"mix.js": `
async function first() { return 1; }
function second() { return 2; }
async function caller() {
  await first();
  second();
}
function plain() { second(); }
`,
	})

	caller := findNode(t, g, "caller")
	plain := findNode(t, g, "plain")
	for _, e := range g.Edges {
		switch e.From {
		case caller.ID:
			if e.Kind != graph.EdgeAsync {
				t.Errorf("edge %s->%s kind = %s, want async (caller asyncOps=%d)",
					e.From, e.To, e.Kind, caller.Performance.AsyncOps)
			}
		case plain.ID:
			if e.Kind != graph.EdgeSync {
				t.Errorf("edge %s->%s kind = %s, want sync", e.From, e.To, e.Kind)
			}
		}
	}
}

func TestLinkSkipsSelfCalls(t *testing.T) {
	g := analyze(t, map[string]string{
		"rec.js": "function fib(n) { if (n < 2) return n; return fib(n - 1) + fib(n - 2); }\n",
	})
	if len(g.Edges) != 0 {
		t.Errorf("edges = %d, want 0 for direct recursion", len(g.Edges))
	}
}

func TestEstimateLatencyWeights(t *testing.T) {
	p := New(context.Background(), nil, "")
	n := &graph.Node{
		ID: "n", Name: "n", File: "n.js",
		Performance: graph.Performance{
			Complexity: 4,
			DBCalls:    2,
			APICalls:   1,
			Loops:      3,
		},
	}
	p.Graph.AddNode(n)
	p.passEstimate()

	// 2*50 + 1*100 + 3*10 + 4*2
	if n.Performance.EstimatedLatencyMs != 238 {
		t.Errorf("latency = %d, want 238", n.Performance.EstimatedLatencyMs)
	}
}

func TestEstimateUsesConfiguredWeights(t *testing.T) {
	p := New(context.Background(), nil, "")
	p.cfg.Weights.DBCallMs = 10
	p.cfg.Weights.ComplexityMs = 0
	n := &graph.Node{
		ID: "n", Name: "n", File: "n.js",
		Performance: graph.Performance{Complexity: 5, DBCalls: 3},
	}
	p.Graph.AddNode(n)
	p.passEstimate()

	if n.Performance.EstimatedLatencyMs != 30 {
		t.Errorf("latency = %d, want 30", n.Performance.EstimatedLatencyMs)
	}
}
