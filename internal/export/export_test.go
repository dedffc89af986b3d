package export

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/pathtrace/flowgraph/internal/graph"
)

func sampleGraph() *graph.Graph {
	g := graph.New()
	g.AddNode(&graph.Node{
		ID: "handler-1", Name: "handler", Kind: graph.KindAPI,
		File: "src/api/users.js", Line: 3,
		Calls:       []string{"query-2"},
		Performance: graph.Performance{Complexity: 2, DBCalls: 1, EstimatedLatencyMs: 54},
	})
	g.AddNode(&graph.Node{
		ID: "query-2", Name: "query", Kind: graph.KindDatabase,
		File: "src/db/client.js", Line: 8,
		CalledBy:    []string{"handler-1"},
		Errors:      []graph.ErrorSite{{Kind: graph.ErrorThrow, Handled: false}},
		Performance: graph.Performance{Complexity: 1, DBCalls: 1, EstimatedLatencyMs: 52},
	})
	g.Edges = []*graph.Edge{
		{From: "handler-1", To: "query-2", Kind: graph.EdgeAsync, ErrorFlow: true},
	}
	g.Clusters = []*graph.Cluster{
		{Name: "src/api", Kind: graph.ClusterLayer, NodeIDs: []string{"handler-1"}, Cohesion: 0},
		{Name: "src/db", Kind: graph.ClusterLayer, NodeIDs: []string{"query-2"}, Cohesion: 0},
	}
	g.CriticalPaths = []*graph.CriticalPath{
		{Name: "handler -> query", NodeIDs: []string{"handler-1", "query-2"},
			TotalComplexity: 3, EstimatedLatencyMs: 106, ErrorRisk: graph.RiskHigh},
	}
	g.Bottlenecks = []*graph.Bottleneck{
		{NodeID: "query-2", Kind: graph.BottleneckMultipleDB, Severity: graph.SeverityMajor, Suggestion: "combine"},
	}
	return g
}

func TestReportRoundTrip(t *testing.T) {
	g := sampleGraph()
	path := filepath.Join(t.TempDir(), "graph.json")

	if err := WriteJSON(BuildReport(g, "/repo"), path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	loaded, err := LoadReport(path)
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}

	if loaded.RepoPath != "/repo" {
		t.Errorf("repoPath = %q", loaded.RepoPath)
	}
	if len(loaded.Nodes) != 2 || len(loaded.Edges) != 1 {
		t.Fatalf("nodes=%d edges=%d", len(loaded.Nodes), len(loaded.Edges))
	}
	if loaded.Nodes[0].ID != "handler-1" {
		t.Errorf("node order not preserved: %s", loaded.Nodes[0].ID)
	}
	if loaded.CriticalPaths[0].ErrorRisk != graph.RiskHigh {
		t.Errorf("errorRisk = %s", loaded.CriticalPaths[0].ErrorRisk)
	}
}

func TestLoadReportMissingFile(t *testing.T) {
	if _, err := LoadReport(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing report")
	}
}

func TestBuildDataset(t *testing.T) {
	ds := BuildDataset(sampleGraph())

	if len(ds.Nodes) != 2 || len(ds.Links) != 1 {
		t.Fatalf("nodes=%d links=%d", len(ds.Nodes), len(ds.Links))
	}
	if ds.Nodes[1].ErrorCount != 1 {
		t.Errorf("query errorCount = %d, want 1", ds.Nodes[1].ErrorCount)
	}
	if !ds.Links[0].HasErrors {
		t.Error("link should carry hasErrors")
	}
	if ds.Links[0].Source != "handler-1" || ds.Links[0].Target != "query-2" {
		t.Errorf("link = %+v", ds.Links[0])
	}
}

func TestMermaid(t *testing.T) {
	out := Mermaid(sampleGraph(), 0)

	if !strings.HasPrefix(out, "graph TD\n") {
		t.Error("diagram should start with graph TD")
	}
	if !strings.Contains(out, "subgraph") {
		t.Error("clusters should render as subgraphs")
	}
	if !strings.Contains(out, "-.->") {
		t.Error("async edges should render dashed")
	}
	if !strings.Contains(out, "classDef errorNode") {
		t.Error("missing errorNode class definition")
	}
	if !strings.Contains(out, "class query_2 errorNode") {
		t.Errorf("query-2 has an unhandled error, should be classed:\n%s", out)
	}
}

func TestMermaidSlowThreshold(t *testing.T) {
	g := sampleGraph() // latencies 54 and 52, below the 200 default

	if def := Mermaid(g, 0); strings.Contains(def, "class handler_1 slowNode") || strings.Contains(def, "class query_2 slowNode") {
		t.Error("no node should be slow at the default threshold")
	}
	out := Mermaid(g, 53)
	if !strings.Contains(out, "class handler_1 slowNode") {
		t.Errorf("handler-1 at 54ms should be slow with a 53ms threshold:\n%s", out)
	}
	if strings.Contains(out, "query_2 slowNode") {
		t.Error("query-2 at 52ms should stay below a 53ms threshold")
	}
}

func TestMermaidIDSanitizes(t *testing.T) {
	if got := mermaidID("load-a1b2.c"); got != "load_a1b2_c" {
		t.Errorf("mermaidID = %q", got)
	}
}
