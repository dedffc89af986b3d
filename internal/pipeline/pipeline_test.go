package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pathtrace/flowgraph/internal/graph"
)

// writeRepo lays out a temp source tree for one test.
func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// analyze runs the full pipeline over a fixture tree.
func analyze(t *testing.T, files map[string]string) *graph.Graph {
	t.Helper()
	dir := writeRepo(t, files)
	g, err := New(context.Background(), nil, dir).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return g
}

func findNode(t *testing.T, g *graph.Graph, name string) *graph.Node {
	t.Helper()
	for _, n := range g.Nodes() {
		if n.Name == name {
			return n
		}
	}
	t.Fatalf("node %q not found", name)
	return nil
}

func TestRunEndToEnd(t *testing.T) {
	g := analyze(t, map[string]string{
		"src/api/users.js": `
async function listUsers() {
  const rows = await db.query("select * from users");
  return rows;
}

async function handler() {
  const users = await listUsers();
  return users;
}
`,
		"src/lib/format.js": `
function formatName(user) {
  return user.first + " " + user.last;
}
`,
	})

	if g.NodeCount() != 3 {
		t.Fatalf("NodeCount = %d, want 3", g.NodeCount())
	}

	handler := findNode(t, g, "handler")
	listUsers := findNode(t, g, "listUsers")
	if len(handler.Calls) != 1 || handler.Calls[0] != listUsers.ID {
		t.Errorf("handler.Calls = %v, want [%s]", handler.Calls, listUsers.ID)
	}
	if len(listUsers.CalledBy) != 1 || listUsers.CalledBy[0] != handler.ID {
		t.Errorf("listUsers.CalledBy = %v", listUsers.CalledBy)
	}

	if len(g.Edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(g.Edges))
	}
	edge := g.Edges[0]
	if edge.Kind != graph.EdgeAsync {
		t.Errorf("edge kind = %s, want async (caller awaits)", edge.Kind)
	}
	if len(edge.DataFlow) != 1 || edge.DataFlow[0] != "return" {
		t.Errorf("edge dataFlow = %v, want [return]", edge.DataFlow)
	}

	if listUsers.Performance.DBCalls != 1 {
		t.Errorf("listUsers dbCalls = %d, want 1", listUsers.Performance.DBCalls)
	}
	if listUsers.Kind != graph.KindAPI {
		t.Errorf("listUsers kind = %s, want api", listUsers.Kind)
	}

	if len(g.Clusters) != 2 {
		t.Errorf("clusters = %d, want 2", len(g.Clusters))
	}
	if len(g.CriticalPaths) == 0 {
		t.Error("expected at least one critical path")
	}
}

func TestRunIsDeterministic(t *testing.T) {
	files := map[string]string{
		"a.js": "function one() { two(); }\nfunction two() { return 1; }\n",
		"b.js": "function three() { one(); }\n",
	}
	dir := writeRepo(t, files)

	g1, err := New(context.Background(), nil, dir).Run()
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	g2, err := New(context.Background(), nil, dir).Run()
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	n1, n2 := g1.Nodes(), g2.Nodes()
	if len(n1) != len(n2) {
		t.Fatalf("node counts differ: %d vs %d", len(n1), len(n2))
	}
	for i := range n1 {
		if n1[i].ID != n2[i].ID {
			t.Errorf("node %d id differs: %s vs %s", i, n1[i].ID, n2[i].ID)
		}
	}
	if len(g1.Edges) != len(g2.Edges) {
		t.Fatalf("edge counts differ")
	}
	for i := range g1.Edges {
		if g1.Edges[i].From != g2.Edges[i].From || g1.Edges[i].To != g2.Edges[i].To {
			t.Errorf("edge %d differs", i)
		}
	}
}

func TestRunMutualRecursionTerminates(t *testing.T) {
	g := analyze(t, map[string]string{
		"cycle.js": "function ping() { pong(); }\nfunction pong() { ping(); }\n",
	})
	if len(g.Edges) != 2 {
		t.Errorf("edges = %d, want 2", len(g.Edges))
	}
	// A pure cycle has no entry point and therefore no critical paths.
	if len(g.CriticalPaths) != 0 {
		t.Errorf("criticalPaths = %d, want 0", len(g.CriticalPaths))
	}
}

func TestRunSkipsUnparseableFileButKeepsOthers(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"good.js": "function ok() { return 1; }\n",
	})
	// An unreadable file must not fail the run.
	bad := filepath.Join(dir, "bad.js")
	if err := os.WriteFile(bad, []byte("function broken() {"), 0o000); err != nil {
		t.Fatal(err)
	}

	g, err := New(context.Background(), nil, dir).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	findNode(t, g, "ok")
}

func TestRunCancelled(t *testing.T) {
	dir := writeRepo(t, map[string]string{"a.js": "function f() {}\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(ctx, nil, dir).Run(); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
