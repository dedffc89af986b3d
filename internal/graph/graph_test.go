package graph

import "testing"

func TestAddNodeDedupesAndKeepsOrder(t *testing.T) {
	g := New()
	g.AddNode(&Node{ID: "b", Name: "b"})
	g.AddNode(&Node{ID: "a", Name: "a"})
	g.AddNode(&Node{ID: "b", Name: "b-dup"})

	if g.NodeCount() != 2 {
		t.Fatalf("NodeCount = %d, want 2", g.NodeCount())
	}
	nodes := g.Nodes()
	if nodes[0].ID != "b" || nodes[1].ID != "a" {
		t.Errorf("order = [%s %s], want [b a]", nodes[0].ID, nodes[1].ID)
	}
	if g.Node("b").Name != "b" {
		t.Errorf("duplicate add replaced the original node")
	}
}

func TestHasUnhandledError(t *testing.T) {
	cases := []struct {
		name  string
		sites []ErrorSite
		want  bool
	}{
		{"no sites", nil, false},
		{"handled throw", []ErrorSite{{Kind: ErrorThrow, Handled: true}}, false},
		{"unhandled throw", []ErrorSite{{Kind: ErrorThrow, Handled: false}}, true},
		{"catch only", []ErrorSite{{Kind: ErrorCatch, Handled: true}}, false},
		{"propagate", []ErrorSite{{Kind: ErrorPropagate, Handled: false}}, true},
	}
	for _, tc := range cases {
		n := &Node{Errors: tc.sites}
		if got := n.HasUnhandledError(); got != tc.want {
			t.Errorf("%s: HasUnhandledError = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSeverityRank(t *testing.T) {
	if SeverityRank(SeverityCritical) >= SeverityRank(SeverityMajor) {
		t.Error("critical should rank before major")
	}
	if SeverityRank(SeverityMajor) >= SeverityRank(SeverityMinor) {
		t.Error("major should rank before minor")
	}
	if SeverityRank(Severity("bogus")) <= SeverityRank(SeverityMinor) {
		t.Error("unknown severities should rank last")
	}
}
