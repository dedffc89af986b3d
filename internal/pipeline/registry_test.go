package pipeline

import (
	"testing"

	"github.com/pathtrace/flowgraph/internal/graph"
)

func regNode(r *NodeRegistry, id, name, file string) {
	r.Register(&graph.Node{ID: id, Name: name, File: file})
}

func TestResolveSameFileWins(t *testing.T) {
	r := NewNodeRegistry()
	regNode(r, "h1", "helper", "src/a.js")
	regNode(r, "h2", "helper", "src/b.js")

	id, fuzzy := r.Resolve("helper", "src/a.js")
	if id != "h1" {
		t.Errorf("id = %s, want h1", id)
	}
	if fuzzy {
		t.Error("same-file resolution is not fuzzy")
	}
}

func TestResolveUniqueNameAcrossFiles(t *testing.T) {
	r := NewNodeRegistry()
	regNode(r, "u1", "unique", "src/b.js")

	id, fuzzy := r.Resolve("unique", "src/a.js")
	if id != "u1" {
		t.Errorf("id = %s, want u1", id)
	}
	if !fuzzy {
		t.Error("cross-file resolution should be marked fuzzy")
	}
}

func TestResolveAmbiguousPrefersPathProximity(t *testing.T) {
	r := NewNodeRegistry()
	regNode(r, "far", "dup", "lib/y.js")
	regNode(r, "near", "dup", "src/api/x.js")

	id, fuzzy := r.Resolve("dup", "src/api/z.js")
	if id != "near" {
		t.Errorf("id = %s, want near", id)
	}
	if !fuzzy {
		t.Error("ambiguous resolution should be marked fuzzy")
	}
}

func TestResolvePropertyChainUsesLastSegment(t *testing.T) {
	r := NewNodeRegistry()
	regNode(r, "s1", "save", "src/a.js")

	if id, _ := r.Resolve("repo.users.save", "src/a.js"); id != "s1" {
		t.Errorf("id = %s, want s1", id)
	}
}

func TestResolveMiss(t *testing.T) {
	r := NewNodeRegistry()
	regNode(r, "x", "known", "src/a.js")

	if id, _ := r.Resolve("unknown", "src/a.js"); id != "" {
		t.Errorf("expected empty id for miss, got %s", id)
	}
	if id, _ := r.Resolve("", "src/a.js"); id != "" {
		t.Errorf("expected empty id for empty callee, got %s", id)
	}
}
