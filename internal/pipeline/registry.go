package pipeline

import (
	"strings"

	"github.com/pathtrace/flowgraph/internal/graph"
)

// NodeRegistry resolves textual callee names to node ids. Two tiers:
// a scoped (file, name) table for same-file calls, then a project-wide
// name table for everything else. Lookups that still miss are dropped by
// the caller; a partial graph beats a wrong edge.
type NodeRegistry struct {
	scoped map[string]string // file + "\x00" + name → id
	byName map[string][]nameEntry
}

type nameEntry struct {
	id   string
	file string
}

func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{
		scoped: make(map[string]string),
		byName: make(map[string][]nameEntry),
	}
}

// Register indexes one node under its file scope and its bare name.
// First registration wins on scoped collisions (same file, same name).
func (r *NodeRegistry) Register(n *graph.Node) {
	key := n.File + "\x00" + n.Name
	if _, ok := r.scoped[key]; !ok {
		r.scoped[key] = n.ID
	}
	r.byName[n.Name] = append(r.byName[n.Name], nameEntry{id: n.ID, file: n.File})
}

// Resolve maps a call-site name to a node id. The callee may be a property
// chain; only the last segment names the target. Returns the id and whether
// the match came from the fuzzy project-wide tier. Empty id means no match.
func (r *NodeRegistry) Resolve(callee, fromFile string) (string, bool) {
	name := callee
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		return "", false
	}

	if id, ok := r.scoped[fromFile+"\x00"+name]; ok {
		return id, false
	}

	entries := r.byName[name]
	switch len(entries) {
	case 0:
		return "", false
	case 1:
		return entries[0].id, true
	}
	return bestByPathProximity(entries, fromFile), true
}

// bestByPathProximity breaks a multi-file name tie by the longest shared
// directory prefix with the caller's file. Ties fall to registration order.
func bestByPathProximity(entries []nameEntry, fromFile string) string {
	fromSegs := strings.Split(fromFile, "/")
	best := entries[0].id
	bestScore := -1
	for _, e := range entries {
		score := sharedSegments(fromSegs, strings.Split(e.file, "/"))
		if score > bestScore {
			best = e.id
			bestScore = score
		}
	}
	return best
}

func sharedSegments(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
