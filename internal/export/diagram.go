package export

import (
	"fmt"
	"strings"

	"github.com/pathtrace/flowgraph/internal/graph"
)

// Mermaid renders the graph as a top-down flowchart. Clusters become
// subgraphs holding their nodes and intra-cluster edges; cross-cluster
// edges sit at the top level. Async edges render dashed. Nodes at or
// above slowMs estimated latency are styled as slow; a non-positive
// slowMs falls back to 200.
func Mermaid(g *graph.Graph, slowMs int) string {
	if slowMs <= 0 {
		slowMs = 200
	}
	var b strings.Builder
	b.WriteString("graph TD\n")

	memberOf := make(map[string]string)
	for i, c := range g.Clusters {
		for _, id := range c.NodeIDs {
			memberOf[id] = c.Name
		}
		fmt.Fprintf(&b, "  subgraph cluster%d[\"%s\"]\n", i, escapeLabel(c.Name))
		for _, id := range c.NodeIDs {
			n := g.Node(id)
			if n == nil {
				continue
			}
			fmt.Fprintf(&b, "    %s[\"%s\"]\n", mermaidID(id), escapeLabel(n.Name))
		}
		for _, e := range g.Edges {
			if memberOf[e.From] == c.Name && memberOf[e.To] == c.Name {
				writeEdge(&b, "    ", e)
			}
		}
		b.WriteString("  end\n")
	}

	// Unclustered nodes and cross-cluster edges.
	for _, n := range g.Nodes() {
		if _, ok := memberOf[n.ID]; !ok {
			fmt.Fprintf(&b, "  %s[\"%s\"]\n", mermaidID(n.ID), escapeLabel(n.Name))
		}
	}
	for _, e := range g.Edges {
		if memberOf[e.From] != memberOf[e.To] || memberOf[e.From] == "" {
			writeEdge(&b, "  ", e)
		}
	}

	b.WriteString("\n")
	b.WriteString("  classDef errorNode fill:#fdd,stroke:#c00\n")
	b.WriteString("  classDef slowNode fill:#ffd,stroke:#c80\n")
	b.WriteString("  classDef apiNode fill:#ddf,stroke:#00c\n")
	b.WriteString("  classDef databaseNode fill:#dfd,stroke:#080\n")

	writeClassLine(&b, g, "errorNode", func(n *graph.Node) bool { return n.HasUnhandledError() })
	writeClassLine(&b, g, "slowNode", func(n *graph.Node) bool { return n.Performance.EstimatedLatencyMs >= slowMs })
	writeClassLine(&b, g, "apiNode", func(n *graph.Node) bool { return n.Kind == graph.KindAPI })
	writeClassLine(&b, g, "databaseNode", func(n *graph.Node) bool { return n.Kind == graph.KindDatabase })

	return b.String()
}

func writeEdge(b *strings.Builder, indent string, e *graph.Edge) {
	arrow := "-->"
	if e.Kind == graph.EdgeAsync {
		arrow = "-.->"
	}
	fmt.Fprintf(b, "%s%s %s %s\n", indent, mermaidID(e.From), arrow, mermaidID(e.To))
}

func writeClassLine(b *strings.Builder, g *graph.Graph, class string, match func(*graph.Node) bool) {
	var ids []string
	for _, n := range g.Nodes() {
		if match(n) {
			ids = append(ids, mermaidID(n.ID))
		}
	}
	if len(ids) > 0 {
		fmt.Fprintf(b, "  class %s %s\n", strings.Join(ids, ","), class)
	}
}

// mermaidID strips characters Mermaid treats as syntax from a node id.
func mermaidID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
