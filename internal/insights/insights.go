package insights

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pathtrace/flowgraph/internal/export"
	"github.com/pathtrace/flowgraph/internal/graph"
)

// Summary aggregates one report into area buckets, hotspot files, and
// threshold-driven recommendations.
type Summary struct {
	TotalNodes       int              `json:"totalNodes"`
	TotalEdges       int              `json:"totalEdges"`
	UnreachableNodes int              `json:"unreachableNodes"`
	Areas            []Area           `json:"areas"`
	Hotspots         []Hotspot        `json:"hotspots"`
	Recommendations  []Recommendation `json:"recommendations"`
}

// Area is one functional bucket of the codebase, keyed by path tokens.
type Area struct {
	Name         string `json:"name"`
	Nodes        int    `json:"nodes"`
	Findings     int    `json:"findings"`
	AvgLatencyMs int    `json:"avgLatencyMs"`
}

// Hotspot is a file ranked by how many findings its nodes collected.
type Hotspot struct {
	File     string `json:"file"`
	Findings int    `json:"findings"`
	Nodes    int    `json:"nodes"`
}

type Recommendation struct {
	Area    string `json:"area"`
	Message string `json:"message"`
}

// areaTokens map a path substring to a bucket. First match wins, so the
// more specific admin check precedes the general pages one.
var areaTokens = []struct {
	token string
	name  string
}{
	{"admin", "admin"},
	{"hooks", "hooks"},
	{"components", "components"},
	{"api", "api"},
	{"auth", "auth"},
	{"database", "database"},
	{"db/", "database"},
	{"pages", "pages"},
}

func areaFor(file string) string {
	lower := strings.ToLower(file)
	for _, at := range areaTokens {
		if strings.Contains(lower, at.token) {
			return at.name
		}
	}
	return "other"
}

// Build computes the summary for one report.
func Build(r *export.Report) *Summary {
	s := &Summary{
		TotalNodes: len(r.Nodes),
		TotalEdges: len(r.Edges),
	}

	findingsByNode := make(map[string]int)
	for _, b := range r.Bottlenecks {
		findingsByNode[b.NodeID]++
	}

	type areaAcc struct {
		nodes    int
		findings int
		latency  int
	}
	areas := make(map[string]*areaAcc)
	type fileAcc struct {
		nodes    int
		findings int
	}
	files := make(map[string]*fileAcc)

	for _, n := range r.Nodes {
		name := areaFor(n.File)
		acc := areas[name]
		if acc == nil {
			acc = &areaAcc{}
			areas[name] = acc
		}
		acc.nodes++
		acc.findings += findingsByNode[n.ID]
		acc.latency += n.Performance.EstimatedLatencyMs

		fa := files[n.File]
		if fa == nil {
			fa = &fileAcc{}
			files[n.File] = fa
		}
		fa.nodes++
		fa.findings += findingsByNode[n.ID]
	}

	for name, acc := range areas {
		area := Area{Name: name, Nodes: acc.nodes, Findings: acc.findings}
		if acc.nodes > 0 {
			area.AvgLatencyMs = acc.latency / acc.nodes
		}
		s.Areas = append(s.Areas, area)
	}
	sort.Slice(s.Areas, func(i, j int) bool {
		if s.Areas[i].Findings != s.Areas[j].Findings {
			return s.Areas[i].Findings > s.Areas[j].Findings
		}
		return s.Areas[i].Name < s.Areas[j].Name
	})

	for file, fa := range files {
		if fa.findings == 0 {
			continue
		}
		s.Hotspots = append(s.Hotspots, Hotspot{File: file, Findings: fa.findings, Nodes: fa.nodes})
	}
	sort.Slice(s.Hotspots, func(i, j int) bool {
		if s.Hotspots[i].Findings != s.Hotspots[j].Findings {
			return s.Hotspots[i].Findings > s.Hotspots[j].Findings
		}
		return s.Hotspots[i].File < s.Hotspots[j].File
	})
	if len(s.Hotspots) > 10 {
		s.Hotspots = s.Hotspots[:10]
	}

	s.UnreachableNodes = countUnreachable(r)
	s.Recommendations = recommend(s)
	return s
}

// countUnreachable walks the call graph from every entry point and counts
// the nodes no walk reaches. External nodes are excluded: they are
// expected leaves, not dead code.
func countUnreachable(r *export.Report) int {
	byID := make(map[string]*graph.Node, len(r.Nodes))
	for _, n := range r.Nodes {
		byID[n.ID] = n
	}

	visited := make(map[string]bool)
	var queue []string
	for _, n := range r.Nodes {
		if len(n.CalledBy) == 0 {
			visited[n.ID] = true
			queue = append(queue, n.ID)
		}
	}
	for len(queue) > 0 {
		cur := byID[queue[0]]
		queue = queue[1:]
		if cur == nil {
			continue
		}
		for _, callee := range cur.Calls {
			if !visited[callee] {
				visited[callee] = true
				queue = append(queue, callee)
			}
		}
	}

	unreachable := 0
	for _, n := range r.Nodes {
		if !visited[n.ID] && n.Kind != graph.KindExternal {
			unreachable++
		}
	}
	return unreachable
}

func recommend(s *Summary) []Recommendation {
	var recs []Recommendation
	for _, a := range s.Areas {
		if a.Nodes == 0 {
			continue
		}
		if a.Findings*2 >= a.Nodes && a.Findings > 0 {
			recs = append(recs, Recommendation{
				Area:    a.Name,
				Message: fmt.Sprintf("%d of %d functions in %s have performance findings; start refactoring here", a.Findings, a.Nodes, a.Name),
			})
		}
		if a.AvgLatencyMs > 200 {
			recs = append(recs, Recommendation{
				Area:    a.Name,
				Message: fmt.Sprintf("average estimated latency in %s is %dms; look for chained I/O", a.Name, a.AvgLatencyMs),
			})
		}
	}
	if s.UnreachableNodes > 0 {
		recs = append(recs, Recommendation{
			Area:    "other",
			Message: fmt.Sprintf("%d functions are never called from any entry point; candidates for removal", s.UnreachableNodes),
		})
	}
	return recs
}
