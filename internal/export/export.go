package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pathtrace/flowgraph/internal/graph"
)

// Report is the on-disk JSON shape of one analysis run.
type Report struct {
	GeneratedAt   time.Time             `json:"generatedAt"`
	RepoPath      string                `json:"repoPath"`
	Nodes         []*graph.Node         `json:"nodes"`
	Edges         []*graph.Edge         `json:"edges"`
	Clusters      []*graph.Cluster      `json:"clusters"`
	CriticalPaths []*graph.CriticalPath `json:"criticalPaths"`
	Bottlenecks   []*graph.Bottleneck   `json:"bottlenecks"`
}

// BuildReport snapshots a graph into its serializable form.
func BuildReport(g *graph.Graph, repoPath string) *Report {
	return &Report{
		GeneratedAt:   time.Now().UTC(),
		RepoPath:      repoPath,
		Nodes:         g.Nodes(),
		Edges:         g.Edges,
		Clusters:      g.Clusters,
		CriticalPaths: g.CriticalPaths,
		Bottlenecks:   g.Bottlenecks,
	}
}

// WriteJSON writes the report, pretty-printed, to path.
func WriteJSON(r *Report, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// LoadReport reads a previously written report back.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}

// Dataset is the flattened node/link shape consumed by force-directed
// graph renderers.
type Dataset struct {
	Nodes []DatasetNode `json:"nodes"`
	Links []DatasetLink `json:"links"`
}

type DatasetNode struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	File       string `json:"file"`
	Complexity int    `json:"complexity"`
	LatencyMs  int    `json:"latencyMs"`
	ErrorCount int    `json:"errorCount"`
}

type DatasetLink struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Kind      string `json:"kind"`
	HasErrors bool   `json:"hasErrors"`
}

// BuildDataset flattens a graph for visualization.
func BuildDataset(g *graph.Graph) *Dataset {
	ds := &Dataset{}
	for _, n := range g.Nodes() {
		ds.Nodes = append(ds.Nodes, DatasetNode{
			ID:         n.ID,
			Name:       n.Name,
			Kind:       string(n.Kind),
			File:       n.File,
			Complexity: n.Performance.Complexity,
			LatencyMs:  n.Performance.EstimatedLatencyMs,
			ErrorCount: len(n.Errors),
		})
	}
	for _, e := range g.Edges {
		ds.Links = append(ds.Links, DatasetLink{
			Source:    e.From,
			Target:    e.To,
			Kind:      string(e.Kind),
			HasErrors: e.ErrorFlow,
		})
	}
	return ds
}

// WriteDataset writes the visualization dataset to path.
func WriteDataset(ds *Dataset, path string) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}
