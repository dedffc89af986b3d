package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pathtrace/flowgraph/internal/config"
	"github.com/pathtrace/flowgraph/internal/discover"
	"github.com/pathtrace/flowgraph/internal/graph"
)

// Pipeline orchestrates one analysis run: build the graph, link calls,
// then derive the traversal-dependent artifacts. A Pipeline owns its graph
// exclusively; nothing is shared between runs.
type Pipeline struct {
	ctx      context.Context
	cfg      *config.Config
	RepoPath string

	Graph    *graph.Graph
	registry *NodeRegistry
	detector *ValidationDetector
	// calls maps node id → call sites recorded during the build pass,
	// consumed by the linker.
	calls map[string][]callSite
}

// New creates a Pipeline for one source tree.
func New(ctx context.Context, cfg *config.Config, repoPath string) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Pipeline{
		ctx:      ctx,
		cfg:      cfg,
		RepoPath: repoPath,
		Graph:    graph.New(),
		registry: NewNodeRegistry(),
		detector: NewValidationDetector(cfg.Validation.Patterns),
		calls:    make(map[string][]callSite),
	}
}

// checkCancel returns ctx.Err() if the run's context has been cancelled.
// Cancellation is honored between passes; no mid-traversal cancellation.
func (p *Pipeline) checkCancel() error {
	return p.ctx.Err()
}

// Run executes the full pipeline and returns the populated graph.
// Graph construction (build + link) always completes before any
// traversal-dependent pass starts.
func (p *Pipeline) Run() (*graph.Graph, error) {
	slog.Info("pipeline.start", "path", p.RepoPath)

	if err := p.checkCancel(); err != nil {
		return nil, err
	}

	files, err := discover.Discover(p.ctx, p.RepoPath, &discover.Options{
		ExtraPatterns: p.cfg.Ignore,
	})
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	slog.Info("pipeline.discovered", "files", len(files))

	type pass struct {
		name string
		fn   func()
	}
	passes := []pass{
		{"link", p.passLink},
		{"estimate", p.passEstimate},
		{"errors", p.passErrors},
		{"clusters", p.passClusters},
		{"critical_paths", p.passCriticalPaths},
		{"bottlenecks", p.passBottlenecks},
	}

	t := time.Now()
	if err := p.passBuild(files); err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	slog.Info("pass.timing", "pass", "build", "elapsed", time.Since(t))

	for _, ps := range passes {
		if err := p.checkCancel(); err != nil {
			return nil, err
		}
		t = time.Now()
		ps.fn()
		slog.Info("pass.timing", "pass", ps.name, "elapsed", time.Since(t))
	}

	slog.Info("pipeline.done",
		"nodes", p.Graph.NodeCount(),
		"edges", len(p.Graph.Edges),
		"clusters", len(p.Graph.Clusters),
		"bottlenecks", len(p.Graph.Bottlenecks))
	return p.Graph, nil
}
