package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pathtrace/flowgraph/internal/config"
	"github.com/pathtrace/flowgraph/internal/discover"
	"github.com/pathtrace/flowgraph/internal/export"
	"github.com/pathtrace/flowgraph/internal/insights"
	"github.com/pathtrace/flowgraph/internal/pipeline"
	"github.com/pathtrace/flowgraph/internal/probe"
	"github.com/pathtrace/flowgraph/internal/validate"
	"github.com/pathtrace/flowgraph/internal/watcher"
)

var version = "dev"

func main() {
	var (
		outDir     string
		sqlitePath string
		runProbe   bool
		baseURL    string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:   "flowgraph",
		Short: "Call-graph and data-flow analyzer for JavaScript and TypeScript codebases",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Analyze a source tree and write graph, dataset, and diagram files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), args[0], outDir, sqlitePath, runProbe, baseURL)
		},
	}
	analyzeCmd.Flags().StringVar(&outDir, "out", ".", "Output directory")
	analyzeCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "Also persist the graph to this SQLite file")
	analyzeCmd.Flags().BoolVar(&runProbe, "probe", false, "Probe derived API endpoints after analysis")
	analyzeCmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL for probing (overrides config)")

	var graphPath string

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe the API endpoints of a previously analyzed tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbeCmd(cmd.Context(), graphPath, baseURL)
		},
	}
	probeCmd.Flags().StringVar(&graphPath, "graph", "graph.json", "Path to a graph report")
	probeCmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL for probing (overrides config)")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Run consistency checks over a graph report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(graphPath)
		},
	}
	validateCmd.Flags().StringVar(&graphPath, "graph", "graph.json", "Path to a graph report")

	insightsCmd := &cobra.Command{
		Use:   "insights",
		Short: "Summarize a graph report into areas, hotspots, and recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInsights(graphPath)
		},
	}
	insightsCmd.Flags().StringVar(&graphPath, "graph", "graph.json", "Path to a graph report")

	watchCmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Re-analyze a source tree whenever its files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), args[0], outDir)
		},
	}
	watchCmd.Flags().StringVar(&outDir, "out", ".", "Output directory")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("flowgraph", version)
		},
	}

	rootCmd.AddCommand(analyzeCmd, probeCmd, validateCmd, insightsCmd, watchCmd, versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runAnalyze(ctx context.Context, repoPath, outDir, sqlitePath string, runProbe bool, baseURL string) error {
	cfg, err := config.Load(repoPath)
	if err != nil {
		return err
	}

	g, err := pipeline.New(ctx, cfg, repoPath).Run()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	report := export.BuildReport(g, repoPath)
	if err := export.WriteJSON(report, filepath.Join(outDir, "graph.json")); err != nil {
		return err
	}
	if err := export.WriteDataset(export.BuildDataset(g), filepath.Join(outDir, "dataset.json")); err != nil {
		return err
	}
	diagram := export.Mermaid(g, cfg.Thresholds.HighLatencyMs)
	if err := os.WriteFile(filepath.Join(outDir, "diagram.mmd"), []byte(diagram), 0o644); err != nil {
		return fmt.Errorf("write diagram: %w", err)
	}

	if sqlitePath != "" {
		store, err := export.OpenStore(sqlitePath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(g); err != nil {
			return err
		}
	}

	if runProbe {
		if baseURL != "" {
			cfg.Probe.BaseURL = baseURL
		}
		results, err := probe.New(cfg.Probe).Run(ctx, probe.Endpoints(g))
		if err != nil {
			return err
		}
		return printJSON(results)
	}
	return nil
}

func runWatch(ctx context.Context, repoPath, outDir string) error {
	cfg, err := config.Load(repoPath)
	if err != nil {
		return err
	}
	w := watcher.New(repoPath, &discover.Options{ExtraPatterns: cfg.Ignore},
		func(ctx context.Context, root string) error {
			return runAnalyze(ctx, root, outDir, "", false, "")
		})
	err = w.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

func runProbeCmd(ctx context.Context, graphPath, baseURL string) error {
	report, err := export.LoadReport(graphPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(report.RepoPath)
	if err != nil {
		cfg = config.Default()
	}
	if baseURL != "" {
		cfg.Probe.BaseURL = baseURL
	}

	var endpoints []string
	seen := make(map[string]bool)
	for _, n := range report.Nodes {
		if ep := probe.DeriveEndpoint(n.File); ep != "" && !seen[ep] {
			seen[ep] = true
			endpoints = append(endpoints, ep)
		}
	}
	results, err := probe.New(cfg.Probe).Run(ctx, endpoints)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func runValidate(graphPath string) error {
	report, err := export.LoadReport(graphPath)
	if err != nil {
		return err
	}
	result := validate.Run(report)
	if err := printJSON(result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d checks failed", result.Failed, result.Passed+result.Failed)
	}
	return nil
}

func runInsights(graphPath string) error {
	report, err := export.LoadReport(graphPath)
	if err != nil {
		return err
	}
	return printJSON(insights.Build(report))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
