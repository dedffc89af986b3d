package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pathtrace/flowgraph/internal/config"
	"github.com/pathtrace/flowgraph/internal/graph"
)

// Result is the probe outcome for one endpoint. Error is nil on success
// so the JSON output carries an explicit null.
type Result struct {
	Endpoint  string  `json:"endpoint"`
	Status    int     `json:"status"`
	LatencyMs int64   `json:"latencyMs"`
	Success   bool    `json:"success"`
	Error     *string `json:"error"`
}

// Prober issues GET requests against the endpoints an analyzed tree
// exposes, with a bounded worker pool.
type Prober struct {
	BaseURL     string
	Timeout     time.Duration
	Concurrency int
	Client      *http.Client
}

// New builds a Prober from config. A nil client gets a default with the
// configured timeout.
func New(cfg config.Probe) *Prober {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Prober{
		BaseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		Timeout:     timeout,
		Concurrency: concurrency,
		Client:      &http.Client{Timeout: timeout},
	}
}

// Endpoints derives the probe targets from a graph: one URL path per
// distinct api-kind node file.
func Endpoints(g *graph.Graph) []string {
	seen := make(map[string]bool)
	var eps []string
	for _, n := range g.Nodes() {
		if n.Kind != graph.KindAPI {
			continue
		}
		ep := DeriveEndpoint(n.File)
		if ep == "" || seen[ep] {
			continue
		}
		seen[ep] = true
		eps = append(eps, ep)
	}
	sort.Strings(eps)
	return eps
}

// DeriveEndpoint maps an api file path to its URL path: everything from
// the api segment on, without the extension, with index and route leaves
// collapsed onto their directory.
func DeriveEndpoint(file string) string {
	lower := strings.ToLower(file)
	segs := strings.Split(lower, "/")
	start := -1
	for i, s := range segs {
		if s == "api" || s == "apis" {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	p := "/" + strings.Join(segs[start:], "/")
	p = strings.TrimSuffix(p, path.Ext(p))
	for _, leaf := range []string{"/index", "/route"} {
		p = strings.TrimSuffix(p, leaf)
	}
	if p == "" {
		p = "/"
	}
	return p
}

// Run probes every endpoint concurrently and returns results in endpoint
// order regardless of completion order. Probe failures land in the result,
// not the error return; only context cancellation aborts the run.
func (p *Prober) Run(ctx context.Context, endpoints []string) ([]Result, error) {
	results := make([]Result, len(endpoints))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Concurrency)
	for i, ep := range endpoints {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = p.probeOne(gctx, ep)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if !r.Success {
			slog.Warn("probe.fail", "endpoint", r.Endpoint, "status", r.Status)
		}
	}
	return results, nil
}

func (p *Prober) probeOne(ctx context.Context, endpoint string) Result {
	result := Result{Endpoint: endpoint}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+endpoint, nil)
	if err != nil {
		msg := err.Error()
		result.Error = &msg
		return result
	}

	start := time.Now()
	resp, err := p.Client.Do(req)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		msg := err.Error()
		result.Error = &msg
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	result.Status = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 400
	if !result.Success {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		result.Error = &msg
	}
	return result
}
