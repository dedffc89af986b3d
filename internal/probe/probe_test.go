package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pathtrace/flowgraph/internal/config"
	"github.com/pathtrace/flowgraph/internal/graph"
)

func TestDeriveEndpoint(t *testing.T) {
	cases := map[string]string{
		"pages/api/users.ts":        "/api/users",
		"pages/api/users/index.ts":  "/api/users",
		"app/api/orders/route.ts":   "/api/orders",
		"src/pages/api/health.js":   "/api/health",
		"src/components/Button.tsx": "",
		"pages/api/index.ts":        "/api",
	}
	for file, want := range cases {
		if got := DeriveEndpoint(file); got != want {
			t.Errorf("DeriveEndpoint(%q) = %q, want %q", file, got, want)
		}
	}
}

func TestEndpointsDedupe(t *testing.T) {
	g := graph.New()
	g.AddNode(&graph.Node{ID: "a", Name: "get", Kind: graph.KindAPI, File: "pages/api/users.ts"})
	g.AddNode(&graph.Node{ID: "b", Name: "post", Kind: graph.KindAPI, File: "pages/api/users.ts"})
	g.AddNode(&graph.Node{ID: "c", Name: "util", Kind: graph.KindFunction, File: "src/lib/util.ts"})

	eps := Endpoints(g)
	if len(eps) != 1 || eps[0] != "/api/users" {
		t.Errorf("Endpoints = %v, want [/api/users]", eps)
	}
}

func newTestProber(baseURL string) *Prober {
	return &Prober{
		BaseURL:     baseURL,
		Timeout:     2 * time.Second,
		Concurrency: 4,
		Client:      &http.Client{Timeout: 2 * time.Second},
	}
}

func TestRunReportsStatusPerEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/ok":
			w.WriteHeader(http.StatusOK)
		case "/api/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	p := newTestProber(srv.URL)
	results, err := p.Run(context.Background(), []string{"/api/ok", "/api/missing"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	ok := results[0]
	if ok.Endpoint != "/api/ok" || !ok.Success || ok.Status != 200 {
		t.Errorf("ok = %+v", ok)
	}
	if ok.Error != nil {
		t.Errorf("ok.Error = %q, want nil", *ok.Error)
	}

	missing := results[1]
	if missing.Success || missing.Status != 404 {
		t.Errorf("missing = %+v", missing)
	}
	if missing.Error == nil {
		t.Error("failed probe should carry an error message")
	}
}

func TestRunUnreachableServer(t *testing.T) {
	p := newTestProber("http://127.0.0.1:1")
	p.Client.Timeout = 500 * time.Millisecond

	results, err := p.Run(context.Background(), []string{"/api/x"})
	if err != nil {
		t.Fatalf("connection failures belong in results, not the error: %v", err)
	}
	if results[0].Success || results[0].Error == nil {
		t.Errorf("result = %+v, want failure with message", results[0])
	}
}

func TestRunBoundedConcurrency(t *testing.T) {
	var active, peak int
	mu := make(chan struct{}, 1)
	mu <- struct{}{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-mu
		active++
		if active > peak {
			peak = active
		}
		mu <- struct{}{}

		time.Sleep(20 * time.Millisecond)

		<-mu
		active--
		mu <- struct{}{}
	}))
	defer srv.Close()

	p := newTestProber(srv.URL)
	p.Concurrency = 2

	endpoints := []string{"/a", "/b", "/c", "/d", "/e", "/f"}
	if _, err := p.Run(context.Background(), endpoints); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", peak)
	}
}

func TestNewClampsConcurrency(t *testing.T) {
	p := New(config.Probe{BaseURL: "http://localhost:3000/", TimeoutMs: 1000})
	if p.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want clamped to 1", p.Concurrency)
	}
	if p.BaseURL != "http://localhost:3000" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", p.BaseURL)
	}
}
