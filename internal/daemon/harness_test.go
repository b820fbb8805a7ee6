package daemon

import (
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"brandkit/internal/analyzer"
	"brandkit/internal/api"
	"brandkit/internal/blobstore"
	"brandkit/internal/compositor"
	"brandkit/internal/config"
	"brandkit/internal/crawler"
	"brandkit/internal/events"
	"brandkit/internal/export"
	"brandkit/internal/extraction"
	"brandkit/internal/generation"
	"brandkit/internal/logging"
	"brandkit/internal/services/provider"
	"brandkit/internal/store"
	"brandkit/internal/testsupport"
)

const testToken = "s3cret"

type stubCrawler struct{}

func (stubCrawler) Crawl(context.Context, string) (*crawler.Artifacts, error) {
	return &crawler.Artifacts{
		Title: "Acme Analytics",
		Text:  "Acme helps teams ship software with fast data pipelines and cloud analytics.",
		StyleRules: []crawler.StyleRule{
			{Selector: "body", Property: "background", Value: "#0f172a"},
			{Selector: ".btn", Property: "background-color", Value: "#6366f1"},
			{Selector: "h1", Property: "font-family", Value: "Poppins, sans-serif"},
		},
	}, nil
}

type stubProvider struct {
	mu    sync.Mutex
	calls int
	data  []byte
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Generate(context.Context, provider.Request) (provider.Image, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return provider.Image{Data: p.data, ContentType: "image/png"}, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type harness struct {
	cfg      *config.Config
	store    *store.Store
	blobs    *blobstore.Store
	hub      *events.Hub
	logHub   *logging.StreamHub
	manager  *extraction.Manager
	provider *stubProvider
	daemon   *Daemon
	server   *httptest.Server
	client   *api.Client
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithAPIToken(testToken)}, opts...)...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	blobs, err := blobstore.New(cfg.Paths.BlobDir)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	hub := events.NewHub(256)
	logHub := logging.NewStreamHub(64)

	mgr := extraction.NewManager(st, stubCrawler{}, analyzer.New(cfg, nil, nil), hub)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
	})
	prov := &stubProvider{data: testsupport.PNGBytes(t, testsupport.SolidImage(1024, 1024, color.NRGBA{B: 200, A: 255}))}
	gen := generation.New(st, blobs, prov, compositor.New(nil, t.TempDir(), nil), hub)
	exp := export.New(st, blobs, export.WithImageEncoder(func(_ image.Image, f export.Format, q export.Quality) ([]byte, error) {
		return []byte("variant:" + string(f) + ":" + string(q)), nil
	}))

	d, err := New(cfg, nil, Deps{
		Store:      st,
		Blobs:      blobs,
		Events:     hub,
		LogHub:     logHub,
		Extraction: mgr,
		Generation: gen,
		Export:     exp,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(d.api.handler)
	t.Cleanup(srv.Close)
	client, err := api.NewClient(srv.URL, testToken)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return &harness{
		cfg: cfg, store: st, blobs: blobs, hub: hub, logHub: logHub, manager: mgr,
		provider: prov, daemon: d, server: srv, client: client,
	}
}

func (h *harness) get(t *testing.T, path string, auth bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, h.server.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
