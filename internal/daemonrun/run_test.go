package daemonrun

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"brandkit/internal/blobstore"
	"brandkit/internal/daemon"
	"brandkit/internal/events"
	"brandkit/internal/logging"
	"brandkit/internal/preflight"
	"brandkit/internal/services"
	"brandkit/internal/services/provider"
	"brandkit/internal/testsupport"
)

func TestBuildDepsWiresEveryComponent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	blobs, err := blobstore.New(cfg.Paths.BlobDir)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}

	deps := buildDeps(cfg, logging.NewNop(), st, blobs, nil)
	if deps.Events == nil || deps.Extraction == nil || deps.Generation == nil || deps.Export == nil {
		t.Fatalf("incomplete deps: %+v", deps)
	}
	if _, err := daemon.New(cfg, logging.NewNop(), deps); err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
}

func TestRendererFollowsScreenshotPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("headless-chrome"))
	cfg.Crawler.ChromeBinary = "headless-chrome"

	r := newRenderer(cfg, logging.NewNop(), preflight.CheckSystemDeps(cfg))
	if r == nil {
		t.Fatal("expected a renderer when chrome resolves")
	}
	if w, h := r.Viewport(); w != cfg.Crawler.ViewportWidth || h != cfg.Crawler.ViewportHeight {
		t.Fatalf("viewport = %dx%d", w, h)
	}
	if opts := crawlerOptions(cfg, logging.NewNop(), preflight.CheckSystemDeps(cfg)); len(opts) != 2 {
		t.Fatalf("expected logger and renderer options, got %d", len(opts))
	}

	cfg.Crawler.Screenshots = false
	if r := newRenderer(cfg, logging.NewNop(), preflight.CheckSystemDeps(cfg)); r != nil {
		t.Fatal("screenshots disabled should not build a renderer")
	}

	cfg.Crawler.Screenshots = true
	cfg.Crawler.ChromeBinary = "no-such-chrome-binary"
	if r := newRenderer(cfg, logging.NewNop(), preflight.CheckSystemDeps(cfg)); r != nil {
		t.Fatal("missing chrome should not build a renderer")
	}
}

func TestForwarderNotifiesWithBrandName(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
	}))
	t.Cleanup(ntfy.Close)

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if fwd := newForwarder(cfg, logging.NewNop(), st); fwd != nil {
		t.Fatal("expected no forwarder without a topic")
	}

	cfg.Notifications.NtfyTopic = ntfy.URL
	profile := testsupport.ReadyBrand(t, st, nil)
	hub := events.NewHub(16)
	ctx, cancel := context.WithCancel(context.Background())
	done := newForwarder(cfg, logging.NewNop(), st).Start(ctx, hub)
	hub.Publish(events.Event{BrandID: profile.ID, Task: events.TaskExtraction, Stage: events.StageComplete})

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(bodies)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 1 || !strings.Contains(bodies[0], profile.Name) {
		t.Fatalf("expected one notification naming %q, got %v", profile.Name, bodies)
	}
}

func TestMissingProviderKeyDisablesGeneration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Provider.APIKey = ""
	_, err := provider.New(cfg.Provider)
	if err == nil {
		t.Fatal("expected provider.New to reject an empty key")
	}

	p := disabledProvider{err: err}
	_, genErr := p.Generate(context.Background(), provider.Request{Prompt: "hello"})
	if !services.IsKind(genErr, services.ErrConfiguration) {
		t.Fatalf("expected Configuration error, got %v", genErr)
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "brandkit-1.log")
	second := filepath.Join(dir, "brandkit-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "brandkit-2.log" {
		t.Fatalf("pointer resolves to %q, want brandkit-2.log", data)
	}
	if err := ensureCurrentLogPointer("", second); err != nil {
		t.Fatalf("empty dir should be a no-op: %v", err)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brandkit.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file = %q", data)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
