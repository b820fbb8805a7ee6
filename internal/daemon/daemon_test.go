package daemon

import (
	"context"
	"net/http"
	"testing"

	"brandkit/internal/brand"
	"brandkit/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t, testsupport.WithStubbedBinaries())
	interrupted := testsupport.NewBrand(t, h.store, "https://crashed.test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(h.daemon.Stop)

	status := h.daemon.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != h.cfg.Paths.LockPath || status.DatabasePath != h.store.Path() {
		t.Fatalf("unexpected paths: %+v", status)
	}
	if len(status.Preflight) == 0 {
		t.Fatal("expected preflight results")
	}

	got, err := h.store.GetBrand(ctx, interrupted.ID)
	if err != nil {
		t.Fatalf("GetBrand: %v", err)
	}
	if got.ExtractionStatus != brand.StatusFailed || got.ExtractionError == nil || got.ExtractionError.Kind != "Canceled" {
		t.Fatalf("interrupted brand not failed: %+v", got)
	}

	resp, err := http.Get("http://" + h.daemon.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	// Second start should fail
	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	h.daemon.Stop()
	if h.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if h.daemon.Addr() != "" {
		t.Fatalf("expected listener closed, got %q", h.daemon.Addr())
	}
}

func TestSecondInstanceIsLockedOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(h.daemon.Stop)

	other, err := New(h.cfg, nil, h.daemon.deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := other.Start(ctx); err == nil {
		other.Stop()
		t.Fatal("expected second instance to fail to acquire the lock")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := New(cfg, nil, Deps{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
