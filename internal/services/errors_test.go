package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"brandkit/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrUnreachable, "crawler", "fetch homepage", "dial failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrUnreachable) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"crawler", "fetch homepage", "dial failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindReportsOutermostMarker(t *testing.T) {
	inner := services.Wrap(services.ErrTimeout, "provider", "call", "deadline", context.DeadlineExceeded)
	outer := services.Wrap(services.ErrProvider, "generation", "generate", "provider failed", inner)
	if kind := services.Kind(outer); kind != "ProviderError" {
		t.Fatalf("expected ProviderError, got %q", kind)
	}
	if !errors.Is(outer, services.ErrTimeout) {
		t.Fatal("expected inner marker to remain reachable")
	}
	if msg := services.Message(outer); msg != "provider failed" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestKindFallsBackToMarkerSearch(t *testing.T) {
	err := fmt.Errorf("store: %w", services.ErrNotFound)
	if kind := services.Kind(err); kind != "NotFound" {
		t.Fatalf("expected NotFound, got %q", kind)
	}
	if kind := services.Kind(errors.New("plain")); kind != services.KindInternal {
		t.Fatalf("expected Internal, got %q", kind)
	}
	if kind := services.Kind(nil); kind != "" {
		t.Fatalf("expected empty kind for nil, got %q", kind)
	}
}

func TestWrapNilMarkerDefaults(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !services.IsKind(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}
