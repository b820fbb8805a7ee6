package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"brandkit/internal/config"
	"brandkit/internal/notifications"
	"brandkit/internal/services"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventExtractionCompleted, notifications.Payload{"brand": "Acme"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title    string
	tags     string
	priority string
	auth     string
	body     string
}

func capture(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		got.auth = r.Header.Get("Authorization")
		got.body = string(body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("topic is read-only"))
	}))
	t.Cleanup(server.Close)
	return server, got
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:        "extraction completed",
			event:       notifications.EventExtractionCompleted,
			payload:     notifications.Payload{"brand": "Acme Roasters"},
			expectTitle: "Brandkit - Brand Extracted",
			expectBody:  "🎨 Brand ready for review: Acme Roasters",
			expectTags:  "brandkit,extraction,completed",
		},
		{
			name:           "extraction failed",
			event:          notifications.EventExtractionFailed,
			payload:        notifications.Payload{"brand": "Acme Roasters", "kind": "Unreachable", "error": "dns lookup failed"},
			expectTitle:    "Brandkit - Extraction Failed",
			expectBody:     "❌ Extraction failed for Acme Roasters: Unreachable: dns lookup failed",
			expectTags:     "brandkit,extraction,error",
			expectPriority: "high",
		},
		{
			name:        "generation completed",
			event:       notifications.EventGenerationCompleted,
			payload:     notifications.Payload{"brand": "Acme Roasters", "asset": "a-1"},
			expectTitle: "Brandkit - Asset Ready",
			expectBody:  "🖼️ New asset for Acme Roasters\nAsset: a-1",
			expectTags:  "brandkit,generation,completed",
		},
		{
			name:           "generation failed without details",
			event:          notifications.EventGenerationFailed,
			payload:        nil,
			expectTitle:    "Brandkit - Generation Failed",
			expectBody:     "❌ Generation failed for unnamed brand: unknown error",
			expectTags:     "brandkit,generation,error",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Brandkit - Test",
			expectBody:     "🧪 Notification system test",
			expectTags:     "brandkit,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, got := capture(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.Token = "tk_secret"

			if err := notifications.NewService(&cfg).Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if got.title != tc.expectTitle {
				t.Fatalf("title = %q, want %q", got.title, tc.expectTitle)
			}
			if got.body != tc.expectBody {
				t.Fatalf("body = %q, want %q", got.body, tc.expectBody)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", got.tags, tc.expectTags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", got.priority, tc.expectPriority)
			}
			if got.auth != "Bearer tk_secret" {
				t.Fatalf("authorization = %q", got.auth)
			}
		})
	}
}

func TestNtfyServiceReportsFailures(t *testing.T) {
	server, _ := capture(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if !services.IsKind(err, services.ErrExternalTool) {
		t.Fatalf("expected ExternalTool error, got %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.Event("bogus"), nil); !services.IsKind(err, services.ErrValidation) {
		t.Fatalf("expected ValidationError for unknown event, got %v", err)
	}

	server.Close()
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); !services.IsKind(err, services.ErrUnreachable) {
		t.Fatalf("expected Unreachable after server shutdown, got %v", err)
	}
}
