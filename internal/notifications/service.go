// Package notifications pushes task outcomes to ntfy.
//
// NewService returns a no-op when no topic is configured. Forwarder turns
// terminal extraction and generation events from the events hub into
// notifications, so pipeline code never calls this package directly.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"brandkit/internal/config"
	"brandkit/internal/services"
)

const userAgent = "brandkit/0.1"

// Event enumerates the notifications brandkit sends.
type Event string

const (
	EventExtractionCompleted Event = "extraction_completed"
	EventExtractionFailed    Event = "extraction_failed"
	EventGenerationCompleted Event = "generation_completed"
	EventGenerationFailed    Event = "generation_failed"
	EventTest                Event = "test"
)

// Payload carries the values a notification message is built from.
type Payload map[string]any

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil || !cfg.NotificationsEnabled() {
		return noopService{}
	}
	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: cfg.Notifications.NtfyTopic,
		token:    cfg.Notifications.Token,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	token    string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return services.Wrap(services.ErrValidation, "notifications", "publish", fmt.Sprintf("unknown event %q", event), nil)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	brandName := payload.text("brand", "unnamed brand")
	switch event {
	case EventExtractionCompleted:
		return message{
			title: "Brandkit - Brand Extracted",
			body:  fmt.Sprintf("🎨 Brand ready for review: %s", brandName),
			tags:  []string{"brandkit", "extraction", "completed"},
		}, true
	case EventExtractionFailed:
		return message{
			title:    "Brandkit - Extraction Failed",
			body:     fmt.Sprintf("❌ Extraction failed for %s: %s", brandName, failure(payload)),
			tags:     []string{"brandkit", "extraction", "error"},
			priority: "high",
		}, true
	case EventGenerationCompleted:
		body := fmt.Sprintf("🖼️ New asset for %s", brandName)
		if asset := payload.text("asset", ""); asset != "" {
			body += "\nAsset: " + asset
		}
		return message{
			title: "Brandkit - Asset Ready",
			body:  body,
			tags:  []string{"brandkit", "generation", "completed"},
		}, true
	case EventGenerationFailed:
		return message{
			title:    "Brandkit - Generation Failed",
			body:     fmt.Sprintf("❌ Generation failed for %s: %s", brandName, failure(payload)),
			tags:     []string{"brandkit", "generation", "error"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Brandkit - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"brandkit", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func failure(payload Payload) string {
	text := payload.text("error", "unknown error")
	if kind := payload.text("kind", ""); kind != "" {
		return kind + ": " + text
	}
	return text
}

func (p Payload) text(key, fallback string) string {
	if p == nil {
		return fallback
	}
	value, ok := p[key]
	if !ok || value == nil {
		return fallback
	}
	if s := strings.TrimSpace(fmt.Sprint(value)); s != "" {
		return s
	}
	return fallback
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnreachable, "notifications", "send", "ntfy request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrExternalTool, "notifications", "send",
			fmt.Sprintf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
