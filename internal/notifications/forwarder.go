package notifications

import (
	"context"
	"log/slog"

	"brandkit/internal/config"
	"brandkit/internal/events"
	"brandkit/internal/logging"
)

const subscriptionBuffer = 64

// Subscriber is implemented by events.Hub.
type Subscriber interface {
	Subscribe(brandID string, buffer int) (<-chan events.Event, func())
}

// BrandNamer resolves a brand ID to its display name. An empty result falls
// back to the ID.
type BrandNamer func(ctx context.Context, brandID string) string

// Forwarder relays terminal task events to a Service.
type Forwarder struct {
	svc      Service
	settings config.Notifications
	names    BrandNamer
	logger   *slog.Logger
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithBrandNames sets the lookup used to name brands in messages.
func WithBrandNames(fn BrandNamer) ForwarderOption {
	return func(f *Forwarder) { f.names = fn }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) ForwarderOption {
	return func(f *Forwarder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewForwarder builds a forwarder. settings selects which outcomes notify.
func NewForwarder(svc Service, settings config.Notifications, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{svc: svc, settings: settings, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "notifications")
	return f
}

// Start subscribes to every brand and forwards events until ctx ends. The
// subscription is active when Start returns; the channel closes once the
// forwarding goroutine exits.
func (f *Forwarder) Start(ctx context.Context, hub Subscriber) <-chan struct{} {
	ch, cancel := hub.Subscribe("", subscriptionBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				f.handle(ctx, evt)
			}
		}
	}()
	return done
}

func (f *Forwarder) handle(ctx context.Context, evt events.Event) {
	event, ok := f.classify(evt)
	if !ok {
		return
	}
	payload := Payload{
		"brand": f.brandName(ctx, evt.BrandID),
		"asset": evt.AssetID,
		"kind":  evt.Kind,
		"error": evt.Message,
	}
	if err := f.svc.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(f.logger, "notification failed", "notification_failed",
			logging.String(logging.FieldBrandID, evt.BrandID),
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and token"),
			logging.String(logging.FieldImpact, "task finished without a push notification"),
		)
		return
	}
	f.logger.Debug("notification sent",
		logging.String(logging.FieldBrandID, evt.BrandID),
		logging.String("event", string(event)),
	)
}

// classify maps a terminal event to a notification. Failures are gated by
// the errors setting alone; successes by their task setting.
func (f *Forwarder) classify(evt events.Event) (Event, bool) {
	failed := evt.Stage == events.StageError
	if !failed && evt.Stage != events.StageComplete {
		return "", false
	}
	if failed && !f.settings.Errors {
		return "", false
	}
	switch evt.Task {
	case events.TaskExtraction:
		if failed {
			return EventExtractionFailed, true
		}
		return EventExtractionCompleted, f.settings.Extraction
	case events.TaskGeneration:
		if failed {
			return EventGenerationFailed, true
		}
		return EventGenerationCompleted, f.settings.Generation
	}
	return "", false
}

func (f *Forwarder) brandName(ctx context.Context, brandID string) string {
	if f.names != nil {
		if name := f.names(ctx, brandID); name != "" {
			return name
		}
	}
	return brandID
}
