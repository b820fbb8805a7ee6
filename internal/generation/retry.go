package generation

import (
	"context"
	"time"

	"brandkit/internal/config"
	"brandkit/internal/logging"
	"brandkit/internal/services/provider"
)

// RetryPolicy bounds provider retries. MaxRetries counts retries after the
// first attempt.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy is two retries starting at 500ms, capped at 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
}

// RetryPolicyFromConfig reads the [generation] retry settings.
func RetryPolicyFromConfig(cfg config.Generation) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  time.Duration(cfg.RetryBaseMillis) * time.Millisecond,
		MaxDelay:   time.Duration(cfg.RetryMaxMillis) * time.Millisecond,
	}
}

// Delay returns the wait before retry n (1-based). A server hint wins but is
// still capped.
func (p RetryPolicy) Delay(n int, hint time.Duration) time.Duration {
	if hint > 0 {
		return p.cap(hint)
	}
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < n; i++ {
		if p.MaxDelay > 0 && delay > p.MaxDelay/2 {
			return p.MaxDelay
		}
		delay *= 2
	}
	return p.cap(delay)
}

func (p RetryPolicy) cap(d time.Duration) time.Duration {
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Sleeper waits for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// callProvider runs one provider request with retries on transient failures.
// It returns the number of attempts made.
func (o *Orchestrator) callProvider(ctx context.Context, req provider.Request) (provider.Image, int, error) {
	logger := logging.WithContext(ctx, o.logger)
	for attempt := 1; ; attempt++ {
		img, err := o.provider.Generate(ctx, req)
		if err == nil {
			return img, attempt, nil
		}
		if ctx.Err() != nil {
			return provider.Image{}, attempt, ctx.Err()
		}
		transient, hint := provider.IsTransient(err)
		if !transient || attempt > o.retry.MaxRetries {
			return provider.Image{}, attempt, err
		}
		delay := o.retry.Delay(attempt, hint)
		logging.WarnWithContext(logger, "provider call failed; retrying", "provider_retry",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.String(logging.FieldImpact, "generation is delayed"),
			logging.Error(err),
		)
		if err := o.sleep(ctx, delay); err != nil {
			return provider.Image{}, attempt, err
		}
	}
}
