package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCrawler(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateProvider(); err != nil {
		return err
	}
	if c.Export.CacheMaxBytes <= 0 {
		return errors.New("export.cache_max_bytes must be positive")
	}
	return c.validateNotifications()
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		u, err := url.Parse(topic)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
		}
	}
	return nil
}

func (c *Config) validateCrawler() error {
	if c.Crawler.MaxPages < 0 {
		return errors.New("crawler.max_pages must be >= 0")
	}
	if c.Crawler.MaxStylesheets < 0 {
		return errors.New("crawler.max_stylesheets must be >= 0")
	}
	if c.Crawler.MaxImages < 0 {
		return errors.New("crawler.max_images must be >= 0")
	}
	if err := ensurePositiveMap(map[string]int{
		"crawler.budget_seconds":   c.Crawler.BudgetSeconds,
		"pipeline.timeout_seconds": c.Pipeline.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Crawler.BudgetSeconds > c.Pipeline.TimeoutSeconds {
		return errors.New("crawler.budget_seconds must not exceed pipeline.timeout_seconds")
	}
	if c.Crawler.Screenshots {
		if err := ensurePositiveMap(map[string]int{
			"crawler.viewport_width":     c.Crawler.ViewportWidth,
			"crawler.viewport_height":    c.Crawler.ViewportHeight,
			"crawler.screenshot_seconds": c.Crawler.ScreenshotSeconds,
		}); err != nil {
			return err
		}
		if c.Crawler.ScreenshotSeconds > c.Crawler.BudgetSeconds {
			return errors.New("crawler.screenshot_seconds must not exceed crawler.budget_seconds")
		}
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.KeywordLimit <= 0 {
		return errors.New("analysis.keyword_limit must be positive")
	}
	if c.Analysis.SaliencyThreshold < 0 || c.Analysis.SaliencyThreshold >= 1 {
		return errors.New("analysis.saliency_threshold must be in [0,1)")
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if c.Generation.MaxRetries < 0 {
		return errors.New("generation.max_retries must be >= 0")
	}
	if c.Generation.DefaultVideoSeconds < 1 || c.Generation.DefaultVideoSeconds > 30 {
		return errors.New("generation.default_video_seconds must be between 1 and 30")
	}
	if c.Generation.RetryMaxMillis < c.Generation.RetryBaseMillis {
		return errors.New("generation.retry_max_ms must be >= generation.retry_base_ms")
	}
	return ensurePositiveMap(map[string]int{
		"generation.timeout_seconds": c.Generation.TimeoutSeconds,
		"generation.retry_base_ms":   c.Generation.RetryBaseMillis,
	})
}

func (c *Config) validateProvider() error {
	switch c.Provider.Kind {
	case "openrouter", "openai":
		return nil
	default:
		return fmt.Errorf("provider.kind %q is not supported (use openrouter or openai)", c.Provider.Kind)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
