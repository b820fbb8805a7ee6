package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeCrawler()
	c.normalizeProvider()
	c.normalizeLLM()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.BlobDir) == "" {
		c.Paths.BlobDir = filepath.Join(c.Paths.DataDir, "blobs")
	}
	if c.Paths.BlobDir, err = expandPath(c.Paths.BlobDir); err != nil {
		return fmt.Errorf("paths.blob_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockPath) == "" {
		c.Paths.LockPath = filepath.Join(c.Paths.DataDir, "brandkitd.lock")
	}
	if c.Paths.LockPath, err = expandPath(c.Paths.LockPath); err != nil {
		return fmt.Errorf("paths.lock_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("BRANDKIT_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeCrawler() {
	c.Crawler.UserAgent = strings.TrimSpace(c.Crawler.UserAgent)
	if c.Crawler.UserAgent == "" {
		c.Crawler.UserAgent = defaultCrawlerUserAgent
	}
	if c.Crawler.MaxPageBytes <= 0 {
		c.Crawler.MaxPageBytes = defaultCrawlerMaxPageBytes
	}
	c.Crawler.ChromeBinary = strings.TrimSpace(c.Crawler.ChromeBinary)
	if c.Crawler.ChromeBinary == "" {
		c.Crawler.ChromeBinary = defaultChromeBinary
	}
	if c.Crawler.ViewportWidth == 0 {
		c.Crawler.ViewportWidth = defaultViewportWidth
	}
	if c.Crawler.ViewportHeight == 0 {
		c.Crawler.ViewportHeight = defaultViewportHeight
	}
	if c.Crawler.ScreenshotSeconds == 0 {
		c.Crawler.ScreenshotSeconds = defaultScreenshotSeconds
	}
}

func (c *Config) normalizeProvider() {
	c.Provider.Kind = strings.ToLower(strings.TrimSpace(c.Provider.Kind))
	if c.Provider.Kind == "" {
		c.Provider.Kind = defaultProviderKind
	}
	c.Provider.BaseURL = strings.TrimSpace(c.Provider.BaseURL)
	c.Provider.Model = strings.TrimSpace(c.Provider.Model)
	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)
	switch c.Provider.Kind {
	case "openrouter":
		if c.Provider.BaseURL == "" {
			c.Provider.BaseURL = defaultOpenRouterBaseURL
		}
		if c.Provider.Model == "" {
			c.Provider.Model = defaultOpenRouterModel
		}
		if c.Provider.APIKey == "" {
			if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
				c.Provider.APIKey = strings.TrimSpace(value)
			}
		}
	case "openai":
		// The OpenAI SDK resolves its own default endpoint.
		if c.Provider.BaseURL == defaultOpenRouterBaseURL {
			c.Provider.BaseURL = ""
		}
		if c.Provider.Model == "" || c.Provider.Model == defaultOpenRouterModel {
			c.Provider.Model = defaultOpenAIModel
		}
		if c.Provider.APIKey == "" {
			if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
				c.Provider.APIKey = strings.TrimSpace(value)
			}
		}
	}
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = defaultProviderTimeout
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.Token = strings.TrimSpace(c.Notifications.Token)
	if c.Notifications.Token == "" {
		c.Notifications.Token = strings.TrimSpace(os.Getenv("NTFY_TOKEN"))
	}
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
