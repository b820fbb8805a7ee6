package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	BlobDir  string `toml:"blob_dir"`
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
	LockPath string `toml:"lock_path"`
}

// API contains the daemon HTTP bind address and bearer token.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Crawler bounds how much of a site is fetched per extraction.
type Crawler struct {
	MaxPages       int    `toml:"max_pages"`
	BudgetSeconds  int    `toml:"budget_seconds"`
	UserAgent      string `toml:"user_agent"`
	MaxPageBytes   int64  `toml:"max_page_bytes"`
	MaxStylesheets int    `toml:"max_stylesheets"`
	MaxImages      int    `toml:"max_images"`
	// Screenshots renders the homepage in headless Chrome for the color pass.
	// It only takes effect when ChromeBinary resolves.
	Screenshots       bool   `toml:"screenshots"`
	ChromeBinary      string `toml:"chrome_binary"`
	ViewportWidth     int    `toml:"viewport_width"`
	ViewportHeight    int    `toml:"viewport_height"`
	ScreenshotSeconds int    `toml:"screenshot_seconds"`
}

// Analysis tunes the default brand analyzers.
type Analysis struct {
	KeywordLimit      int     `toml:"keyword_limit"`
	SaliencyThreshold float64 `toml:"saliency_threshold"`
}

// Pipeline contains extraction pipeline limits.
type Pipeline struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Generation contains orchestrator limits and retry policy.
type Generation struct {
	TimeoutSeconds      int `toml:"timeout_seconds"`
	MaxRetries          int `toml:"max_retries"`
	RetryBaseMillis     int `toml:"retry_base_ms"`
	RetryMaxMillis      int `toml:"retry_max_ms"`
	DefaultVideoSeconds int `toml:"default_video_seconds"`
}

// Provider selects and configures the generative image backend.
type Provider struct {
	Kind           string `toml:"kind"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains connection settings for the optional tone classifier.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// FFmpeg names the media binaries used for video compositing and transcoding.
type FFmpeg struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Export configures the download variant cache.
type Export struct {
	CacheMaxBytes int64 `toml:"cache_max_bytes"`
}

// Notifications configures ntfy push notifications for finished tasks.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	Token          string `toml:"token"`
	RequestTimeout int    `toml:"request_timeout"`
	Extraction     bool   `toml:"extraction"`
	Generation     bool   `toml:"generation"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	RetentionDays  int               `toml:"retention_days"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for brandkit.
//
// Configuration sections by subsystem:
//   - Paths: database, blob, cache, and log directories
//   - API: daemon bind address and token
//   - Crawler, Analysis, Pipeline: brand extraction
//   - Generation, Provider, LLM: on-brand asset generation
//   - FFmpeg, Export: video compositing and download variants
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	API        API        `toml:"api"`
	Crawler    Crawler    `toml:"crawler"`
	Analysis   Analysis   `toml:"analysis"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Generation Generation `toml:"generation"`
	Provider   Provider   `toml:"provider"`
	LLM        LLM        `toml:"llm"`
	FFmpeg     FFmpeg     `toml:"ffmpeg"`
	Export        Export        `toml:"export"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("brandkit.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.BlobDir, c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "brandkit.db")
}

// PipelineTimeout returns the whole-extraction deadline.
func (c *Config) PipelineTimeout() time.Duration {
	return time.Duration(c.Pipeline.TimeoutSeconds) * time.Second
}

// CrawlBudget returns the crawler's total time budget.
func (c *Config) CrawlBudget() time.Duration {
	return time.Duration(c.Crawler.BudgetSeconds) * time.Second
}

// ScreenshotTimeout bounds a single homepage render.
func (c *Config) ScreenshotTimeout() time.Duration {
	return time.Duration(c.Crawler.ScreenshotSeconds) * time.Second
}

// ChromeBinary returns the headless Chrome executable used for screenshots.
func (c *Config) ChromeBinary() string {
	if strings.TrimSpace(c.Crawler.ChromeBinary) == "" {
		return defaultChromeBinary
	}
	return c.Crawler.ChromeBinary
}

// NotificationsEnabled reports whether an ntfy topic is configured.
func (c *Config) NotificationsEnabled() bool {
	return strings.TrimSpace(c.Notifications.NtfyTopic) != ""
}

// NotificationTimeout bounds a single ntfy request.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// GenerationTimeout returns the per-request generation deadline.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSeconds) * time.Second
}

// FFmpegBinary returns the ffmpeg executable used for video work.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.FFmpeg.FFmpegBinary) == "" {
		return "ffmpeg"
	}
	return c.FFmpeg.FFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if strings.TrimSpace(c.FFmpeg.FFprobeBinary) == "" {
		return "ffprobe"
	}
	return c.FFmpeg.FFprobeBinary
}

// LLMEnabled reports whether the tone classifier has credentials.
func (c *Config) LLMEnabled() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "brandkit", "variants")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/brandkit/variants"
	}
	return filepath.Join(home, ".cache", "brandkit", "variants")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
