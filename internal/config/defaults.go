package config

const (
	defaultConfigPath          = "~/.config/brandkit/config.toml"
	defaultDataDir             = "~/.local/share/brandkit"
	defaultBlobDir             = "~/.local/share/brandkit/blobs"
	defaultLogDir              = "~/.local/share/brandkit/logs"
	defaultAPIBind             = "127.0.0.1:7487"
	defaultLogRetentionDays    = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultCrawlerMaxPages     = 3
	defaultCrawlerBudget       = 20
	defaultCrawlerUserAgent    = "brandkit/dev (+https://github.com/brandkit/brandkit)"
	defaultCrawlerMaxPageBytes = 2 << 20
	defaultCrawlerStylesheets  = 4
	defaultCrawlerImages       = 2
	defaultChromeBinary        = "chromium"
	defaultViewportWidth       = 1280
	defaultViewportHeight      = 800
	defaultScreenshotSeconds   = 10
	defaultKeywordLimit        = 8
	defaultSaliencyThreshold   = 0.02
	defaultPipelineTimeout     = 60
	defaultGenerationTimeout   = 180
	defaultGenerationRetries   = 2
	defaultRetryBaseMillis     = 500
	defaultRetryMaxMillis      = 8000
	defaultVideoSeconds        = 6
	defaultProviderKind        = "openrouter"
	defaultOpenRouterBaseURL   = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel     = "google/gemini-2.5-flash-image-preview"
	defaultOpenAIModel         = "gpt-image-1"
	defaultProviderTimeout     = 120
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-3-flash-preview"
	defaultLLMReferer          = "https://github.com/brandkit/brandkit"
	defaultLLMTitle            = "brandkit Tone Analyzer"
	defaultLLMTimeout          = 30
	defaultExportCacheMaxBytes = 2 << 30
	defaultNotifyTimeout       = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			BlobDir:  defaultBlobDir,
			CacheDir: defaultCacheDir(),
			LogDir:   defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Crawler: Crawler{
			MaxPages:       defaultCrawlerMaxPages,
			BudgetSeconds:  defaultCrawlerBudget,
			UserAgent:      defaultCrawlerUserAgent,
			MaxPageBytes:   defaultCrawlerMaxPageBytes,
			MaxStylesheets: defaultCrawlerStylesheets,
			MaxImages:      defaultCrawlerImages,

			Screenshots:       true,
			ChromeBinary:      defaultChromeBinary,
			ViewportWidth:     defaultViewportWidth,
			ViewportHeight:    defaultViewportHeight,
			ScreenshotSeconds: defaultScreenshotSeconds,
		},
		Analysis: Analysis{
			KeywordLimit:      defaultKeywordLimit,
			SaliencyThreshold: defaultSaliencyThreshold,
		},
		Pipeline: Pipeline{
			TimeoutSeconds: defaultPipelineTimeout,
		},
		Generation: Generation{
			TimeoutSeconds:      defaultGenerationTimeout,
			MaxRetries:          defaultGenerationRetries,
			RetryBaseMillis:     defaultRetryBaseMillis,
			RetryMaxMillis:      defaultRetryMaxMillis,
			DefaultVideoSeconds: defaultVideoSeconds,
		},
		Provider: Provider{
			Kind:           defaultProviderKind,
			BaseURL:        defaultOpenRouterBaseURL,
			Model:          defaultOpenRouterModel,
			TimeoutSeconds: defaultProviderTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeout,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
		},
		Export: Export{
			CacheMaxBytes: defaultExportCacheMaxBytes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Extraction:     true,
			Generation:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
