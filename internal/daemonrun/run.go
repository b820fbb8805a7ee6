package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"brandkit/internal/analyzer"
	"brandkit/internal/blobstore"
	"brandkit/internal/compositor"
	"brandkit/internal/config"
	"brandkit/internal/crawler"
	"brandkit/internal/daemon"
	"brandkit/internal/events"
	"brandkit/internal/export"
	"brandkit/internal/extraction"
	"brandkit/internal/generation"
	"brandkit/internal/logging"
	"brandkit/internal/media/ffmpeg"
	"brandkit/internal/notifications"
	"brandkit/internal/preflight"
	"brandkit/internal/services/chrome"
	"brandkit/internal/services/llm"
	"brandkit/internal/services/provider"
	"brandkit/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the brandkit daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, logging.RunLogName(runID))
	logHub := logging.NewStreamHub(4096)

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		StageOverrides:   cfg.Logging.StageOverrides,
		Hub:              logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	statuses := preflight.CheckSystemDeps(cfg)
	logDependencySnapshot(logger, cfg, statuses)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath)
	pidPath := filepath.Join(cfg.Paths.LogDir, "brandkit.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	blobs, err := blobstore.New(cfg.Paths.BlobDir)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("open blob store: %w", err)
	}

	deps := buildDeps(cfg, logger, st, blobs, statuses)
	deps.LogHub = logHub

	d, err := daemon.New(cfg, logger, deps)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running brandkitd and database access"),
		)
		return err
	}
	if fwd := newForwarder(cfg, logger, st); fwd != nil {
		fwd.Start(signalCtx, deps.Events)
	}

	<-signalCtx.Done()
	logger.Info("brandkit daemon shutting down")
	return nil
}

// buildDeps constructs the extraction, generation, and export pipelines.
// Video features are wired only when ffmpeg and ffprobe resolved, and
// homepage screenshots only when Chrome did.
func buildDeps(cfg *config.Config, logger *slog.Logger, st *store.Store, blobs *blobstore.Store, statuses []preflight.Status) daemon.Deps {
	hub := events.NewHub(1024)
	videoReady := preflight.VideoReady(statuses)

	var classifier analyzer.Classifier
	if cfg.LLMEnabled() {
		classifier = llm.NewClient(llm.ConfigFromSettings(cfg.LLM))
	}
	manager := extraction.NewManager(st,
		crawler.New(crawler.OptionsFromConfig(cfg), crawlerOptions(cfg, logger, statuses)...),
		analyzer.New(cfg, classifier, logger),
		hub,
		extraction.WithTimeout(cfg.PipelineTimeout()),
		extraction.WithLogger(logger),
	)

	prov, err := provider.New(cfg.Provider)
	if err != nil {
		logging.WarnWithContext(logger, "image provider unavailable", "provider_unconfigured",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set [provider] api_key or OPENROUTER_API_KEY"),
			logging.String(logging.FieldImpact, "generation requests will fail"),
		)
		prov = disabledProvider{err: err}
	}

	runner := ffmpeg.FromConfig(cfg, ffmpeg.WithLogger(logger))
	var video compositor.VideoTool
	genOpts := []generation.Option{
		generation.WithRetryPolicy(generation.RetryPolicyFromConfig(cfg.Generation)),
		generation.WithTimeout(cfg.GenerationTimeout()),
		generation.WithTempDir(cfg.Paths.CacheDir),
		generation.WithLogger(logger),
	}
	exportOpts := []export.Option{
		export.WithCacheMaxBytes(cfg.Export.CacheMaxBytes),
		export.WithTempDir(cfg.Paths.CacheDir),
		export.WithLogger(logger),
	}
	if videoReady {
		video = runner
		genOpts = append(genOpts, generation.WithAnimator(runner))
		exportOpts = append(exportOpts, export.WithTranscoder(runner))
	}

	return daemon.Deps{
		Store:      st,
		Blobs:      blobs,
		Events:     hub,
		Extraction: manager,
		Generation: generation.New(st, blobs, prov, compositor.New(video, cfg.Paths.CacheDir, logger), hub, genOpts...),
		Export:     export.New(st, blobs, exportOpts...),
	}
}

func crawlerOptions(cfg *config.Config, logger *slog.Logger, statuses []preflight.Status) []crawler.Option {
	opts := []crawler.Option{crawler.WithLogger(logger)}
	if r := newRenderer(cfg, logger, statuses); r != nil {
		opts = append(opts, crawler.WithRenderer(r))
	}
	return opts
}

// newRenderer returns nil when screenshots are off or Chrome is missing.
func newRenderer(cfg *config.Config, logger *slog.Logger, statuses []preflight.Status) *chrome.Renderer {
	path, ok := preflight.ScreenshotReady(statuses)
	if !ok {
		return nil
	}
	return chrome.FromConfig(cfg, path, chrome.WithLogger(logger))
}

// newForwarder returns nil when no ntfy topic is configured.
func newForwarder(cfg *config.Config, logger *slog.Logger, st *store.Store) *notifications.Forwarder {
	if !cfg.NotificationsEnabled() {
		return nil
	}
	names := func(ctx context.Context, brandID string) string {
		p, err := st.GetBrand(ctx, brandID)
		if err != nil {
			return ""
		}
		return p.Name
	}
	return notifications.NewForwarder(notifications.NewService(cfg), cfg.Notifications,
		notifications.WithBrandNames(names),
		notifications.WithLogger(logger),
	)
}

// disabledProvider reports the provider configuration error on every request.
type disabledProvider struct{ err error }

func (disabledProvider) Name() string { return "disabled" }

func (p disabledProvider) Generate(context.Context, provider.Request) (provider.Image, error) {
	return provider.Image{}, p.err
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config, statuses []preflight.Status) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("provider_kind", cfg.Provider.Kind),
		logging.Bool("provider_key_present", strings.TrimSpace(cfg.Provider.APIKey) != ""),
		logging.Bool("llm_enabled", cfg.LLMEnabled()),
		logging.String("api_bind", cfg.API.Bind),
		logging.Bool("api_token_set", cfg.API.Token != ""),
	}
	for _, s := range statuses {
		key := strings.ToLower(s.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", s.Available),
			logging.String(key+"_binary", s.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
