package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"brandkit/internal/blobstore"
	"brandkit/internal/brand"
	"brandkit/internal/config"
	"brandkit/internal/events"
	"brandkit/internal/logging"
	"brandkit/internal/preflight"
	"brandkit/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Extractor runs brand extractions in the background.
type Extractor interface {
	Start(ctx context.Context, rawURL, name string) (*brand.Profile, error)
	Retry(ctx context.Context, brandID string) (*brand.Profile, error)
	Cancel(ctx context.Context, brandID string) error
	Active() []string
	Shutdown(ctx context.Context) error
}

// Generator produces one composited asset per request.
type Generator interface {
	Generate(ctx context.Context, req brand.GenerationRequest) (*brand.ContentAsset, error)
}

// Exporter renders and caches download variants.
type Exporter interface {
	Load(ctx context.Context) error
	Export(ctx context.Context, asset *brand.ContentAsset, format, quality string) (*brand.DownloadVariant, error)
	Lookup(ctx context.Context, assetID, format, quality string) (*brand.DownloadVariant, error)
	CachedBytes() int64
}

// Deps are the components the daemon serves. LogHub may be nil.
type Deps struct {
	Store      *store.Store
	Blobs      *blobstore.Store
	Events     *events.Hub
	LogHub     *logging.StreamHub
	Extraction Extractor
	Generation Generator
	Export     Exporter
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Deps
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time

	mu        sync.Mutex
	preflight []preflight.Result
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running           bool
	PID               int
	StartedAt         time.Time
	DatabasePath      string
	LockFilePath      string
	ActiveExtractions []string
	CacheBytes        int64
	Preflight         []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Daemon, error) {
	if cfg == nil || deps.Store == nil || deps.Blobs == nil || deps.Extraction == nil || deps.Generation == nil || deps.Export == nil {
		return nil, errors.New("daemon requires config, store, blobs, extraction, generation, and export")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		deps:     deps,
		lockPath: cfg.Paths.LockPath,
		lock:     flock.New(cfg.Paths.LockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers state left by a previous run, and
// begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another brandkit daemon instance is already running")
	}

	if n, err := d.deps.Store.FailInterrupted(ctx, "daemon restarted before extraction finished"); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted extractions: %w", err)
	} else if n > 0 {
		logging.WarnWithContext(d.logger, "interrupted extractions marked failed", "extraction_recovered",
			logging.Int64("count", n),
			logging.String(logging.FieldErrorHint, "retry the affected brands"),
		)
	}
	if err := d.deps.Export.Load(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("load variant cache: %w", err)
	}

	results := preflight.RunAll(ctx, d.cfg)
	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.mu.Lock()
	d.cancel = cancel
	d.preflight = results
	d.startedAt = time.Now()
	d.mu.Unlock()

	d.running.Store(true)
	d.logger.Info("brandkit daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
	)
	return nil
}

// Stop cancels running extractions, stops the API, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.deps.Extraction.Shutdown(shutdownCtx); err != nil {
		logging.WarnWithContext(d.logger, "extractions did not stop in time", "daemon_shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "brands may stay non-terminal until the next start"),
		)
	}
	d.api.stop()

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()

	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("brandkit daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.deps.Store.Close()
}

// Addr returns the API listen address, or "" when the API is not serving.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	active := d.deps.Extraction.Active()
	sort.Strings(active)

	d.mu.Lock()
	results := append([]preflight.Result(nil), d.preflight...)
	started := d.startedAt
	d.mu.Unlock()

	return Status{
		Running:           d.running.Load(),
		PID:               os.Getpid(),
		StartedAt:         started,
		DatabasePath:      d.deps.Store.Path(),
		LockFilePath:      d.lockPath,
		ActiveExtractions: active,
		CacheBytes:        d.deps.Export.CachedBytes(),
		Preflight:         results,
	}
}
