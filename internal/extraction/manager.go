// Package extraction runs the crawl-then-analyze pipeline for a brand as a
// background task, persisting its status and publishing progress events.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"brandkit/internal/analyzer"
	"brandkit/internal/brand"
	"brandkit/internal/crawler"
	"brandkit/internal/events"
	"brandkit/internal/logging"
	"brandkit/internal/services"
)

const defaultTimeout = 60 * time.Second

// Store is the persistence the pipeline needs.
type Store interface {
	CreateBrand(ctx context.Context, p *brand.Profile) error
	GetBrand(ctx context.Context, id string) (*brand.Profile, error)
	UpdateExtraction(ctx context.Context, id string, status brand.ExtractionStatus, failure *brand.ExtractionError) error
	CompleteExtraction(ctx context.Context, p *brand.Profile) error
}

// Analyzer runs the analysis passes one at a time so each can be reported as
// its own stage.
type Analyzer interface {
	RunColors(ctx context.Context, art *crawler.Artifacts, a *analyzer.Analysis)
	RunTypography(ctx context.Context, art *crawler.Artifacts, a *analyzer.Analysis)
	RunTone(ctx context.Context, art *crawler.Artifacts, a *analyzer.Analysis)
}

// Manager owns the active extraction runs. At most one run exists per brand
// and per normalized source URL.
type Manager struct {
	store    Store
	crawler  crawler.Fetcher
	analyzer Analyzer
	events   events.Publisher
	logger   *slog.Logger
	timeout  time.Duration

	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu     sync.Mutex
	runs   map[string]*run
	byURL  map[string]string
	closed bool
}

type run struct {
	brandID string
	url     string
	name    string
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTimeout bounds each run.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager constructs a manager. pub may be nil.
func NewManager(store Store, fetcher crawler.Fetcher, an Analyzer, pub events.Publisher, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:     store,
		crawler:   fetcher,
		analyzer:  an,
		events:    pub,
		logger:    logging.NewNop(),
		timeout:   defaultTimeout,
		baseCtx:   ctx,
		cancelAll: cancel,
		runs:      make(map[string]*run),
		byURL:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "extraction")
	return m
}

// Start creates a pending brand for rawURL and extracts it in the background.
// A non-empty name is kept instead of the crawled page title. The returned
// profile is the pending snapshot.
func (m *Manager) Start(ctx context.Context, rawURL, name string) (*brand.Profile, error) {
	target, err := crawler.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	name, err = brand.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	key := target.String()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, services.Wrap(services.ErrCanceled, "extraction", "start", "extraction manager is shutting down", nil)
	}
	if active, ok := m.byURL[key]; ok {
		return nil, services.Wrap(services.ErrAlreadyInProgress, "extraction", "start",
			fmt.Sprintf("extraction of %s already running as brand %s", key, active), nil)
	}

	initial := name
	if initial == "" {
		initial = target.Hostname()
	}
	profile := brand.NewProfile(uuid.NewString(), initial, key)
	if err := m.store.CreateBrand(ctx, profile); err != nil {
		return nil, fmt.Errorf("create brand: %w", err)
	}

	runCtx, cancel := context.WithCancel(m.baseCtx)
	r := &run{brandID: profile.ID, url: key, name: name, cancel: cancel, done: make(chan struct{})}
	m.runs[profile.ID] = r
	m.byURL[key] = profile.ID
	m.wg.Add(1)

	snapshot := *profile
	go m.execute(runCtx, r, profile)
	return &snapshot, nil
}

// Retry starts a fresh extraction of a failed brand's source URL. The failed
// brand itself is left untouched and the new brand takes the page title.
func (m *Manager) Retry(ctx context.Context, brandID string) (*brand.Profile, error) {
	if m.isActive(brandID) {
		return nil, services.Wrap(services.ErrAlreadyInProgress, "extraction", "retry", "extraction is still running", nil)
	}
	previous, err := m.store.GetBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}
	if previous.ExtractionStatus != brand.StatusFailed {
		return nil, services.Wrap(services.ErrValidation, "extraction", "retry",
			"only failed extractions can be retried; brand is "+string(previous.ExtractionStatus), nil)
	}
	return m.Start(ctx, previous.SourceURL, "")
}

// Cancel stops the active run for brandID and waits until the crawler has
// returned and released its connections.
func (m *Manager) Cancel(ctx context.Context, brandID string) error {
	m.mu.Lock()
	r, ok := m.runs[brandID]
	m.mu.Unlock()
	if !ok {
		return services.Wrap(services.ErrNotFound, "extraction", "cancel", "no active extraction for brand "+brandID, nil)
	}
	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the run for brandID finishes. It returns immediately when
// no run is active.
func (m *Manager) Wait(ctx context.Context, brandID string) error {
	m.mu.Lock()
	r, ok := m.runs[brandID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active returns the brand IDs with a running extraction.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown cancels every run and waits for them to finish or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancelAll()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) isActive(brandID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runs[brandID]
	return ok
}

func (m *Manager) finish(r *run) {
	m.mu.Lock()
	delete(m.runs, r.brandID)
	if m.byURL[r.url] == r.brandID {
		delete(m.byURL, r.url)
	}
	m.mu.Unlock()
	close(r.done)
	m.wg.Done()
}

// progress tracks the current stage of one run.
type progress struct {
	m       *Manager
	brandID string
	stage   Stage
	percent int
	logger  *slog.Logger
}

func (p *progress) emit(stage Stage, message, kind string) {
	if stage != StageError {
		p.percent = stage.Percent()
	}
	p.stage = stage
	if p.m.events != nil {
		p.m.events.Publish(events.Event{
			BrandID: p.brandID,
			Task:    events.TaskExtraction,
			Stage:   string(stage),
			Percent: p.percent,
			Message: message,
			Kind:    kind,
		})
	}
}

// advance persists the status of the next stage and announces it.
func (p *progress) advance(ctx context.Context, stage Stage, message string) error {
	if stage.Status() != p.stage.Status() {
		if err := p.m.store.UpdateExtraction(ctx, p.brandID, stage.Status(), nil); err != nil {
			return fmt.Errorf("persist %s: %w", stage, err)
		}
	}
	p.emit(stage, message, "")
	p.logger.Info("extraction stage",
		logging.String(logging.FieldEventType, "extraction_stage"),
		logging.String(logging.FieldStage, string(stage)),
		logging.Int("percent", p.percent),
	)
	return nil
}

func (m *Manager) execute(runCtx context.Context, r *run, profile *brand.Profile) {
	defer m.finish(r)
	defer r.cancel()

	ctx := services.WithBrandID(runCtx, r.brandID)
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	logger := logging.WithContext(ctx, m.logger)
	p := &progress{m: m, brandID: r.brandID, stage: StageIdle, logger: logger}
	p.emit(StageIdle, "queued "+r.url, "")

	fail := func(err error) {
		m.fail(ctx, runCtx, p, err)
	}

	if err := p.advance(ctx, StageCrawling, "crawling "+r.url); err != nil {
		fail(err)
		return
	}
	art, err := m.crawler.Crawl(ctx, r.url)
	if err != nil {
		fail(err)
		return
	}
	if title := strings.TrimSpace(art.Title); title != "" && r.name == "" {
		profile.Name = title
	}

	result := analyzer.NewAnalysis()
	steps := []struct {
		stage   Stage
		message string
		run     func(context.Context, *crawler.Artifacts, *analyzer.Analysis)
	}{
		{StageAnalyzingColors, "extracting palette", m.analyzer.RunColors},
		{StageAnalyzingFonts, "detecting typography", m.analyzer.RunTypography},
		{StageAnalyzingTone, "classifying tone", m.analyzer.RunTone},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}
		if err := p.advance(ctx, step.stage, step.message); err != nil {
			fail(err)
			return
		}
		step.run(ctx, art, result)
	}
	if err := ctx.Err(); err != nil {
		fail(err)
		return
	}
	if !result.Usable() {
		fail(result.Report.Err())
		return
	}

	result.Apply(profile)
	if err := m.store.CompleteExtraction(context.WithoutCancel(ctx), profile); err != nil {
		fail(err)
		return
	}
	message := "extraction complete"
	kind := ""
	if partial := result.Report.Err(); partial != nil {
		message = services.Message(partial)
		kind = services.Kind(partial)
	}
	p.emit(StageComplete, message, kind)
	logger.Info("extraction complete",
		logging.String(logging.FieldEventType, "extraction_complete"),
		logging.String("primary", profile.Colors.Primary),
		logging.String("heading_font", profile.Typography.HeadingFont),
		logging.String("tone", profile.Tone),
		logging.Int("failed_passes", len(result.Report.Failures)),
	)
}

// fail records the terminal error. A pipeline deadline is reported as
// Timeout and a canceled run as Canceled, whatever the failing step returned.
func (m *Manager) fail(ctx, runCtx context.Context, p *progress, err error) {
	kind := services.Kind(err)
	message := services.Message(err)
	switch {
	case runCtx.Err() != nil:
		kind = services.ErrCanceled.Kind()
		message = "extraction canceled"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = services.ErrTimeout.Kind()
		message = fmt.Sprintf("extraction exceeded %s", m.timeout)
	}

	logger := logging.WithContext(ctx, m.logger)
	failure := &brand.ExtractionError{Kind: kind, Message: message}
	if perr := m.store.UpdateExtraction(context.WithoutCancel(ctx), p.brandID, brand.StatusFailed, failure); perr != nil {
		logging.ErrorWithContext(logger, "persist extraction failure", "extraction_persist_failed",
			logging.Error(perr),
			logging.String(logging.FieldErrorHint, "check the database path and disk space"),
		)
	}
	p.emit(StageError, message, kind)
	logging.WarnWithContext(logger, "extraction failed", "extraction_failed",
		logging.String(logging.FieldErrorKind, kind),
		logging.String(logging.FieldStage, string(p.stage)),
		logging.String(logging.FieldImpact, "brand marked failed; retry creates a new extraction"),
		logging.Error(err),
	)
}
