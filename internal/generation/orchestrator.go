// Package generation turns a confirmed brand and a prompt into a
// logo-stamped asset. The provider result is fitted to the platform canvas,
// optionally captioned and animated, always composited, then persisted.
package generation

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"brandkit/internal/blobstore"
	"brandkit/internal/brand"
	"brandkit/internal/compositor"
	"brandkit/internal/events"
	"brandkit/internal/logging"
	"brandkit/internal/platform"
	"brandkit/internal/services"
	"brandkit/internal/services/provider"
)

// Generation stages.
const (
	StageGenerating  = "generating"
	StageCompositing = "compositing"
	StagePersisting  = "persisting"
	StageComplete    = events.StageComplete
	StageError       = events.StageError
)

var stagePercent = map[string]int{
	StageGenerating:  10,
	StageCompositing: 60,
	StagePersisting:  85,
	StageComplete:    100,
}

// Store is the persistence the orchestrator needs.
type Store interface {
	GetBrand(ctx context.Context, id string) (*brand.Profile, error)
	InsertAsset(ctx context.Context, a *brand.ContentAsset) error
}

// Blobs stores base and final media.
type Blobs interface {
	PutBytes(key string, data []byte) (blobstore.Object, error)
	ReadAll(ref string) ([]byte, error)
	Delete(ref string) error
}

// Compositor stamps the logo.
type Compositor interface {
	Composite(ctx context.Context, in compositor.Input) (compositor.Output, error)
}

// Animator renders a keyframe into a clip.
type Animator interface {
	Animate(ctx context.Context, keyframe, output string, width, height, seconds int) error
}

// Orchestrator runs generation requests.
type Orchestrator struct {
	store      Store
	blobs      Blobs
	provider   provider.Provider
	compositor Compositor
	animator   Animator
	events     events.Publisher
	logger     *slog.Logger
	retry      RetryPolicy
	sleep      Sleeper
	timeout    time.Duration
	tempDir    string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAnimator enables video generation.
func WithAnimator(a Animator) Option {
	return func(o *Orchestrator) { o.animator = a }
}

// WithRetryPolicy overrides provider retries.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

// WithSleeper replaces the retry wait, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sleep = s
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTempDir sets where video intermediates are written.
func WithTempDir(dir string) Option {
	return func(o *Orchestrator) { o.tempDir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New constructs an orchestrator. pub may be nil.
func New(st Store, blobs Blobs, prov provider.Provider, comp Compositor, pub events.Publisher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      st,
		blobs:      blobs,
		provider:   prov,
		compositor: comp,
		events:     pub,
		logger:     logging.NewNop(),
		retry:      DefaultRetryPolicy(),
		sleep:      sleepContext,
		timeout:    3 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "generation")
	return o
}

// run tracks one request for event reporting.
type run struct {
	o       *Orchestrator
	brandID string
	assetID string
	percent int
}

func (r *run) emit(stage, message, kind string) {
	if p, ok := stagePercent[stage]; ok {
		r.percent = p
	}
	if r.o.events == nil {
		return
	}
	r.o.events.Publish(events.Event{
		BrandID: r.brandID,
		AssetID: r.assetID,
		Task:    events.TaskGeneration,
		Stage:   stage,
		Percent: r.percent,
		Message: message,
		Kind:    kind,
	})
}

// Generate produces one asset for req. Every returned asset has its logo
// composited; a brand without a logo fails with MissingLogo before the
// provider is called.
func (o *Orchestrator) Generate(ctx context.Context, req brand.GenerationRequest) (*brand.ContentAsset, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	spec, err := platform.Parse(string(req.PlatformID))
	if err != nil {
		return nil, err
	}
	profile, err := o.store.GetBrand(ctx, req.BrandID)
	if err != nil {
		return nil, err
	}
	if !profile.HasLogo() {
		return nil, services.Wrap(services.ErrMissingLogo, "generation", "generate",
			"brand has no logo; upload one before generating", nil)
	}
	if err := profile.ReadyForGeneration(); err != nil {
		return nil, err
	}
	logoData, err := o.loadLogo(profile)
	if err != nil {
		return nil, err
	}
	if req.ContentType == brand.ContentVideo && o.animator == nil {
		return nil, services.Wrap(services.ErrConfiguration, "generation", "generate", "video generation requires ffmpeg", nil)
	}

	assetID := uuid.NewString()
	ctx = services.WithAssetID(services.WithBrandID(ctx, profile.ID), assetID)
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	r := &run{o: o, brandID: profile.ID, assetID: assetID}
	asset, err := o.generate(ctx, r, profile, req, spec, logoData)
	if err != nil {
		err = o.classify(ctx, err)
		r.emit(StageError, services.Message(err), services.Kind(err))
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "generation failed", "generation_failed",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String("platform", string(req.PlatformID)),
			logging.String(logging.FieldImpact, "no asset was stored"),
			logging.Error(err),
		)
		return nil, err
	}
	r.emit(StageComplete, "asset ready", "")
	return asset, nil
}

func (o *Orchestrator) generate(ctx context.Context, r *run, profile *brand.Profile, req brand.GenerationRequest, spec platform.Spec, logoData []byte) (*brand.ContentAsset, error) {
	started := time.Now()
	logger := logging.WithContext(ctx, o.logger)

	r.emit(StageGenerating, "calling "+o.provider.Name(), "")
	prompt := EnrichPrompt(profile, req.Prompt, spec)
	img, attempts, err := o.callProvider(ctx, provider.Request{
		Prompt:      prompt,
		Width:       spec.Width,
		Height:      spec.Height,
		AspectRatio: spec.AspectRatio,
	})
	if err != nil {
		return nil, err
	}
	baseData, err := FitCrop(img.Data, spec.Width, spec.Height)
	if err != nil {
		return nil, err
	}
	if req.CopyText != "" {
		baseData, err = drawCopy(baseData, req.CopyText, profile.Colors.Text)
		if err != nil {
			return nil, err
		}
	}
	ext := "png"
	if req.ContentType == brand.ContentVideo {
		baseData, err = o.animate(ctx, baseData, spec, req.DurationSeconds)
		if err != nil {
			return nil, err
		}
		ext = "mp4"
	}

	prefix := fmt.Sprintf("brands/%s/assets/%s/", profile.ID, r.assetID)
	base, err := o.blobs.PutBytes(prefix+"base."+ext, baseData)
	if err != nil {
		return nil, fmt.Errorf("store base asset: %w", err)
	}

	r.emit(StageCompositing, "applying logo", "")
	out, err := o.compositor.Composite(ctx, compositor.Input{
		Kind: req.ContentType,
		Base: baseData,
		Logo: logoData,
		Spec: *profile.Logo,
	})
	if err != nil {
		o.discard(logger, base.Ref)
		return nil, err
	}

	r.emit(StagePersisting, "saving asset", "")
	final, err := o.blobs.PutBytes(prefix+"final."+ext, out.Data)
	if err != nil {
		o.discard(logger, base.Ref)
		return nil, fmt.Errorf("store final asset: %w", err)
	}
	asset := &brand.ContentAsset{
		ID:          r.assetID,
		BrandID:     profile.ID,
		ContentType: req.ContentType,
		PlatformID:  spec.ID,
		BaseRef:     base.Ref,
		FinalRef:    final.Ref,
		FinalURL:    brand.AssetFileURL(r.assetID),
		Width:       out.Width,
		Height:      out.Height,
		Prompt:      prompt,
		Provider:    o.provider.Name(),
		CreatedAt:   time.Now().UTC(),
	}
	if req.ContentType == brand.ContentVideo {
		asset.DurationSeconds = req.DurationSeconds
	}
	if err := o.store.InsertAsset(context.WithoutCancel(ctx), asset); err != nil {
		o.discard(logger, base.Ref, final.Ref)
		return nil, err
	}

	logger.Info("asset generated",
		logging.String(logging.FieldEventType, "generation_complete"),
		logging.String("platform", string(spec.ID)),
		logging.String("content_type", string(req.ContentType)),
		logging.Int("provider_attempts", attempts),
		logging.Int64("final_bytes", final.SizeBytes),
		logging.Duration("elapsed", time.Since(started)),
	)
	return asset, nil
}

// drawCopy renders copy text in the brand text color, falling back to white
// when the stored color does not parse.
func drawCopy(data []byte, text, textHex string) ([]byte, error) {
	fill, err := brand.ParseHex(textHex)
	if err != nil {
		fill = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	}
	return compositor.DrawCopy(data, text, fill)
}

func (o *Orchestrator) loadLogo(profile *brand.Profile) ([]byte, error) {
	data, err := o.blobs.ReadAll(profile.Logo.AssetRef)
	if err != nil {
		if services.IsKind(err, services.ErrNotFound) {
			return nil, services.Wrap(services.ErrMissingLogo, "generation", "generate", "logo file is missing; upload it again", err)
		}
		return nil, fmt.Errorf("read logo: %w", err)
	}
	return data, nil
}

func (o *Orchestrator) animate(ctx context.Context, keyframe []byte, spec platform.Spec, seconds int) ([]byte, error) {
	dir, err := os.MkdirTemp(o.tempDir, "animate-*")
	if err != nil {
		return nil, fmt.Errorf("create animation workspace: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	keyPath := filepath.Join(dir, "keyframe.png")
	if err := os.WriteFile(keyPath, keyframe, 0o600); err != nil {
		return nil, fmt.Errorf("write keyframe: %w", err)
	}
	outPath := filepath.Join(dir, "base.mp4")
	if err := o.animator.Animate(ctx, keyPath, outPath, spec.Width, spec.Height, seconds); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read animated clip: %w", err)
	}
	return data, nil
}

func (o *Orchestrator) discard(logger *slog.Logger, refs ...string) {
	for _, ref := range refs {
		if err := o.blobs.Delete(ref); err != nil {
			logging.WarnWithContext(logger, "failed to remove intermediate blob", "blob_cleanup_failed",
				logging.String("ref", ref),
				logging.String(logging.FieldImpact, "orphaned file left in blob storage"),
				logging.Error(err),
			)
		}
	}
}

// classify maps an ended context onto Timeout or Canceled.
func (o *Orchestrator) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "generation", "generate",
			fmt.Sprintf("generation exceeded %s", o.timeout), err)
	case errors.Is(ctx.Err(), context.Canceled):
		return services.Wrap(services.ErrCanceled, "generation", "generate", "generation canceled", err)
	}
	return err
}
