package generation_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"brandkit/internal/blobstore"
	"brandkit/internal/brand"
	"brandkit/internal/compositor"
	"brandkit/internal/events"
	"brandkit/internal/generation"
	"brandkit/internal/platform"
	"brandkit/internal/services"
	"brandkit/internal/services/provider"
	"brandkit/internal/store"
	"brandkit/internal/testsupport"
)

type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	requests []provider.Request
	respond  func(ctx context.Context, n int) (provider.Image, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req provider.Request) (provider.Image, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(ctx, n)
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

type failingCompositor struct{}

func (failingCompositor) Composite(context.Context, compositor.Input) (compositor.Output, error) {
	return compositor.Output{}, services.Wrap(services.ErrValidation, "compositor", "composite", "logo could not be decoded", nil)
}

type fixture struct {
	store *store.Store
	blobs *blobstore.Store
	brand *brand.Profile
}

func newFixture(t *testing.T, withLogo bool) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	blobs, err := blobstore.New(cfg.Paths.BlobDir)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	var logo *brand.LogoSpec
	if withLogo {
		obj, err := blobs.PutBytes("logos/acme.png", testsupport.PNGBytes(t, testsupport.SolidImage(40, 40, color.NRGBA{R: 255, A: 255})))
		if err != nil {
			t.Fatalf("PutBytes: %v", err)
		}
		logo, err = brand.NewLogoSpec(obj.Ref, brand.LogoPNG, 40, 40, brand.PositionBottomRight, brand.SizeMedium, 1)
		if err != nil {
			t.Fatalf("NewLogoSpec: %v", err)
		}
	}
	return fixture{store: st, blobs: blobs, brand: testsupport.ReadyBrand(t, st, logo)}
}

func squareImage(t *testing.T) func(context.Context, int) (provider.Image, error) {
	data := testsupport.PNGBytes(t, testsupport.SolidImage(1024, 1024, color.NRGBA{B: 200, A: 255}))
	return func(context.Context, int) (provider.Image, error) {
		return provider.Image{Data: data, ContentType: "image/png"}, nil
	}
}

func rateLimited(context.Context, int) (provider.Image, error) {
	return provider.Image{}, services.Wrap(services.ErrProvider, "provider", "generate", "rate limited",
		&provider.HTTPStatusError{Provider: "fake", StatusCode: 429})
}

func noSleep(delays *[]time.Duration) generation.Sleeper {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func imageRequest(brandID string) brand.GenerationRequest {
	return brand.GenerationRequest{
		BrandID:     brandID,
		PlatformID:  platform.Facebook,
		Prompt:      "Autumn launch banner",
		ContentType: brand.ContentImage,
	}
}

func TestGenerateImageStoresCompositedAsset(t *testing.T) {
	fx := newFixture(t, true)
	prov := &fakeProvider{respond: squareImage(t)}
	rec := &recorder{}
	orch := generation.New(fx.store, fx.blobs, prov, compositor.New(nil, t.TempDir(), nil), rec)

	asset, err := orch.Generate(context.Background(), imageRequest(fx.brand.ID))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if asset.Width != 1200 || asset.Height != 630 {
		t.Fatalf("dimensions = %dx%d, want 1200x630", asset.Width, asset.Height)
	}
	if asset.FinalURL != brand.AssetFileURL(asset.ID) {
		t.Fatalf("FinalURL = %q", asset.FinalURL)
	}
	wantRef := blobstore.Ref("brands/" + fx.brand.ID + "/assets/" + asset.ID + "/final.png")
	if asset.FinalRef != wantRef {
		t.Fatalf("FinalRef = %q, want %q", asset.FinalRef, wantRef)
	}
	data, err := fx.blobs.ReadAll(asset.FinalRef)
	if err != nil {
		t.Fatalf("ReadAll final: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode final: %v", err)
	}
	if cfg.Width != 1200 || cfg.Height != 630 {
		t.Fatalf("final image = %dx%d", cfg.Width, cfg.Height)
	}
	stored, err := fx.store.GetAsset(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if stored.Provider != "fake" || stored.Prompt != prov.requests[0].Prompt || stored.Prompt == "Autumn launch banner" {
		t.Fatalf("stored asset should keep the enriched prompt: %+v", stored)
	}
	if got := prov.requests[0]; got.Width != 1200 || got.Height != 630 || got.AspectRatio != "1.91:1" {
		t.Fatalf("provider request geometry = %+v", got)
	}
	if !strings.HasPrefix(prov.requests[0].Prompt, "Autumn launch banner. Brand tone: friendly.") {
		t.Fatalf("prompt = %q", prov.requests[0].Prompt)
	}

	var percents []int
	for _, evt := range rec.events {
		if evt.Task != events.TaskGeneration || evt.AssetID != asset.ID {
			t.Fatalf("unexpected event %+v", evt)
		}
		percents = append(percents, evt.Percent)
	}
	want := []int{10, 60, 85, 100}
	if len(percents) != len(want) {
		t.Fatalf("percents = %v, want %v", percents, want)
	}
	for i := range want {
		if percents[i] != want[i] {
			t.Fatalf("percents = %v, want %v", percents, want)
		}
	}
}

func TestGenerateRequiresLogoBeforeProvider(t *testing.T) {
	fx := newFixture(t, false)
	prov := &fakeProvider{respond: squareImage(t)}
	orch := generation.New(fx.store, fx.blobs, prov, compositor.New(nil, t.TempDir(), nil), nil)

	_, err := orch.Generate(context.Background(), imageRequest(fx.brand.ID))
	if !services.IsKind(err, services.ErrMissingLogo) {
		t.Fatalf("expected MissingLogo, got %v", err)
	}
	if prov.callCount() != 0 {
		t.Fatalf("provider called %d times", prov.callCount())
	}
}

func TestGenerateRejectsUnconfirmedBrand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	blobs, err := blobstore.New(cfg.Paths.BlobDir)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	ctx := context.Background()
	unconfirmed := testsupport.NewBrand(t, st, "https://unconfirmed.test")
	if err := st.CompleteExtraction(ctx, unconfirmed); err != nil {
		t.Fatalf("CompleteExtraction: %v", err)
	}
	obj, err := blobs.PutBytes("logos/unconfirmed.png", testsupport.PNGBytes(t, testsupport.SolidImage(20, 20, color.NRGBA{G: 255, A: 255})))
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	logo, err := brand.NewLogoSpec(obj.Ref, brand.LogoPNG, 20, 20, brand.PositionBottomRight, brand.SizeMedium, 1)
	if err != nil {
		t.Fatalf("NewLogoSpec: %v", err)
	}
	if err := st.SetLogo(ctx, unconfirmed.ID, logo); err != nil {
		t.Fatalf("SetLogo: %v", err)
	}
	prov := &fakeProvider{respond: squareImage(t)}
	orch := generation.New(st, blobs, prov, compositor.New(nil, t.TempDir(), nil), nil)

	_, err = orch.Generate(ctx, imageRequest(unconfirmed.ID))
	if !services.IsKind(err, services.ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	_, err = orch.Generate(ctx, imageRequest("missing"))
	if !services.IsKind(err, services.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if prov.callCount() != 0 {
		t.Fatalf("provider called %d times", prov.callCount())
	}
}

func TestGenerateMissingLogoWinsOverOtherPreconditions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	blobs, err := blobstore.New(cfg.Paths.BlobDir)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	ctx := context.Background()
	completeOnly := testsupport.NewBrand(t, st, "https://complete.test")
	if err := st.CompleteExtraction(ctx, completeOnly); err != nil {
		t.Fatalf("CompleteExtraction: %v", err)
	}
	pending := testsupport.NewBrand(t, st, "https://pending.test")
	prov := &fakeProvider{respond: squareImage(t)}
	orch := generation.New(st, blobs, prov, compositor.New(nil, t.TempDir(), nil), nil)

	for _, id := range []string{completeOnly.ID, pending.ID} {
		_, err := orch.Generate(ctx, imageRequest(id))
		if !services.IsKind(err, services.ErrMissingLogo) {
			t.Fatalf("brand %s: expected MissingLogo, got %v", id, err)
		}
	}
	if prov.callCount() != 0 {
		t.Fatalf("provider called %d times", prov.callCount())
	}
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	fx := newFixture(t, true)
	prov := &fakeProvider{respond: rateLimited}
	var delays []time.Duration
	orch := generation.New(fx.store, fx.blobs, prov, compositor.New(nil, t.TempDir(), nil), nil,
		generation.WithSleeper(noSleep(&delays)))

	_, err := orch.Generate(context.Background(), imageRequest(fx.brand.ID))
	if !services.IsKind(err, services.ErrProvider) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if prov.callCount() != 3 {
		t.Fatalf("provider calls = %d, want 3", prov.callCount())
	}
	if len(delays) != 2 || delays[0] != 500*time.Millisecond || delays[1] != time.Second {
		t.Fatalf("delays = %v", delays)
	}
	n, err := fx.store.CountAssets(context.Background(), fx.brand.ID)
	if err != nil || n != 0 {
		t.Fatalf("CountAssets = %d, %v", n, err)
	}
}

func TestGenerateRecoversAfterTransientFailure(t *testing.T) {
	fx := newFixture(t, true)
	ok := squareImage(t)
	prov := &fakeProvider{respond: func(ctx context.Context, n int) (provider.Image, error) {
		if n == 1 {
			return rateLimited(ctx, n)
		}
		return ok(ctx, n)
	}}
	var delays []time.Duration
	orch := generation.New(fx.store, fx.blobs, prov, compositor.New(nil, t.TempDir(), nil), nil,
		generation.WithSleeper(noSleep(&delays)))

	if _, err := orch.Generate(context.Background(), imageRequest(fx.brand.ID)); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if prov.callCount() != 2 || len(delays) != 1 {
		t.Fatalf("calls = %d delays = %v", prov.callCount(), delays)
	}
}

func TestGenerateDoesNotRetryPermanentFailures(t *testing.T) {
	fx := newFixture(t, true)
	prov := &fakeProvider{respond: func(context.Context, int) (provider.Image, error) {
		return provider.Image{}, services.Wrap(services.ErrProvider, "provider", "generate", "rejected",
			&provider.HTTPStatusError{Provider: "fake", StatusCode: 400, Body: "content policy"})
	}}
	var delays []time.Duration
	orch := generation.New(fx.store, fx.blobs, prov, compositor.New(nil, t.TempDir(), nil), nil,
		generation.WithSleeper(noSleep(&delays)))

	_, err := orch.Generate(context.Background(), imageRequest(fx.brand.ID))
	if !services.IsKind(err, services.ErrProvider) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if prov.callCount() != 1 || len(delays) != 0 {
		t.Fatalf("calls = %d delays = %v", prov.callCount(), delays)
	}
}

func TestGenerateCompositeFailureLeavesNothingBehind(t *testing.T) {
	fx := newFixture(t, true)
	prov := &fakeProvider{respond: squareImage(t)}
	orch := generation.New(fx.store, fx.blobs, prov, failingCompositor{}, nil)

	_, err := orch.Generate(context.Background(), imageRequest(fx.brand.ID))
	if err == nil {
		t.Fatal("expected composite failure")
	}
	n, err := fx.store.CountAssets(context.Background(), fx.brand.ID)
	if err != nil || n != 0 {
		t.Fatalf("CountAssets = %d, %v", n, err)
	}
	assetsDir := filepath.Join(fx.blobs.Root(), "brands", fx.brand.ID, "assets")
	var files []string
	_ = filepath.WalkDir(assetsDir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if len(files) != 0 {
		t.Fatalf("leftover blobs: %v", files)
	}
}

func TestGenerateTimeout(t *testing.T) {
	fx := newFixture(t, true)
	prov := &fakeProvider{respond: func(ctx context.Context, _ int) (provider.Image, error) {
		<-ctx.Done()
		return provider.Image{}, ctx.Err()
	}}
	rec := &recorder{}
	orch := generation.New(fx.store, fx.blobs, prov, compositor.New(nil, t.TempDir(), nil), rec,
		generation.WithTimeout(100*time.Millisecond))

	_, err := orch.Generate(context.Background(), imageRequest(fx.brand.ID))
	if !services.IsKind(err, services.ErrTimeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
	last := rec.events[len(rec.events)-1]
	if last.Stage != generation.StageError || last.Percent != 10 {
		t.Fatalf("last event = %+v", last)
	}
}

type fakeAnimator struct {
	seconds int
}

func (f *fakeAnimator) Animate(_ context.Context, keyframe, output string, width, height, seconds int) error {
	if _, err := os.Stat(keyframe); err != nil {
		return err
	}
	f.seconds = seconds
	return os.WriteFile(output, []byte("clip"), 0o600)
}

type stampCompositor struct {
	input compositor.Input
}

func (s *stampCompositor) Composite(_ context.Context, in compositor.Input) (compositor.Output, error) {
	s.input = in
	return compositor.Output{Data: []byte("stamped"), ContentType: "video/mp4", Width: 1080, Height: 1920}, nil
}

func TestGenerateVideoAnimatesKeyframe(t *testing.T) {
	fx := newFixture(t, true)
	prov := &fakeProvider{respond: squareImage(t)}
	anim := &fakeAnimator{}
	comp := &stampCompositor{}
	orch := generation.New(fx.store, fx.blobs, prov, comp, nil,
		generation.WithAnimator(anim), generation.WithTempDir(t.TempDir()))

	asset, err := orch.Generate(context.Background(), brand.GenerationRequest{
		BrandID:         fx.brand.ID,
		PlatformID:      platform.InstagramStory,
		Prompt:          "Latte art in slow motion",
		ContentType:     brand.ContentVideo,
		DurationSeconds: 8,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if anim.seconds != 8 || asset.DurationSeconds != 8 {
		t.Fatalf("seconds = %d, asset = %d", anim.seconds, asset.DurationSeconds)
	}
	if string(comp.input.Base) != "clip" || comp.input.Kind != brand.ContentVideo {
		t.Fatalf("compositor input = %q %s", comp.input.Base, comp.input.Kind)
	}
	if !strings.HasSuffix(asset.FinalRef, "/final.mp4") || !strings.HasSuffix(asset.BaseRef, "/base.mp4") {
		t.Fatalf("refs = %s %s", asset.BaseRef, asset.FinalRef)
	}
}

func TestGenerateVideoWithoutAnimator(t *testing.T) {
	fx := newFixture(t, true)
	prov := &fakeProvider{respond: squareImage(t)}
	orch := generation.New(fx.store, fx.blobs, prov, &stampCompositor{}, nil)

	_, err := orch.Generate(context.Background(), brand.GenerationRequest{
		BrandID:         fx.brand.ID,
		PlatformID:      platform.InstagramStory,
		Prompt:          "Latte art",
		ContentType:     brand.ContentVideo,
		DurationSeconds: 4,
	})
	if !services.IsKind(err, services.ErrConfiguration) {
		t.Fatalf("expected Configuration, got %v", err)
	}
	if prov.callCount() != 0 {
		t.Fatalf("provider called %d times", prov.callCount())
	}
}

func TestGenerateCanceled(t *testing.T) {
	fx := newFixture(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	prov := &fakeProvider{respond: func(ctx context.Context, _ int) (provider.Image, error) {
		cancel()
		return provider.Image{}, ctx.Err()
	}}
	orch := generation.New(fx.store, fx.blobs, prov, compositor.New(nil, t.TempDir(), nil), nil)

	_, err := orch.Generate(ctx, imageRequest(fx.brand.ID))
	if !services.IsKind(err, services.ErrCanceled) {
		t.Fatalf("expected Canceled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped context.Canceled, got %v", err)
	}
}

type recordingCompositor struct {
	inner *compositor.Compositor
	input compositor.Input
}

func (r *recordingCompositor) Composite(ctx context.Context, in compositor.Input) (compositor.Output, error) {
	r.input = in
	return r.inner.Composite(ctx, in)
}

func TestGenerateDrawsCopyTextBeforeCompositing(t *testing.T) {
	fx := newFixture(t, true)
	prov := &fakeProvider{respond: squareImage(t)}
	comp := &recordingCompositor{inner: compositor.New(nil, t.TempDir(), nil)}
	orch := generation.New(fx.store, fx.blobs, prov, comp, nil)

	req := imageRequest(fx.brand.ID)
	req.CopyText = "Grand opening"
	asset, err := orch.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(prov.requests[0].Prompt, "Grand opening") {
		t.Fatalf("copy text should not reach the provider: %q", prov.requests[0].Prompt)
	}

	textColor, err := brand.ParseHex(fx.brand.Colors.Text)
	if err != nil {
		t.Fatalf("ParseHex: %v", err)
	}
	base, _, err := image.Decode(bytes.NewReader(comp.input.Base))
	if err != nil {
		t.Fatalf("decode compositor base: %v", err)
	}
	b := base.Bounds()
	var inked int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := base.At(x, y).RGBA()
			if uint8(r>>8) == textColor.R && uint8(g>>8) == textColor.G && uint8(bl>>8) == textColor.B {
				if y < b.Dy()/2 {
					t.Fatalf("copy text drawn at (%d,%d), above the lower half", x, y)
				}
				inked++
			}
		}
	}
	if inked == 0 {
		t.Fatalf("expected copy text in %s on the composited base", fx.brand.Colors.Text)
	}

	stored, err := fx.blobs.ReadAll(asset.BaseRef)
	if err != nil {
		t.Fatalf("ReadAll base: %v", err)
	}
	if !bytes.Equal(stored, comp.input.Base) {
		t.Fatal("stored base should carry the copy text")
	}
}
