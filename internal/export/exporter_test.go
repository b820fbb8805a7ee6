package export_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"brandkit/internal/blobstore"
	"brandkit/internal/brand"
	"brandkit/internal/export"
	"brandkit/internal/media/ffmpeg"
	"brandkit/internal/services"
	"brandkit/internal/store"
	"brandkit/internal/testsupport"
)

type countingTranscoder struct {
	calls    atomic.Int32
	release  chan struct{}
	profiles []ffmpeg.Profile
	mu       sync.Mutex
}

func (c *countingTranscoder) Transcode(_ context.Context, input, output string, profile ffmpeg.Profile) error {
	c.calls.Add(1)
	c.mu.Lock()
	c.profiles = append(c.profiles, profile)
	c.mu.Unlock()
	if c.release != nil {
		<-c.release
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	return os.WriteFile(output, append([]byte(profile.Container+":"), data...), 0o600)
}

type env struct {
	store *store.Store
	blobs *blobstore.Store
}

func newEnv(t *testing.T) env {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	blobs, err := blobstore.New(cfg.Paths.BlobDir)
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}
	return env{store: testsupport.MustOpenStore(t, cfg), blobs: blobs}
}

func (e env) imageAsset(t *testing.T, id string, width, height int) *brand.ContentAsset {
	t.Helper()
	obj, err := e.blobs.PutBytes("brands/b1/assets/"+id+"/final.png",
		testsupport.PNGBytes(t, testsupport.SolidImage(width, height, color.NRGBA{R: 20, G: 120, B: 220, A: 255})))
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	return &brand.ContentAsset{ID: id, BrandID: "b1", ContentType: brand.ContentImage, FinalRef: obj.Ref, Width: width, Height: height}
}

func (e env) videoAsset(t *testing.T, id string) *brand.ContentAsset {
	t.Helper()
	obj, err := e.blobs.PutBytes("brands/b1/assets/"+id+"/final.mp4", []byte("mp4-bytes"))
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	return &brand.ContentAsset{ID: id, BrandID: "b1", ContentType: brand.ContentVideo, FinalRef: obj.Ref, Width: 1080, Height: 1920, DurationSeconds: 6}
}

func countingEncoder(calls *atomic.Int32) export.ImageEncoder {
	return func(img image.Image, f export.Format, q export.Quality) ([]byte, error) {
		calls.Add(1)
		return export.EncodeImage(img, f, q)
	}
}

func TestExportImageCachesVariant(t *testing.T) {
	e := newEnv(t)
	asset := e.imageAsset(t, "a1", 120, 60)
	var calls atomic.Int32
	exp := export.New(e.store, e.blobs, export.WithImageEncoder(countingEncoder(&calls)))
	ctx := context.Background()

	first, err := exp.Export(ctx, asset, "png", "hd")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	second, err := exp.Export(ctx, asset, "png", "hd")
	if err != nil {
		t.Fatalf("Export again: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("encoder calls = %d, want 1", calls.Load())
	}
	if first.SHA256 != second.SHA256 || first.URL != "/api/assets/a1/variants/png/hd" {
		t.Fatalf("variants differ: %+v vs %+v", first, second)
	}
	if first.BlobRef != blobstore.Ref("cache/a1/hd.png") {
		t.Fatalf("BlobRef = %q", first.BlobRef)
	}
	data, err := e.blobs.ReadAll(first.BlobRef)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Width != 1920 || cfg.Height != 960 {
		t.Fatalf("variant = %dx%d, want 1920x960", cfg.Width, cfg.Height)
	}
	if _, err := e.store.GetVariant(ctx, "a1", "png", "hd"); err != nil {
		t.Fatalf("GetVariant: %v", err)
	}
}

func TestExportSurvivesRestart(t *testing.T) {
	e := newEnv(t)
	asset := e.imageAsset(t, "a1", 64, 64)
	ctx := context.Background()
	if _, err := export.New(e.store, e.blobs).Export(ctx, asset, "jpg", "hd"); err != nil {
		t.Fatalf("Export: %v", err)
	}

	var calls atomic.Int32
	restarted := export.New(e.store, e.blobs, export.WithImageEncoder(countingEncoder(&calls)))
	if err := restarted.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := restarted.Lookup(ctx, "a1", "jpeg", "hd"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, err := restarted.Export(ctx, asset, "jpg", "hd"); err != nil {
		t.Fatalf("Export after restart: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("encoder calls after restart = %d, want 0", calls.Load())
	}
}

func TestExportIsDeterministic(t *testing.T) {
	for _, format := range []string{"png", "jpg", "pdf"} {
		t.Run(format, func(t *testing.T) {
			a := newEnv(t)
			b := newEnv(t)
			va, err := export.New(a.store, a.blobs).Export(context.Background(), a.imageAsset(t, "a1", 90, 160), format, "hd")
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			vb, err := export.New(b.store, b.blobs).Export(context.Background(), b.imageAsset(t, "a1", 90, 160), format, "hd")
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			if va.SHA256 != vb.SHA256 {
				t.Fatalf("%s output differs between runs", format)
			}
		})
	}
}

func TestExportRejectsUnsupportedCombinations(t *testing.T) {
	e := newEnv(t)
	tr := &countingTranscoder{}
	exp := export.New(e.store, e.blobs, export.WithTranscoder(tr))
	video := e.videoAsset(t, "v1")
	img := e.imageAsset(t, "i1", 10, 10)

	for _, quality := range []string{"hd", "4k"} {
		_, err := exp.Export(context.Background(), video, "pdf", quality)
		if !services.IsKind(err, services.ErrUnsupportedFormat) {
			t.Fatalf("pdf/%s on video: expected UnsupportedFormat, got %v", quality, err)
		}
	}
	if _, err := exp.Export(context.Background(), img, "mp4", "hd"); !services.IsKind(err, services.ErrUnsupportedFormat) {
		t.Fatalf("mp4 on image: expected UnsupportedFormat, got %v", err)
	}
	if _, err := exp.Export(context.Background(), img, "gif", "hd"); !services.IsKind(err, services.ErrUnsupportedFormat) {
		t.Fatalf("gif: expected UnsupportedFormat, got %v", err)
	}
	if _, err := exp.Export(context.Background(), img, "png", "8k"); !services.IsKind(err, services.ErrValidation) {
		t.Fatalf("8k: expected ValidationError, got %v", err)
	}
	if tr.calls.Load() != 0 {
		t.Fatalf("transcoder ran %d times", tr.calls.Load())
	}
}

func TestExportCoalescesConcurrentVideoMisses(t *testing.T) {
	e := newEnv(t)
	tr := &countingTranscoder{release: make(chan struct{})}
	exp := export.New(e.store, e.blobs, export.WithTranscoder(tr), export.WithTempDir(t.TempDir()))
	asset := e.videoAsset(t, "v1")

	const callers = 2
	var wg sync.WaitGroup
	results := make([]*brand.DownloadVariant, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = exp.Export(context.Background(), asset, "mp4", "hd")
		}(i)
	}
	// Let both callers reach the shared render before it completes.
	time.Sleep(100 * time.Millisecond)
	close(tr.release)
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
	}
	if tr.calls.Load() != 1 {
		t.Fatalf("transcodes = %d, want 1", tr.calls.Load())
	}
	if results[0].SHA256 != results[1].SHA256 {
		t.Fatal("callers received different variants")
	}
	if p := tr.profiles[0]; p.Container != "mp4" || p.Width != 1080 || p.Height != 1920 {
		t.Fatalf("profile = %+v", p)
	}
}

func TestExportVideo4KDimensions(t *testing.T) {
	e := newEnv(t)
	tr := &countingTranscoder{}
	exp := export.New(e.store, e.blobs, export.WithTranscoder(tr))
	asset := e.videoAsset(t, "v1")
	asset.Width, asset.Height = 1200, 630

	v, err := exp.Export(context.Background(), asset, "webm", "4k")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if v.ContentType != "video/webm" {
		t.Fatalf("ContentType = %q", v.ContentType)
	}
	if p := tr.profiles[0]; p.Width != 3840 || p.Height != 2016 {
		t.Fatalf("profile = %+v, want 3840x2016", p)
	}
}

func TestExportEvictsLeastRecentlyUsed(t *testing.T) {
	e := newEnv(t)
	tr := &countingTranscoder{}
	// Each fake variant is "mp4:" + 9 bytes = 13 bytes; two fit, three do not.
	exp := export.New(e.store, e.blobs, export.WithTranscoder(tr), export.WithCacheMaxBytes(30))
	ctx := context.Background()
	a := e.videoAsset(t, "a")
	b := e.videoAsset(t, "b")
	c := e.videoAsset(t, "c")

	first, err := exp.Export(ctx, a, "mp4", "hd")
	if err != nil {
		t.Fatalf("Export a: %v", err)
	}
	if _, err := exp.Export(ctx, b, "mp4", "hd"); err != nil {
		t.Fatalf("Export b: %v", err)
	}
	if _, err := exp.Export(ctx, c, "mp4", "hd"); err != nil {
		t.Fatalf("Export c: %v", err)
	}
	if e.blobs.Exists(first.BlobRef) {
		t.Fatal("least recently used variant still on disk")
	}
	if _, err := e.store.GetVariant(ctx, "a", "mp4", "hd"); !services.IsKind(err, services.ErrNotFound) {
		t.Fatalf("expected evicted row, got %v", err)
	}
	if exp.CachedBytes() != 26 {
		t.Fatalf("CachedBytes = %d, want 26", exp.CachedBytes())
	}

	again, err := exp.Export(ctx, a, "mp4", "hd")
	if err != nil {
		t.Fatalf("re-export: %v", err)
	}
	if again.SHA256 != first.SHA256 {
		t.Fatal("re-rendered variant differs")
	}
	if tr.calls.Load() != 4 {
		t.Fatalf("transcodes = %d, want 4", tr.calls.Load())
	}
}

func TestQualityScale(t *testing.T) {
	cases := []struct {
		q          export.Quality
		w, h       int
		even       bool
		wantW, wantH int
	}{
		{export.QualityHD, 1080, 1080, false, 1920, 1920},
		{export.QualityHD, 1080, 1920, false, 1080, 1920},
		{export.Quality4K, 1200, 628, false, 3840, 2010},
		{export.Quality4K, 1200, 628, true, 3840, 2010},
		{export.QualityHD, 1200, 630, true, 1920, 1008},
		{export.QualityHD, 1001, 3, true, 1920, 6},
	}
	for _, tc := range cases {
		w, h := tc.q.Scale(tc.w, tc.h, tc.even)
		if w != tc.wantW || h != tc.wantH {
			t.Fatalf("%s.Scale(%d, %d, %v) = %dx%d, want %dx%d", tc.q, tc.w, tc.h, tc.even, w, h, tc.wantW, tc.wantH)
		}
	}
}
