package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"brandkit/internal/brand"
	"brandkit/internal/platform"
	"brandkit/internal/services"
	"brandkit/internal/store"
	"brandkit/internal/testsupport"
)

func TestBrandRoundTripPreservesProfile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	p := testsupport.NewBrand(t, st, "https://acme.test")
	p.Colors = brand.ColorPalette{Primary: "#6366F1", Background: "#0F172A"}
	p.Typography = brand.Typography{HeadingFont: "Poppins", HeadingWeight: 800}
	p.Tone = "bold"
	p.Keywords = []string{"launch", "growth"}
	p.Industry = "marketing"
	if err := st.CompleteExtraction(ctx, p); err != nil {
		t.Fatalf("CompleteExtraction: %v", err)
	}
	logo, err := brand.NewLogoSpec("blob://brands/x/logo.png", brand.LogoPNG, 64, 32, brand.PositionTopLeft, brand.SizeLarge, 0.5)
	if err != nil {
		t.Fatalf("NewLogoSpec: %v", err)
	}
	if err := st.SetLogo(ctx, p.ID, logo); err != nil {
		t.Fatalf("SetLogo: %v", err)
	}

	got, err := st.GetBrand(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetBrand: %v", err)
	}
	if got.ExtractionStatus != brand.StatusComplete {
		t.Fatalf("status = %s", got.ExtractionStatus)
	}
	if got.Colors.Primary != "#6366F1" || got.Colors.Background != "#0F172A" || got.Colors.Secondary != brand.DefaultSecondary {
		t.Fatalf("unexpected colors: %+v", got.Colors)
	}
	if got.Typography.HeadingFont != "Poppins" || got.Typography.HeadingWeight != 800 || got.Typography.BodyFont != brand.DefaultBodyFont {
		t.Fatalf("unexpected typography: %+v", got.Typography)
	}
	if len(got.Keywords) != 2 || got.Keywords[0] != "launch" || got.Tone != "bold" || got.Industry != "marketing" {
		t.Fatalf("unexpected text fields: %+v", got)
	}
	if got.Logo == nil || got.Logo.Position != brand.PositionTopLeft || got.Logo.Size != brand.SizeLarge || got.Logo.Opacity != 0.5 {
		t.Fatalf("unexpected logo: %+v", got.Logo)
	}
}

func TestUpdateExtractionRejectsRegression(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	p := testsupport.NewBrand(t, st, "https://acme.test")
	if err := st.UpdateExtraction(ctx, p.ID, brand.StatusCrawling, nil); err != nil {
		t.Fatalf("to crawling: %v", err)
	}
	if err := st.UpdateExtraction(ctx, p.ID, brand.StatusAnalyzing, nil); err != nil {
		t.Fatalf("to analyzing: %v", err)
	}
	if err := st.UpdateExtraction(ctx, p.ID, brand.StatusCrawling, nil); !services.IsKind(err, services.ErrValidation) {
		t.Fatalf("expected regression to be rejected, got %v", err)
	}
	if err := st.CompleteExtraction(ctx, p); err != nil {
		t.Fatalf("complete: %v", err)
	}
	for _, next := range []brand.ExtractionStatus{brand.StatusPending, brand.StatusAnalyzing, brand.StatusFailed} {
		if err := st.UpdateExtraction(ctx, p.ID, next, nil); !services.IsKind(err, services.ErrValidation) {
			t.Fatalf("expected complete -> %s to be rejected, got %v", next, err)
		}
	}
}

func TestFailInterruptedMarksNonTerminalBrands(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	running := testsupport.NewBrand(t, st, "https://a.test")
	if err := st.UpdateExtraction(ctx, running.ID, brand.StatusCrawling, nil); err != nil {
		t.Fatalf("UpdateExtraction: %v", err)
	}
	done := testsupport.ReadyBrand(t, st, nil)

	n, err := st.FailInterrupted(ctx, "daemon restarted")
	if err != nil {
		t.Fatalf("FailInterrupted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 brand failed, got %d", n)
	}
	got, _ := st.GetBrand(ctx, running.ID)
	if got.ExtractionStatus != brand.StatusFailed || got.ExtractionError == nil || got.ExtractionError.Kind != services.ErrCanceled.Kind() {
		t.Fatalf("unexpected interrupted brand: %+v", got)
	}
	if kept, _ := st.GetBrand(ctx, done.ID); kept.ExtractionStatus != brand.StatusComplete {
		t.Fatalf("complete brand changed: %s", kept.ExtractionStatus)
	}
}

func TestConfirmAndLogoRequireComplete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	p := testsupport.NewBrand(t, st, "https://acme.test")
	if err := st.Confirm(ctx, p.ID); !services.IsKind(err, services.ErrValidation) {
		t.Fatalf("expected validation error confirming pending brand, got %v", err)
	}
	logo, _ := brand.NewLogoSpec("blob://l.png", brand.LogoPNG, 10, 10, brand.PositionCenter, brand.SizeSmall, 1)
	if err := st.SetLogo(ctx, p.ID, logo); !services.IsKind(err, services.ErrValidation) {
		t.Fatalf("expected validation error setting logo on pending brand, got %v", err)
	}
	if err := st.Confirm(ctx, "missing"); !services.IsKind(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInsertAssetRequiresFinalOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.ReadyBrand(t, st, nil)

	asset := &brand.ContentAsset{
		ID:          uuid.NewString(),
		BrandID:     p.ID,
		ContentType: brand.ContentImage,
		PlatformID:  platform.InstagramPost,
		BaseRef:     "blob://base.png",
		Width:       1080,
		Height:      1080,
		Prompt:      "spring sale",
		Provider:    "fake",
		CreatedAt:   time.Now().UTC(),
	}
	if err := st.InsertAsset(ctx, asset); !services.IsKind(err, services.ErrValidation) {
		t.Fatalf("expected validation error without final output, got %v", err)
	}
	if n, _ := st.CountAssets(ctx, p.ID); n != 0 {
		t.Fatalf("expected no assets, got %d", n)
	}

	asset.FinalRef = "blob://final.png"
	asset.FinalURL = brand.AssetFileURL(asset.ID)
	if err := st.InsertAsset(ctx, asset); err != nil {
		t.Fatalf("InsertAsset: %v", err)
	}
	got, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if got.FinalURL != asset.FinalURL || got.PlatformID != platform.InstagramPost || got.Width != 1080 {
		t.Fatalf("unexpected asset: %+v", got)
	}
	list, err := st.ListAssets(ctx, p.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListAssets = %d, %v", len(list), err)
	}
}

func TestVariantLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	p := testsupport.ReadyBrand(t, st, nil)
	assetID := uuid.NewString()
	if err := st.InsertAsset(ctx, &brand.ContentAsset{
		ID: assetID, BrandID: p.ID, ContentType: brand.ContentImage, PlatformID: platform.Facebook,
		BaseRef: "blob://b.png", FinalRef: "blob://f.png", FinalURL: brand.AssetFileURL(assetID), Prompt: "x", Provider: "fake",
	}); err != nil {
		t.Fatalf("InsertAsset: %v", err)
	}

	if _, err := st.GetVariant(ctx, assetID, "png", "hd"); !services.IsKind(err, services.ErrNotFound) {
		t.Fatalf("expected miss, got %v", err)
	}
	v := brand.DownloadVariant{AssetID: assetID, Format: "png", Quality: "hd", ContentType: "image/png", SizeBytes: 10, SHA256: "abc", BlobRef: "blob://cache/x.png", URL: "/u"}
	if err := st.PutVariant(ctx, v); err != nil {
		t.Fatalf("PutVariant: %v", err)
	}
	got, err := st.GetVariant(ctx, assetID, "png", "hd")
	if err != nil || got.SHA256 != "abc" || got.BlobRef != "blob://cache/x.png" {
		t.Fatalf("GetVariant = %+v, %v", got, err)
	}
	if err := st.DeleteVariant(ctx, assetID, "png", "hd"); err != nil {
		t.Fatalf("DeleteVariant: %v", err)
	}
	if list, _ := st.ListVariants(ctx); len(list) != 0 {
		t.Fatalf("expected no variants, got %d", len(list))
	}
}

func TestOpenPathReopensExistingDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	p := testsupport.NewBrand(t, st, "https://acme.test")
	st.Close()

	reopened, err := store.OpenPath(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetBrand(context.Background(), p.ID); err != nil {
		t.Fatalf("GetBrand after reopen: %v", err)
	}
}
