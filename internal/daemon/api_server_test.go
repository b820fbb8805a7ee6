package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"brandkit/internal/api"
	"brandkit/internal/brand"
	"brandkit/internal/logging"
	"brandkit/internal/services"
	"brandkit/internal/testsupport"
)

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthAndReadyArePublic(t *testing.T) {
	h := newHarness(t, testsupport.WithStubbedBinaries())

	resp := h.get(t, "/api/health", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	resp = h.get(t, "/api/ready", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready status = %d", resp.StatusCode)
	}

	resp = h.get(t, "/api/brands", false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("brands without token = %d, want 401", resp.StatusCode)
	}
	var body api.ErrorResponse
	decodeBody(t, resp, &body)
	if body.Error.Kind != "Unauthorized" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestReadyFailsWithoutFFmpeg(t *testing.T) {
	h := newHarness(t)
	h.cfg.FFmpeg.FFmpegBinary = "brandkit-test-missing-ffmpeg"

	resp := h.get(t, "/api/ready", false)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("ready status = %d, want 503", resp.StatusCode)
	}
	var body api.ReadyResponse
	decodeBody(t, resp, &body)
	if body.Ready || len(body.Failed) == 0 {
		t.Fatalf("unexpected ready body: %+v", body)
	}
}

func TestExtractConfirmAndEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending, err := h.client.Extract(ctx, "acme.test", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if pending.ExtractionStatus != string(brand.StatusPending) {
		t.Fatalf("status = %q, want pending", pending.ExtractionStatus)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.manager.Wait(waitCtx, pending.ID); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	page, err := h.client.Events(ctx, pending.ID, api.EventsQuery{})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(page.Events) == 0 || page.Events[len(page.Events)-1].Percent != 100 {
		t.Fatalf("unexpected events: %+v", page.Events)
	}
	last := page.Events[len(page.Events)-1]
	if page.Next != last.Sequence {
		t.Fatalf("next = %d, want %d", page.Next, last.Sequence)
	}

	again, err := h.client.Events(ctx, pending.ID, api.EventsQuery{Since: page.Next})
	if err != nil {
		t.Fatalf("Events since: %v", err)
	}
	if len(again.Events) != 0 || again.Next != page.Next {
		t.Fatalf("expected no new events, got %+v", again)
	}

	confirmed, err := h.client.Confirm(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !confirmed.Confirmed || confirmed.ExtractionStatus != string(brand.StatusComplete) {
		t.Fatalf("unexpected profile: %+v", confirmed)
	}
	if confirmed.Colors.Primary != "#6366F1" {
		t.Fatalf("primary = %q", confirmed.Colors.Primary)
	}

	list, err := h.client.Brands(ctx)
	if err != nil {
		t.Fatalf("Brands: %v", err)
	}
	if len(list) != 1 || list[0].ID != pending.ID {
		t.Fatalf("unexpected brand list: %+v", list)
	}
}

func TestRetryRejectsCompleteBrand(t *testing.T) {
	h := newHarness(t)
	p := testsupport.ReadyBrand(t, h.store, nil)

	_, err := h.client.RetryExtraction(context.Background(), p.ID)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Kind != "ValidationError" {
		t.Fatalf("expected 400 ValidationError, got %v", err)
	}
}

func TestCancelWithoutActiveRunIsNotFound(t *testing.T) {
	h := newHarness(t)
	err := h.client.CancelExtraction(context.Background(), "nope")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Kind != "NotFound" {
		t.Fatalf("expected 404 NotFound, got %v", err)
	}
}

func TestGenerateRequiresLogoThenSucceeds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := testsupport.ReadyBrand(t, h.store, nil)

	req := api.GenerateRequest{BrandID: p.ID, PlatformID: "instagram_post", Prompt: "Spring sale", ContentType: "image"}
	_, err := h.client.Generate(ctx, req)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Kind != "MissingLogo" {
		t.Fatalf("expected 400 MissingLogo, got %v", err)
	}
	if h.provider.callCount() != 0 {
		t.Fatal("provider called without a logo")
	}
	assets, err := h.client.Assets(ctx, p.ID)
	if err != nil || len(assets) != 0 {
		t.Fatalf("expected no assets, got %v %v", assets, err)
	}

	logo := testsupport.PNGBytes(t, testsupport.SolidImage(40, 20, color.NRGBA{R: 255, A: 255}))
	updated, err := h.client.UploadLogo(ctx, p.ID, api.LogoUpload{Filename: "logo.png", Data: logo, Position: "top-left", Size: "small"})
	if err != nil {
		t.Fatalf("UploadLogo: %v", err)
	}
	if updated.Logo == nil || updated.Logo.Width != 40 || updated.Logo.Height != 20 || updated.Logo.Opacity != 1 ||
		updated.Logo.ContentType != brand.LogoPNG || updated.Logo.Position != "top-left" {
		t.Fatalf("unexpected logo: %+v", updated.Logo)
	}

	asset, err := h.client.Generate(ctx, req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if asset.Width != 1080 || asset.Height != 1080 || asset.FinalURL != brand.AssetFileURL(asset.ID) {
		t.Fatalf("unexpected asset: %+v", asset)
	}

	resp := h.get(t, "/api/assets/"+asset.ID, true)
	raw, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(raw), "blob://") || strings.Contains(string(raw), "baseUrl") {
		t.Fatalf("asset view leaks internal refs: %s", raw)
	}

	var file bytes.Buffer
	if _, err := h.client.Fetch(ctx, asset.FinalURL, &file); err != nil {
		t.Fatalf("Fetch file: %v", err)
	}
	img, err := png.Decode(&file)
	if err != nil {
		t.Fatalf("decode final: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1080 || b.Dy() != 1080 {
		t.Fatalf("final bounds = %v", b)
	}
}

func TestDownloadServesCachedVariant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	asset := generatedAsset(t, h)

	variant, err := h.client.Download(ctx, asset.ID, "jpg", "4k")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if variant.URL != "/api/assets/"+asset.ID+"/variants/jpg/4k" || variant.ContentType != "image/jpeg" {
		t.Fatalf("unexpected variant: %+v", variant)
	}
	var body bytes.Buffer
	if _, err := h.client.Fetch(ctx, variant.URL, &body); err != nil {
		t.Fatalf("Fetch variant: %v", err)
	}
	if body.String() != "variant:jpg:4k" {
		t.Fatalf("variant bytes = %q", body.String())
	}
	if int64(body.Len()) != variant.SizeBytes {
		t.Fatalf("size = %d, want %d", body.Len(), variant.SizeBytes)
	}

	_, err = h.client.Download(ctx, asset.ID, "mp4", "hd")
	if api.ErrorKind(err) != "UnsupportedFormat" {
		t.Fatalf("expected UnsupportedFormat, got %v", err)
	}
	resp := h.get(t, "/api/assets/"+asset.ID+"/variants/webp/hd", true)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("uncached variant status = %d, want 404", resp.StatusCode)
	}
}

func generatedAsset(t *testing.T, h *harness) api.ContentAsset {
	t.Helper()
	ctx := context.Background()
	p := testsupport.ReadyBrand(t, h.store, nil)
	logo := testsupport.PNGBytes(t, testsupport.SolidImage(30, 30, color.NRGBA{G: 255, A: 255}))
	if _, err := h.client.UploadLogo(ctx, p.ID, api.LogoUpload{Filename: "logo.png", Data: logo}); err != nil {
		t.Fatalf("UploadLogo: %v", err)
	}
	asset, err := h.client.Generate(ctx, api.GenerateRequest{BrandID: p.ID, PlatformID: "facebook", Prompt: "Launch", ContentType: "image"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return asset
}

func TestUploadLogoValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := testsupport.ReadyBrand(t, h.store, nil)
	logo := testsupport.PNGBytes(t, testsupport.SolidImage(10, 10, color.NRGBA{A: 255}))

	cases := []struct {
		name   string
		upload api.LogoUpload
	}{
		{"opacity above one", api.LogoUpload{Filename: "logo.png", Data: logo, Opacity: 1.5}},
		{"unknown position", api.LogoUpload{Filename: "logo.png", Data: logo, Position: "middle"}},
		{"not an image", api.LogoUpload{Filename: "logo.svg", Data: []byte("<svg/>")}},
		{"oversized header", api.LogoUpload{Filename: "logo.png", Data: testsupport.OversizedPNG(t, 5000, 5000)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.client.UploadLogo(ctx, p.ID, tc.upload)
			var apiErr *api.Error
			if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Kind != "ValidationError" {
				t.Fatalf("expected 400 ValidationError, got %v", err)
			}
		})
	}
	got, err := h.store.GetBrand(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetBrand: %v", err)
	}
	if got.Logo != nil {
		t.Fatalf("rejected upload stored a logo: %+v", got.Logo)
	}
}

func TestGuideFormats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := testsupport.ReadyBrand(t, h.store, nil)

	md, err := h.client.Guide(ctx, p.ID, false)
	if err != nil {
		t.Fatalf("Guide md: %v", err)
	}
	if !strings.HasPrefix(md, "# Test Brand brand guide") {
		t.Fatalf("unexpected markdown: %q", md)
	}
	html, err := h.client.Guide(ctx, p.ID, true)
	if err != nil {
		t.Fatalf("Guide html: %v", err)
	}
	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Fatalf("unexpected html: %q", html)
	}

	resp := h.get(t, "/api/brands/"+p.ID+"/guide?format=pdf", true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("pdf guide status = %d, want 400", resp.StatusCode)
	}
}

func TestLogsTail(t *testing.T) {
	h := newHarness(t)
	h.logHub.Publish(logging.LogEvent{Level: "INFO", Message: "first", Component: "export"})
	h.logHub.Publish(logging.LogEvent{Level: "INFO", Message: "second", Component: "generation"})

	resp, err := h.client.Logs(context.Background(), api.LogQuery{Tail: true, Limit: 10})
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(resp.Events) != 2 || resp.Events[1].Message != "second" || resp.Next != 2 {
		t.Fatalf("unexpected logs: %+v", resp)
	}

	filtered := h.get(t, "/api/logs?component=export", true)
	var body api.LogStreamResponse
	decodeBody(t, filtered, &body)
	if len(body.Events) != 1 || body.Events[0].Message != "first" {
		t.Fatalf("unexpected filtered logs: %+v", body.Events)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.Wrap(services.ErrValidation, "", "", "bad", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrUnsupportedFormat, "", "", "bad", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrMissingLogo, "", "", "bad", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrNotFound, "", "", "gone", nil), http.StatusNotFound},
		{services.Wrap(services.ErrAlreadyInProgress, "", "", "busy", nil), http.StatusConflict},
		{services.Wrap(services.ErrProvider, "", "", "upstream", nil), http.StatusBadGateway},
		{services.Wrap(services.ErrUnreachable, "", "", "down", nil), http.StatusBadGateway},
		{services.Wrap(services.ErrBlocked, "", "", "403", nil), http.StatusBadGateway},
		{services.Wrap(services.ErrTimeout, "", "", "slow", nil), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRequestIDIsAssignedOrEchoed(t *testing.T) {
	h := newHarness(t)
	resp := h.get(t, "/api/health", false)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected generated request id")
	}

	req, err := http.NewRequest(http.MethodGet, h.server.URL+"/api/health", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("X-Request-ID", "trace-123")
	echoed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	echoed.Body.Close()
	if got := echoed.Header.Get("X-Request-ID"); got != "trace-123" {
		t.Fatalf("request id = %q, want trace-123", got)
	}
}

func TestExtractKeepsCallerName(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending, err := h.client.Extract(ctx, "acme.test", "Acme Coffee")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.manager.Wait(waitCtx, pending.ID); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	got, err := h.client.Brand(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Brand: %v", err)
	}
	if got.Name != "Acme Coffee" || got.ExtractionStatus != string(brand.StatusComplete) {
		t.Fatalf("unexpected brand: %+v", got)
	}
}
