package brand_test

import (
	"math"
	"strings"
	"testing"

	"brandkit/internal/brand"
	"brandkit/internal/services"
)

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	allowed := [][2]brand.ExtractionStatus{
		{brand.StatusPending, brand.StatusCrawling},
		{brand.StatusCrawling, brand.StatusAnalyzing},
		{brand.StatusAnalyzing, brand.StatusComplete},
		{brand.StatusPending, brand.StatusFailed},
		{brand.StatusCrawling, brand.StatusCrawling},
	}
	for _, pair := range allowed {
		if !brand.CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}
	rejected := [][2]brand.ExtractionStatus{
		{brand.StatusAnalyzing, brand.StatusCrawling},
		{brand.StatusComplete, brand.StatusPending},
		{brand.StatusComplete, brand.StatusFailed},
		{brand.StatusFailed, brand.StatusComplete},
		{brand.StatusPending, "bogus"},
	}
	for _, pair := range rejected {
		if brand.CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be rejected", pair[0], pair[1])
		}
	}
}

func TestPaletteWithDefaultsNormalizes(t *testing.T) {
	palette := brand.ColorPalette{Primary: "#6366f1", Secondary: "abc", Accent: "not-a-color"}.WithDefaults()
	if palette.Primary != "#6366F1" {
		t.Fatalf("unexpected primary %q", palette.Primary)
	}
	if palette.Secondary != "#AABBCC" {
		t.Fatalf("unexpected secondary %q", palette.Secondary)
	}
	if palette.Accent != brand.DefaultAccent {
		t.Fatalf("expected default accent, got %q", palette.Accent)
	}
	if palette.Background != brand.DefaultBackground || palette.Text != brand.DefaultText {
		t.Fatalf("expected default background/text, got %+v", palette)
	}
}

func TestNewLogoSpecRejectsOpacityOutOfRange(t *testing.T) {
	for _, opacity := range []float64{-0.1, 1.5, math.NaN()} {
		_, err := brand.NewLogoSpec("blob://logo.png", brand.LogoPNG, 10, 10, brand.PositionTopLeft, brand.SizeSmall, opacity)
		if !services.IsKind(err, services.ErrValidation) {
			t.Fatalf("opacity %v: expected validation error, got %v", opacity, err)
		}
	}
	spec, err := brand.NewLogoSpec("blob://logo.png", brand.LogoPNG, 10, 10, brand.PositionCenter, brand.SizeLarge, 1)
	if err != nil {
		t.Fatalf("NewLogoSpec: %v", err)
	}
	if spec.Opacity != 1 {
		t.Fatalf("opacity altered: %v", spec.Opacity)
	}
}

func TestParsePositionAndSize(t *testing.T) {
	if pos, err := brand.ParsePosition(""); err != nil || pos != brand.PositionBottomRight {
		t.Fatalf("unexpected default position %q %v", pos, err)
	}
	if _, err := brand.ParsePosition("middle-left"); err == nil {
		t.Fatal("expected unknown position to fail")
	}
	size, err := brand.ParseSize("LARGE")
	if err != nil || size.Fraction() != 0.26 {
		t.Fatalf("unexpected size %q fraction %v err %v", size, size.Fraction(), err)
	}
}

func TestReadyForGeneration(t *testing.T) {
	profile := brand.NewProfile("b1", "Acme", "https://acme.test")
	if err := profile.ReadyForGeneration(); err == nil {
		t.Fatal("expected pending profile to be rejected")
	}
	profile.ExtractionStatus = brand.StatusComplete
	if err := profile.ReadyForGeneration(); err == nil {
		t.Fatal("expected unconfirmed profile to be rejected")
	}
	profile.Confirmed = true
	if err := profile.ReadyForGeneration(); err != nil {
		t.Fatalf("expected ready profile, got %v", err)
	}
	if profile.HasLogo() {
		t.Fatal("expected no logo on new profile")
	}
}

func TestNewGenerationRequest(t *testing.T) {
	req, err := brand.NewGenerationRequest(" b-1 ", "Instagram_Story", "  Launch teaser ", " Now   open ", "VIDEO", 0, 8)
	if err != nil {
		t.Fatalf("NewGenerationRequest: %v", err)
	}
	if req.BrandID != "b-1" || req.PlatformID != "instagram_story" || req.Prompt != "Launch teaser" || req.CopyText != "Now open" {
		t.Fatalf("request not normalized: %+v", req)
	}
	if req.ContentType != brand.ContentVideo || req.DurationSeconds != 8 {
		t.Fatalf("expected 8s video default, got %+v", req)
	}

	img, err := brand.NewGenerationRequest("b-1", "linkedin", "Hiring post", "", "image", 12, 8)
	if err != nil {
		t.Fatalf("image request: %v", err)
	}
	if img.DurationSeconds != 0 {
		t.Fatalf("image requests carry no duration, got %d", img.DurationSeconds)
	}

	long := make([]rune, brand.MaxPromptRunes+1)
	for i := range long {
		long[i] = 'é'
	}
	longCopy := strings.Repeat("x", brand.MaxCopyTextRunes+1)
	cases := []struct {
		name     string
		brandID  string
		platform string
		prompt   string
		copyText string
		ctype    string
		duration int
	}{
		{"missing brand", "", "linkedin", "hi", "", "image", 0},
		{"unknown platform", "b-1", "myspace", "hi", "", "image", 0},
		{"empty prompt", "b-1", "linkedin", "   ", "", "image", 0},
		{"prompt too long", "b-1", "linkedin", string(long), "", "image", 0},
		{"copy text too long", "b-1", "linkedin", "hi", longCopy, "image", 0},
		{"bad content type", "b-1", "linkedin", "hi", "", "gif", 0},
		{"video too long", "b-1", "facebook", "hi", "", "video", 31},
		{"video negative", "b-1", "facebook", "hi", "", "video", -1},
	}
	for _, tc := range cases {
		_, err := brand.NewGenerationRequest(tc.brandID, tc.platform, tc.prompt, tc.copyText, tc.ctype, tc.duration, 6)
		if !services.IsKind(err, services.ErrValidation) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	got, err := brand.NormalizeName("  Acme \t Coffee\n")
	if err != nil || got != "Acme Coffee" {
		t.Fatalf("NormalizeName = %q, %v", got, err)
	}
	if got, err := brand.NormalizeName("   "); err != nil || got != "" {
		t.Fatalf("blank name = %q, %v", got, err)
	}
	if _, err := brand.NormalizeName(strings.Repeat("b", brand.MaxNameRunes+1)); !services.IsKind(err, services.ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
