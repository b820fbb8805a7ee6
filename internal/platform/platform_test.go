package platform_test

import (
	"testing"

	"brandkit/internal/platform"
	"brandkit/internal/services"
)

func TestParseKnownPlatforms(t *testing.T) {
	cases := map[string][2]int{
		"instagram_post":  {1080, 1080},
		"Instagram_Story": {1080, 1920},
		" facebook ":      {1200, 630},
		"linkedin":        {1200, 628},
	}
	for input, dims := range cases {
		spec, err := platform.Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", input, err)
		}
		if spec.Width != dims[0] || spec.Height != dims[1] {
			t.Fatalf("Parse(%q) = %dx%d, want %dx%d", input, spec.Width, spec.Height, dims[0], dims[1])
		}
	}
}

func TestParseRejectsUnknownPlatform(t *testing.T) {
	_, err := platform.Parse("tiktok")
	if !services.IsKind(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	specs := platform.All()
	if len(specs) != 4 {
		t.Fatalf("expected 4 platforms, got %d", len(specs))
	}
	specs[0].Width = 1
	if platform.All()[0].Width != 1080 {
		t.Fatal("expected catalog to be immutable")
	}
	if specs[1].ShorterSide() != 1080 {
		t.Fatalf("unexpected shorter side %d", specs[1].ShorterSide())
	}
}
