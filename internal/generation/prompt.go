package generation

import (
	"fmt"
	"strings"

	"brandkit/internal/brand"
	"brandkit/internal/platform"
)

// EnrichPrompt folds the brand identity and platform geometry into the user
// prompt so the provider output starts on-brand.
func EnrichPrompt(p *brand.Profile, prompt string, spec platform.Spec) string {
	var b strings.Builder
	b.WriteString(sentence(prompt))
	fmt.Fprintf(&b, " Brand tone: %s.", p.Tone)
	if len(p.Keywords) > 0 {
		fmt.Fprintf(&b, " Keywords: %s.", strings.Join(p.Keywords, ", "))
	}
	fmt.Fprintf(&b, " Color palette: primary %s, secondary %s, accent %s.",
		p.Colors.Primary, p.Colors.Secondary, p.Colors.Accent)
	fmt.Fprintf(&b, " Industry: %s.", strings.ReplaceAll(p.Industry, "_", " "))
	fmt.Fprintf(&b, " Composition: %s (%s), leave clear space for a logo %s.",
		spec.Dimensions(), spec.AspectRatio, logoArea(p.Logo))
	return b.String()
}

func sentence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".!? ")
	return s + "."
}

func logoArea(logo *brand.LogoSpec) string {
	position := brand.PositionBottomRight
	if logo != nil && logo.Position != "" {
		position = logo.Position
	}
	if position == brand.PositionCenter {
		return "in the center"
	}
	return "in the " + strings.ReplaceAll(string(position), "-", " ") + " corner"
}
