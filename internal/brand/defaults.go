package brand

// Default values applied when extraction cannot infer a field.
const (
	DefaultPrimary    = "#1A365D"
	DefaultSecondary  = "#4A5568"
	DefaultAccent     = "#38B2AC"
	DefaultBackground = "#FFFFFF"
	DefaultText       = "#1A202C"

	DefaultHeadingFont   = "Inter"
	DefaultBodyFont      = "Inter"
	DefaultHeadingWeight = 700
	DefaultBodyWeight    = 400

	DefaultTone     = "professional"
	DefaultIndustry = "general"
)

// DefaultPalette returns the fallback palette.
func DefaultPalette() ColorPalette {
	return ColorPalette{
		Primary:    DefaultPrimary,
		Secondary:  DefaultSecondary,
		Accent:     DefaultAccent,
		Background: DefaultBackground,
		Text:       DefaultText,
	}
}

// DefaultTypography returns the fallback font pair.
func DefaultTypography() Typography {
	return Typography{
		HeadingFont:   DefaultHeadingFont,
		BodyFont:      DefaultBodyFont,
		HeadingWeight: DefaultHeadingWeight,
		BodyWeight:    DefaultBodyWeight,
	}
}

// WithDefaults replaces empty or invalid roles with defaults and normalizes
// the rest to #RRGGBB.
func (c ColorPalette) WithDefaults() ColorPalette {
	d := DefaultPalette()
	return ColorPalette{
		Primary:    normalizeOr(c.Primary, d.Primary),
		Secondary:  normalizeOr(c.Secondary, d.Secondary),
		Accent:     normalizeOr(c.Accent, d.Accent),
		Background: normalizeOr(c.Background, d.Background),
		Text:       normalizeOr(c.Text, d.Text),
	}
}

// WithDefaults fills empty fonts and out-of-range weights.
func (t Typography) WithDefaults() Typography {
	d := DefaultTypography()
	if t.HeadingFont == "" {
		t.HeadingFont = d.HeadingFont
	}
	if t.BodyFont == "" {
		t.BodyFont = d.BodyFont
	}
	if t.HeadingWeight < 100 || t.HeadingWeight > 900 {
		t.HeadingWeight = d.HeadingWeight
	}
	if t.BodyWeight < 100 || t.BodyWeight > 900 {
		t.BodyWeight = d.BodyWeight
	}
	return t
}

func normalizeOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	normalized, err := NormalizeHex(value)
	if err != nil {
		return fallback
	}
	return normalized
}
