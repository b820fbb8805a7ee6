package brand

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"brandkit/internal/services"
)

// ColorToHex formats an RGB color as an uppercase #RRGGBB string.
func ColorToHex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02X%02X%02X", uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// RGBToHex formats the channel triple as #RRGGBB.
func RGBToHex(r, g, b uint8) string {
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// ParseHex parses #RGB or #RRGGBB (leading # optional) into an opaque color.
func ParseHex(value string) (color.RGBA, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "#")
	switch len(trimmed) {
	case 3:
		expanded := make([]byte, 0, 6)
		for i := 0; i < 3; i++ {
			expanded = append(expanded, trimmed[i], trimmed[i])
		}
		trimmed = string(expanded)
	case 6:
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", value)
	}
	n, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", value)
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xFF}, nil
}

// NormalizeHex validates value and returns its canonical #RRGGBB form.
func NormalizeHex(value string) (string, error) {
	c, err := ParseHex(value)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "brand", "normalize color", err.Error(), nil)
	}
	return RGBToHex(c.R, c.G, c.B), nil
}

// Distance returns the Euclidean distance between two colors in RGB space.
func Distance(a, b color.RGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
