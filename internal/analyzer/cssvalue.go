package analyzer

import (
	"image/color"
	"math"
	"strconv"
	"strings"

	"brandkit/internal/brand"
)

const maxVarDepth = 4

var namedColors = map[string]color.RGBA{
	"black":   {0x00, 0x00, 0x00, 0xff},
	"white":   {0xff, 0xff, 0xff, 0xff},
	"red":     {0xff, 0x00, 0x00, 0xff},
	"green":   {0x00, 0x80, 0x00, 0xff},
	"blue":    {0x00, 0x00, 0xff, 0xff},
	"yellow":  {0xff, 0xff, 0x00, 0xff},
	"orange":  {0xff, 0xa5, 0x00, 0xff},
	"purple":  {0x80, 0x00, 0x80, 0xff},
	"navy":    {0x00, 0x00, 0x80, 0xff},
	"teal":    {0x00, 0x80, 0x80, 0xff},
	"gray":    {0x80, 0x80, 0x80, 0xff},
	"grey":    {0x80, 0x80, 0x80, 0xff},
	"silver":  {0xc0, 0xc0, 0xc0, 0xff},
	"maroon":  {0x80, 0x00, 0x00, 0xff},
	"olive":   {0x80, 0x80, 0x00, 0xff},
	"lime":    {0x00, 0xff, 0x00, 0xff},
	"aqua":    {0x00, 0xff, 0xff, 0xff},
	"fuchsia": {0xff, 0x00, 0xff, 0xff},
	"crimson": {0xdc, 0x14, 0x3c, 0xff},
	"gold":    {0xff, 0xd7, 0x00, 0xff},
	"indigo":  {0x4b, 0x00, 0x82, 0xff},
	"coral":   {0xff, 0x7f, 0x50, 0xff},
	"tomato":  {0xff, 0x63, 0x47, 0xff},
}

// parseColors returns every opaque color mentioned in a CSS value, resolving
// var() references against custom. Fully transparent colors are dropped.
func parseColors(value string, custom map[string]string) []color.RGBA {
	return parseColorsDepth(value, custom, 0)
}

func parseColorsDepth(value string, custom map[string]string, depth int) []color.RGBA {
	var out []color.RGBA
	for _, term := range splitTerms(value) {
		lower := strings.ToLower(term)
		switch {
		case strings.HasPrefix(lower, "var("):
			if depth >= maxVarDepth {
				continue
			}
			name, fallback := splitVar(term)
			if resolved, ok := custom[name]; ok {
				out = append(out, parseColorsDepth(resolved, custom, depth+1)...)
			} else if fallback != "" {
				out = append(out, parseColorsDepth(fallback, custom, depth+1)...)
			}
		case strings.HasPrefix(lower, "#"):
			if c, err := brand.ParseHex(term); err == nil {
				out = append(out, c)
			}
		case strings.HasPrefix(lower, "rgb(") || strings.HasPrefix(lower, "rgba("):
			if c, ok := parseRGBFunc(term); ok {
				out = append(out, c)
			}
		case strings.HasPrefix(lower, "hsl(") || strings.HasPrefix(lower, "hsla("):
			if c, ok := parseHSLFunc(term); ok {
				out = append(out, c)
			}
		case strings.Contains(lower, "("):
			// Gradients and other functions can nest colors.
			open := strings.Index(term, "(")
			if strings.HasSuffix(term, ")") {
				out = append(out, parseColorsDepth(term[open+1:len(term)-1], custom, depth)...)
			}
		default:
			if c, ok := namedColors[lower]; ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// splitTerms splits a value on whitespace and top-level commas, keeping
// function calls intact.
func splitTerms(value string) []string {
	var (
		terms []string
		depth int
		start = -1
	)
	flush := func(end int) {
		if start >= 0 {
			terms = append(terms, value[start:end])
			start = -1
		}
	}
	for i, r := range value {
		switch {
		case r == '(':
			depth++
			if start < 0 {
				start = i
			}
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && (r == ' ' || r == ',' || r == '\t' || r == '\n' || r == '/'):
			flush(i)
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(value))
	return terms
}

func splitVar(term string) (name, fallback string) {
	inner := strings.TrimSpace(term[strings.Index(term, "(")+1:])
	inner = strings.TrimSuffix(inner, ")")
	name, fallback, _ = strings.Cut(inner, ",")
	return strings.TrimSpace(name), strings.TrimSpace(fallback)
}

func funcArgs(term string) []string {
	inner := term[strings.Index(term, "(")+1:]
	inner = strings.TrimSuffix(inner, ")")
	inner = strings.NewReplacer(",", " ", "/", " ").Replace(inner)
	return strings.Fields(inner)
}

func parseRGBFunc(term string) (color.RGBA, bool) {
	args := funcArgs(term)
	if len(args) < 3 {
		return color.RGBA{}, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, ok := parseChannel(args[i])
		if !ok {
			return color.RGBA{}, false
		}
		ch[i] = v
	}
	if len(args) > 3 && alphaIsZero(args[3]) {
		return color.RGBA{}, false
	}
	return color.RGBA{R: ch[0], G: ch[1], B: ch[2], A: 0xff}, true
}

func parseHSLFunc(term string) (color.RGBA, bool) {
	args := funcArgs(term)
	if len(args) < 3 {
		return color.RGBA{}, false
	}
	h, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "deg"), 64)
	if err != nil {
		return color.RGBA{}, false
	}
	s, okS := parsePercent(args[1])
	l, okL := parsePercent(args[2])
	if !okS || !okL {
		return color.RGBA{}, false
	}
	if len(args) > 3 && alphaIsZero(args[3]) {
		return color.RGBA{}, false
	}
	r, g, b := hslToRGB(math.Mod(math.Mod(h, 360)+360, 360)/360, s, l)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, true
}

func parseChannel(arg string) (uint8, bool) {
	if strings.HasSuffix(arg, "%") {
		p, ok := parsePercent(arg)
		if !ok {
			return 0, false
		}
		return uint8(math.Round(p * 255)), true
	}
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, false
	}
	return uint8(math.Round(math.Max(0, math.Min(255, v)))), true
}

func parsePercent(arg string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(arg, "%"), 64)
	if err != nil {
		return 0, false
	}
	return math.Max(0, math.Min(100, v)) / 100, true
}

func alphaIsZero(arg string) bool {
	if strings.HasSuffix(arg, "%") {
		p, ok := parsePercent(arg)
		return ok && p == 0
	}
	v, err := strconv.ParseFloat(arg, 64)
	return err == nil && v <= 0
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	if s == 0 {
		v := uint8(math.Round(l * 255))
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	conv := func(t float64) uint8 {
		if t < 0 {
			t++
		}
		if t > 1 {
			t--
		}
		var v float64
		switch {
		case t < 1.0/6:
			v = p + (q-p)*6*t
		case t < 0.5:
			v = q
		case t < 2.0/3:
			v = p + (q-p)*(2.0/3-t)*6
		default:
			v = p
		}
		return uint8(math.Round(v * 255))
	}
	return conv(h + 1.0/3), conv(h), conv(h - 1.0/3)
}
