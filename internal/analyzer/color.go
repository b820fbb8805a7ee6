package analyzer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sort"
	"strings"

	"golang.org/x/image/draw"

	"brandkit/internal/brand"
	"brandkit/internal/crawler"
)

const (
	sampleMaxSide     = 200
	cssColorWeight    = 25.0
	sameColorDistance = 24.0
	neutralDarkSum    = 30
	neutralLightSum   = 700
)

// ErrNoColorInput is returned when there are neither samples nor CSS colors.
var ErrNoColorInput = errors.New("no visual samples or css colors to analyze")

// ColorPass derives a palette from crawl artifacts.
type ColorPass interface {
	AnalyzeColors(ctx context.Context, art *crawler.Artifacts) (brand.ColorPalette, error)
}

// PaletteExtractor is the default ColorPass. It buckets sample pixels and
// CSS colors by weight and assigns roles by frequency and contrast distance.
type PaletteExtractor struct {
	// SaliencyThreshold is the minimum share of total weight a color needs to
	// be considered for a palette role.
	SaliencyThreshold float64
}

type colorBucket struct {
	sumR, sumG, sumB float64
	weight           float64
}

func (b *colorBucket) add(c color.RGBA, weight float64) {
	b.sumR += float64(c.R) * weight
	b.sumG += float64(c.G) * weight
	b.sumB += float64(c.B) * weight
	b.weight += weight
}

func (b *colorBucket) mean() color.RGBA {
	return color.RGBA{
		R: uint8(b.sumR/b.weight + 0.5),
		G: uint8(b.sumG/b.weight + 0.5),
		B: uint8(b.sumB/b.weight + 0.5),
		A: 0xff,
	}
}

type candidate struct {
	rgba   color.RGBA
	hex    string
	weight float64
}

// histogram accumulates weighted colors in 4-bit-per-channel buckets.
type histogram struct {
	buckets map[uint16]*colorBucket
	total   float64
}

func newHistogram() *histogram {
	return &histogram{buckets: make(map[uint16]*colorBucket)}
}

func (h *histogram) add(c color.RGBA, weight float64) {
	key := uint16(c.R>>4)<<8 | uint16(c.G>>4)<<4 | uint16(c.B>>4)
	b := h.buckets[key]
	if b == nil {
		b = &colorBucket{}
		h.buckets[key] = b
	}
	b.add(c, weight)
	h.total += weight
}

// ranked returns bucket representatives by weight descending, then hex.
func (h *histogram) ranked() []candidate {
	out := make([]candidate, 0, len(h.buckets))
	for _, b := range h.buckets {
		c := b.mean()
		out = append(out, candidate{rgba: c, hex: brand.ColorToHex(c), weight: b.weight})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].weight != out[j].weight {
			return out[i].weight > out[j].weight
		}
		return out[i].hex < out[j].hex
	})
	return out
}

// AnalyzeColors implements ColorPass.
func (p PaletteExtractor) AnalyzeColors(ctx context.Context, art *crawler.Artifacts) (brand.ColorPalette, error) {
	if art == nil {
		return brand.ColorPalette{}, ErrNoColorInput
	}
	all := newHistogram()
	var (
		rootBackgrounds = newHistogram()
		backgrounds     = newHistogram()
		rootText        = newHistogram()
		texts           = newHistogram()
		cssColors       int
	)

	for _, rule := range art.ColorRules() {
		colors := parseColors(rule.Value, art.CustomProperties)
		cssColors += len(colors)
		root := isRootSelector(rule.Selector)
		for _, c := range colors {
			all.add(c, cssColorWeight)
			switch rule.Property {
			case "background", "background-color":
				backgrounds.add(c, cssColorWeight)
				if root {
					rootBackgrounds.add(c, cssColorWeight)
				}
			case "color":
				texts.add(c, cssColorWeight)
				if root {
					rootText.add(c, cssColorWeight)
				}
			}
		}
	}

	for _, sample := range art.Samples {
		if err := ctx.Err(); err != nil {
			return brand.ColorPalette{}, err
		}
		addPixels(all, sample.Image)
	}

	if len(art.Samples) == 0 && cssColors == 0 {
		return brand.ColorPalette{}, ErrNoColorInput
	}

	ranked := all.ranked()
	if countDistinct(ranked) < 2 {
		return brand.DefaultPalette(), nil
	}

	palette := brand.DefaultPalette()
	var background, text *candidate
	if c := firstOf(rootBackgrounds, backgrounds); c != nil {
		background = c
		palette.Background = c.hex
	}
	if c := firstOf(rootText, texts); c != nil {
		text = c
		palette.Text = c.hex
	}

	threshold := p.SaliencyThreshold
	if threshold < 0 {
		threshold = 0
	}
	minWeight := threshold * all.total
	var pool []candidate
	for _, c := range ranked {
		if c.weight < minWeight || isNeutral(c.rgba) {
			continue
		}
		if near(c, background) || near(c, text) {
			continue
		}
		pool = append(pool, c)
	}
	if len(pool) == 0 {
		return palette, nil
	}

	primary := pool[0]
	palette.Primary = primary.hex
	pool = without(pool[1:], primary)

	if len(pool) == 0 {
		return palette, nil
	}
	secondary := pickFarthest(pool, func(c candidate) float64 {
		return brand.Distance(c.rgba, primary.rgba)
	})
	palette.Secondary = secondary.hex
	pool = without(pool, secondary)

	if len(pool) == 0 {
		return palette, nil
	}
	accent := pickFarthest(pool, func(c candidate) float64 {
		return min(brand.Distance(c.rgba, primary.rgba), brand.Distance(c.rgba, secondary.rgba))
	})
	palette.Accent = accent.hex
	return palette, nil
}

// addPixels downsamples img and adds its non-neutral opaque pixels.
func addPixels(h *histogram, img image.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	w, ht := b.Dx(), b.Dy()
	if w == 0 || ht == 0 {
		return
	}
	var small *image.NRGBA
	if w > sampleMaxSide || ht > sampleMaxSide {
		scale := float64(sampleMaxSide) / float64(max(w, ht))
		w = max(1, int(float64(w)*scale))
		ht = max(1, int(float64(ht)*scale))
		small = image.NewNRGBA(image.Rect(0, 0, w, ht))
		draw.BiLinear.Scale(small, small.Bounds(), img, b, draw.Src, nil)
	} else {
		small = image.NewNRGBA(image.Rect(0, 0, w, ht))
		draw.Copy(small, image.Point{}, img, b, draw.Src, nil)
	}

	for y := 0; y < ht; y++ {
		row := small.Pix[y*small.Stride : y*small.Stride+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+4]
			if px[3] < 0x80 {
				continue
			}
			c := color.RGBA{R: px[0], G: px[1], B: px[2], A: 0xff}
			if isNeutral(c) {
				continue
			}
			h.add(c, 1)
		}
	}
}

func isNeutral(c color.RGBA) bool {
	sum := int(c.R) + int(c.G) + int(c.B)
	return sum <= neutralDarkSum || sum >= neutralLightSum
}

func isRootSelector(selector string) bool {
	for _, part := range strings.Split(selector, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "html", "body", ":root", "main":
			return true
		}
	}
	return false
}

func firstOf(hs ...*histogram) *candidate {
	for _, h := range hs {
		if ranked := h.ranked(); len(ranked) > 0 {
			c := ranked[0]
			return &c
		}
	}
	return nil
}

func near(c candidate, other *candidate) bool {
	return other != nil && brand.Distance(c.rgba, other.rgba) < sameColorDistance
}

// countDistinct clusters ranked colors that are within sameColorDistance.
func countDistinct(ranked []candidate) int {
	var reps []candidate
	for _, c := range ranked {
		dup := false
		for i := range reps {
			if near(c, &reps[i]) {
				dup = true
				break
			}
		}
		if !dup {
			reps = append(reps, c)
		}
	}
	return len(reps)
}

func without(pool []candidate, chosen candidate) []candidate {
	out := pool[:0:0]
	for _, c := range pool {
		if !near(c, &chosen) {
			out = append(out, c)
		}
	}
	return out
}

// pickFarthest returns the candidate with the highest score. Ties break on
// weight, then on hex.
func pickFarthest(pool []candidate, score func(candidate) float64) candidate {
	best := pool[0]
	bestScore := score(best)
	for _, c := range pool[1:] {
		s := score(c)
		switch {
		case s > bestScore:
		case s == bestScore && c.weight > best.weight:
		case s == bestScore && c.weight == best.weight && c.hex < best.hex:
		default:
			continue
		}
		best, bestScore = c, s
	}
	return best
}
