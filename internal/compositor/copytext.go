package compositor

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"brandkit/internal/services"
)

const (
	copyMinSize     = 12.0
	copyScale       = 0.045
	copyWidthRatio  = 0.9
	copyBottomRatio = 0.15
)

var copyFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// DrawCopy renders text centered in the lower third of the image with a
// drop shadow and returns PNG bytes. Empty text returns data unchanged.
func DrawCopy(data []byte, text string, fill color.RGBA) ([]byte, error) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return data, nil
	}
	base, err := decode(data, "base image")
	if err != nil {
		return nil, err
	}
	b := base.Bounds()
	canvas := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), base, b.Min, draw.Src)

	face, lines, err := layoutCopy(text, canvas.Bounds().Dx())
	if err != nil {
		return nil, err
	}
	defer face.Close()

	m := face.Metrics()
	lineHeight := m.Height.Ceil()
	h := canvas.Bounds().Dy()
	offset := max(1, lineHeight/24)
	lastBaseline := h - int(float64(h)*copyBottomRatio) - m.Descent.Ceil() - offset

	d := &font.Drawer{Dst: canvas, Face: face}
	for i, line := range lines {
		width := d.MeasureString(line).Ceil()
		x := (canvas.Bounds().Dx() - width) / 2
		y := lastBaseline - (len(lines)-1-i)*lineHeight

		d.Src = image.NewUniform(shadowFor(fill))
		d.Dot = fixed.P(x+offset, y+offset)
		d.DrawString(line)

		d.Src = image.NewUniform(fill)
		d.Dot = fixed.P(x, y)
		d.DrawString(line)
	}
	return encodePNG(canvas)
}

// layoutCopy wraps text to the usable width, shrinking the face until every
// line fits or the minimum size is reached.
func layoutCopy(text string, width int) (font.Face, []string, error) {
	f, err := copyFont()
	if err != nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "compositor", "load font", "embedded font unavailable", err)
	}
	maxWidth := fixed.I(int(float64(width) * copyWidthRatio))
	size := max(16, float64(width)*copyScale)
	for {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			return nil, nil, services.Wrap(services.ErrConfiguration, "compositor", "load font", "font face unavailable", err)
		}
		lines, fits := wrapWords(face, strings.Fields(text), maxWidth)
		if fits || size <= copyMinSize {
			return face, lines, nil
		}
		_ = face.Close()
		size = max(copyMinSize, size*0.85)
	}
}

func wrapWords(face font.Face, words []string, maxWidth fixed.Int26_6) ([]string, bool) {
	var lines []string
	fits := true
	current := ""
	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if font.MeasureString(face, candidate) <= maxWidth || current == "" {
			current = candidate
		} else {
			lines = append(lines, current)
			current = word
		}
		if font.MeasureString(face, current) > maxWidth {
			fits = false
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines, fits
}

// shadowFor picks a translucent shadow that contrasts with fill.
func shadowFor(fill color.RGBA) color.NRGBA {
	luma := 0.299*float64(fill.R) + 0.587*float64(fill.G) + 0.114*float64(fill.B)
	if luma > 140 {
		return color.NRGBA{A: 0xB0}
	}
	return color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xB0}
}
