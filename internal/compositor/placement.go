package compositor

import (
	"image"
	"math"

	"brandkit/internal/brand"
)

// Placement is the logo rectangle on the canvas.
type Placement struct {
	X, Y          int
	Width, Height int
}

// Rect returns the placement as an image rectangle.
func (p Placement) Rect() image.Rectangle {
	return image.Rect(p.X, p.Y, p.X+p.Width, p.Y+p.Height)
}

// Place sizes a logoW x logoH logo for a canvasW x canvasH canvas and anchors
// it at position. The logo's longer side becomes size% of the canvas' shorter
// side; the margin is 4% of the shorter side and does not apply to center.
func Place(canvasW, canvasH, logoW, logoH int, position brand.LogoPosition, size brand.LogoSize) Placement {
	shorter := min(canvasW, canvasH)
	target := max(1, int(math.Round(size.Fraction()*float64(shorter))))

	w, h := target, target
	if logoW >= logoH {
		h = max(1, int(math.Round(float64(logoH)*float64(target)/float64(logoW))))
	} else {
		w = max(1, int(math.Round(float64(logoW)*float64(target)/float64(logoH))))
	}

	margin := int(math.Round(brand.MarginFraction * float64(shorter)))
	p := Placement{Width: w, Height: h}
	switch position {
	case brand.PositionTopLeft:
		p.X, p.Y = margin, margin
	case brand.PositionTopRight:
		p.X, p.Y = canvasW-margin-w, margin
	case brand.PositionBottomLeft:
		p.X, p.Y = margin, canvasH-margin-h
	case brand.PositionCenter:
		p.X, p.Y = (canvasW-w)/2, (canvasH-h)/2
	default:
		p.X, p.Y = canvasW-margin-w, canvasH-margin-h
	}
	return p
}
