package generation

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"

	"brandkit/internal/media/raster"
	"brandkit/internal/services"
)

// FitCrop scales data to cover width x height and crops the overflow evenly
// from both sides. The result is PNG.
func FitCrop(data []byte, width, height int) ([]byte, error) {
	src, _, err := raster.Decode(data, raster.MaxPixels)
	switch {
	case errors.Is(err, raster.ErrEmpty):
		return nil, services.Wrap(services.ErrProvider, "generation", "fit", "provider returned an empty image", err)
	case errors.Is(err, raster.ErrTooLarge):
		return nil, services.Wrap(services.ErrProvider, "generation", "fit", "provider returned an oversized image", err)
	case err != nil:
		return nil, services.Wrap(services.ErrProvider, "generation", "fit", "provider returned an undecodable image", err)
	}
	b := src.Bounds()

	crop := b
	sw, sh := b.Dx(), b.Dy()
	if sw*height > sh*width {
		cw := max(1, sh*width/height)
		x0 := b.Min.X + (sw-cw)/2
		crop = image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	} else if sw*height < sh*width {
		ch := max(1, sw*height/width)
		y0 := b.Min.Y + (sh-ch)/2
		crop = image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, xdraw.Src, nil)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode base image: %w", err)
	}
	return buf.Bytes(), nil
}
