// Package raster decodes untrusted image bytes behind a pixel budget. The
// header is read with image.DecodeConfig first so an oversized image is
// rejected before any pixel buffer is allocated.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// MaxPixels is the default budget: 40 megapixels.
const MaxPixels = 40_000_000

var (
	// ErrTooLarge reports an image whose header exceeds the pixel budget.
	ErrTooLarge = errors.New("image exceeds pixel limit")
	// ErrEmpty reports an image with no pixels.
	ErrEmpty = errors.New("image has no pixels")
)

// CheckSize rejects non-positive dimensions and images above maxPixels.
// A non-positive maxPixels means MaxPixels.
func CheckSize(width, height, maxPixels int) error {
	if maxPixels <= 0 {
		maxPixels = MaxPixels
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrEmpty, width, height)
	}
	if int64(width)*int64(height) > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d is over %d pixels", ErrTooLarge, width, height, maxPixels)
	}
	return nil
}

// DecodeConfig sniffs the header and applies CheckSize.
func DecodeConfig(data []byte, maxPixels int) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", err
	}
	if err := CheckSize(cfg.Width, cfg.Height, maxPixels); err != nil {
		return cfg, format, err
	}
	return cfg, format, nil
}

// Decode decodes data once its header has passed CheckSize.
func Decode(data []byte, maxPixels int) (image.Image, string, error) {
	if _, _, err := DecodeConfig(data, maxPixels); err != nil {
		return nil, "", err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	if img.Bounds().Empty() {
		return nil, format, ErrEmpty
	}
	return img, format, nil
}
