package crawler

import (
	"errors"
	"fmt"
	"image"

	"brandkit/internal/media/raster"
	"brandkit/internal/services"
)

// maxSamplePixels bounds a decoded color sample. Samples are downscaled for
// analysis, so anything larger than a 4K frame is refused.
const maxSamplePixels = 3840 * 2160

// decodeImage decodes PNG, JPEG, GIF, or WebP bytes after checking the
// header against maxSamplePixels. SVG and ICO icons are reported as
// unsupported.
func decodeImage(data []byte) (image.Image, error) {
	img, format, err := raster.Decode(data, maxSamplePixels)
	switch {
	case errors.Is(err, raster.ErrTooLarge):
		return nil, services.Wrap(services.ErrUnsupportedFormat, "crawl", "decode image", "image is larger than the sample limit", err)
	case errors.Is(err, raster.ErrEmpty):
		return nil, services.Wrap(services.ErrUnsupportedFormat, "crawl", "decode image", fmt.Sprintf("empty %s image", format), nil)
	case err != nil:
		return nil, services.Wrap(services.ErrUnsupportedFormat, "crawl", "decode image", "image format not decodable", err)
	}
	return img, nil
}
