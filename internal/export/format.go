package export

import (
	"fmt"
	"strings"

	"brandkit/internal/brand"
	"brandkit/internal/services"
)

// Format is a download container.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPG  Format = "jpg"
	FormatWebP Format = "webp"
	FormatPDF  Format = "pdf"
	FormatMP4  Format = "mp4"
	FormatMOV  Format = "mov"
	FormatWebM Format = "webm"
)

// Quality selects the output resolution.
type Quality string

const (
	QualityHD Quality = "hd"
	Quality4K Quality = "4k"
)

var (
	imageFormats = []Format{FormatPNG, FormatJPG, FormatWebP, FormatPDF}
	videoFormats = []Format{FormatMP4, FormatMOV, FormatWebM}
)

var contentTypes = map[Format]string{
	FormatPNG:  "image/png",
	FormatJPG:  "image/jpeg",
	FormatWebP: "image/webp",
	FormatPDF:  "application/pdf",
	FormatMP4:  "video/mp4",
	FormatMOV:  "video/quicktime",
	FormatWebM: "video/webm",
}

// ParseFormat resolves a format name. "jpeg" is accepted for jpg.
func ParseFormat(value string) (Format, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "jpeg" {
		v = string(FormatJPG)
	}
	if _, ok := contentTypes[Format(v)]; ok {
		return Format(v), nil
	}
	return "", services.Wrap(services.ErrUnsupportedFormat, "export", "parse format", fmt.Sprintf("unknown format %q", value), nil)
}

// ParseQuality resolves hd or 4k.
func ParseQuality(value string) (Quality, error) {
	switch Quality(strings.ToLower(strings.TrimSpace(value))) {
	case QualityHD:
		return QualityHD, nil
	case Quality4K:
		return Quality4K, nil
	}
	return "", services.Wrap(services.ErrValidation, "export", "parse quality", fmt.Sprintf("quality %q must be hd or 4k", value), nil)
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string { return contentTypes[f] }

// IsVideo reports whether f is a video container.
func (f Format) IsVideo() bool {
	for _, v := range videoFormats {
		if v == f {
			return true
		}
	}
	return false
}

// Formats lists the formats an asset of kind can be exported to.
func Formats(kind brand.ContentType) []Format {
	if kind == brand.ContentVideo {
		return append([]Format(nil), videoFormats...)
	}
	return append([]Format(nil), imageFormats...)
}

// Supports reports whether kind can be exported to f.
func Supports(kind brand.ContentType, f Format) bool {
	for _, candidate := range Formats(kind) {
		if candidate == f {
			return true
		}
	}
	return false
}

// LongSide is the target length of the output's longer side.
func (q Quality) LongSide() int {
	if q == Quality4K {
		return 3840
	}
	return 1920
}

// Scale fits width x height so the longer side is q.LongSide(). When even is
// set both sides are rounded down to even numbers, as video encoders require.
func (q Quality) Scale(width, height int, even bool) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	long := q.LongSide()
	var w, h int
	if width >= height {
		w = long
		h = max(1, (height*long+width/2)/width)
	} else {
		h = long
		w = max(1, (width*long+height/2)/height)
	}
	if even {
		w, h = max(2, w&^1), max(2, h&^1)
	}
	return w, h
}
