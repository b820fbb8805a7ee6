// Package compositor stamps a brand logo onto generated images and videos
// and renders optional copy text onto keyframes.
//
// Output depends only on the base bytes, the copy text, and the LogoSpec.
// There is no clock or randomness, and video uses a single-threaded bitexact
// encode.
package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"brandkit/internal/brand"
	"brandkit/internal/logging"
	"brandkit/internal/media/ffmpeg"
	"brandkit/internal/media/raster"
	"brandkit/internal/services"
)

// VideoTool overlays a logo onto every frame of a clip.
type VideoTool interface {
	Inspect(ctx context.Context, path string) (ffmpeg.Result, error)
	Overlay(ctx context.Context, base, logo, output string, x, y int, opacity float64) error
}

// Input is one composite job.
type Input struct {
	Kind brand.ContentType
	Base []byte
	Logo []byte
	Spec brand.LogoSpec
}

// Output is the logo-stamped asset.
type Output struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	Placement   Placement
}

// Compositor applies logos. Video support needs a VideoTool.
type Compositor struct {
	video   VideoTool
	tempDir string
	logger  *slog.Logger
}

// New constructs a compositor. video may be nil when only images are
// composited; tempDir is where video intermediates are written.
func New(video VideoTool, tempDir string, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Compositor{video: video, tempDir: tempDir, logger: logging.NewComponentLogger(logger, "compositor")}
}

// Composite stamps in.Spec's logo onto in.Base.
func (c *Compositor) Composite(ctx context.Context, in Input) (Output, error) {
	if len(in.Base) == 0 {
		return Output{}, services.Wrap(services.ErrValidation, "compositor", "composite", "base asset is empty", nil)
	}
	if err := in.Spec.Validate(); err != nil {
		return Output{}, err
	}
	logo, err := decode(in.Logo, "logo")
	if err != nil {
		return Output{}, err
	}
	switch in.Kind {
	case brand.ContentImage:
		return compositeImage(in.Base, logo, in.Spec)
	case brand.ContentVideo:
		return c.compositeVideo(ctx, in.Base, logo, in.Spec)
	default:
		return Output{}, services.Wrap(services.ErrValidation, "compositor", "composite", fmt.Sprintf("unknown content type %q", in.Kind), nil)
	}
}

func compositeImage(baseData []byte, logo image.Image, spec brand.LogoSpec) (Output, error) {
	base, err := decode(baseData, "base image")
	if err != nil {
		return Output{}, err
	}
	bounds := base.Bounds()
	canvas := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), base, bounds.Min, draw.Src)

	place := Place(canvas.Bounds().Dx(), canvas.Bounds().Dy(), logo.Bounds().Dx(), logo.Bounds().Dy(), spec.Position, spec.Size)
	scaled := scaleLogo(logo, place)
	mask := image.NewUniform(color.Alpha{A: alpha(spec.Opacity)})
	draw.DrawMask(canvas, place.Rect(), scaled, image.Point{}, mask, image.Point{}, draw.Over)

	data, err := encodePNG(canvas)
	if err != nil {
		return Output{}, err
	}
	return Output{
		Data:        data,
		ContentType: "image/png",
		Width:       canvas.Bounds().Dx(),
		Height:      canvas.Bounds().Dy(),
		Placement:   place,
	}, nil
}

func (c *Compositor) compositeVideo(ctx context.Context, baseData []byte, logo image.Image, spec brand.LogoSpec) (Output, error) {
	if c.video == nil {
		return Output{}, services.Wrap(services.ErrConfiguration, "compositor", "composite video", "video compositing requires ffmpeg", nil)
	}
	dir, err := os.MkdirTemp(c.tempDir, "composite-*")
	if err != nil {
		return Output{}, fmt.Errorf("create composite workspace: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	basePath := filepath.Join(dir, "base.mp4")
	if err := os.WriteFile(basePath, baseData, 0o600); err != nil {
		return Output{}, fmt.Errorf("write base video: %w", err)
	}
	info, err := c.video.Inspect(ctx, basePath)
	if err != nil {
		return Output{}, err
	}
	stream, ok := info.VideoStream()
	if !ok || stream.Width <= 0 || stream.Height <= 0 {
		return Output{}, services.Wrap(services.ErrValidation, "compositor", "composite video", "base asset has no video stream", nil)
	}

	place := Place(stream.Width, stream.Height, logo.Bounds().Dx(), logo.Bounds().Dy(), spec.Position, spec.Size)
	logoData, err := encodePNG(scaleLogo(logo, place))
	if err != nil {
		return Output{}, err
	}
	logoPath := filepath.Join(dir, "logo.png")
	if err := os.WriteFile(logoPath, logoData, 0o600); err != nil {
		return Output{}, fmt.Errorf("write scaled logo: %w", err)
	}

	outPath := filepath.Join(dir, "final.mp4")
	if err := c.video.Overlay(ctx, basePath, logoPath, outPath, place.X, place.Y, spec.Opacity); err != nil {
		return Output{}, err
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		return Output{}, fmt.Errorf("read composited video: %w", err)
	}
	c.logger.Debug("video composited",
		logging.Int("width", stream.Width),
		logging.Int("height", stream.Height),
		logging.String("position", string(spec.Position)),
	)
	return Output{
		Data:        data,
		ContentType: "video/mp4",
		Width:       stream.Width,
		Height:      stream.Height,
		Placement:   place,
	}, nil
}

func decode(data []byte, what string) (image.Image, error) {
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "compositor", "decode", what+" is empty", nil)
	}
	img, _, err := raster.Decode(data, raster.MaxPixels)
	switch {
	case errors.Is(err, raster.ErrTooLarge):
		return nil, services.Wrap(services.ErrValidation, "compositor", "decode", what+" is too large", err)
	case errors.Is(err, raster.ErrEmpty):
		return nil, services.Wrap(services.ErrValidation, "compositor", "decode", what+" has no pixels", err)
	case err != nil:
		return nil, services.Wrap(services.ErrValidation, "compositor", "decode", what+" could not be decoded", err)
	}
	return img, nil
}

func scaleLogo(logo image.Image, place Placement) *image.NRGBA {
	scaled := image.NewNRGBA(image.Rect(0, 0, place.Width, place.Height))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), logo, logo.Bounds(), xdraw.Src, nil)
	return scaled
}

func alpha(opacity float64) uint8 {
	return uint8(math.Round(opacity * 255))
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
