// Package chrome renders a page in headless Chrome over the DevTools protocol
// and returns a viewport screenshot for the color pass.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"brandkit/internal/config"
	"brandkit/internal/logging"
	"brandkit/internal/media/raster"
	"brandkit/internal/services"
)

const (
	defaultWidth   = 1280
	defaultHeight  = 800
	defaultTimeout = 10 * time.Second
	// Screenshots may come back at a device pixel ratio of 2.
	pixelHeadroom = 4
)

// CaptureFunc loads pageURL and returns PNG screenshot bytes.
type CaptureFunc func(ctx context.Context, pageURL string) ([]byte, error)

// Renderer implements crawler.Renderer.
type Renderer struct {
	binary    string
	width     int
	height    int
	timeout   time.Duration
	userAgent string
	capture   CaptureFunc
	logger    *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithCapture replaces the browser session, mainly for tests.
func WithCapture(fn CaptureFunc) Option {
	return func(r *Renderer) {
		if fn != nil {
			r.capture = fn
		}
	}
}

// WithViewport sets the window size.
func WithViewport(width, height int) Option {
	return func(r *Renderer) {
		if width > 0 && height > 0 {
			r.width, r.height = width, height
		}
	}
}

// WithTimeout bounds a single render.
func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithUserAgent sets the browser user agent.
func WithUserAgent(ua string) Option {
	return func(r *Renderer) { r.userAgent = strings.TrimSpace(ua) }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New builds a renderer that launches binary for each render.
func New(binary string, opts ...Option) *Renderer {
	r := &Renderer{
		binary:  strings.TrimSpace(binary),
		width:   defaultWidth,
		height:  defaultHeight,
		timeout: defaultTimeout,
		logger:  logging.NewNop(),
	}
	r.capture = r.chromedpCapture
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "chrome")
	return r
}

// FromConfig builds a renderer from the [crawler] screenshot settings.
// binaryPath is the resolved executable.
func FromConfig(cfg *config.Config, binaryPath string, opts ...Option) *Renderer {
	base := []Option{
		WithViewport(cfg.Crawler.ViewportWidth, cfg.Crawler.ViewportHeight),
		WithTimeout(cfg.ScreenshotTimeout()),
		WithUserAgent(cfg.Crawler.UserAgent),
	}
	return New(binaryPath, append(base, opts...)...)
}

// Viewport returns the configured window size.
func (r *Renderer) Viewport() (int, int) {
	return r.width, r.height
}

// Render loads pageURL and decodes the screenshot.
func (r *Renderer) Render(ctx context.Context, pageURL string) (image.Image, error) {
	renderCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	data, err := r.capture(renderCtx, pageURL)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, services.Wrap(services.ErrCanceled, "chrome", "render", "screenshot canceled", err)
		case errors.Is(renderCtx.Err(), context.DeadlineExceeded):
			return nil, services.Wrap(services.ErrTimeout, "chrome", "render",
				fmt.Sprintf("screenshot exceeded %s", r.timeout), err)
		}
		return nil, services.Wrap(services.ErrExternalTool, "chrome", "render", "headless chrome failed", err)
	}
	img, _, err := raster.Decode(data, r.width*r.height*pixelHeadroom)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "chrome", "render", "screenshot could not be decoded", err)
	}
	r.logger.Debug("page rendered",
		logging.String("url", pageURL),
		logging.Int("width", img.Bounds().Dx()),
		logging.Int("height", img.Bounds().Dy()),
		logging.Duration("elapsed", time.Since(started)),
	)
	return img, nil
}

func (r *Renderer) chromedpCapture(ctx context.Context, pageURL string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(r.width, r.height),
		chromedp.DisableGPU,
	)
	if r.binary != "" {
		opts = append(opts, chromedp.ExecPath(r.binary))
	}
	if r.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.userAgent))
	}
	if os.Geteuid() == 0 {
		opts = append(opts, chromedp.NoSandbox)
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var shot []byte
	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(r.width), int64(r.height)),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.CaptureScreenshot(&shot),
	)
	if err != nil {
		return nil, err
	}
	return shot, nil
}
