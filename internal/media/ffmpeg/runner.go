// Package ffmpeg drives the ffmpeg and ffprobe binaries for the video side of
// generation: animating a keyframe into a clip, stamping a logo on every
// frame, and transcoding download variants.
//
// Every encode runs single-threaded with bitexact flags and stripped metadata
// so identical inputs produce identical bytes.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"brandkit/internal/config"
	"brandkit/internal/logging"
	"brandkit/internal/services"
)

// FrameRate is the frame rate of generated clips.
const FrameRate = 30

// ExecFunc runs a binary and returns its stdout.
type ExecFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Runner executes ffmpeg and ffprobe.
type Runner struct {
	ffmpeg  string
	ffprobe string
	exec    ExecFunc
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithExec replaces process execution, mainly for tests.
func WithExec(fn ExecFunc) Option {
	return func(r *Runner) {
		if fn != nil {
			r.exec = fn
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New constructs a runner for the given binaries. Empty names fall back to
// the PATH defaults.
func New(ffmpegBinary, ffprobeBinary string, opts ...Option) *Runner {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	r := &Runner{
		ffmpeg:  ffmpegBinary,
		ffprobe: ffprobeBinary,
		exec:    defaultExec,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FromConfig builds a runner from the [ffmpeg] settings.
func FromConfig(cfg *config.Config, opts ...Option) *Runner {
	if cfg == nil {
		return New("", "", opts...)
	}
	return New(cfg.FFmpegBinary(), cfg.FFprobeBinary(), opts...)
}

// Binaries returns the ffmpeg and ffprobe executables.
func (r *Runner) Binaries() (string, string) {
	return r.ffmpeg, r.ffprobe
}

// Animate renders a still keyframe into an H.264 mp4 of seconds length with
// a slow centered zoom.
func (r *Runner) Animate(ctx context.Context, keyframe, output string, width, height, seconds int) error {
	if width <= 0 || height <= 0 || seconds <= 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "animate",
			fmt.Sprintf("invalid clip %dx%d for %ds", width, height, seconds), nil)
	}
	return r.ffmpegRun(ctx, "animate", AnimateArgs(keyframe, output, width, height, seconds))
}

// Overlay stamps logo at (x, y) on every frame of base. The logo must already
// be scaled to its final size.
func (r *Runner) Overlay(ctx context.Context, base, logo, output string, x, y int, opacity float64) error {
	if opacity < 0 || opacity > 1 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "overlay", "opacity must be between 0 and 1", nil)
	}
	return r.ffmpegRun(ctx, "overlay", OverlayArgs(base, logo, output, x, y, opacity))
}

// Transcode re-encodes input into the container and size of profile.
func (r *Runner) Transcode(ctx context.Context, input, output string, profile Profile) error {
	args, err := TranscodeArgs(input, output, profile)
	if err != nil {
		return err
	}
	return r.ffmpegRun(ctx, "transcode", args)
}

func (r *Runner) ffmpegRun(ctx context.Context, op string, args []string) error {
	started := time.Now()
	logger := logging.WithContext(ctx, r.logger)
	if _, err := r.exec(ctx, r.ffmpeg, args...); err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrCanceled, "ffmpeg", op, "ffmpeg interrupted", ctx.Err())
		}
		logging.ErrorWithContext(logger, "ffmpeg failed", "ffmpeg_failed",
			logging.String("operation", op),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that ffmpeg is installed with libx264, libvpx-vp9 and libopus"),
		)
		return services.Wrap(services.ErrExternalTool, "ffmpeg", op, "ffmpeg "+op+" failed", err)
	}
	logger.Debug("ffmpeg finished",
		logging.String("operation", op),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func defaultExec(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, tail(stderr.String(), 512))
	}
	return stdout.Bytes(), nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

func formatOpacity(opacity float64) string {
	return strconv.FormatFloat(opacity, 'f', 3, 64)
}
