package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"brandkit/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     string `json:"duration"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
}

// Format captures container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Inspect reads stream metadata for path with ffprobe.
func (r *Runner) Inspect(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	args := []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path}
	output, err := r.exec(ctx, r.ffprobe, args...)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffmpeg", "probe", "ffprobe failed", err)
	}
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "ffmpeg", "probe", "ffprobe returned invalid json", err)
	}
	return result, nil
}

// VideoStream returns the first video stream.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// HasAudio reports whether any audio stream is present.
func (r Result) HasAudio() bool {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return true
		}
	}
	return false
}

// DurationSeconds returns the container duration, NaN when unparsable and 0
// when absent.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// FrameCount returns the video frame count, or 0 when unknown.
func (r Result) FrameCount() int {
	stream, ok := r.VideoStream()
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(stream.NbFrames))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
