package ffmpeg

import (
	"fmt"
	"strconv"

	"brandkit/internal/services"
)

// Profile selects the output container and frame size of a transcode.
type Profile struct {
	Container string
	Width     int
	Height    int
}

var deterministic = []string{
	"-threads", "1",
	"-map_metadata", "-1",
	"-fflags", "+bitexact",
	"-flags:v", "+bitexact",
}

var h264 = []string{"-c:v", "libx264", "-preset", "medium", "-crf", "20", "-pix_fmt", "yuv420p"}

func baseArgs() []string {
	return []string{"-y", "-hide_banner", "-loglevel", "error", "-nostdin"}
}

// AnimateArgs builds the zoompan render of a keyframe. The source is upscaled
// before zooming so the pan stays smooth.
func AnimateArgs(keyframe, output string, width, height, seconds int) []string {
	frames := seconds * FrameRate
	filter := fmt.Sprintf(
		"scale=%d:%d,zoompan=z='min(1+0.0006*on,1.12)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:s=%dx%d:fps=%d,format=yuv420p",
		width*2, height*2, frames, width, height, FrameRate,
	)
	args := baseArgs()
	args = append(args, "-i", keyframe, "-vf", filter, "-frames:v", strconv.Itoa(frames), "-an")
	args = append(args, h264...)
	args = append(args, deterministic...)
	args = append(args, "-movflags", "+faststart", "-f", "mp4", output)
	return args
}

// OverlayArgs builds the logo overlay. The overlay has no enable expression so
// it covers every frame.
func OverlayArgs(base, logo, output string, x, y int, opacity float64) []string {
	filter := fmt.Sprintf(
		"[1:v]format=rgba,colorchannelmixer=aa=%s[logo];[0:v][logo]overlay=%d:%d:format=auto,format=yuv420p[v]",
		formatOpacity(opacity), x, y,
	)
	args := baseArgs()
	args = append(args,
		"-i", base,
		"-loop", "1", "-i", logo,
		"-filter_complex", filter,
		"-map", "[v]", "-map", "0:a?",
		"-shortest",
	)
	args = append(args, h264...)
	args = append(args, "-c:a", "copy")
	args = append(args, deterministic...)
	args = append(args, "-movflags", "+faststart", "-f", "mp4", output)
	return args
}

// TranscodeArgs builds a variant encode. mp4 and mov use H.264 and AAC; webm
// uses VP9 and Opus.
func TranscodeArgs(input, output string, p Profile) ([]string, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "transcode",
			fmt.Sprintf("invalid size %dx%d", p.Width, p.Height), nil)
	}
	args := baseArgs()
	args = append(args, "-i", input,
		"-vf", fmt.Sprintf("scale=%d:%d:flags=bicubic", even(p.Width), even(p.Height)),
		"-map", "0:v:0", "-map", "0:a?",
	)
	switch p.Container {
	case "mp4", "mov":
		args = append(args, h264...)
		args = append(args, "-c:a", "aac", "-b:a", "160k")
		args = append(args, deterministic...)
		args = append(args, "-movflags", "+faststart", "-f", p.Container, output)
	case "webm":
		args = append(args,
			"-c:v", "libvpx-vp9", "-b:v", "0", "-crf", "32", "-row-mt", "0", "-pix_fmt", "yuv420p",
			"-c:a", "libopus", "-b:a", "128k",
		)
		args = append(args, deterministic...)
		args = append(args, "-f", "webm", output)
	default:
		return nil, services.Wrap(services.ErrUnsupportedFormat, "ffmpeg", "transcode",
			fmt.Sprintf("unsupported container %q", p.Container), nil)
	}
	return args, nil
}

func even(n int) int {
	if n%2 != 0 {
		n--
	}
	if n < 2 {
		return 2
	}
	return n
}
