package preflight

import (
	"fmt"
	"os/exec"
	"strings"

	"brandkit/internal/config"
)

// Requirement is an external binary brandkit shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a Requirement resolved on PATH.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// Result converts a binary status into a preflight result. Missing optional
// binaries still pass, with the gap noted in Detail.
func (s Status) Result() Result {
	switch {
	case s.Available:
		return Result{Name: s.Name, Passed: true, Detail: s.Path}
	case s.Optional:
		return Result{Name: s.Name, Passed: true, Detail: s.Detail + "; " + strings.ToLower(s.Description) + " is disabled"}
	default:
		return Result{Name: s.Name, Detail: s.Detail}
	}
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// Requirement names reported in Status.Name.
const (
	NameFFmpeg  = "FFmpeg"
	NameFFprobe = "FFprobe"
	NameChrome  = "Chrome"
)

// CheckSystemDeps evaluates every optional binary: the ffmpeg toolchain and,
// when screenshots are enabled, headless Chrome.
func CheckSystemDeps(cfg *config.Config) []Status {
	return append(CheckVideoDeps(cfg), CheckScreenshotDeps(cfg)...)
}

// CheckVideoDeps evaluates the ffmpeg toolchain. Image generation works
// without it, so both binaries are optional.
func CheckVideoDeps(cfg *config.Config) []Status {
	return CheckBinaries([]Requirement{
		{
			Name:        NameFFmpeg,
			Command:     cfg.FFmpegBinary(),
			Description: "Video generation and export",
			Optional:    true,
		},
		{
			Name:        NameFFprobe,
			Command:     cfg.FFprobeBinary(),
			Description: "Video inspection",
			Optional:    true,
		},
	})
}

// CheckScreenshotDeps evaluates the headless browser used for homepage
// screenshots. It returns nothing when screenshots are turned off.
func CheckScreenshotDeps(cfg *config.Config) []Status {
	if !cfg.Crawler.Screenshots {
		return nil
	}
	return CheckBinaries([]Requirement{{
		Name:        NameChrome,
		Command:     cfg.ChromeBinary(),
		Description: "Homepage screenshots",
		Optional:    true,
	}})
}

// VideoReady reports whether ffmpeg and ffprobe both resolved.
func VideoReady(statuses []Status) bool {
	found := 0
	for _, s := range statuses {
		if s.Name != NameFFmpeg && s.Name != NameFFprobe {
			continue
		}
		if !s.Available {
			return false
		}
		found++
	}
	return found == 2
}

// ScreenshotReady reports whether headless Chrome resolved.
func ScreenshotReady(statuses []Status) (string, bool) {
	for _, s := range statuses {
		if s.Name == NameChrome && s.Available {
			return s.Path, true
		}
	}
	return "", false
}
