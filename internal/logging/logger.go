package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"brandkit/internal/config"
)

// LogFileName is the daemon log file written under the configured log dir.
const LogFileName = "brandkit.log"

// Options describes logger construction parameters.
type Options struct {
	Level            string
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	Development      bool
	// StageOverrides maps a stage name to its own minimum level.
	StageOverrides map[string]string
	// Hub receives a copy of every emitted record when set.
	Hub *StreamHub
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	overrides := parseOverrides(opts.StageOverrides)

	floor := level
	for _, lvl := range overrides {
		if lvl < floor {
			floor = lvl
		}
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(floor)

	outputWriter, err := openWriters(
		defaultSlice(opts.OutputPaths, []string{"stdout"}),
		defaultSlice(opts.ErrorOutputPaths, []string{"stderr"}),
	)
	if err != nil {
		return nil, err
	}

	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = newJSONHandler(outputWriter, levelVar, addSource)
	case "console":
		handler = newPrettyHandler(outputWriter, levelVar, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	handler = newStreamHandler(handler, opts.Hub)
	if len(overrides) > 0 {
		handler = newStageLevelHandler(handler, level, overrides)
	}
	return slog.New(handler), nil
}

// NewFromConfig creates a logger using application config defaults. The hub
// may be nil.
func NewFromConfig(cfg *config.Config, hub *StreamHub) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console", Hub: hub})
	}

	outputPaths := []string{"stdout"}
	errorOutputs := []string{"stderr"}
	if dir := cfg.Paths.LogDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		logPath := filepath.Join(dir, LogFileName)
		outputPaths = append(outputPaths, logPath)
		errorOutputs = append(errorOutputs, logPath)
	}

	return New(Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: errorOutputs,
		StageOverrides:   cfg.Logging.StageOverrides,
		Hub:              hub,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseOverrides(raw map[string]string) map[string]slog.Level {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]slog.Level, len(raw))
	for stage, lvl := range raw {
		stage = strings.ToLower(strings.TrimSpace(stage))
		if stage == "" {
			continue
		}
		out[stage] = parseLevel(lvl)
	}
	return out
}

func defaultSlice(value []string, fallback []string) []string {
	if len(value) == 0 {
		value = fallback
	}
	cp := make([]string, len(value))
	copy(cp, value)
	return cp
}

func openWriters(outputPaths []string, errorPaths []string) (io.Writer, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer
	combined := append(append([]string{}, outputPaths...), errorPaths...)

	for _, path := range combined {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if dir := filepath.Dir(trimmed); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, err
				}
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			writers = append(writers, file)
		}
	}

	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}
