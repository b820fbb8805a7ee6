package logging

import (
	"context"
	"log/slog"
	"strings"
)

// stageLevelHandler applies per-stage minimum levels on top of a wrapped
// handler configured with the most verbose level in use.
type stageLevelHandler struct {
	next      slog.Handler
	global    slog.Level
	overrides map[string]slog.Level
	stage     string
}

func newStageLevelHandler(next slog.Handler, global slog.Level, overrides map[string]slog.Level) slog.Handler {
	if next == nil {
		return NoopHandler{}
	}
	return &stageLevelHandler{next: next, global: global, overrides: overrides}
}

func (h *stageLevelHandler) threshold(stage string) slog.Level {
	if lvl, ok := h.overrides[strings.ToLower(stage)]; ok {
		return lvl
	}
	return h.global
}

func (h *stageLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *stageLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	stage := h.stage
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == FieldStage {
			stage = attr.Value.String()
			return false
		}
		return true
	})
	if record.Level < h.threshold(stage) {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *stageLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	stage := h.stage
	for _, attr := range attrs {
		if attr.Key == FieldStage {
			stage = attr.Value.String()
		}
	}
	return &stageLevelHandler{next: h.next.WithAttrs(attrs), global: h.global, overrides: h.overrides, stage: stage}
}

func (h *stageLevelHandler) WithGroup(name string) slog.Handler {
	return &stageLevelHandler{next: h.next.WithGroup(name), global: h.global, overrides: h.overrides, stage: h.stage}
}
