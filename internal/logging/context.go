package logging

import (
	"context"
	"log/slog"

	"brandkit/internal/services"
)

const (
	// FieldComponent names the subsystem emitting the record.
	FieldComponent = "component"
	// FieldBrandID is the brand profile identifier.
	FieldBrandID = "brand_id"
	// FieldAssetID is the content asset identifier.
	FieldAssetID = "asset_id"
	// FieldStage is the pipeline stage name (crawl, analyze, generate, ...).
	FieldStage = "stage"
	// FieldCorrelationID carries the HTTP request identifier.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a record for filtering.
	FieldEventType = "event_type"
	// FieldErrorKind is the stable error kind reported to clients.
	FieldErrorKind = "error_kind"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings that should stand out.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.BrandIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldBrandID, id))
	}
	if id, ok := services.AssetIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAssetID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
