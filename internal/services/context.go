package services

import "context"

type contextKey string

const (
	brandIDKey   contextKey = "brand_id"
	assetIDKey   contextKey = "asset_id"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithBrandID annotates context with the brand profile identifier.
func WithBrandID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, brandIDKey, id)
}

// BrandIDFromContext extracts the brand profile identifier if present.
func BrandIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(brandIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithAssetID annotates context with the content asset identifier.
func WithAssetID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, assetIDKey, id)
}

// AssetIDFromContext extracts the content asset identifier if present.
func AssetIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(assetIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
