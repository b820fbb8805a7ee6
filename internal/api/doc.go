// Package api defines the wire-format types, converters, and HTTP client for
// the brandkit daemon API. It translates internal brand, asset, and event
// models into transport-friendly DTOs that the CLI and other consumers can
// render without coupling to internal types.
//
// # Key Types
//
// BrandProfile: transport view of an extracted brand, including its logo
// configuration and terminal extraction error.
//
// ContentAsset: a generated asset. Internal blob references never appear;
// only the public file URL does.
//
// DownloadVariant: a cached export with its URL, size, and digest.
//
// DaemonStatus: pid, uptime, active extractions, and preflight results.
//
// ErrorResponse: the `{"error":{"kind","message"}}` envelope every failing
// route returns.
//
// # Client
//
// Client wraps the daemon routes for the CLI. Non-2xx responses decode into
// *Error, which carries the stable error kind. IsUnavailable reports whether
// the daemon could not be reached at all.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Timestamps
// use RFC3339 with milliseconds.
package api
