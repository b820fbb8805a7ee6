// Package logging builds the structured slog loggers used by the daemon and
// CLI.
//
// It owns the console and JSON handlers, per-stage level overrides, and the
// in-memory stream hub that backs the log API. Context helpers tag log lines
// with the brand, asset, stage, and request identifiers carried on a context.
package logging
