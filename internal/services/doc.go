// Package services defines shared utilities consumed by the extraction
// pipeline, the generation orchestrator, and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp brand IDs, asset IDs, stage names, and
//     correlation identifiers for logging.
//   - Kind-carrying error markers plus the Wrap helper. Every failure that
//     reaches an API client reports a stable kind (Kind) and a human message
//     (Message).
//
// Use these helpers when wiring new pipeline logic so error reporting stays
// uniform across the daemon API and the CLI.
package services
