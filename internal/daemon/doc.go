// Package daemon coordinates the long-running brandkit process and its HTTP
// API.
//
// It wires configuration, the SQLite store, blob storage, the extraction
// manager, the generation orchestrator, and the export cache into a single
// lifecycle with flock-based locking to prevent multiple instances. At startup
// it fails extractions interrupted by a previous crash and reloads the variant
// cache index; at shutdown it cancels running extractions and waits for their
// crawlers to release their connections.
//
// Keep orchestration logic here: extraction, generation, and export each live
// in their own packages while the daemon focuses on startup, shutdown, and
// translating HTTP requests into calls on those components.
package daemon
