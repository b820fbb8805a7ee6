// Package store persists brand profiles, content assets, and cached download
// variants in SQLite.
//
// The schema is embedded and versioned. Writes retry briefly on SQLITE_BUSY.
// Extraction status updates are checked against the brand lifecycle so a
// complete or failed brand never moves again, and assets without a composited
// final output are refused at insert.
package store
