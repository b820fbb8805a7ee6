// Package preflight reports whether brandkit's external dependencies are
// usable: data directories, the ffmpeg toolchain, provider credentials, and
// the optional tone classifier.
//
// The daemon runs these at startup and exposes them on /api/status; the CLI
// "brandkit status" command renders the same results.
package preflight
