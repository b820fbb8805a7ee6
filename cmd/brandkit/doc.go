// Package main hosts the brandkit CLI entrypoint and command graph.
//
// Commands translate terminal invocations into HTTP calls against a running
// brandkitd: extracting brand profiles from URLs, configuring logos,
// generating on-brand assets, and exporting downloads. Configuration is
// resolved once per invocation and supplies the daemon address and token.
package main
