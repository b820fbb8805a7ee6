package preflight

import (
	"context"

	"brandkit/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every check that applies to cfg. The LLM check only runs
// when a tone classifier key is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Blob directory", cfg.Paths.BlobDir),
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckProviderKey(cfg.Provider),
	}
	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, status.Result())
	}
	if cfg.LLMEnabled() {
		results = append(results, CheckLLM(ctx, "Tone classifier LLM", cfg.LLM))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
