// Package llm provides an OpenRouter-compatible chat client used to refine
// the tone and industry of an extracted brand.
//
// The analyzer's tone pass calls Client.Classify when [llm] api_key is set.
// The model is asked for JSON {tone, industry, confidence, reason}; code
// fences and surrounding prose are tolerated by DecodeLLMJSON. Results below
// MinConfidence are returned as errors so the caller keeps its lexicon
// result.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). Retry-After is honored. Context cancellation aborts retries
// immediately.
package llm
