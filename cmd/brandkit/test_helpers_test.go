package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"brandkit/internal/api"
)

const testToken = "cli-token"

type fakeDaemon struct {
	server *httptest.Server
	mux    *http.ServeMux

	mu       sync.Mutex
	requests []string
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()
	fd := &fakeDaemon{mux: http.NewServeMux()}
	fd.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: api.ErrorBody{Kind: "Unauthorized", Message: "missing token"}})
			return
		}
		fd.mu.Lock()
		fd.requests = append(fd.requests, r.Method+" "+r.URL.RequestURI())
		fd.mu.Unlock()
		fd.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(fd.server.Close)
	return fd
}

func (fd *fakeDaemon) bind() string {
	return fd.server.Listener.Addr().String()
}

func (fd *fakeDaemon) handleJSON(pattern string, status int, body any) {
	fd.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

func (fd *fakeDaemon) handleError(pattern string, status int, kind, message string) {
	fd.handleJSON(pattern, status, api.ErrorResponse{Error: api.ErrorBody{Kind: kind, Message: message}})
}

func (fd *fakeDaemon) seen() []string {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return append([]string(nil), fd.requests...)
}

// writeTestConfig writes a config file rooted in a temp dir that points the
// CLI at bind.
func writeTestConfig(t *testing.T, bind string) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
cache_dir = %q

[api]
bind = %q
token = %q

[provider]
api_key = "test-key"
`, filepath.Join(base, "data"), filepath.Join(base, "cache"), bind, testToken)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	full := args
	if configPath != "" {
		full = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(full)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}

func sampleBrand(id string) api.BrandProfile {
	return api.BrandProfile{
		ID:               id,
		Name:             "Acme Analytics",
		SourceURL:        "https://acme.test",
		Colors:           api.ColorPalette{Primary: "#6366F1", Secondary: "#0F172A", Accent: "#F59E0B", Background: "#FFFFFF", Text: "#111827"},
		Typography:       api.Typography{HeadingFont: "Poppins", BodyFont: "Inter", HeadingWeight: 700, BodyWeight: 400},
		Tone:             "professional",
		Keywords:         []string{"analytics", "cloud"},
		Industry:         "technology",
		ExtractionStatus: "complete",
		CreatedAt:        "2026-01-02T03:04:05.000Z",
	}
}
