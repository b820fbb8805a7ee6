package crawler_test

import (
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"brandkit/internal/crawler"
	"brandkit/internal/services"
	"brandkit/internal/testsupport"
)

const homepage = `<!doctype html>
<html><head>
<title> Acme Roasters </title>
<meta name="description" content="Small batch coffee.">
<meta name="keywords" content="coffee, roasting">
<meta property="og:image" content="/og.png">
<link rel="stylesheet" href="/site.css">
<link rel="stylesheet" href="https://cdn.other.test/lib.css">
<style>
body { background: #0f172a; color: #e2e8f0 }
.btn, .cta { background-color: #6366f1 !important }
:root { --brand: #6366f1 }
</style>
</head>
<body>
<h1 style="color: #6366F1">Fresh roasted coffee</h1>
<script>var hidden = "do not index";</script>
<p>We roast every morning.</p>
<a href="/about">About</a>
<a href="/about#team">Team</a>
<a href="/menu.pdf">Menu</a>
<a href="mailto:hi@acme.test">Mail</a>
<a href="/broken">Broken</a>
<a href="https://elsewhere.test/">Elsewhere</a>
</body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	ogPNG := testsupport.PNGBytes(t, testsupport.SolidImage(8, 8, color.NRGBA{R: 0x63, G: 0x66, B: 0xf1, A: 0xff}))
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(homepage))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body style="font-family: 'Inter', sans-serif"><p>Our story began in a garage.</p></body></html>`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/site.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte(`h1, h2 { font-family: "Poppins", sans-serif; font-weight: 800 } p { font-family: Inter }`))
	})
	mux.HandleFunc("/og.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(ogPNG)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func defaultOptions() crawler.Options {
	return crawler.Options{MaxPages: 3, Budget: 5 * time.Second, UserAgent: "brandkit-test", MaxStylesheets: 4, MaxImages: 2}
}

func hasRule(rules []crawler.StyleRule, selector, property, value string) bool {
	for _, r := range rules {
		if r.Selector == selector && r.Property == property && strings.EqualFold(r.Value, value) {
			return true
		}
	}
	return false
}

func TestCrawlCollectsArtifacts(t *testing.T) {
	srv := newSite(t)
	c := crawler.New(defaultOptions())

	art, err := c.Crawl(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if art.Title != "Acme Roasters" || art.Description != "Small batch coffee." {
		t.Fatalf("unexpected meta: title=%q description=%q", art.Title, art.Description)
	}
	if len(art.MetaKeywords) != 2 || art.MetaKeywords[1] != "roasting" {
		t.Fatalf("unexpected meta keywords: %v", art.MetaKeywords)
	}
	if !strings.Contains(art.Text, "Fresh roasted coffee") || !strings.Contains(art.Text, "Our story began") {
		t.Fatalf("expected visible text from both pages, got %q", art.Text)
	}
	if strings.Contains(art.Text, "do not index") {
		t.Fatalf("script text leaked into visible text: %q", art.Text)
	}
	if len(art.Pages) != 2 {
		t.Fatalf("expected homepage and /about, got %+v", art.Pages)
	}

	if !hasRule(art.StyleRules, "body", "background", "#0f172a") {
		t.Fatalf("missing body background rule: %+v", art.StyleRules)
	}
	if !hasRule(art.StyleRules, "h1", "color", "#6366F1") {
		t.Fatalf("missing inline h1 color: %+v", art.StyleRules)
	}
	if art.CustomProperties["--brand"] != "#6366f1" {
		t.Fatalf("unexpected custom properties: %v", art.CustomProperties)
	}
	var sawHeadingFont bool
	for _, r := range art.FontRules() {
		if strings.Contains(r.Selector, "h1") && r.Property == "font-family" && strings.Contains(r.Value, "Poppins") {
			sawHeadingFont = true
		}
	}
	if !sawHeadingFont {
		t.Fatalf("missing stylesheet heading font: %+v", art.FontRules())
	}
	if len(art.Samples) != 1 || art.Samples[0].Image.Bounds().Dx() != 8 {
		t.Fatalf("expected one decoded og:image sample, got %d", len(art.Samples))
	}

	var brokenRecorded bool
	for _, f := range art.Failures {
		if strings.HasSuffix(f.URL, "/broken") && f.Kind == services.ErrUnreachable.Kind() {
			brokenRecorded = true
		}
	}
	if !brokenRecorded {
		t.Fatalf("expected /broken failure to be recorded, got %+v", art.Failures)
	}
}

func TestCrawlHomepageStatusErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   *services.Marker
	}{
		{"forbidden", http.StatusForbidden, services.ErrBlocked},
		{"rate limited", http.StatusTooManyRequests, services.ErrBlocked},
		{"not found", http.StatusNotFound, services.ErrUnreachable},
		{"server error", http.StatusBadGateway, services.ErrUnreachable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			_, err := crawler.New(defaultOptions()).Crawl(context.Background(), srv.URL)
			if !services.IsKind(err, tc.want) {
				t.Fatalf("expected %s, got %v", tc.want.Kind(), err)
			}
		})
	}
}

func TestCrawlRejectsNonHTMLHomepage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := crawler.New(defaultOptions()).Crawl(context.Background(), srv.URL); !services.IsKind(err, services.ErrUnreachable) {
		t.Fatalf("expected Unreachable, got %v", err)
	}
}

func TestCrawlHonorsRobotsMeta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><meta name="robots" content="noindex, nofollow"></head><body>hi</body></html>`))
	}))
	defer srv.Close()

	if _, err := crawler.New(defaultOptions()).Crawl(context.Background(), srv.URL); !services.IsKind(err, services.ErrBlocked) {
		t.Fatalf("expected Blocked, got %v", err)
	}
}

func slowServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlBudgetTimeout(t *testing.T) {
	srv := slowServer(t)
	opts := defaultOptions()
	opts.Budget = 50 * time.Millisecond

	_, err := crawler.New(opts).Crawl(context.Background(), srv.URL)
	if !services.IsKind(err, services.ErrTimeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
}

type countingTransport struct {
	*http.Transport
	closed *atomic.Int32
}

func (c countingTransport) CloseIdleConnections() {
	c.closed.Add(1)
	c.Transport.CloseIdleConnections()
}

func TestCrawlCancelReleasesTransport(t *testing.T) {
	srv := slowServer(t)
	var closed atomic.Int32
	c := crawler.New(defaultOptions(), crawler.WithTransport(func() http.RoundTripper {
		return countingTransport{Transport: &http.Transport{}, closed: &closed}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	_, err := c.Crawl(ctx, srv.URL)
	if !services.IsKind(err, services.ErrCanceled) {
		t.Fatalf("expected Canceled, got %v", err)
	}
	if closed.Load() != 1 {
		t.Fatalf("expected transport to be released once, got %d", closed.Load())
	}
}

func TestNormalizeURL(t *testing.T) {
	u, err := crawler.NormalizeURL("Example.COM")
	if err != nil {
		t.Fatalf("NormalizeURL: %v", err)
	}
	if u.String() != "https://example.com/" {
		t.Fatalf("unexpected url %q", u.String())
	}
	for _, bad := range []string{"", "ftp://example.com", "https://"} {
		if _, err := crawler.NormalizeURL(bad); !services.IsKind(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", bad, err)
		}
	}
}
