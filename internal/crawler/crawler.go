// Package crawler fetches a website's homepage and a few linked pages and
// collects the raw inputs for brand analysis: stylesheet declarations, visible
// text, and decoded images.
//
// Each crawl owns its HTTP transport and closes its idle connections before
// Crawl returns, whether the crawl completed, failed, timed out, or was
// canceled.
package crawler

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"brandkit/internal/config"
	"brandkit/internal/logging"
	"brandkit/internal/services"
)

const (
	maxImageBytes       = 5 << 20
	subpageConcurrency  = 3
	acceptHTML          = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5"
	acceptCSS           = "text/css,*/*;q=0.1"
	acceptImage         = "image/png,image/jpeg,image/gif,image/webp,*/*;q=0.5"
	defaultMaxPageBytes = 2 << 20
)

// Options bound the work done by a single crawl.
type Options struct {
	MaxPages       int
	Budget         time.Duration
	UserAgent      string
	MaxPageBytes   int64
	MaxStylesheets int
	MaxImages      int
}

// OptionsFromConfig maps the [crawler] section.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		MaxPages:       cfg.Crawler.MaxPages,
		Budget:         cfg.CrawlBudget(),
		UserAgent:      cfg.Crawler.UserAgent,
		MaxPageBytes:   int64(cfg.Crawler.MaxPageBytes),
		MaxStylesheets: cfg.Crawler.MaxStylesheets,
		MaxImages:      cfg.Crawler.MaxImages,
	}
}

// Renderer produces a screenshot of a page. It is optional.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (image.Image, error)
}

// Fetcher is the crawl contract consumed by the extraction pipeline.
type Fetcher interface {
	Crawl(ctx context.Context, rawURL string) (*Artifacts, error)
}

// Crawler implements Fetcher over net/http.
type Crawler struct {
	opts         Options
	renderer     Renderer
	newTransport func() http.RoundTripper
	logger       *slog.Logger
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithRenderer plugs in a screenshot renderer.
func WithRenderer(r Renderer) Option {
	return func(c *Crawler) { c.renderer = r }
}

// WithTransport overrides the per-crawl transport factory.
func WithTransport(factory func() http.RoundTripper) Option {
	return func(c *Crawler) {
		if factory != nil {
			c.newTransport = factory
		}
	}
}

// WithLogger sets the crawler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a crawler with the given limits.
func New(opts Options, options ...Option) *Crawler {
	if opts.MaxPages < 0 {
		opts.MaxPages = 0
	}
	if opts.Budget <= 0 {
		opts.Budget = 20 * time.Second
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "brandkit"
	}
	if opts.MaxPageBytes <= 0 {
		opts.MaxPageBytes = defaultMaxPageBytes
	}
	if opts.MaxStylesheets < 0 {
		opts.MaxStylesheets = 0
	}
	if opts.MaxImages < 0 {
		opts.MaxImages = 0
	}
	c := &Crawler{
		opts:         opts,
		newTransport: defaultTransport,
		logger:       logging.NewNop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func defaultTransport() http.RoundTripper {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
}

// NormalizeURL adds https:// when the scheme is missing and rejects anything
// that is not an http or https URL with a host.
func NormalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, services.Wrap(services.ErrValidation, "crawl", "normalize url", "url is required", nil)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "crawl", "normalize url", "invalid url", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, services.Wrap(services.ErrValidation, "crawl", "normalize url", "only http and https urls are supported", nil)
	}
	if u.Hostname() == "" {
		return nil, services.Wrap(services.ErrValidation, "crawl", "normalize url", "url has no host", nil)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// Crawl fetches rawURL and up to MaxPages linked pages on the same host. A
// homepage failure fails the crawl; sub-page, stylesheet, and image failures
// are recorded in Artifacts.Failures.
func (c *Crawler) Crawl(ctx context.Context, rawURL string) (*Artifacts, error) {
	home, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	transport := c.newTransport()
	defer closeIdle(transport)
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			return nil
		},
	}

	crawlCtx, cancel := context.WithTimeout(ctx, c.opts.Budget)
	defer cancel()
	started := time.Now()

	page, err := c.fetch(crawlCtx, client, home.String(), acceptHTML, c.opts.MaxPageBytes)
	if err != nil {
		return nil, c.parentError(ctx, err)
	}
	if !isHTML(page.contentType) {
		return nil, services.Wrap(services.ErrUnreachable, "crawl", "fetch homepage", "homepage is "+page.contentType+", not html", nil)
	}
	finalURL, err := url.Parse(page.url)
	if err != nil {
		finalURL = home
	}
	doc, err := parseDocument(bytes.NewReader(page.body), finalURL)
	if err != nil {
		return nil, services.Wrap(services.ErrUnreachable, "crawl", "parse homepage", "homepage html could not be parsed", err)
	}
	if doc.blocksCrawlers() {
		return nil, services.Wrap(services.ErrBlocked, "crawl", "fetch homepage", "site opts out of crawling via robots meta", nil)
	}

	art := &Artifacts{
		URL:          home.String(),
		FinalURL:     page.url,
		Title:        doc.title,
		Description:  doc.description,
		MetaKeywords: doc.keywords,
		Pages:        []Page{{URL: page.url, Title: doc.title, Status: page.status, Bytes: len(page.body)}},
	}
	styles := newStyleCollector()
	texts := []string{doc.description, doc.text}
	addDocumentStyles(styles, doc)

	c.fetchStylesheets(crawlCtx, client, finalURL, doc.stylesheets, styles, art)

	subpages := c.fetchSubpages(crawlCtx, client, finalURL, doc.links, art)
	for _, sub := range subpages {
		if sub == nil {
			continue
		}
		art.Pages = append(art.Pages, sub.page)
		texts = append(texts, sub.doc.text)
		addDocumentStyles(styles, sub.doc)
	}

	c.collectSamples(crawlCtx, client, page.url, doc.images, art)

	if err := ctx.Err(); err != nil {
		return nil, c.parentError(ctx, err)
	}

	art.Text = joinNonEmpty(texts)
	art.StyleRules = styles.rules
	art.CustomProperties = styles.custom

	c.logger.Info("crawl finished",
		logging.String(logging.FieldEventType, "crawl_complete"),
		logging.String("url", art.FinalURL),
		logging.Int("pages", len(art.Pages)),
		logging.Int("style_rules", len(art.StyleRules)),
		logging.Int("samples", len(art.Samples)),
		logging.Int("failures", len(art.Failures)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return art, nil
}

// parentError reports a failure as Canceled or Timeout when the caller's
// context ended, regardless of how the transport surfaced it.
func (c *Crawler) parentError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "crawl", "crawl", "deadline exceeded", err)
		}
		return services.Wrap(services.ErrCanceled, "crawl", "fetch homepage", "crawl canceled", err)
	}
	return err
}

type subpage struct {
	page Page
	doc  *document
}

func (c *Crawler) fetchSubpages(ctx context.Context, client *http.Client, home *url.URL, links []string, art *Artifacts) []*subpage {
	targets := subpageCandidates(home, links, c.opts.MaxPages)
	if len(targets) == 0 {
		return nil
	}
	results := make([]*subpage, len(targets))
	failures := make([]*Failure, len(targets))

	var g errgroup.Group
	g.SetLimit(subpageConcurrency)
	for i, target := range targets {
		g.Go(func() error {
			page, err := c.fetch(ctx, client, target, acceptHTML, c.opts.MaxPageBytes)
			if err == nil && !isHTML(page.contentType) {
				err = services.Wrap(services.ErrUnreachable, "crawl", "fetch page", "not html", nil)
			}
			var doc *document
			if err == nil {
				pageURL, _ := url.Parse(page.url)
				doc, err = parseDocument(bytes.NewReader(page.body), pageURL)
			}
			if err != nil {
				f := newFailure(target, err)
				failures[i] = &f
				return nil
			}
			results[i] = &subpage{
				page: Page{URL: page.url, Title: doc.title, Status: page.status, Bytes: len(page.body)},
				doc:  doc,
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range failures {
		if f != nil {
			c.logger.Debug("sub-page skipped", logging.String("url", f.URL), logging.String(logging.FieldErrorKind, f.Kind))
			art.Failures = append(art.Failures, *f)
		}
	}
	return results
}

func (c *Crawler) fetchStylesheets(ctx context.Context, client *http.Client, home *url.URL, sheets []string, styles *styleCollector, art *Artifacts) {
	fetchedCount := 0
	for _, sheet := range sheets {
		if fetchedCount >= c.opts.MaxStylesheets {
			return
		}
		u, err := url.Parse(sheet)
		if err != nil || !strings.EqualFold(u.Hostname(), home.Hostname()) {
			continue
		}
		fetchedCount++
		res, err := c.fetch(ctx, client, sheet, acceptCSS, c.opts.MaxPageBytes)
		if err != nil {
			art.Failures = append(art.Failures, newFailure(sheet, err))
			continue
		}
		styles.addStylesheet(string(res.body))
	}
}

func (c *Crawler) collectSamples(ctx context.Context, client *http.Client, pageURL string, candidates []string, art *Artifacts) {
	if c.renderer != nil {
		img, err := c.renderer.Render(ctx, pageURL)
		if err != nil {
			art.Failures = append(art.Failures, newFailure(pageURL, err))
		} else if img != nil {
			art.Samples = append(art.Samples, Sample{Source: "screenshot", Image: img})
		}
	}
	seen := make(map[string]struct{})
	decoded := 0
	for _, ref := range candidates {
		if decoded >= c.opts.MaxImages {
			return
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		res, err := c.fetch(ctx, client, ref, acceptImage, maxImageBytes)
		if err != nil {
			art.Failures = append(art.Failures, newFailure(ref, err))
			continue
		}
		img, err := decodeImage(res.body)
		if err != nil {
			art.Failures = append(art.Failures, newFailure(ref, err))
			continue
		}
		decoded++
		art.Samples = append(art.Samples, Sample{Source: ref, Image: img})
	}
}

func addDocumentStyles(styles *styleCollector, doc *document) {
	for _, block := range doc.styleBlocks {
		styles.addStylesheet(block)
	}
	for _, inline := range doc.inlineStyles {
		styles.addInline(inline.Selector, inline.Value)
	}
}

func newFailure(target string, err error) Failure {
	return Failure{URL: target, Kind: services.Kind(err), Err: services.Message(err)}
}

func closeIdle(rt http.RoundTripper) {
	if closer, ok := rt.(interface{ CloseIdleConnections() }); ok {
		closer.CloseIdleConnections()
	}
}

func joinNonEmpty(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}
