package crawler

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"

	"brandkit/internal/services"
)

// fetched is a size-capped response body.
type fetched struct {
	url         string
	status      int
	contentType string
	body        []byte
}

func (c *Crawler) fetch(ctx context.Context, client *http.Client, target, accept string, maxBytes int64) (*fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "crawl", "build request", "invalid url "+target, err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, target, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, target, err)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return &fetched{
		url:         resp.Request.URL.String(),
		status:      resp.StatusCode,
		contentType: strings.ToLower(mediaType),
		body:        body,
	}, nil
}

// classifyStatus maps a non-success response to Blocked or Unreachable.
func classifyStatus(resp *http.Response) error {
	target := resp.Request.URL.String()
	if strings.EqualFold(resp.Header.Get("cf-mitigated"), "challenge") {
		return services.Wrap(services.ErrBlocked, "crawl", "fetch", "bot challenge at "+target, nil)
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests, http.StatusUnavailableForLegalReasons:
		return services.Wrap(services.ErrBlocked, "crawl", "fetch", fmt.Sprintf("%s returned %d", target, resp.StatusCode), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return services.Wrap(services.ErrUnreachable, "crawl", "fetch", fmt.Sprintf("%s returned %d", target, resp.StatusCode), nil)
	}
	return nil
}

// classifyTransportError distinguishes cancellation, deadline, and network
// failures. The caller's own cancellation wins over a budget deadline.
func classifyTransportError(ctx context.Context, target string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		return services.Wrap(services.ErrCanceled, "crawl", "fetch", "crawl canceled", err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "crawl", "fetch", "crawl budget exceeded fetching "+target, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "crawl", "fetch", "timed out fetching "+target, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return services.Wrap(services.ErrUnreachable, "crawl", "fetch", "dns lookup failed for "+target, err)
	}
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) || errors.As(err, &hostErr) {
		return services.Wrap(services.ErrUnreachable, "crawl", "fetch", "tls verification failed for "+target, err)
	}
	return services.Wrap(services.ErrUnreachable, "crawl", "fetch", "could not reach "+target, err)
}

func isHTML(contentType string) bool {
	return contentType == "" || contentType == "text/html" || contentType == "application/xhtml+xml"
}
