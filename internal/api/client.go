package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrUnavailable is returned when no daemon address is configured.
var ErrUnavailable = errors.New("brandkit daemon API unavailable")

// Error is a non-2xx daemon response.
type Error struct {
	Status  int
	Kind    string
	Message string
}

func (e *Error) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("daemon returned status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Client calls the daemon HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for the daemon listening on bind. An empty bind
// yields a nil client whose calls return ErrUnavailable.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout: follow mode and generation block until the caller cancels.
		http: &http.Client{},
	}, nil
}

// EventsQuery selects progress events for one brand.
type EventsQuery struct {
	Since  uint64
	Limit  int
	Follow bool
}

// LogQuery selects daemon log events.
type LogQuery struct {
	Since  uint64
	Limit  int
	Follow bool
	Tail   bool
}

// LogoUpload is a logo file plus its overlay settings.
type LogoUpload struct {
	Filename string
	Data     []byte
	Position string
	Size     string
	Opacity  float64
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Platforms returns the platform catalog.
func (c *Client) Platforms(ctx context.Context) ([]Platform, error) {
	var out PlatformListResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/platforms", nil, nil, &out)
	return out.Platforms, err
}

// Extract starts an extraction of rawURL. An empty name keeps the page title.
func (c *Client) Extract(ctx context.Context, rawURL, name string) (BrandProfile, error) {
	var out BrandProfile
	err := c.doJSON(ctx, http.MethodPost, "/api/brands", nil, ExtractRequest{URL: rawURL, Name: name}, &out)
	return out, err
}

// Brands lists every brand, newest first.
func (c *Client) Brands(ctx context.Context) ([]BrandProfile, error) {
	var out BrandListResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/brands", nil, nil, &out)
	return out.Brands, err
}

// Brand returns one brand.
func (c *Client) Brand(ctx context.Context, id string) (BrandProfile, error) {
	var out BrandProfile
	err := c.doJSON(ctx, http.MethodGet, brandPath(id, ""), nil, nil, &out)
	return out, err
}

// RetryExtraction re-extracts a failed brand's site as a new brand.
func (c *Client) RetryExtraction(ctx context.Context, id string) (BrandProfile, error) {
	var out BrandProfile
	err := c.doJSON(ctx, http.MethodPost, brandPath(id, "extract"), nil, nil, &out)
	return out, err
}

// CancelExtraction stops the running extraction of a brand.
func (c *Client) CancelExtraction(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, brandPath(id, "extraction"), nil, nil, nil)
}

// Confirm marks a completed brand as reviewed.
func (c *Client) Confirm(ctx context.Context, id string) (BrandProfile, error) {
	var out BrandProfile
	err := c.doJSON(ctx, http.MethodPost, brandPath(id, "confirm"), nil, nil, &out)
	return out, err
}

// Events fetches progress events for a brand.
func (c *Client) Events(ctx context.Context, id string, q EventsQuery) (EventsResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	var out EventsResponse
	err := c.doJSON(ctx, http.MethodGet, brandPath(id, "events"), values, nil, &out)
	return out, err
}

// UploadLogo sets the logo of a brand.
func (c *Client) UploadLogo(ctx context.Context, id string, logo LogoUpload) (BrandProfile, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", logo.Filename)
	if err != nil {
		return BrandProfile{}, err
	}
	if _, err := part.Write(logo.Data); err != nil {
		return BrandProfile{}, err
	}
	fields := map[string]string{"position": logo.Position, "size": logo.Size}
	if logo.Opacity > 0 {
		fields["opacity"] = strconv.FormatFloat(logo.Opacity, 'f', -1, 64)
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(key, value); err != nil {
			return BrandProfile{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return BrandProfile{}, err
	}

	resp, err := c.send(ctx, http.MethodPost, brandPath(id, "logo"), nil, &body, mw.FormDataContentType())
	if err != nil {
		return BrandProfile{}, err
	}
	defer resp.Body.Close()
	var out BrandProfile
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return BrandProfile{}, err
	}
	return out, nil
}

// Guide returns the brand guide as markdown, or as HTML when html is set.
func (c *Client) Guide(ctx context.Context, id string, html bool) (string, error) {
	values := url.Values{}
	if html {
		values.Set("format", "html")
	}
	resp, err := c.send(ctx, http.MethodGet, brandPath(id, "guide"), values, nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Generate creates one on-brand asset. It blocks until the asset is stored.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (ContentAsset, error) {
	var out ContentAsset
	err := c.doJSON(ctx, http.MethodPost, "/api/generations", nil, req, &out)
	return out, err
}

// Assets lists assets, optionally restricted to one brand.
func (c *Client) Assets(ctx context.Context, brandID string) ([]ContentAsset, error) {
	values := url.Values{}
	if strings.TrimSpace(brandID) != "" {
		values.Set("brand", brandID)
	}
	var out AssetListResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/assets", values, nil, &out)
	return out.Assets, err
}

// Asset returns one asset.
func (c *Client) Asset(ctx context.Context, id string) (ContentAsset, error) {
	var out ContentAsset
	err := c.doJSON(ctx, http.MethodGet, "/api/assets/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// Download requests the (format, quality) variant of an asset.
func (c *Client) Download(ctx context.Context, id, format, quality string) (DownloadVariant, error) {
	values := url.Values{}
	values.Set("format", format)
	values.Set("quality", quality)
	var out DownloadVariant
	err := c.doJSON(ctx, http.MethodGet, "/api/assets/"+url.PathEscape(id)+"/download", values, nil, &out)
	return out, err
}

// Fetch copies the bytes at a daemon-relative URL, such as a variant URL, to w.
func (c *Client) Fetch(ctx context.Context, path string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil, nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

// Logs fetches daemon log events.
func (c *Client) Logs(ctx context.Context, q LogQuery) (LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	var out LogStreamResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/logs", values, nil, &out)
	return out, err
}

func brandPath(id, suffix string) string {
	p := "/api/brands/" + url.PathEscape(id)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var (
		body        io.Reader
		contentType string
	)
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	resp, err := c.send(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// send performs the request and converts non-2xx responses into *Error. The
// caller closes the body of a successful response.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	if c == nil {
		return nil, ErrUnavailable
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	endpoint := c.base.ResolveReference(ref)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &Error{Status: resp.StatusCode}
	var payload ErrorResponse
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error.Message != "" {
		apiErr.Kind = payload.Error.Kind
		apiErr.Message = payload.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// ErrorKind returns the daemon error kind carried by err, if any.
func ErrorKind(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &opErr)
}
