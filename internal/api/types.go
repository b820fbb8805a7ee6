package api

import (
	"brandkit/internal/logging"
	"brandkit/internal/preflight"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ColorPalette lists the five brand color roles as #RRGGBB strings.
type ColorPalette struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Accent     string `json:"accent"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

// Typography describes the heading and body fonts.
type Typography struct {
	HeadingFont   string `json:"headingFont"`
	BodyFont      string `json:"bodyFont"`
	HeadingWeight int    `json:"headingWeight"`
	BodyWeight    int    `json:"bodyWeight"`
}

// LogoSpec is the logo overlay configuration. The stored file is reachable
// only through the daemon and is not exposed.
type LogoSpec struct {
	ContentType string  `json:"contentType"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Position    string  `json:"position"`
	Size        string  `json:"size"`
	Opacity     float64 `json:"opacity"`
}

// ExtractionError is the terminal failure of an extraction.
type ExtractionError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// BrandProfile describes a brand in a transport-friendly format.
type BrandProfile struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	SourceURL        string           `json:"sourceUrl"`
	Colors           ColorPalette     `json:"colors"`
	Typography       Typography       `json:"typography"`
	Tone             string           `json:"tone"`
	Keywords         []string         `json:"keywords"`
	Industry         string           `json:"industry"`
	ExtractionStatus string           `json:"extractionStatus"`
	ExtractionError  *ExtractionError `json:"extractionError,omitempty"`
	Confirmed        bool             `json:"confirmed"`
	Logo             *LogoSpec        `json:"logo,omitempty"`
	CreatedAt        string           `json:"createdAt,omitempty"`
	UpdatedAt        string           `json:"updatedAt,omitempty"`
}

// BrandListResponse wraps a collection of brands.
type BrandListResponse struct {
	Brands []BrandProfile `json:"brands"`
}

// ExtractRequest starts an extraction. Name, when set, replaces the crawled
// page title.
type ExtractRequest struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// ContentAsset describes a generated asset.
type ContentAsset struct {
	ID              string `json:"id"`
	BrandID         string `json:"brandId"`
	ContentType     string `json:"contentType"`
	PlatformID      string `json:"platformId"`
	FinalURL        string `json:"finalUrl"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	Prompt          string `json:"prompt"`
	Provider        string `json:"provider"`
	CreatedAt       string `json:"createdAt,omitempty"`
}

// AssetListResponse wraps a collection of assets.
type AssetListResponse struct {
	Assets []ContentAsset `json:"assets"`
}

// GenerateRequest asks for one on-brand asset.
type GenerateRequest struct {
	BrandID         string `json:"brandId"`
	PlatformID      string `json:"platformId"`
	Prompt          string `json:"prompt"`
	CopyText        string `json:"copyText,omitempty"`
	ContentType     string `json:"contentType"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// DownloadVariant describes a cached export of an asset.
type DownloadVariant struct {
	AssetID     string `json:"assetId"`
	Format      string `json:"format"`
	Quality     string `json:"quality"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
	SHA256      string `json:"sha256"`
	URL         string `json:"url"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// Platform describes one target social platform.
type Platform struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	AspectRatio string `json:"aspectRatio"`
}

// PlatformListResponse wraps the platform catalog.
type PlatformListResponse struct {
	Platforms []Platform `json:"platforms"`
}

// ProgressEvent is one stage change of an extraction or generation.
type ProgressEvent struct {
	Sequence  uint64 `json:"seq"`
	BrandID   string `json:"brandId"`
	AssetID   string `json:"assetId,omitempty"`
	Task      string `json:"task"`
	Stage     string `json:"stage"`
	Percent   int    `json:"percent"`
	Message   string `json:"message,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Timestamp string `json:"ts"`
}

// EventsResponse is one page of progress events. Next is the sequence to
// pass as since on the following poll.
type EventsResponse struct {
	Events []ProgressEvent `json:"events"`
	Next   uint64          `json:"next"`
}

// LogStreamResponse wraps log events for streaming APIs.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running           bool               `json:"running"`
	PID               int                `json:"pid"`
	StartedAt         string             `json:"startedAt,omitempty"`
	UptimeSeconds     int64              `json:"uptimeSeconds"`
	DatabasePath      string             `json:"databasePath"`
	LockFilePath      string             `json:"lockFilePath"`
	ActiveExtractions []string           `json:"activeExtractions"`
	CacheBytes        int64              `json:"cacheBytes"`
	Preflight         []preflight.Result `json:"preflight"`
}

// ReadyResponse reports readiness and the checks that failed.
type ReadyResponse struct {
	Ready  bool               `json:"ready"`
	Failed []preflight.Result `json:"failed,omitempty"`
}

// ErrorBody carries the stable error kind and a human message.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorResponse is the envelope of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
