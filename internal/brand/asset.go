package brand

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"brandkit/internal/platform"
	"brandkit/internal/services"
)

// ContentType is the kind of generated asset.
type ContentType string

const (
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
)

const (
	MaxPromptRunes      = 500
	MaxCopyTextRunes    = 120
	MinVideoSeconds     = 1
	MaxVideoSeconds     = 30
	DefaultVideoSeconds = 6
)

// ParseContentType resolves image or video.
func ParseContentType(value string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(value))) {
	case ContentImage:
		return ContentImage, nil
	case ContentVideo:
		return ContentVideo, nil
	}
	return "", services.Wrap(services.ErrValidation, "generation", "parse content type", fmt.Sprintf("content type %q must be image or video", value), nil)
}

// GenerationRequest is an immutable request to produce one asset.
type GenerationRequest struct {
	BrandID         string      `json:"brand_id"`
	PlatformID      platform.ID `json:"platform_id"`
	Prompt          string      `json:"prompt"`
	CopyText        string      `json:"copy_text,omitempty"`
	ContentType     ContentType `json:"content_type"`
	DurationSeconds int         `json:"duration_seconds,omitempty"`
}

// NewGenerationRequest validates raw input and returns a normalized request.
// copyText is optional overlay text. A zero duration on a video request takes
// defaultSeconds.
func NewGenerationRequest(brandID, platformID, prompt, copyText, contentType string, durationSeconds, defaultSeconds int) (GenerationRequest, error) {
	if strings.TrimSpace(brandID) == "" {
		return GenerationRequest{}, services.Wrap(services.ErrValidation, "generation", "validate", "brand id is required", nil)
	}
	spec, err := platform.Parse(platformID)
	if err != nil {
		return GenerationRequest{}, err
	}
	kind, err := ParseContentType(contentType)
	if err != nil {
		return GenerationRequest{}, err
	}
	req := GenerationRequest{
		BrandID:     strings.TrimSpace(brandID),
		PlatformID:  spec.ID,
		Prompt:      strings.TrimSpace(prompt),
		CopyText:    strings.Join(strings.Fields(copyText), " "),
		ContentType: kind,
	}
	if kind == ContentVideo {
		if durationSeconds == 0 {
			durationSeconds = defaultSeconds
		}
		if durationSeconds == 0 {
			durationSeconds = DefaultVideoSeconds
		}
		req.DurationSeconds = durationSeconds
	}
	if err := req.Validate(); err != nil {
		return GenerationRequest{}, err
	}
	return req, nil
}

// Validate checks prompt and copy text length, platform, content type, and
// video duration.
func (r GenerationRequest) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(r.Prompt))
	if n == 0 {
		return services.Wrap(services.ErrValidation, "generation", "validate", "prompt is required", nil)
	}
	if n > MaxPromptRunes {
		return services.Wrap(services.ErrValidation, "generation", "validate", fmt.Sprintf("prompt is %d characters; the limit is %d", n, MaxPromptRunes), nil)
	}
	if n := utf8.RuneCountInString(r.CopyText); n > MaxCopyTextRunes {
		return services.Wrap(services.ErrValidation, "generation", "validate", fmt.Sprintf("copy text is %d characters; the limit is %d", n, MaxCopyTextRunes), nil)
	}
	if _, err := platform.Parse(string(r.PlatformID)); err != nil {
		return err
	}
	if _, err := ParseContentType(string(r.ContentType)); err != nil {
		return err
	}
	if r.ContentType == ContentVideo && (r.DurationSeconds < MinVideoSeconds || r.DurationSeconds > MaxVideoSeconds) {
		return services.Wrap(services.ErrValidation, "generation", "validate",
			fmt.Sprintf("video duration %ds must be between %d and %d", r.DurationSeconds, MinVideoSeconds, MaxVideoSeconds), nil)
	}
	return nil
}

// ContentAsset is a generated, logo-composited artifact. BaseRef and FinalRef
// are internal blob references and never leave the process.
type ContentAsset struct {
	ID              string      `json:"id"`
	BrandID         string      `json:"brand_id"`
	ContentType     ContentType `json:"content_type"`
	PlatformID      platform.ID `json:"platform_id"`
	BaseRef         string      `json:"-"`
	FinalRef        string      `json:"-"`
	FinalURL        string      `json:"final_url"`
	Width           int         `json:"width"`
	Height          int         `json:"height"`
	DurationSeconds int         `json:"duration_seconds,omitempty"`
	Prompt          string      `json:"prompt"`
	Provider        string      `json:"provider"`
	CreatedAt       time.Time   `json:"created_at"`
}

// FinalExtension returns the file extension of the composited output.
func (a *ContentAsset) FinalExtension() string {
	if a != nil && a.ContentType == ContentVideo {
		return "mp4"
	}
	return "png"
}

// FinalContentType returns the MIME type of the composited output.
func (a *ContentAsset) FinalContentType() string {
	if a != nil && a.ContentType == ContentVideo {
		return "video/mp4"
	}
	return "image/png"
}

// AssetFileURL is the public URL of an asset's composited bytes.
func AssetFileURL(assetID string) string {
	return "/api/assets/" + assetID + "/file"
}

// DownloadVariant is a cached transcode of a final asset.
type DownloadVariant struct {
	AssetID     string    `json:"asset_id"`
	Format      string    `json:"format"`
	Quality     string    `json:"quality"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	SHA256      string    `json:"sha256"`
	BlobRef     string    `json:"-"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}
