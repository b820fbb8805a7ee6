package brand

import (
	"fmt"
	"strings"

	"brandkit/internal/services"
)

// LogoPosition is where the logo is anchored on the canvas.
type LogoPosition string

const (
	PositionTopLeft     LogoPosition = "top-left"
	PositionTopRight    LogoPosition = "top-right"
	PositionBottomLeft  LogoPosition = "bottom-left"
	PositionBottomRight LogoPosition = "bottom-right"
	PositionCenter      LogoPosition = "center"
)

// LogoSize is a named fraction of the canvas' shorter side.
type LogoSize string

const (
	SizeSmall  LogoSize = "small"
	SizeMedium LogoSize = "medium"
	SizeLarge  LogoSize = "large"
)

// MarginFraction is the logo margin relative to the canvas' shorter side.
const MarginFraction = 0.04

var sizeFractions = map[LogoSize]float64{
	SizeSmall:  0.10,
	SizeMedium: 0.18,
	SizeLarge:  0.26,
}

var positions = map[LogoPosition]struct{}{
	PositionTopLeft:     {},
	PositionTopRight:    {},
	PositionBottomLeft:  {},
	PositionBottomRight: {},
	PositionCenter:      {},
}

// Logo content types accepted on upload.
const (
	LogoPNG  = "image/png"
	LogoJPEG = "image/jpeg"
)

// LogoSpec configures the mandatory logo overlay for a brand.
type LogoSpec struct {
	AssetRef    string       `json:"asset_ref"`
	ContentType string       `json:"content_type"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Position    LogoPosition `json:"position"`
	Size        LogoSize     `json:"size"`
	Opacity     float64      `json:"opacity"`
}

// ParsePosition validates a logo position.
func ParsePosition(value string) (LogoPosition, error) {
	pos := LogoPosition(strings.ToLower(strings.TrimSpace(value)))
	if pos == "" {
		return PositionBottomRight, nil
	}
	if _, ok := positions[pos]; !ok {
		return "", services.Wrap(services.ErrValidation, "logo", "parse position", fmt.Sprintf("unknown position %q", value), nil)
	}
	return pos, nil
}

// ParseSize validates a logo size.
func ParseSize(value string) (LogoSize, error) {
	size := LogoSize(strings.ToLower(strings.TrimSpace(value)))
	if size == "" {
		return SizeMedium, nil
	}
	if _, ok := sizeFractions[size]; !ok {
		return "", services.Wrap(services.ErrValidation, "logo", "parse size", fmt.Sprintf("unknown size %q", value), nil)
	}
	return size, nil
}

// Fraction returns the share of the canvas' shorter side the logo occupies.
func (s LogoSize) Fraction() float64 {
	return sizeFractions[s]
}

// NewLogoSpec builds a validated LogoSpec. Opacity outside [0,1] is rejected.
func NewLogoSpec(assetRef, contentType string, width, height int, position LogoPosition, size LogoSize, opacity float64) (*LogoSpec, error) {
	spec := &LogoSpec{
		AssetRef:    strings.TrimSpace(assetRef),
		ContentType: strings.TrimSpace(contentType),
		Width:       width,
		Height:      height,
		Position:    position,
		Size:        size,
		Opacity:     opacity,
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate checks every field of the spec.
func (l *LogoSpec) Validate() error {
	if l == nil {
		return services.Wrap(services.ErrValidation, "logo", "validate", "logo spec is required", nil)
	}
	if l.AssetRef == "" {
		return services.Wrap(services.ErrValidation, "logo", "validate", "logo asset reference is required", nil)
	}
	if _, ok := positions[l.Position]; !ok {
		return services.Wrap(services.ErrValidation, "logo", "validate", fmt.Sprintf("unknown position %q", l.Position), nil)
	}
	if _, ok := sizeFractions[l.Size]; !ok {
		return services.Wrap(services.ErrValidation, "logo", "validate", fmt.Sprintf("unknown size %q", l.Size), nil)
	}
	if err := ValidateOpacity(l.Opacity); err != nil {
		return err
	}
	switch l.ContentType {
	case LogoPNG, LogoJPEG:
	default:
		return services.Wrap(services.ErrValidation, "logo", "validate", fmt.Sprintf("unsupported logo content type %q", l.ContentType), nil)
	}
	if l.Width <= 0 || l.Height <= 0 {
		return services.Wrap(services.ErrValidation, "logo", "validate", "logo dimensions must be positive", nil)
	}
	return nil
}

// ValidateOpacity rejects values outside [0,1], including NaN.
func ValidateOpacity(opacity float64) error {
	if !(opacity >= 0 && opacity <= 1) {
		return services.Wrap(services.ErrValidation, "logo", "validate", fmt.Sprintf("opacity %v outside [0,1]", opacity), nil)
	}
	return nil
}
