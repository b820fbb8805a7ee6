package brand

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"brandkit/internal/services"
)

// ExtractionStatus is the persisted lifecycle of a brand profile.
type ExtractionStatus string

const (
	StatusPending   ExtractionStatus = "pending"
	StatusCrawling  ExtractionStatus = "crawling"
	StatusAnalyzing ExtractionStatus = "analyzing"
	StatusComplete  ExtractionStatus = "complete"
	StatusFailed    ExtractionStatus = "failed"
)

var statusRank = map[ExtractionStatus]int{
	StatusPending:   0,
	StatusCrawling:  1,
	StatusAnalyzing: 2,
	StatusComplete:  3,
	StatusFailed:    3,
}

// ParseStatus converts a persisted string into an ExtractionStatus.
func ParseStatus(value string) (ExtractionStatus, bool) {
	status := ExtractionStatus(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusRank[status]
	return status, ok
}

// IsTerminal reports whether the status is complete or failed.
func (s ExtractionStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CanTransition reports whether moving from one status to another keeps the
// lifecycle monotonic. Terminal states accept no further change.
func CanTransition(from, to ExtractionStatus) bool {
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	if !okFrom || !okTo {
		return false
	}
	if from.IsTerminal() {
		return from == to
	}
	return toRank >= fromRank
}

// ColorPalette holds the five brand color roles as #RRGGBB strings.
type ColorPalette struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Accent     string `json:"accent"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

// Typography describes the heading and body font pair.
type Typography struct {
	HeadingFont   string `json:"heading_font"`
	BodyFont      string `json:"body_font"`
	HeadingWeight int    `json:"heading_weight"`
	BodyWeight    int    `json:"body_weight"`
}

// ExtractionError records the terminal failure of an extraction run.
type ExtractionError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Profile is the brand identity extracted from a website.
type Profile struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	SourceURL        string           `json:"source_url"`
	Colors           ColorPalette     `json:"colors"`
	Typography       Typography       `json:"typography"`
	Tone             string           `json:"tone"`
	Keywords         []string         `json:"keywords"`
	Industry         string           `json:"industry"`
	ExtractionStatus ExtractionStatus `json:"extraction_status"`
	ExtractionError  *ExtractionError `json:"extraction_error,omitempty"`
	Confirmed        bool             `json:"confirmed"`
	Logo             *LogoSpec        `json:"logo,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// MaxNameRunes bounds a caller-supplied brand name.
const MaxNameRunes = 120

// NormalizeName trims a caller-supplied brand name. An empty result means the
// crawled page title should be used.
func NormalizeName(name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if n := utf8.RuneCountInString(name); n > MaxNameRunes {
		return "", services.Wrap(services.ErrValidation, "brand", "name",
			fmt.Sprintf("brand name is %d characters; the limit is %d", n, MaxNameRunes), nil)
	}
	return name, nil
}

// NewProfile returns a pending profile populated with defaults.
func NewProfile(id, name, sourceURL string) *Profile {
	now := time.Now().UTC()
	return &Profile{
		ID:               id,
		Name:             strings.TrimSpace(name),
		SourceURL:        strings.TrimSpace(sourceURL),
		Colors:           DefaultPalette(),
		Typography:       DefaultTypography(),
		Tone:             DefaultTone,
		Keywords:         []string{},
		Industry:         DefaultIndustry,
		ExtractionStatus: StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ApplyDefaults fills any empty color or typography field.
func (p *Profile) ApplyDefaults() {
	if p == nil {
		return
	}
	p.Colors = p.Colors.WithDefaults()
	p.Typography = p.Typography.WithDefaults()
	if strings.TrimSpace(p.Tone) == "" {
		p.Tone = DefaultTone
	}
	if strings.TrimSpace(p.Industry) == "" {
		p.Industry = DefaultIndustry
	}
	if p.Keywords == nil {
		p.Keywords = []string{}
	}
}

// ReadyForGeneration returns a validation error describing why generation
// cannot proceed, or nil. A missing logo is reported separately by the
// orchestrator.
func (p *Profile) ReadyForGeneration() error {
	if p == nil {
		return services.Wrap(services.ErrValidation, "brand", "check", "brand profile is required", nil)
	}
	if p.ExtractionStatus != StatusComplete {
		return services.Wrap(services.ErrValidation, "brand", "check", "brand extraction is "+string(p.ExtractionStatus)+", not complete", nil)
	}
	if !p.Confirmed {
		return services.Wrap(services.ErrValidation, "brand", "check", "brand profile has not been confirmed", nil)
	}
	return nil
}

// HasLogo reports whether a logo has been configured.
func (p *Profile) HasLogo() bool {
	return p != nil && p.Logo != nil && strings.TrimSpace(p.Logo.AssetRef) != ""
}
