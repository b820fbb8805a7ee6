// Package platform holds the closed catalog of social platforms that content
// can be generated for.
package platform

import (
	"fmt"
	"strings"

	"brandkit/internal/services"
)

// ID identifies a target platform.
type ID string

const (
	InstagramPost  ID = "instagram_post"
	InstagramStory ID = "instagram_story"
	Facebook       ID = "facebook"
	LinkedIn       ID = "linkedin"
)

// Spec is the static geometry for a platform.
type Spec struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	AspectRatio string `json:"aspect_ratio"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

var catalog = []Spec{
	{ID: InstagramPost, Name: "Instagram Post", AspectRatio: "1:1", Width: 1080, Height: 1080},
	{ID: InstagramStory, Name: "Instagram Story", AspectRatio: "9:16", Width: 1080, Height: 1920},
	{ID: Facebook, Name: "Facebook", AspectRatio: "1.91:1", Width: 1200, Height: 630},
	{ID: LinkedIn, Name: "LinkedIn", AspectRatio: "1.91:1", Width: 1200, Height: 628},
}

// All returns every supported platform in catalog order.
func All() []Spec {
	out := make([]Spec, len(catalog))
	copy(out, catalog)
	return out
}

// Parse resolves a platform identifier. Unknown identifiers are a validation error.
func Parse(value string) (Spec, error) {
	normalized := ID(strings.ToLower(strings.TrimSpace(value)))
	for _, spec := range catalog {
		if spec.ID == normalized {
			return spec, nil
		}
	}
	return Spec{}, services.Wrap(services.ErrValidation, "platform", "parse", fmt.Sprintf("unknown platform %q", value), nil)
}

// ShorterSide returns the smaller of the two pixel dimensions.
func (s Spec) ShorterSide() int {
	if s.Width < s.Height {
		return s.Width
	}
	return s.Height
}

// Dimensions formats the pixel size as WxH.
func (s Spec) Dimensions() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}
