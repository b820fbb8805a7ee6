package api

import (
	"time"

	"brandkit/internal/brand"
	"brandkit/internal/events"
	"brandkit/internal/platform"
)

// FromProfile converts a stored brand to its API representation.
func FromProfile(p *brand.Profile) BrandProfile {
	if p == nil {
		return BrandProfile{}
	}
	dto := BrandProfile{
		ID:        p.ID,
		Name:      p.Name,
		SourceURL: p.SourceURL,
		Colors: ColorPalette{
			Primary:    p.Colors.Primary,
			Secondary:  p.Colors.Secondary,
			Accent:     p.Colors.Accent,
			Background: p.Colors.Background,
			Text:       p.Colors.Text,
		},
		Typography: Typography{
			HeadingFont:   p.Typography.HeadingFont,
			BodyFont:      p.Typography.BodyFont,
			HeadingWeight: p.Typography.HeadingWeight,
			BodyWeight:    p.Typography.BodyWeight,
		},
		Tone:             p.Tone,
		Keywords:         append([]string{}, p.Keywords...),
		Industry:         p.Industry,
		ExtractionStatus: string(p.ExtractionStatus),
		Confirmed:        p.Confirmed,
		CreatedAt:        formatTime(p.CreatedAt),
		UpdatedAt:        formatTime(p.UpdatedAt),
	}
	if p.ExtractionError != nil {
		dto.ExtractionError = &ExtractionError{Kind: p.ExtractionError.Kind, Message: p.ExtractionError.Message}
	}
	if p.Logo != nil {
		dto.Logo = &LogoSpec{
			ContentType: p.Logo.ContentType,
			Width:       p.Logo.Width,
			Height:      p.Logo.Height,
			Position:    string(p.Logo.Position),
			Size:        string(p.Logo.Size),
			Opacity:     p.Logo.Opacity,
		}
	}
	return dto
}

// FromProfiles converts a slice of brands, preserving order.
func FromProfiles(profiles []*brand.Profile) []BrandProfile {
	out := make([]BrandProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, FromProfile(p))
	}
	return out
}

// FromAsset converts a generated asset. Blob references are dropped.
func FromAsset(a *brand.ContentAsset) ContentAsset {
	if a == nil {
		return ContentAsset{}
	}
	return ContentAsset{
		ID:              a.ID,
		BrandID:         a.BrandID,
		ContentType:     string(a.ContentType),
		PlatformID:      string(a.PlatformID),
		FinalURL:        a.FinalURL,
		Width:           a.Width,
		Height:          a.Height,
		DurationSeconds: a.DurationSeconds,
		Prompt:          a.Prompt,
		Provider:        a.Provider,
		CreatedAt:       formatTime(a.CreatedAt),
	}
}

// FromAssets converts a slice of assets, preserving order.
func FromAssets(assets []*brand.ContentAsset) []ContentAsset {
	out := make([]ContentAsset, 0, len(assets))
	for _, a := range assets {
		out = append(out, FromAsset(a))
	}
	return out
}

// FromVariant converts a cached download variant.
func FromVariant(v *brand.DownloadVariant) DownloadVariant {
	if v == nil {
		return DownloadVariant{}
	}
	return DownloadVariant{
		AssetID:     v.AssetID,
		Format:      v.Format,
		Quality:     v.Quality,
		ContentType: v.ContentType,
		SizeBytes:   v.SizeBytes,
		SHA256:      v.SHA256,
		URL:         v.URL,
		CreatedAt:   formatTime(v.CreatedAt),
	}
}

// FromPlatforms converts the platform catalog.
func FromPlatforms(specs []platform.Spec) []Platform {
	out := make([]Platform, 0, len(specs))
	for _, s := range specs {
		out = append(out, Platform{
			ID:          string(s.ID),
			Name:        s.Name,
			Width:       s.Width,
			Height:      s.Height,
			AspectRatio: s.AspectRatio,
		})
	}
	return out
}

// FromEvents converts progress events.
func FromEvents(evts []events.Event) []ProgressEvent {
	out := make([]ProgressEvent, 0, len(evts))
	for _, e := range evts {
		out = append(out, ProgressEvent{
			Sequence:  e.Sequence,
			BrandID:   e.BrandID,
			AssetID:   e.AssetID,
			Task:      e.Task,
			Stage:     e.Stage,
			Percent:   e.Percent,
			Message:   e.Message,
			Kind:      e.Kind,
			Timestamp: formatTime(e.Timestamp),
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
