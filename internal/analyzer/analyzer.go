// Package analyzer turns crawl artifacts into brand profile fields.
//
// Three passes run independently: color, typography, and tone. A failed or
// panicking pass leaves its fields at their defaults and is listed in the
// Report. The analysis is usable as long as the color pass succeeded.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"brandkit/internal/brand"
	"brandkit/internal/config"
	"brandkit/internal/crawler"
	"brandkit/internal/logging"
	"brandkit/internal/services"
)

// Pass names.
const (
	PassColor      = "color"
	PassTypography = "typography"
	PassTone       = "tone"
)

// PassFailure describes one failed sub-pass.
type PassFailure struct {
	Pass    string `json:"pass"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	err     error
}

// Report lists the passes that failed.
type Report struct {
	Failures []PassFailure `json:"failures,omitempty"`
}

// Failed reports whether the named pass failed.
func (r Report) Failed(pass string) bool {
	for _, f := range r.Failures {
		if f.Pass == pass {
			return true
		}
	}
	return false
}

// Err returns a PartialAnalysisFailure naming the failed passes, or nil.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Failures))
	causes := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		names = append(names, f.Pass)
		causes = append(causes, f.err)
	}
	return services.Wrap(services.ErrPartialAnalysis, "analyze", "merge",
		"failed passes: "+strings.Join(names, ", "), errors.Join(causes...))
}

// Analysis accumulates pass results into profile fields.
type Analysis struct {
	Colors     brand.ColorPalette
	Typography brand.Typography
	Voice      Voice
	Report     Report
}

// NewAnalysis starts from the default profile fields.
func NewAnalysis() *Analysis {
	return &Analysis{
		Colors:     brand.DefaultPalette(),
		Typography: brand.DefaultTypography(),
		Voice:      Voice{Tone: brand.DefaultTone, Keywords: []string{}, Industry: brand.DefaultIndustry},
	}
}

// Usable reports whether the color pass succeeded, which is what makes an
// extraction complete.
func (a *Analysis) Usable() bool {
	return !a.Report.Failed(PassColor)
}

// Apply copies the merged fields onto p.
func (a *Analysis) Apply(p *brand.Profile) {
	if p == nil {
		return
	}
	p.Colors = a.Colors
	p.Typography = a.Typography
	p.Tone = a.Voice.Tone
	p.Keywords = append([]string(nil), a.Voice.Keywords...)
	p.Industry = a.Voice.Industry
	p.ApplyDefaults()
}

func (a *Analysis) fail(pass string, err error) {
	a.Report.Failures = append(a.Report.Failures, PassFailure{
		Pass:    pass,
		Kind:    services.Kind(err),
		Message: err.Error(),
		err:     err,
	})
}

// Analyzer runs the three passes.
type Analyzer struct {
	colors ColorPass
	fonts  TypographyPass
	tone   TonePass
	logger *slog.Logger
}

// New wires the default passes from configuration. refiner may be nil.
func New(cfg *config.Config, refiner Classifier, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	threshold, limit := 0.02, DefaultKeywordLimit
	if cfg != nil {
		threshold = cfg.Analysis.SaliencyThreshold
		limit = cfg.Analysis.KeywordLimit
	}
	return NewWithPasses(
		PaletteExtractor{SaliencyThreshold: threshold},
		FontDetector{},
		LexiconClassifier{KeywordLimit: limit, Refiner: refiner, Logger: logger},
		logger,
	)
}

// NewWithPasses builds an analyzer from explicit passes. Nil passes use the
// defaults.
func NewWithPasses(colors ColorPass, fonts TypographyPass, tone TonePass, logger *slog.Logger) *Analyzer {
	if colors == nil {
		colors = PaletteExtractor{SaliencyThreshold: 0.02}
	}
	if fonts == nil {
		fonts = FontDetector{}
	}
	if tone == nil {
		tone = LexiconClassifier{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{colors: colors, fonts: fonts, tone: tone, logger: logger}
}

// RunColors runs the color pass into a.
func (z *Analyzer) RunColors(ctx context.Context, art *crawler.Artifacts, a *Analysis) {
	err := guard(PassColor, func() error {
		palette, err := z.colors.AnalyzeColors(ctx, art)
		if err == nil {
			a.Colors = palette.WithDefaults()
		}
		return err
	})
	z.record(ctx, a, PassColor, err)
}

// RunTypography runs the typography pass into a.
func (z *Analyzer) RunTypography(ctx context.Context, art *crawler.Artifacts, a *Analysis) {
	err := guard(PassTypography, func() error {
		typo, err := z.fonts.AnalyzeTypography(ctx, art)
		if err == nil {
			a.Typography = typo.WithDefaults()
		}
		return err
	})
	z.record(ctx, a, PassTypography, err)
}

// RunTone runs the tone pass into a.
func (z *Analyzer) RunTone(ctx context.Context, art *crawler.Artifacts, a *Analysis) {
	err := guard(PassTone, func() error {
		voice, err := z.tone.AnalyzeTone(ctx, art)
		if err == nil {
			if voice.Tone == "" {
				voice.Tone = brand.DefaultTone
			}
			if voice.Industry == "" {
				voice.Industry = brand.DefaultIndustry
			}
			if voice.Keywords == nil {
				voice.Keywords = []string{}
			}
			a.Voice = voice
		}
		return err
	})
	z.record(ctx, a, PassTone, err)
}

// Analyze runs every pass and returns the merged result.
func (z *Analyzer) Analyze(ctx context.Context, art *crawler.Artifacts) *Analysis {
	a := NewAnalysis()
	z.RunColors(ctx, art, a)
	z.RunTypography(ctx, art, a)
	z.RunTone(ctx, art, a)
	return a
}

func (z *Analyzer) record(ctx context.Context, a *Analysis, pass string, err error) {
	if err == nil {
		return
	}
	a.fail(pass, err)
	logging.WarnWithContext(logging.WithContext(ctx, z.logger), "analysis pass failed", "analysis_pass_failed",
		logging.String("pass", pass),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String(logging.FieldImpact, pass+" fields fall back to defaults"),
		logging.Error(err),
	)
}

// guard converts a panic inside a pass into an error.
func guard(pass string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s pass panicked: %v", pass, r)
		}
	}()
	return fn()
}
