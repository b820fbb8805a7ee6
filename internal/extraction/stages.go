package extraction

import (
	"brandkit/internal/brand"
	"brandkit/internal/events"
)

// Stage is a pipeline state. Runs only move forward through the stages; the
// error stage can follow any non-terminal one.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageCrawling        Stage = "crawling"
	StageAnalyzingColors Stage = "analyzing_colors"
	StageAnalyzingFonts  Stage = "analyzing_fonts"
	StageAnalyzingTone   Stage = "analyzing_tone"
	StageComplete        Stage = events.StageComplete
	StageError           Stage = events.StageError
)

var stagePercent = map[Stage]int{
	StageIdle:            0,
	StageCrawling:        20,
	StageAnalyzingColors: 40,
	StageAnalyzingFonts:  60,
	StageAnalyzingTone:   80,
	StageComplete:        100,
}

// Percent is the fixed progress checkpoint of the stage. The error stage has
// none; it reports the last checkpoint reached.
func (s Stage) Percent() int {
	return stagePercent[s]
}

// Status maps a stage to the persisted extraction status.
func (s Stage) Status() brand.ExtractionStatus {
	switch s {
	case StageCrawling:
		return brand.StatusCrawling
	case StageAnalyzingColors, StageAnalyzingFonts, StageAnalyzingTone:
		return brand.StatusAnalyzing
	case StageComplete:
		return brand.StatusComplete
	case StageError:
		return brand.StatusFailed
	default:
		return brand.StatusPending
	}
}

// IsTerminal reports whether the stage ends a run.
func (s Stage) IsTerminal() bool {
	return s == StageComplete || s == StageError
}
