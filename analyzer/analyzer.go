// Package analyzer defines the text-analysis port the lyrics enrichment
// source hands song text to. Implementations must be deterministic for a
// given text up to rounding.
package analyzer

import (
	"context"

	"github.com/ssharples/music-discovery-system/model"
)

// Analyzer produces a LyricAnalysis for one song's text.
type Analyzer interface {
	AnalyzeLyrics(ctx context.Context, text, languageHint string) (model.LyricAnalysis, error)
}
