// Package sentiment scores article text.
package sentiment

import (
	"context"
	"strings"

	"github.com/jonreiter/govader"
)

// Labels produced by analyzers.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

const (
	// Provider and Model identify the VADER scorer on stored rows.
	Provider = "VADER"
	Model    = "govader"

	positiveThreshold = 0.05
	negativeThreshold = -0.05
)

// Result is one sentiment assessment.
type Result struct {
	Label string
	// Score is in [-1, 1].
	Score float64
	// Magnitude is nil for analyzers that do not report intensity.
	Magnitude *float64
}

// Analyzer scores text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Result, error)
	Provider() string
	Model() string
}

// Vader scores text with the VADER lexicon and uses its compound score.
// It is safe for concurrent use once constructed.
type Vader struct {
	sia *govader.SentimentIntensityAnalyzer
}

// NewVader loads the embedded VADER lexicon.
func NewVader() *Vader {
	return &Vader{sia: govader.NewSentimentIntensityAnalyzer()}
}

// Provider implements Analyzer.
func (*Vader) Provider() string { return Provider }

// Model implements Analyzer.
func (*Vader) Model() string { return Model }

// Analyze implements Analyzer. Empty text is neutral with a zero score.
func (v *Vader) Analyze(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err //nolint:wrapcheck // context errors pass through
	}
	if strings.TrimSpace(text) == "" {
		return Result{Label: LabelNeutral}, nil
	}
	score := clamp(v.sia.PolarityScores(text).Compound)
	return Result{Label: Label(score), Score: score}, nil
}

// Label classifies a compound score.
func Label(score float64) string {
	switch {
	case score >= positiveThreshold:
		return LabelPositive
	case score <= negativeThreshold:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

func clamp(score float64) float64 {
	return max(-1, min(1, score))
}
