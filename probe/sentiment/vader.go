// Package sentiment scores text polarity with the VADER lexicon and rules.
package sentiment

import (
	"math"
	"strings"
	"sync"

	"github.com/jonreiter/govader"
)

// Analyzer produces a compound polarity score in [-1, 1] for a text.
type Analyzer interface {
	Compound(text string) float64
}

// The lexicon load is the expensive part; PolarityScores only reads it.
var sharedAnalyzer = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// Vader is an Analyzer backed by govader, with compound scores rounded to four places.
type Vader struct {
	sia *govader.SentimentIntensityAnalyzer
}

var _ Analyzer = (*Vader)(nil)

func NewVader() *Vader {
	return &Vader{sia: sharedAnalyzer()}
}

// Compound returns VADER's normalised compound score. Whitespace runs, newlines included, are
// treated as single token separators. Blank text scores 0.
func (v *Vader) Compound(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	s := v.sia.PolarityScores(strings.Join(fields, " "))
	return math.Round(s.Compound*1e4) / 1e4
}
